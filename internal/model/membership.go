package model

import (
	"time"

	"gorm.io/gorm"
)

// Role names assigned through memberships. The permission sets behind them
// live in the rbac table; an unknown role name grants nothing.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Membership associates a user with a tenant under a specific role.
// At most one membership per user has IsDefault set; SetDefaultTenant
// maintains that inside a transaction.
type Membership struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index;not null;uniqueIndex:idx_membership_user_tenant"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null;uniqueIndex:idx_membership_user_tenant"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"`
	IsDefault bool           `json:"is_default" gorm:"default:false"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}
