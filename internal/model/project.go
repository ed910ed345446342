package model

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses
const (
	ProjectStatusPlanned   = "planned"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Project represents a construction/management project scoped to a tenant
type Project struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	ClientID    *uint          `json:"client_id,omitempty" gorm:"index"`
	Name        string         `json:"name" gorm:"type:varchar(150);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Status      string         `json:"status" gorm:"type:varchar(30);not null;default:'planned'"`
	StartDate   *time.Time     `json:"start_date,omitempty"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Client *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Tasks  []Task  `json:"tasks,omitempty" gorm:"foreignKey:ProjectID"`
}
