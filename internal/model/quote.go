package model

import (
	"time"

	"gorm.io/gorm"
)

// Quote statuses
const (
	QuoteStatusDraft    = "draft"
	QuoteStatusSent     = "sent"
	QuoteStatusAccepted = "accepted"
	QuoteStatusDeclined = "declined"
	QuoteStatusExpired  = "expired"
)

// Quote represents a priced offer sent to a client
type Quote struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null;uniqueIndex:idx_quote_tenant_number"`
	ClientID    uint           `json:"client_id" gorm:"index;not null"`
	ProjectID   *uint          `json:"project_id,omitempty" gorm:"index"`
	Number      string         `json:"number" gorm:"type:varchar(30);not null;uniqueIndex:idx_quote_tenant_number"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	AmountCents int64          `json:"amount_cents" gorm:"not null;default:0"`
	Currency    string         `json:"currency" gorm:"type:varchar(3);not null;default:'EUR'"`
	ValidUntil  *time.Time     `json:"valid_until,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Client Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}
