package model

import (
	"time"

	"gorm.io/gorm"
)

// WorkTemplate is a reusable task checklist. Version is bumped whenever the
// item list changes, so tasks created from a template record which revision
// they came from.
type WorkTemplate struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(150);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Version     int            `json:"version" gorm:"not null;default:1"`
	Active      bool           `json:"active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Items []WorkTemplateItem `json:"items,omitempty" gorm:"foreignKey:TemplateID"`
}

// WorkTemplateItem is one entry of a work template, ordered by Position.
type WorkTemplateItem struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TemplateID  uint   `json:"template_id" gorm:"index;not null"`
	Position    int    `json:"position" gorm:"not null"`
	Title       string `json:"title" gorm:"type:varchar(200);not null"`
	Description string `json:"description" gorm:"type:text"`
	// DefaultPriority seeds the created task's priority.
	DefaultPriority string `json:"default_priority" gorm:"type:varchar(20);not null;default:'normal'"`
	// OffsetDays shifts the created task's due date from the project start.
	OffsetDays *int           `json:"offset_days,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
