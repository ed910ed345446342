package model

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses and priorities
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusBlocked    = "blocked"
	TaskStatusDone       = "done"

	TaskPriorityLow    = "low"
	TaskPriorityNormal = "normal"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// Task represents a unit of work inside a project
type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TenantID    uint       `json:"tenant_id" gorm:"index;not null"`
	ProjectID   uint       `json:"project_id" gorm:"index;not null"`
	Title       string     `json:"title" gorm:"type:varchar(200);not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:varchar(30);not null;default:'open'"`
	Priority    string     `json:"priority" gorm:"type:varchar(20);not null;default:'normal'"`
	AssigneeID  *uint      `json:"assignee_id,omitempty" gorm:"index"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	// TemplateID/TemplateVersion record which work template revision produced
	// this task, when it was created by an apply rather than by hand.
	TemplateID      *uint          `json:"template_id,omitempty" gorm:"index"`
	TemplateVersion *int           `json:"template_version,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}
