package model

import (
	"time"

	"gorm.io/gorm"
)

// Document represents stored file metadata. The bytes themselves live in
// object storage; this service only tracks the reference.
type Document struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	ProjectID *uint          `json:"project_id,omitempty" gorm:"index"`
	Name      string         `json:"name" gorm:"type:varchar(200);not null"`
	Path      string         `json:"path" gorm:"type:varchar(500);not null"`
	MimeType  string         `json:"mime_type" gorm:"type:varchar(100)"`
	SizeBytes int64          `json:"size_bytes"`
	UploadedBy uint          `json:"uploaded_by" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
