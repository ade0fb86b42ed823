package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PDF is the registry record of an uploaded document.
// Path is server-internal and must never reach a client.
type PDF struct {
	ID           uuid.UUID      `json:"_id" gorm:"type:char(36);primaryKey"`
	Filename     string         `json:"filename" gorm:"size:255;not null;index"`
	OriginalName string         `json:"originalname" gorm:"size:512;not null"`
	Path         string         `json:"-" gorm:"size:1024;not null"`
	Size         int64          `json:"size,omitempty"`
	UserID       uuid.UUID      `json:"user,omitempty" gorm:"type:char(36);not null;index"`
	CreatedAt    time.Time      `json:"createdAt,omitempty" gorm:"index"`
	UpdatedAt    time.Time      `json:"updatedAt,omitempty"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName keeps the table name readable instead of GORM's "pd_fs".
func (PDF) TableName() string {
	return "pdfs"
}

// BeforeCreate sets UUID before creating the record.
func (p *PDF) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
