package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueryHistory is one question/answer exchange about a PDF.
// Entries are never updated; they disappear only when their PDF is deleted.
type QueryHistory struct {
	ID        uuid.UUID `json:"_id" gorm:"type:char(36);primaryKey"`
	Question  string    `json:"question" gorm:"type:text;not null"`
	Answer    string    `json:"answer" gorm:"type:text;not null"`
	UserID    uuid.UUID `json:"user" gorm:"type:char(36);not null;index"`
	PDFID     uuid.UUID `json:"-" gorm:"column:pdf_id;type:char(36);not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`

	// Relations
	PDF *PDF `json:"pdf,omitempty" gorm:"foreignKey:PDFID"`
}

// TableName pins the table name used by raw cleanup queries.
func (QueryHistory) TableName() string {
	return "query_histories"
}

// BeforeCreate sets UUID before creating the record.
func (q *QueryHistory) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
