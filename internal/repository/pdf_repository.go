package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfqa/internal/model"
)

// PDFRepository defines document registry persistence operations.
// Every lookup by id is scoped to an owner; a foreign or missing record yields gorm.ErrRecordNotFound.
type PDFRepository interface {
	Create(ctx context.Context, pdf *model.PDF) error
	FindOwned(ctx context.Context, id, userID uuid.UUID) (*model.PDF, error)
	// FindOwnedIncludingDeleted also matches soft-deleted records.
	FindOwnedIncludingDeleted(ctx context.Context, id, userID uuid.UUID) (*model.PDF, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.PDF, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsByFilename(ctx context.Context, filename string) (bool, error)
}

type pdfRepository struct {
	db *gorm.DB
}

// NewPDFRepository creates a new PDF repository.
func NewPDFRepository(db *gorm.DB) PDFRepository {
	return &pdfRepository{db: db}
}

// Create creates a new registry record.
func (r *pdfRepository) Create(ctx context.Context, pdf *model.PDF) error {
	return r.db.WithContext(ctx).Create(pdf).Error
}

// FindOwned finds a live PDF by id that belongs to userID.
func (r *pdfRepository) FindOwned(ctx context.Context, id, userID uuid.UUID) (*model.PDF, error) {
	var pdf model.PDF
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&pdf).Error; err != nil {
		return nil, err
	}
	return &pdf, nil
}

func (r *pdfRepository) FindOwnedIncludingDeleted(ctx context.Context, id, userID uuid.UUID) (*model.PDF, error) {
	var pdf model.PDF
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ? AND user_id = ?", id, userID).First(&pdf).Error; err != nil {
		return nil, err
	}
	return &pdf, nil
}

// ListByUser lists the live PDFs of a user, newest first.
func (r *pdfRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.PDF, error) {
	var pdfs []model.PDF
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&pdfs).Error; err != nil {
		return nil, err
	}
	return pdfs, nil
}

// Delete soft-deletes the registry record. Deleting an already deleted record is a no-op.
func (r *pdfRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PDF{}).Error
}

// ExistsByFilename reports whether a live record references the stored filename.
func (r *pdfRepository) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.PDF{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
