package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfqa/internal/model"
)

// HistoryFilter narrows a history listing. Zero values mean "no filter".
type HistoryFilter struct {
	PDFID  uuid.UUID
	Search string
	Limit  int
}

// QueryHistoryRepository defines query history persistence operations.
type QueryHistoryRepository interface {
	Create(ctx context.Context, entry *model.QueryHistory) error
	ListByUser(ctx context.Context, userID uuid.UUID, filter HistoryFilter) ([]model.QueryHistory, error)
	DeleteByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error)
	CountOrphans(ctx context.Context) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type queryHistoryRepository struct {
	db *gorm.DB
}

// NewQueryHistoryRepository creates a new query history repository.
func NewQueryHistoryRepository(db *gorm.DB) QueryHistoryRepository {
	return &queryHistoryRepository{db: db}
}

// Create creates a new history entry.
func (r *queryHistoryRepository) Create(ctx context.Context, entry *model.QueryHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByUser returns the user's entries, newest first, with the PDF name fields populated.
func (r *queryHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter HistoryFilter) ([]model.QueryHistory, error) {
	q := r.db.WithContext(ctx).
		Preload("PDF", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped().Select("id", "filename", "original_name")
		}).
		Where("user_id = ?", userID)

	if filter.PDFID != uuid.Nil {
		q = q.Where("pdf_id = ?", filter.PDFID)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		q = q.Where("(LOWER(question) LIKE ? ESCAPE '!' OR LOWER(answer) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var entries []model.QueryHistory
	if err := q.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteByPDF removes every entry referencing the PDF.
func (r *queryHistoryRepository) DeleteByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("pdf_id = ?", pdfID).Delete(&model.QueryHistory{})
	return res.RowsAffected, res.Error
}

// CountOrphans counts entries whose PDF is gone or soft-deleted.
func (r *queryHistoryRepository) CountOrphans(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.QueryHistory{}).Where("pdf_id NOT IN (?)", r.livePDFs()).Count(&count).Error
	return count, err
}

// DeleteOrphans removes entries whose PDF is gone or soft-deleted, left over by an interrupted delete.
func (r *queryHistoryRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("pdf_id NOT IN (?)", r.livePDFs()).Delete(&model.QueryHistory{})
	return res.RowsAffected, res.Error
}

func (r *queryHistoryRepository) livePDFs() *gorm.DB {
	return r.db.Model(&model.PDF{}).Select("id")
}

// escapeLike escapes LIKE wildcards using '!' as the escape character,
// which behaves the same on MySQL and SQLite.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
