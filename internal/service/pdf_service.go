package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfqa/internal/aiclient"
	apperrors "pdfqa/internal/errors"
	"pdfqa/internal/model"
	"pdfqa/internal/repository"
	"pdfqa/internal/storage"
)

const (
	// DefaultHistoryLimit applies when no limit is requested.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps any requested limit.
	MaxHistoryLimit = 500
)

const (
	msgQuestionRequired = "Question is required"
	msgPDFIDRequired    = "PDF ID is required"
	msgPDFNotFound      = "PDF not found or not authorized"
	msgInvalidAIAnswer  = "Invalid response from AI server"
	msgInvalidLimit     = "Limit must be a positive integer"
)

// AIClient is the subset of the AI server API the proxy uses.
type AIClient interface {
	Upload(ctx context.Context, sess *aiclient.Session, filename string, pdf io.Reader) (json.RawMessage, error)
	Query(ctx context.Context, sess *aiclient.Session, question string) (*aiclient.QueryResult, error)
	ClearVectorData(ctx context.Context, sess *aiclient.Session) (json.RawMessage, error)
}

// SessionStore keeps the AI session of each document.
type SessionStore interface {
	Load(ctx context.Context, pdfID uuid.UUID) (*aiclient.Session, error)
	Save(ctx context.Context, pdfID uuid.UUID, sess *aiclient.Session) error
	Delete(ctx context.Context, pdfID uuid.UUID) error
}

// FileStore keeps uploaded files.
type FileStore interface {
	Save(r io.Reader) (*storage.StoredFile, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

// UploadInput is a PDF being uploaded. Content is read once, start to end.
type UploadInput struct {
	OriginalName string
	Content      io.Reader
}

// UploadResult is the stored record plus whatever the AI server answered.
type UploadResult struct {
	PDF        *model.PDF
	AIResponse json.RawMessage
}

// HistoryQuery holds the raw history filters as received from the client.
type HistoryQuery struct {
	PDFID  string
	Search string
	Limit  string
}

// PDFService proxies documents and questions to the AI server and keeps the registry.
type PDFService interface {
	Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*UploadResult, error)
	Query(ctx context.Context, userID uuid.UUID, question, pdfID string) (*aiclient.QueryResult, error)
	ClearSession(ctx context.Context, userID uuid.UUID, pdfID string) (json.RawMessage, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.PDF, error)
	Delete(ctx context.Context, userID uuid.UUID, pdfID string) error
	History(ctx context.Context, userID uuid.UUID, q HistoryQuery) ([]model.QueryHistory, error)
}

type pdfService struct {
	pdfRepo     repository.PDFRepository
	historyRepo repository.QueryHistoryRepository
	ai          AIClient
	sessions    SessionStore
	files       FileStore
	logger      *slog.Logger
	// Per-document locks so concurrent calls don't overwrite each other's session cookies.
	sessionLocks sync.Map
}

// NewPDFService creates a new PDF service.
func NewPDFService(
	pdfRepo repository.PDFRepository,
	historyRepo repository.QueryHistoryRepository,
	ai AIClient,
	sessions SessionStore,
	files FileStore,
	logger *slog.Logger,
) PDFService {
	return &pdfService{
		pdfRepo:     pdfRepo,
		historyRepo: historyRepo,
		ai:          ai,
		sessions:    sessions,
		files:       files,
		logger:      logger,
	}
}

// Upload stores the file, hands it to the AI server and registers it.
// Nothing is registered unless the AI server accepted the document.
func (s *pdfService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*UploadResult, error) {
	stored, err := s.files.Save(in.Content)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("store upload: %w", err))
	}

	sess := aiclient.NewSession()
	aiResp, err := s.sendToAI(ctx, sess, stored.Path, in.OriginalName)
	if err != nil {
		s.removeFile(ctx, stored.Path, "ai upload failed")
		return nil, err
	}

	pdf := &model.PDF{
		Filename:     stored.Filename,
		OriginalName: in.OriginalName,
		Path:         stored.Path,
		Size:         stored.Size,
		UserID:       userID,
	}
	if err := s.pdfRepo.Create(ctx, pdf); err != nil {
		s.logger.ErrorContext(ctx, "register pdf failed, document indexed without record",
			"user_id", userID, "filename", stored.Filename, "error", err)
		s.removeFile(ctx, stored.Path, "registry insert failed")
		return nil, apperrors.NewInternal(fmt.Errorf("create pdf: %w", err))
	}

	if err := s.sessions.Save(ctx, pdf.ID, sess); err != nil {
		s.logger.WarnContext(ctx, "save ai session", "pdf_id", pdf.ID, "error", err)
	}
	return &UploadResult{PDF: pdf, AIResponse: aiResp}, nil
}

func (s *pdfService) sendToAI(ctx context.Context, sess *aiclient.Session, path, originalName string) (json.RawMessage, error) {
	f, err := s.files.Open(path)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	resp, err := s.ai.Upload(ctx, sess, originalName, f)
	if err != nil {
		return nil, mapAIError(err)
	}
	return resp, nil
}

// Query forwards a question about one of the user's documents and records the answer.
func (s *pdfService) Query(ctx context.Context, userID uuid.UUID, question, pdfID string) (*aiclient.QueryResult, error) {
	if isBlank(question) {
		return nil, apperrors.NewValidation(msgQuestionRequired)
	}
	if isBlank(pdfID) {
		return nil, apperrors.NewValidation(msgPDFIDRequired)
	}
	pdf, err := s.ownedPDF(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockSession(pdf.ID)
	defer unlock()
	sess, err := s.sessions.Load(ctx, pdf.ID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("load ai session: %w", err))
	}
	result, err := s.ai.Query(ctx, sess, question)
	s.saveSession(ctx, pdf.ID, sess)
	if err != nil {
		return nil, mapAIError(err)
	}

	// The document may have been deleted while the AI server was answering.
	if _, err := s.pdfRepo.FindOwned(ctx, pdf.ID, userID); err != nil {
		return nil, notFoundOrInternal(err, "recheck pdf")
	}

	entry := &model.QueryHistory{
		Question: question,
		Answer:   result.Answer,
		UserID:   userID,
		PDFID:    pdf.ID,
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("record history: %w", err))
	}
	return result, nil
}

// ClearSession resets the AI server's state for one of the user's documents.
func (s *pdfService) ClearSession(ctx context.Context, userID uuid.UUID, pdfID string) (json.RawMessage, error) {
	if isBlank(pdfID) {
		return nil, apperrors.NewValidation(msgPDFIDRequired)
	}
	pdf, err := s.ownedPDF(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockSession(pdf.ID)
	defer unlock()
	sess, err := s.sessions.Load(ctx, pdf.ID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("load ai session: %w", err))
	}
	resp, err := s.ai.ClearVectorData(ctx, sess)
	s.saveSession(ctx, pdf.ID, sess)
	if err != nil {
		return nil, mapAIError(err)
	}
	return resp, nil
}

// List returns the user's documents, newest first.
func (s *pdfService) List(ctx context.Context, userID uuid.UUID) ([]model.PDF, error) {
	pdfs, err := s.pdfRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("list pdfs: %w", err))
	}
	return pdfs, nil
}

// Delete removes the file, the document's history and its registry record.
// It waits for in-flight AI calls on the document so none records history afterwards.
// File and AI session cleanup failures are logged, not returned.
func (s *pdfService) Delete(ctx context.Context, userID uuid.UUID, pdfID string) error {
	pdf, err := s.ownedPDF(ctx, userID, pdfID)
	if err != nil {
		return err
	}

	unlock := s.lockSession(pdf.ID)
	defer unlock()
	// A concurrent delete may have finished while we waited.
	if _, err := s.pdfRepo.FindOwned(ctx, pdf.ID, userID); err != nil {
		return notFoundOrInternal(err, "recheck pdf")
	}

	s.removeFile(ctx, pdf.Path, "pdf deleted")

	removed, err := s.historyRepo.DeleteByPDF(ctx, pdf.ID)
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("delete history: %w", err))
	}
	if err := s.pdfRepo.Delete(ctx, pdf.ID); err != nil {
		return apperrors.NewInternal(fmt.Errorf("delete pdf: %w", err))
	}
	if err := s.sessions.Delete(ctx, pdf.ID); err != nil {
		s.logger.WarnContext(ctx, "drop ai session", "pdf_id", pdf.ID, "error", err)
	}
	// Waiters still hold the old mutex; they recheck the record and stop.
	s.sessionLocks.Delete(pdf.ID)

	s.logger.InfoContext(ctx, "pdf deleted", "pdf_id", pdf.ID, "user_id", userID, "history_removed", removed)
	return nil
}

// History lists the user's past questions, optionally for one document and matching a search term.
func (s *pdfService) History(ctx context.Context, userID uuid.UUID, q HistoryQuery) ([]model.QueryHistory, error) {
	limit, err := parseHistoryLimit(q.Limit)
	if err != nil {
		return nil, err
	}
	filter := repository.HistoryFilter{
		Search: strings.TrimSpace(q.Search),
		Limit:  limit,
	}

	if !isBlank(q.PDFID) {
		id, err := uuid.Parse(strings.TrimSpace(q.PDFID))
		if err != nil {
			return nil, apperrors.NewNotFound(msgPDFNotFound)
		}
		if _, err := s.pdfRepo.FindOwnedIncludingDeleted(ctx, id, userID); err != nil {
			return nil, notFoundOrInternal(err, "find pdf")
		}
		filter.PDFID = id
	}

	entries, err := s.historyRepo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("list history: %w", err))
	}
	return entries, nil
}

func parseHistoryLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.NewValidation(msgInvalidLimit)
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return limit, nil
}

// ownedPDF resolves a live document of userID. Malformed, missing and foreign ids look the same.
func (s *pdfService) ownedPDF(ctx context.Context, userID uuid.UUID, rawID string) (*model.PDF, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, apperrors.NewNotFound(msgPDFNotFound)
	}
	pdf, err := s.pdfRepo.FindOwned(ctx, id, userID)
	if err != nil {
		return nil, notFoundOrInternal(err, "find pdf")
	}
	return pdf, nil
}

// lockSession serializes AI calls for one document within this process.
func (s *pdfService) lockSession(pdfID uuid.UUID) func() {
	value, _ := s.sessionLocks.LoadOrStore(pdfID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *pdfService) saveSession(ctx context.Context, pdfID uuid.UUID, sess *aiclient.Session) {
	if err := s.sessions.Save(ctx, pdfID, sess); err != nil {
		s.logger.WarnContext(ctx, "save ai session", "pdf_id", pdfID, "error", err)
	}
}

func (s *pdfService) removeFile(ctx context.Context, path, reason string) {
	if err := s.files.Remove(path); err != nil {
		s.logger.WarnContext(ctx, "remove upload file", "path", path, "reason", reason, "error", err)
	}
}

func notFoundOrInternal(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound(msgPDFNotFound)
	}
	return apperrors.NewInternal(fmt.Errorf("%s: %w", op, err))
}

func mapAIError(err error) error {
	var aiErr *aiclient.Error
	switch {
	case errors.As(err, &aiErr):
		return apperrors.NewRemoteService(aiErr.Status, aiErr.Message, err)
	case errors.Is(err, aiclient.ErrInvalidResponse):
		return apperrors.NewRemoteService(http.StatusInternalServerError, msgInvalidAIAnswer, err)
	default:
		return apperrors.NewRemoteService(http.StatusInternalServerError, "", err)
	}
}
