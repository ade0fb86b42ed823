package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pdfqa/internal/aiclient"
	apperrors "pdfqa/internal/errors"
	"pdfqa/internal/logging"
	"pdfqa/internal/model"
	"pdfqa/internal/repository"
	"pdfqa/internal/storage"
)

type pdfMocks struct {
	pdfs     *MockPDFRepository
	history  *MockHistoryRepository
	ai       *MockAIClient
	sessions *MockSessionStore
	files    *MockFileStore
}

func newPDFService() (PDFService, pdfMocks) {
	m := pdfMocks{
		pdfs:     new(MockPDFRepository),
		history:  new(MockHistoryRepository),
		ai:       new(MockAIClient),
		sessions: new(MockSessionStore),
		files:    new(MockFileStore),
	}
	return NewPDFService(m.pdfs, m.history, m.ai, m.sessions, m.files, logging.Discard()), m
}

func (m pdfMocks) assertExpectations(t *testing.T) {
	m.pdfs.AssertExpectations(t)
	m.history.AssertExpectations(t)
	m.ai.AssertExpectations(t)
	m.sessions.AssertExpectations(t)
	m.files.AssertExpectations(t)
}

var stored = &storage.StoredFile{Filename: "f1.pdf", Path: "/srv/uploads/f1.pdf", Size: 8}

func openStored(m pdfMocks) {
	m.files.On("Save", mock.Anything).Return(stored, nil)
	m.files.On("Open", stored.Path).Return(io.NopCloser(strings.NewReader("%PDF-1.7")), nil)
}

func TestPDFService_Upload(t *testing.T) {
	userID := uuid.New()

	t.Run("registers after the AI server accepts", func(t *testing.T) {
		svc, m := newPDFService()
		openStored(m)
		m.ai.On("Upload", mock.Anything, mock.AnythingOfType("*aiclient.Session"), "report.pdf", mock.Anything).
			Return(json.RawMessage(`{"ok":true}`), nil)
		m.pdfs.On("Create", mock.Anything, mock.MatchedBy(func(p *model.PDF) bool {
			return p.UserID == userID && p.Filename == "f1.pdf" && p.OriginalName == "report.pdf" && p.Path == stored.Path
		})).Return(nil)
		m.sessions.On("Save", mock.Anything, mock.Anything, mock.AnythingOfType("*aiclient.Session")).Return(nil)

		res, err := svc.Upload(context.Background(), userID, UploadInput{OriginalName: "report.pdf", Content: strings.NewReader("%PDF-1.7")})
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", res.PDF.OriginalName)
		assert.JSONEq(t, `{"ok":true}`, string(res.AIResponse))
		m.assertExpectations(t)
	})

	t.Run("AI rejection keeps upstream status and leaves no record", func(t *testing.T) {
		svc, m := newPDFService()
		openStored(m)
		m.ai.On("Upload", mock.Anything, mock.Anything, "report.pdf", mock.Anything).
			Return(nil, &aiclient.Error{Status: http.StatusServiceUnavailable, Message: "Model busy"})
		m.files.On("Remove", stored.Path).Return(nil)

		_, err := svc.Upload(context.Background(), userID, UploadInput{OriginalName: "report.pdf", Content: strings.NewReader("x")})
		assertAppError(t, err, apperrors.KindRemoteService, http.StatusServiceUnavailable, "Model busy")
		m.pdfs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("AI unreachable", func(t *testing.T) {
		svc, m := newPDFService()
		openStored(m)
		m.ai.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &aiclient.Error{Status: http.StatusInternalServerError, Err: errors.New("connection refused")})
		m.files.On("Remove", stored.Path).Return(nil)

		_, err := svc.Upload(context.Background(), userID, UploadInput{OriginalName: "r.pdf", Content: strings.NewReader("x")})
		assertAppError(t, err, apperrors.KindRemoteService, http.StatusInternalServerError, "Error from AI server")
		m.assertExpectations(t)
	})

	t.Run("registry failure removes the file", func(t *testing.T) {
		svc, m := newPDFService()
		openStored(m)
		m.ai.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(`{}`), nil)
		m.pdfs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db gone"))
		m.files.On("Remove", stored.Path).Return(nil)

		_, err := svc.Upload(context.Background(), userID, UploadInput{OriginalName: "r.pdf", Content: strings.NewReader("x")})
		assertAppError(t, err, apperrors.KindInternal, http.StatusInternalServerError, "Internal server error")
		m.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})
}

func TestPDFService_Query(t *testing.T) {
	userID := uuid.New()
	doc := &model.PDF{ID: uuid.New(), UserID: userID, OriginalName: "q3.pdf"}
	sess := &aiclient.Session{Cookies: map[string]string{"session": "s1"}}

	t.Run("validation", func(t *testing.T) {
		svc, m := newPDFService()
		_, err := svc.Query(context.Background(), userID, "", doc.ID.String())
		assertAppError(t, err, apperrors.KindValidation, http.StatusBadRequest, "Question is required")
		_, err = svc.Query(context.Background(), userID, "What?", "")
		assertAppError(t, err, apperrors.KindValidation, http.StatusBadRequest, "PDF ID is required")
		m.assertExpectations(t)
	})

	t.Run("malformed and foreign ids look missing", func(t *testing.T) {
		svc, m := newPDFService()
		_, err := svc.Query(context.Background(), userID, "What?", "not-a-uuid")
		assertAppError(t, err, apperrors.KindNotFound, http.StatusNotFound, "PDF not found or not authorized")

		foreign := uuid.New()
		m.pdfs.On("FindOwned", mock.Anything, foreign, userID).Return(nil, gorm.ErrRecordNotFound)
		_, err = svc.Query(context.Background(), userID, "What?", foreign.String())
		assertAppError(t, err, apperrors.KindNotFound, http.StatusNotFound, "PDF not found or not authorized")
		m.ai.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("answer is recorded in the document's session", func(t *testing.T) {
		svc, m := newPDFService()
		m.pdfs.On("FindOwned", mock.Anything, doc.ID, userID).Return(doc, nil)
		m.sessions.On("Load", mock.Anything, doc.ID).Return(sess, nil)
		m.ai.On("Query", mock.Anything, sess, "What was revenue?").Return(&aiclient.QueryResult{
			Answer:              "12M",
			ConversationHistory: json.RawMessage(`[]`),
		}, nil)
		m.sessions.On("Save", mock.Anything, doc.ID, sess).Return(nil)
		m.history.On("Create", mock.Anything, mock.MatchedBy(func(h *model.QueryHistory) bool {
			return h.Question == "What was revenue?" && h.Answer == "12M" && h.UserID == userID && h.PDFID == doc.ID
		})).Return(nil)

		got, err := svc.Query(context.Background(), userID, "What was revenue?", doc.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "12M", got.Answer)
		m.assertExpectations(t)
	})

	t.Run("malformed AI answer records nothing", func(t *testing.T) {
		svc, m := newPDFService()
		m.pdfs.On("FindOwned", mock.Anything, doc.ID, userID).Return(doc, nil)
		m.sessions.On("Load", mock.Anything, doc.ID).Return(sess, nil)
		m.ai.On("Query", mock.Anything, sess, "q").Return(nil, aiclient.ErrInvalidResponse)
		m.sessions.On("Save", mock.Anything, doc.ID, sess).Return(nil)

		_, err := svc.Query(context.Background(), userID, "q", doc.ID.String())
		assertAppError(t, err, apperrors.KindRemoteService, http.StatusInternalServerError, "Invalid response from AI server")
		m.history.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})
}

func TestPDFService_QueriesOnOneDocumentAreSerialized(t *testing.T) {
	userID := uuid.New()
	doc := &model.PDF{ID: uuid.New(), UserID: userID}
	svc, m := newPDFService()

	var inFlight, peak int32
	m.pdfs.On("FindOwned", mock.Anything, doc.ID, userID).Return(doc, nil)
	m.sessions.On("Load", mock.Anything, doc.ID).Return(aiclient.NewSession(), nil)
	m.sessions.On("Save", mock.Anything, doc.ID, mock.Anything).Return(nil)
	m.history.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.ai.On("Query", mock.Anything, mock.Anything, "q").
		Run(func(mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}).
		Return(&aiclient.QueryResult{Answer: "a"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Query(context.Background(), userID, "q", doc.ID.String())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	m.ai.AssertNumberOfCalls(t, "Query", 5)
}

func TestPDFService_ClearSession(t *testing.T) {
	userID := uuid.New()
	doc := &model.PDF{ID: uuid.New(), UserID: userID}
	sess := aiclient.NewSession()

	svc, m := newPDFService()
	_, err := svc.ClearSession(context.Background(), userID, "")
	assertAppError(t, err, apperrors.KindValidation, http.StatusBadRequest, "PDF ID is required")

	m.pdfs.On("FindOwned", mock.Anything, doc.ID, userID).Return(doc, nil)
	m.sessions.On("Load", mock.Anything, doc.ID).Return(sess, nil)
	m.ai.On("ClearVectorData", mock.Anything, sess).Return(json.RawMessage(`{"status":"cleared"}`), nil)
	m.sessions.On("Save", mock.Anything, doc.ID, sess).Return(nil)

	data, err := svc.ClearSession(context.Background(), userID, doc.ID.String())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"cleared"}`, string(data))
	m.history.AssertNotCalled(t, "DeleteByPDF", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestPDFService_Delete(t *testing.T) {
	userID := uuid.New()
	doc := &model.PDF{ID: uuid.New(), UserID: userID, Path: "/srv/uploads/d.pdf"}

	t.Run("cascades to history and session", func(t *testing.T) {
		svc, m := newPDFService()
		m.pdfs.On("FindOwned", mock.Anything, doc.ID, userID).Return(doc, nil)
		m.files.On("Remove", doc.Path).Return(nil)
		m.history.On("DeleteByPDF", mock.Anything, doc.ID).Return(int64(3), nil)
		m.pdfs.On("Delete", mock.Anything, doc.ID).Return(nil)
		m.sessions.On("Delete", mock.Anything, doc.ID).Return(nil)

		require.NoError(t, svc.Delete(context.Background(), userID, doc.ID.String()))
		m.assertExpectations(t)
	})

	t.Run("file removal failure is not fatal", func(t *testing.T) {
		svc, m := newPDFService()
		m.pdfs.On("FindOwned", mock.Anything, doc.ID, userID).Return(doc, nil)
		m.files.On("Remove", doc.Path).Return(errors.New("permission denied"))
		m.history.On("DeleteByPDF", mock.Anything, doc.ID).Return(int64(0), nil)
		m.pdfs.On("Delete", mock.Anything, doc.ID).Return(nil)
		m.sessions.On("Delete", mock.Anything, doc.ID).Return(nil)

		require.NoError(t, svc.Delete(context.Background(), userID, doc.ID.String()))
		m.assertExpectations(t)
	})

	t.Run("someone else's document is untouched", func(t *testing.T) {
		svc, m := newPDFService()
		other := uuid.New()
		m.pdfs.On("FindOwned", mock.Anything, doc.ID, other).Return(nil, gorm.ErrRecordNotFound)

		err := svc.Delete(context.Background(), other, doc.ID.String())
		assertAppError(t, err, apperrors.KindNotFound, http.StatusNotFound, "PDF not found or not authorized")
		m.files.AssertNotCalled(t, "Remove", mock.Anything)
		m.history.AssertNotCalled(t, "DeleteByPDF", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})
}

func TestPDFService_History(t *testing.T) {
	userID := uuid.New()

	t.Run("limit handling", func(t *testing.T) {
		tests := []struct {
			raw     string
			want    int
			wantErr bool
		}{
			{"", DefaultHistoryLimit, false},
			{"10", 10, false},
			{"5000", MaxHistoryLimit, false},
			{"0", 0, true},
			{"-3", 0, true},
			{"ten", 0, true},
		}
		for _, tt := range tests {
			svc, m := newPDFService()
			if !tt.wantErr {
				m.history.On("ListByUser", mock.Anything, userID, repository.HistoryFilter{Limit: tt.want}).
					Return([]model.QueryHistory{}, nil)
			}
			_, err := svc.History(context.Background(), userID, HistoryQuery{Limit: tt.raw})
			if tt.wantErr {
				assertAppError(t, err, apperrors.KindValidation, http.StatusBadRequest, "Limit must be a positive integer")
			} else {
				assert.NoError(t, err, tt.raw)
			}
			m.assertExpectations(t)
		}
	})

	t.Run("foreign pdf filter is not found", func(t *testing.T) {
		svc, m := newPDFService()
		foreign := uuid.New()
		m.pdfs.On("FindOwnedIncludingDeleted", mock.Anything, foreign, userID).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.History(context.Background(), userID, HistoryQuery{PDFID: foreign.String()})
		assertAppError(t, err, apperrors.KindNotFound, http.StatusNotFound, "PDF not found or not authorized")
		m.history.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("own deleted pdf filter yields its (empty) history", func(t *testing.T) {
		svc, m := newPDFService()
		deleted := &model.PDF{ID: uuid.New(), UserID: userID, DeletedAt: gorm.DeletedAt{Valid: true}}
		m.pdfs.On("FindOwnedIncludingDeleted", mock.Anything, deleted.ID, userID).Return(deleted, nil)
		m.history.On("ListByUser", mock.Anything, userID, repository.HistoryFilter{
			PDFID:  deleted.ID,
			Search: "revenue",
			Limit:  DefaultHistoryLimit,
		}).Return([]model.QueryHistory{}, nil)

		got, err := svc.History(context.Background(), userID, HistoryQuery{PDFID: deleted.ID.String(), Search: " revenue "})
		require.NoError(t, err)
		assert.Empty(t, got)
		m.assertExpectations(t)
	})
}
