package service

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"pdfqa/internal/aiclient"
	"pdfqa/internal/auth"
	"pdfqa/internal/model"
	"pdfqa/internal/repository"
	"pdfqa/internal/storage"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockOTPStore is a mock implementation of OTPStoreInterface.
type MockOTPStore struct {
	mock.Mock
}

func (m *MockOTPStore) Issue(ctx context.Context, email string) (*auth.OTPRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.OTPRecord), args.Error(1)
}

func (m *MockOTPStore) Latest(ctx context.Context, email string) (*auth.OTPRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.OTPRecord), args.Error(1)
}

func (m *MockOTPStore) MarkConsumed(ctx context.Context, rec *auth.OTPRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockOTPStore) Release(ctx context.Context, rec *auth.OTPRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockMailer is a mock implementation of mail.Sender.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTP(ctx context.Context, to, code string) error {
	args := m.Called(ctx, to, code)
	return args.Error(0)
}

// MockPDFRepository is a mock implementation of PDFRepository.
type MockPDFRepository struct {
	mock.Mock
}

func (m *MockPDFRepository) Create(ctx context.Context, pdf *model.PDF) error {
	args := m.Called(ctx, pdf)
	return args.Error(0)
}

func (m *MockPDFRepository) FindOwned(ctx context.Context, id, userID uuid.UUID) (*model.PDF, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PDF), args.Error(1)
}

func (m *MockPDFRepository) FindOwnedIncludingDeleted(ctx context.Context, id, userID uuid.UUID) (*model.PDF, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PDF), args.Error(1)
}

func (m *MockPDFRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.PDF, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PDF), args.Error(1)
}

func (m *MockPDFRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPDFRepository) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	args := m.Called(ctx, filename)
	return args.Bool(0), args.Error(1)
}

// MockHistoryRepository is a mock implementation of QueryHistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Create(ctx context.Context, entry *model.QueryHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter repository.HistoryFilter) ([]model.QueryHistory, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueryHistory), args.Error(1)
}

func (m *MockHistoryRepository) DeleteByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error) {
	args := m.Called(ctx, pdfID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHistoryRepository) CountOrphans(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHistoryRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockAIClient is a mock implementation of AIClient.
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) Upload(ctx context.Context, sess *aiclient.Session, filename string, pdf io.Reader) (json.RawMessage, error) {
	args := m.Called(ctx, sess, filename, pdf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockAIClient) Query(ctx context.Context, sess *aiclient.Session, question string) (*aiclient.QueryResult, error) {
	args := m.Called(ctx, sess, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiclient.QueryResult), args.Error(1)
}

func (m *MockAIClient) ClearVectorData(ctx context.Context, sess *aiclient.Session) (json.RawMessage, error) {
	args := m.Called(ctx, sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockSessionStore is a mock implementation of SessionStore.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Load(ctx context.Context, pdfID uuid.UUID) (*aiclient.Session, error) {
	args := m.Called(ctx, pdfID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiclient.Session), args.Error(1)
}

func (m *MockSessionStore) Save(ctx context.Context, pdfID uuid.UUID, sess *aiclient.Session) error {
	args := m.Called(ctx, pdfID, sess)
	return args.Error(0)
}

func (m *MockSessionStore) Delete(ctx context.Context, pdfID uuid.UUID) error {
	args := m.Called(ctx, pdfID)
	return args.Error(0)
}

// MockFileStore is a mock implementation of FileStore.
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Save(r io.Reader) (*storage.StoredFile, error) {
	args := m.Called(r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoredFile), args.Error(1)
}

func (m *MockFileStore) Open(path string) (io.ReadCloser, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockFileStore) Remove(path string) error {
	args := m.Called(path)
	return args.Error(0)
}
