package handler

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"pdfqa/internal/aiclient"
	"pdfqa/internal/auth"
	"pdfqa/internal/model"
	"pdfqa/internal/service"
)

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SendOTP(ctx context.Context, email string) (*auth.OTPRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.OTPRecord), args.Error(1)
}

func (m *MockAuthService) Signup(ctx context.Context, in service.SignupInput) (*model.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.User), args.Error(2)
}

// MockPDFService is a mock implementation of service.PDFService.
type MockPDFService struct {
	mock.Mock
}

func (m *MockPDFService) Upload(ctx context.Context, userID uuid.UUID, in service.UploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockPDFService) Query(ctx context.Context, userID uuid.UUID, question, pdfID string) (*aiclient.QueryResult, error) {
	args := m.Called(ctx, userID, question, pdfID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiclient.QueryResult), args.Error(1)
}

func (m *MockPDFService) ClearSession(ctx context.Context, userID uuid.UUID, pdfID string) (json.RawMessage, error) {
	args := m.Called(ctx, userID, pdfID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockPDFService) List(ctx context.Context, userID uuid.UUID) ([]model.PDF, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PDF), args.Error(1)
}

func (m *MockPDFService) Delete(ctx context.Context, userID uuid.UUID, pdfID string) error {
	args := m.Called(ctx, userID, pdfID)
	return args.Error(0)
}

func (m *MockPDFService) History(ctx context.Context, userID uuid.UUID, q service.HistoryQuery) ([]model.QueryHistory, error) {
	args := m.Called(ctx, userID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueryHistory), args.Error(1)
}
