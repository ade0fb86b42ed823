package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pdfqa/internal/auth"
	apperrors "pdfqa/internal/errors"
	"pdfqa/internal/mail"
	"pdfqa/internal/model"
	"pdfqa/internal/repository"
)

const defaultBcryptCost = 12

const (
	msgEmailRequired     = "Valid email is required"
	msgAlreadyRegistered = "User already registered"
	msgOTPSendFailed     = "Failed to send OTP"
	msgAllFieldsRequired = "All fields are required"
	msgInvalidEmail      = "Invalid email format"
	msgPasswordMismatch  = "Password and confirm password do not match"
	msgInvalidOTP        = "Invalid or expired OTP"
	msgCredsRequired     = "Email and password are required"
	msgNameTooLong       = "Name must be at most 100 characters"
	msgPasswordTooLong   = "Password must be at most 72 bytes"
	msgNotRegistered     = "User not registered"
	msgIncorrectPassword = "Incorrect password"
)

// SignupInput carries the fields of a signup request.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	OTP             string
}

// AuthService handles authentication operations.
type AuthService interface {
	SendOTP(ctx context.Context, email string) (*auth.OTPRecord, error)
	Signup(ctx context.Context, in SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (token string, user *model.User, err error)
}

type authService struct {
	userRepo   repository.UserRepository
	otpStore   auth.OTPStoreInterface
	mailer     mail.Sender
	jwtService *auth.JWTService
	logger     *slog.Logger
	bcryptCost int
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	otpStore auth.OTPStoreInterface,
	mailer mail.Sender,
	jwtService *auth.JWTService,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		otpStore:   otpStore,
		mailer:     mailer,
		jwtService: jwtService,
		logger:     logger,
		bcryptCost: defaultBcryptCost,
	}
}

// SendOTP issues a code for an unregistered email and mails it.
func (s *authService) SendOTP(ctx context.Context, email string) (*auth.OTPRecord, error) {
	if !isValidEmail(email) {
		return nil, apperrors.NewValidation(msgEmailRequired)
	}
	if err := s.ensureUnregistered(ctx, email); err != nil {
		return nil, err
	}

	rec, err := s.otpStore.Issue(ctx, email)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("issue otp: %w", err))
	}

	if err := s.mailer.SendOTP(ctx, email, rec.Code); err != nil {
		s.logger.ErrorContext(ctx, "otp delivery failed", "email", email, "error", err)
		if relErr := s.otpStore.Release(ctx, rec); relErr != nil {
			s.logger.WarnContext(ctx, "release undelivered otp", "email", email, "error", relErr)
		}
		return nil, apperrors.NewRemoteService(http.StatusBadGateway, msgOTPSendFailed, err)
	}
	return rec, nil
}

// Signup creates the account once the latest OTP for the email checks out.
func (s *authService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	if anyBlank(in.Name, in.Email, in.Password, in.ConfirmPassword, in.OTP) {
		return nil, apperrors.NewValidation(msgAllFieldsRequired)
	}
	if !isValidEmail(in.Email) {
		return nil, apperrors.NewValidation(msgInvalidEmail)
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.NewValidation(msgPasswordMismatch)
	}
	if err := s.ensureUnregistered(ctx, in.Email); err != nil {
		return nil, err
	}

	rec, err := s.otpStore.Latest(ctx, in.Email)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("load otp: %w", err))
	}
	if rec == nil || rec.Consumed || subtle.ConstantTimeCompare([]byte(rec.Code), []byte(in.OTP)) != 1 {
		return nil, apperrors.NewValidation(msgInvalidOTP)
	}
	if utf8.RuneCountInString(in.Name) > maxNameLen {
		return nil, apperrors.NewValidation(msgNameTooLong)
	}
	if len(in.Password) > maxPasswordLen {
		return nil, apperrors.NewValidation(msgPasswordTooLong)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("hash password: %w", err))
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.NewConflict(msgAlreadyRegistered)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("create user: %w", err))
	}

	if err := s.otpStore.MarkConsumed(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "mark otp consumed", "email", in.Email, "error", err)
	}
	return user, nil
}

// Login verifies credentials and mints a session token.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	if email == "" || password == "" {
		return "", nil, apperrors.NewValidation(msgCredsRequired)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, apperrors.NewAuth(msgNotRegistered)
	}
	if err != nil {
		return "", nil, apperrors.NewInternal(fmt.Errorf("find user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.NewAuth(msgIncorrectPassword)
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", nil, apperrors.NewInternal(fmt.Errorf("generate token: %w", err))
	}
	return token, user, nil
}

func (s *authService) ensureUnregistered(ctx context.Context, email string) error {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return apperrors.NewConflict(msgAlreadyRegistered)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewInternal(fmt.Errorf("check user existence: %w", err))
	}
	return nil
}
