package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	otpCodeKeyPrefix  = "otp:code:"
	otpEmailKeyPrefix = "otp:email:"

	// DefaultOTPTTL is how long an issued code stays usable.
	DefaultOTPTTL = 5 * time.Minute

	maxOTPAttempts = 100
)

// ErrOTPSpaceExhausted is returned when no free code was found within the attempt budget.
var ErrOTPSpaceExhausted = errors.New("could not allocate a unique otp")

// OTPRecord is the stored state of the latest code issued for an email.
type OTPRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	Consumed  bool      `json:"consumed"`
}

// OTPStoreInterface defines the interface for OTP storage operations.
type OTPStoreInterface interface {
	Issue(ctx context.Context, email string) (*OTPRecord, error)
	Latest(ctx context.Context, email string) (*OTPRecord, error)
	MarkConsumed(ctx context.Context, rec *OTPRecord) error
	Release(ctx context.Context, rec *OTPRecord) error
}

// OTPStore keeps one-time codes in Redis.
// Codes are claimed with SETNX so no two live records share a code.
type OTPStore struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// Ensure OTPStore implements OTPStoreInterface
var _ OTPStoreInterface = (*OTPStore)(nil)

// NewOTPStore creates a new OTP store. A non-positive ttl falls back to DefaultOTPTTL.
func NewOTPStore(rdb redis.Cmdable, ttl time.Duration) *OTPStore {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPStore{rdb: rdb, ttl: ttl, now: time.Now, generate: GenerateOTP}
}

// Issue allocates a fresh code for email and makes it the latest record for that email.
func (s *OTPStore) Issue(ctx context.Context, email string) (*OTPRecord, error) {
	code, err := s.claimCode(ctx, email)
	if err != nil {
		return nil, err
	}

	rec := &OTPRecord{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		CreatedAt: s.now().UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal otp: %w", err)
	}
	if err := s.rdb.Set(ctx, otpEmailKeyPrefix+email, payload, s.ttl).Err(); err != nil {
		_ = s.rdb.Del(ctx, otpCodeKeyPrefix+code).Err()
		return nil, fmt.Errorf("store otp: %w", err)
	}
	return rec, nil
}

func (s *OTPStore) claimCode(ctx context.Context, email string) (string, error) {
	for i := 0; i < maxOTPAttempts; i++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, otpCodeKeyPrefix+code, email, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("claim otp: %w", err)
		}
		if ok {
			return code, nil
		}
	}
	return "", ErrOTPSpaceExhausted
}

// Latest returns the most recent unexpired record for email, or nil if there is none.
func (s *OTPStore) Latest(ctx context.Context, email string) (*OTPRecord, error) {
	data, err := s.rdb.Get(ctx, otpEmailKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}

	var rec OTPRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return &rec, nil
}

// MarkConsumed flags the record as used. The record keeps its remaining TTL.
// A record that expired in the meantime is left alone.
func (s *OTPStore) MarkConsumed(ctx context.Context, rec *OTPRecord) error {
	consumed := *rec
	consumed.Consumed = true
	payload, err := json.Marshal(&consumed)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}

	err = s.rdb.SetArgs(ctx, otpEmailKeyPrefix+rec.Email, payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("consume otp: %w", err)
	}
	rec.Consumed = true
	return nil
}

// Release frees the code claim and drops the email record if it still is this one.
func (s *OTPStore) Release(ctx context.Context, rec *OTPRecord) error {
	if err := s.rdb.Del(ctx, otpCodeKeyPrefix+rec.Code).Err(); err != nil {
		return fmt.Errorf("release otp code: %w", err)
	}
	current, err := s.Latest(ctx, rec.Email)
	if err != nil {
		return err
	}
	if current != nil && current.ID == rec.ID {
		if err := s.rdb.Del(ctx, otpEmailKeyPrefix+rec.Email).Err(); err != nil {
			return fmt.Errorf("release otp record: %w", err)
		}
	}
	return nil
}
