package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"pdfqa/internal/cache"
)

const (
	sessionKeyPrefix = "ai_session:"
	sessionTTL       = 30 * 24 * time.Hour
)

// Session is the cookie jar the AI server uses to tie requests to one indexed document.
type Session struct {
	Cookies map[string]string `json:"cookies"`
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{Cookies: map[string]string{}}
}

func (s *Session) apply(req *http.Request) {
	if s == nil {
		return
	}
	names := make([]string, 0, len(s.Cookies))
	for name := range s.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.AddCookie(&http.Cookie{Name: name, Value: s.Cookies[name]})
	}
}

func (s *Session) capture(resp *http.Response) {
	if s == nil {
		return
	}
	for _, ck := range resp.Cookies() {
		if s.Cookies == nil {
			s.Cookies = map[string]string{}
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(s.Cookies, ck.Name)
			continue
		}
		s.Cookies[ck.Name] = ck.Value
	}
}

// SessionStore persists one Session per PDF document in Redis.
type SessionStore struct {
	cache *cache.Client
}

// NewSessionStore creates a new session store.
func NewSessionStore(cache *cache.Client) *SessionStore {
	return &SessionStore{cache: cache}
}

func sessionKey(pdfID uuid.UUID) string {
	return sessionKeyPrefix + pdfID.String()
}

// Load returns the stored session for a document, or an empty one.
func (s *SessionStore) Load(ctx context.Context, pdfID uuid.UUID) (*Session, error) {
	data, err := s.cache.Get(ctx, sessionKey(pdfID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return NewSession(), nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal ai session: %w", err)
	}
	if sess.Cookies == nil {
		sess.Cookies = map[string]string{}
	}
	return &sess, nil
}

// Save stores the session for a document.
func (s *SessionStore) Save(ctx context.Context, pdfID uuid.UUID, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal ai session: %w", err)
	}
	return s.cache.Set(ctx, sessionKey(pdfID), payload, sessionTTL)
}

// Delete drops the session for a document.
func (s *SessionStore) Delete(ctx context.Context, pdfID uuid.UUID) error {
	return s.cache.Delete(ctx, sessionKey(pdfID))
}
