// Package aiclient talks to the external document AI server.
package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	uploadPath    = "/upload"
	queryPath     = "/query"
	clearPath     = "/clear-vector-data"
	uploadField   = "pdf_files"
	maxErrorBytes = 64 << 10
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// ErrInvalidResponse is returned when a 2xx answer lacks the expected fields.
var ErrInvalidResponse = errors.New("invalid response from AI server")

// Error is a failed AI call. Status is the upstream status, or 500 when the
// server could not be reached or timed out.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai server: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("ai server: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// QueryResult is the answer to a question about an uploaded document.
type QueryResult struct {
	Answer              string          `json:"answer"`
	ConversationHistory json.RawMessage `json:"conversation_history"`
}

// Client calls the AI server. It holds no per-user state; every call takes the
// Session it belongs to.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a client. timeout bounds how long the AI server may take to
// answer once a request is sent; for queries and clears it also bounds the
// whole call. Upload bodies may stream for as long as they need.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: transport},
		timeout:    timeout,
		logger:     logger,
	}
}

// Upload streams a PDF to the AI server as the multipart field "pdf_files".
// Returns the server's response body as-is.
func (c *Client) Upload(ctx context.Context, sess *Session, filename string, pdf io.Reader) (json.RawMessage, error) {
	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, quoteEscaper.Replace(sanitizeFilename(filename))))
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, pdf)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req, sess)
	if err != nil {
		return nil, err
	}
	return passThrough(body), nil
}

// Query asks a question within the session's document context.
func (c *Client) Query(ctx context.Context, sess *Session, question string) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{"query": {question}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req, sess)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data *struct {
			Answer              *string         `json:"answer"`
			ConversationHistory json.RawMessage `json:"conversation_history"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil || envelope.Data.Answer == nil {
		return nil, ErrInvalidResponse
	}
	return &QueryResult{
		Answer:              *envelope.Data.Answer,
		ConversationHistory: envelope.Data.ConversationHistory,
	}, nil
}

// ClearVectorData drops the session's indexed document on the AI server.
func (c *Client) ClearVectorData(ctx context.Context, sess *Session) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+clearPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build clear request: %w", err)
	}
	body, err := c.do(req, sess)
	if err != nil {
		return nil, err
	}
	return passThrough(body), nil
}

func (c *Client) do(req *http.Request, sess *Session) ([]byte, error) {
	sess.apply(req)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(req.Context(), "ai server unreachable", "path", req.URL.Path, "error", err, "duration", time.Since(start))
		return nil, &Error{Status: http.StatusInternalServerError, Err: err}
	}
	defer resp.Body.Close()

	sess.capture(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		c.logger.WarnContext(req.Context(), "ai server error", "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.DebugContext(req.Context(), "ai server call", "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))
	return body, nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return body.Message
}

func passThrough(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "document.pdf"
	}
	return name
}
