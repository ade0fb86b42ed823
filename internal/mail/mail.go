// Package mail delivers one-time codes to users.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// ErrNotConfigured is returned when SMTP settings are incomplete.
var ErrNotConfigured = errors.New("mail: smtp not configured")

// Sender delivers an OTP code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, to, code string) error
}

// Config holds SMTP configuration.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppName  string
	OTPTTL   time.Duration
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// defaultSendTimeout bounds a delivery when the caller's context has no deadline.
const defaultSendTimeout = 30 * time.Second

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewSMTPSender creates an SMTP backed sender.
func NewSMTPSender(config Config) *SMTPSender {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &SMTPSender{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   sendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *SMTPSender) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendOTP sends the verification code as an HTML email.
func (s *SMTPSender) SendOTP(ctx context.Context, to, code string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := renderOTP(otpData{
		AppName: s.config.AppName,
		Code:    code,
		Minutes: int(s.config.OTPTTL.Minutes()),
	})
	if err != nil {
		return fmt.Errorf("render otp template: %w", err)
	}

	subject := "Your verification code"
	if s.config.AppName != "" {
		subject = s.config.AppName + " verification code"
	}
	msg := s.buildMessage(to, subject, html)
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}
	if err := s.send(ctx, s.server, s.auth, s.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(to, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	msg.WriteString(strings.ReplaceAll(htmlBody, "\n", "\r\n"))
	msg.WriteString("\r\n")
	return msg.Bytes()
}

// LogSender writes codes to the log instead of mailing them. Meant for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP logs the code.
func (l *LogSender) SendOTP(ctx context.Context, to, code string) error {
	l.logger.InfoContext(ctx, "otp issued (smtp disabled)", "email", to, "code", code)
	return nil
}

type otpData struct {
	AppName string
	Code    string
	Minutes int
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>{{if .AppName}}{{.AppName}} {{end}}email verification</h2>
  <p>Use the code below to finish creating your account.</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  {{if .Minutes}}<p>The code expires in {{.Minutes}} minutes.</p>{{end}}
  <p>If you did not request this, you can ignore this email.</p>
</body>
</html>`))

func renderOTP(data otpData) (string, error) {
	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
