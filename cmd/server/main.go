package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	_ "pdfqa/docs" // swagger docs

	"pdfqa/internal/aiclient"
	"pdfqa/internal/auth"
	"pdfqa/internal/cache"
	"pdfqa/internal/config"
	"pdfqa/internal/db"
	"pdfqa/internal/handler"
	"pdfqa/internal/logging"
	"pdfqa/internal/mail"
	"pdfqa/internal/repository"
	"pdfqa/internal/router"
	"pdfqa/internal/service"
	"pdfqa/internal/storage"
)

// @title PDF Q&A API
// @version 1.0
// @description Upload PDFs and ask questions about them. Signup is gated by an emailed one-time code.
// @host localhost:3500
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. The "token" cookie set by login works too.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	dsn := cfg.MySQLDSN
	if cfg.DBDriver == "sqlite" {
		dsn = cfg.SQLitePath
	}
	gormDB, err := db.Open(cfg.DBDriver, dsn)
	if err != nil {
		logger.Error("database init", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("database migrate", "error", err)
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB).WithLogger(logger)
	defer cacheClient.Close()

	files, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		logger.Error("upload dir", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	pdfRepo := repository.NewPDFRepository(gormDB)
	historyRepo := repository.NewQueryHistoryRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	otpStore := auth.NewOTPStore(cacheClient.Redis(), cfg.OTPTTL)
	mailer, err := newMailer(cfg, logger)
	if err != nil {
		logger.Error("mailer", "error", err)
		os.Exit(1)
	}

	// Initialize services
	userService := service.NewUserService(userRepo, cacheClient)
	authService := service.NewAuthService(userRepo, otpStore, mailer, jwtService, logger)
	pdfService := service.NewPDFService(
		pdfRepo,
		historyRepo,
		aiclient.New(cfg.AIServerURL, cfg.AITimeout, logger),
		aiclient.NewSessionStore(cacheClient),
		files,
		logger,
	)

	e := echo.New()
	router.Register(e, cfg, logger, auth.NewAuthorizer(jwtService, userService, logger).Middleware(), router.Handlers{
		Auth:   handler.NewAuthHandler(authService, !cfg.IsDevelopment()),
		User:   handler.NewUserHandler(),
		PDF:    handler.NewPDFHandler(pdfService, cfg.PublicBaseURL),
		Health: handler.NewHealthHandler(cfg.Env, map[string]handler.Pinger{"database": db.Pinger{DB: gormDB}, "redis": cacheClient}),
	}, files.Dir())

	logger.Info("swagger documentation available", "url", swaggerURL(cfg))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Error("server forced shutdown", "error", err)
		}
	}()

	addr := ":" + cfg.ServerPort
	logger.Info("server starting", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server start", "error", err)
		os.Exit(1)
	}
}

// errSMTPRequired is returned outside development when SMTP is not configured.
var errSMTPRequired = errors.New("SMTP_HOST and SMTP_FROM are required outside development")

// newMailer falls back to logging codes when SMTP is not configured in development.
func newMailer(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	smtpSender := mail.NewSMTPSender(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		AppName:  "PDF Q&A",
		OTPTTL:   cfg.OTPTTL,
	})
	if smtpSender.IsConfigured() {
		return smtpSender, nil
	}
	if !cfg.IsDevelopment() {
		return nil, errSMTPRequired
	}
	logger.Warn("SMTP not configured, OTP codes will be written to the log")
	return mail.NewLogSender(logger), nil
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/") + "/swagger/index.html"
}
