package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"pdfqa/internal/config"
	"pdfqa/internal/handler"
)

const (
	jsonBodyLimit = "10M"
	uploadPath    = "/api/pdf/upload"
)

// Handlers groups everything Register wires to routes.
type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	PDF    *handler.PDFHandler
	Health *handler.HealthHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger *slog.Logger,
	authMiddleware echo.MiddlewareFunc,
	h Handlers,
	uploadDir string,
) {
	e.HideBanner = true
	e.HTTPErrorHandler = newErrorHandler(logger, cfg.IsDevelopment())
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: jsonBodyLimit,
		// Uploads are streamed straight to disk.
		Skipper: func(c echo.Context) bool {
			return c.Path() == uploadPath
		},
	}))

	e.GET("/", h.Health.Root)
	e.GET("/healthz", h.Health.Live)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.Static("/uploads", uploadDir)

	api := e.Group("/api")
	api.GET("/health", h.Health.Health)

	// Public routes
	authGroup := api.Group("/auth")
	public := authGroup.Group("", authRateLimiter(cfg.AuthRateLimit)...)
	public.POST("/send-otp", h.Auth.SendOTP)
	public.POST("/signup", h.Auth.Signup)
	public.POST("/login", h.Auth.Login)

	// Secured routes
	authGroup.GET("/profile", h.User.Profile, authMiddleware)

	pdf := api.Group("/pdf", authMiddleware)
	pdf.POST("/upload", h.PDF.Upload)
	pdf.POST("/query", h.PDF.Query)
	pdf.POST("/clear-vector-data", h.PDF.ClearVectorData)
	pdf.GET("/pdfs", h.PDF.List)
	pdf.DELETE("/pdfs/:id", h.PDF.Delete)
	pdf.GET("/history", h.PDF.History)
}

// authRateLimiter limits credential endpoints per client IP. A non-positive limit disables it.
func authRateLimiter(perSecond float64) []echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(perSecond),
		Burst: burst,
	})
	return []echo.MiddlewareFunc{middleware.RateLimiter(store)}
}
