package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	apperrors "pdfqa/internal/errors"
	"pdfqa/internal/model"
)

const (
	claimsContextKey      = "claims"
	userContextKey        = "currentUser"
	tokenParsedContextKey = "tokenParsed"

	msgAuthRequired = "Authentication required. Please login."
	msgInvalidToken = "Invalid token or token expired"
	msgUserNotFound = "Invalid token. User not found."
)

// UserLookup resolves the account behind a token.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Authorizer guards routes that need a logged-in user.
type Authorizer struct {
	jwt     *JWTService
	users   UserLookup
	sources []TokenSource
	logger  *slog.Logger
}

// NewAuthorizer builds an Authorizer using DefaultTokenSources.
func NewAuthorizer(jwtService *JWTService, users UserLookup, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		jwt:     jwtService,
		users:   users,
		sources: DefaultTokenSources,
		logger:  logger,
	}
}

// Middleware verifies the session token and attaches the requesting user to the context.
func (a *Authorizer) Middleware() echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:       claimsContextKey,
		TokenLookupFuncs: []middleware.ValuesExtractor{ChainExtractor(a.sources...)},
		// echojwt always appends the TokenLookup extractors. Pointing it at the
		// highest priority source keeps the lookup order intact.
		TokenLookup: "cookie:" + TokenCookieName,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			c.Set(tokenParsedContextKey, true)
			return a.jwt.ValidateToken(token)
		},
		// Extraction failures reach here as the extractor's own error, so
		// "missing" is decided by whether any token got as far as parsing.
		ErrorHandler: func(c echo.Context, err error) error {
			if parsed, _ := c.Get(tokenParsedContextKey).(bool); !parsed {
				return apperrors.NewAuth(msgAuthRequired)
			}
			return apperrors.NewAuth(msgInvalidToken)
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(a.loadIdentity(next))
	}
}

func (a *Authorizer) loadIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get(claimsContextKey).(*Claims)
		if !ok {
			return apperrors.NewAuth(msgInvalidToken)
		}
		id, err := uuid.Parse(claims.UserID)
		if err != nil {
			return apperrors.NewAuth(msgUserNotFound)
		}

		user, err := a.users.GetUser(c.Request().Context(), id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewAuth(msgUserNotFound)
		}
		if err != nil {
			a.logger.ErrorContext(c.Request().Context(), "load session user", "user_id", id, "error", err)
			return apperrors.NewInternal(err)
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// CurrentUser returns the user attached by Middleware, or nil on unguarded routes.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}

// SetCurrentUser attaches user to the context. Used by tests of guarded handlers.
func SetCurrentUser(c echo.Context, user *model.User) {
	c.Set(userContextKey, user)
}
