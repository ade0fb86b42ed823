package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

var errNoToken = errors.New("no session token in request")

// TokenSource looks for a token in one place of the request.
type TokenSource func(c echo.Context) (string, bool)

// DefaultTokenSources is the lookup order: cookie, then request body, then bearer header.
var DefaultTokenSources = []TokenSource{CookieToken, BodyToken, BearerToken}

// FirstToken returns the token from the first source that yields one.
func FirstToken(c echo.Context, sources ...TokenSource) (string, bool) {
	for _, src := range sources {
		if token, ok := src(c); ok {
			return token, true
		}
	}
	return "", false
}

// ChainExtractor adapts an ordered set of sources to echo's extractor contract.
// Exactly one candidate is ever returned, so a bad token in an earlier source
// is never retried against later ones.
func ChainExtractor(sources ...TokenSource) middleware.ValuesExtractor {
	return func(c echo.Context) ([]string, error) {
		token, ok := FirstToken(c, sources...)
		if !ok {
			return nil, errNoToken
		}
		return []string{token}, nil
	}
}

// CookieToken reads the "token" cookie.
func CookieToken(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// BodyToken reads a "token" field from JSON or urlencoded bodies.
// The body is restored afterwards. Multipart bodies are not touched.
func BodyToken(c echo.Context) (string, bool) {
	req := c.Request()
	if req.Body == nil || req.Body == http.NoBody {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
	if err != nil {
		return "", false
	}
	if mediaType != echo.MIMEApplicationJSON && mediaType != echo.MIMEApplicationForm {
		return "", false
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return "", false
	}

	var token string
	if mediaType == echo.MIMEApplicationJSON {
		var body struct {
			Token json.RawMessage `json:"token"`
		}
		if json.Unmarshal(raw, &body) != nil || len(body.Token) == 0 {
			return "", false
		}
		if json.Unmarshal(body.Token, &token) != nil {
			return "", false
		}
	} else {
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return "", false
		}
		token = values.Get("token")
	}
	return token, token != ""
}

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
