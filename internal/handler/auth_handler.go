package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pdfqa/internal/auth"
	"pdfqa/internal/model"
	"pdfqa/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   service.AuthService
	secureCookies bool
}

// NewAuthHandler creates a new auth handler. secureCookies marks the session cookie Secure.
func NewAuthHandler(authService service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookies: secureCookies}
}

// SendOTPRequest represents an OTP request.
type SendOTPRequest struct {
	Email string `json:"email" form:"email"`
}

// SendOTPResponse represents an OTP response.
type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OTPID   string `json:"otpId"`
}

// SignupRequest represents a user registration request.
type SignupRequest struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	OTP             string `json:"otp" form:"otp"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// UserResponse wraps a user with a message.
type UserResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
	Message string      `json:"message"`
}

// LoginUser is the user block of a login response.
type LoginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// LoginResponse represents an authentication response.
type LoginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    LoginUser `json:"user"`
	Message string    `json:"message"`
}

// SendOTP godoc
// @Summary Send a signup OTP
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SendOTPRequest true "Email to verify"
// @Success 200 {object} SendOTPResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /auth/send-otp [post]
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req SendOTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	rec, err := h.authService.SendOTP(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SendOTPResponse{
		Success: true,
		Message: "OTP sent successfully",
		OTPID:   rec.ID,
	})
}

// Signup godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Registration data"
// @Success 201 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Signup(c.Request().Context(), service.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		OTP:             req.OTP,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, UserResponse{
		Success: true,
		User:    user,
		Message: "User registration successful",
	})
}

// Login godoc
// @Summary Login user
// @Description Sets an http-only "token" cookie in addition to returning the token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		User: LoginUser{
			ID:    user.ID.String(),
			Name:  user.Name,
			Email: user.Email,
			Token: token,
		},
		Message: "Login successful",
	})
}
