package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pdfqa/internal/auth"
	apperrors "pdfqa/internal/errors"
)

// UserHandler serves the logged-in user's account.
type UserHandler struct{}

// NewUserHandler creates a handler layer.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Profile godoc
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/profile [get]
func (h *UserHandler) Profile(c echo.Context) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperrors.NewAuth("Authentication required. Please login.")
	}
	return c.JSON(http.StatusOK, UserResponse{
		Success: true,
		User:    user,
		Message: "User profile fetched successfully",
	})
}
