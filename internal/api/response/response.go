package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// Success returns a successful response with data
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMessage returns a successful response with a message
func SuccessWithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// BadRequest returns a 400 Bad Request response
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInvalidInput,
	})
}

// BadRequestWithData returns a 400 Bad Request response with additional data
func BadRequestWithData(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    apperrors.CodeInvalidInput,
		"data":    data,
	})
}

// Unauthorized returns a 401 Unauthorized response
func Unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeUnauthorized,
	})
}

// InternalError returns a 500 Internal Server Error response
func InternalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInternalError,
	})
}
