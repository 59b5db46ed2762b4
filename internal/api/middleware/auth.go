package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
)

// APIKeyAuth validates the Bearer token in the Authorization header against
// the configured key. An empty key disables the check (development mode).
// Uses constant-time comparison to prevent timing attacks.
func APIKeyAuth(apiKey string, logger *slog.Logger) echo.MiddlewareFunc {
	if apiKey == "" && logger != nil {
		logger.Warn("API key not configured - operator endpoints are UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if logger != nil {
					logger.Warn("missing authorization header",
						slog.String("ip", c.RealIP()),
						slog.String("path", c.Path()))
				}
				return echo.NewHTTPError(401, map[string]string{
					"error": "missing authorization header",
					"code":  "UNAUTHORIZED",
				})
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				if logger != nil {
					logger.Warn("invalid API key attempt",
						slog.String("ip", c.RealIP()),
						slog.String("path", c.Path()))
				}
				return echo.NewHTTPError(401, map[string]string{
					"error": "invalid API key",
					"code":  "UNAUTHORIZED",
				})
			}

			return next(c)
		}
	}
}
