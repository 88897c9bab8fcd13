package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const HeaderAdminKey = "X-Admin-Key"

// EchoAdminKeyMiddleware admits requests carrying the shared admin secret.
type EchoAdminKeyMiddleware struct {
	secret string
}

func NewEchoAdminKeyMiddleware(secret string) *EchoAdminKeyMiddleware {
	return &EchoAdminKeyMiddleware{secret: secret}
}

// RequireAdmin rejects with 500 when no secret is configured and 401 on mismatch.
func (m *EchoAdminKeyMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.secret == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "ADMIN_SECRET_KEY not configured"})
		}
		if !AdminKeyMatches(m.secret, c.Request().Header.Get(HeaderAdminKey)) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid admin key"})
		}
		return next(c)
	}
}

// AdminKeyMatches compares in constant time.
func AdminKeyMatches(secret string, provided string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) == 1
}
