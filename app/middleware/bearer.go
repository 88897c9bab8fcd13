package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const contextKeyEmail = "auth.email"

// Authenticator resolves a bearer token to an account email.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

type EchoBearerMiddleware struct {
	auth Authenticator
}

func NewEchoBearerMiddleware(auth Authenticator) *EchoBearerMiddleware {
	return &EchoBearerMiddleware{auth: auth}
}

// RequireUser stores the authenticated email on the context or answers 401.
func (m *EchoBearerMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		}
		email, err := m.auth.Authenticate(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		c.Set(contextKeyEmail, email)
		return next(c)
	}
}

// UserEmail returns the email set by RequireUser.
func UserEmail(c echo.Context) (string, bool) {
	email, ok := c.Get(contextKeyEmail).(string)
	return email, ok && email != ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
