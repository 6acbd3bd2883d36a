package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userIDContextKey = "auth_user_id"

type tokenVerifier interface {
	Verify(raw string) (uint64, error)
}

// RequireUser authenticates the bearer token and stores the user id on the
// echo context.
func RequireUser(verifier tokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			userID, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

func UserIDFromContext(c echo.Context) (uint64, bool) {
	userID, ok := c.Get(userIDContextKey).(uint64)
	return userID, ok && userID > 0
}

// WithUserID is the inverse of UserIDFromContext, for handler tests.
func WithUserID(c echo.Context, userID uint64) {
	c.Set(userIDContextKey, userID)
}
