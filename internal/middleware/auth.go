package middleware

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
)

const claimsKey = "auth.claims"

// BearerAuth verifies the Authorization bearer token and stores the
// verified claims in the context.  Failures are returned as errors so the
// central error handler renders them (401 for bad credentials, 503 when
// the identity provider is unreachable).
func BearerAuth(v auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return fmt.Errorf("%w: missing bearer token", auth.ErrUnauthenticated)
			}
			claims, err := v.Verify(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by BearerAuth.
func ClaimsFrom(c echo.Context) (auth.Claims, bool) {
	claims, ok := c.Get(claimsKey).(auth.Claims)
	return claims, ok
}
