package middleware

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/model"
)

const userKey = "auth.user"

// UserResolver maps verified claims to a registered user.
type UserResolver interface {
	Resolve(ctx context.Context, c auth.Claims) (model.User, error)
}

// CurrentUser resolves the caller registered for the verified claims.  It
// must run after BearerAuth.  Callers without a local account get the
// resolver's error (NotRegistered), never an implicitly created user.
func CurrentUser(r UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return fmt.Errorf("%w: no verified claims", auth.ErrUnauthenticated)
			}
			u, err := r.Resolve(c.Request().Context(), claims)
			if err != nil {
				return err
			}
			c.Set(userKey, u)
			return next(c)
		}
	}
}

// UserFrom returns the user stored by CurrentUser.
func UserFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userKey).(model.User)
	return u, ok
}
