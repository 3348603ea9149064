package middleware

// identity.go holds the caller-identification helper shared by the rate
// limiter and the request logger.

import "github.com/labstack/echo/v4"

// subject returns the Firebase uid of the verified caller, or "anon" when
// BearerAuth has not run for this request.
func subject(c echo.Context) string {
	if claims, ok := ClaimsFrom(c); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "anon"
}
