package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/config"
	"github.com/wedding-table/seating-server/internal/model"
)

type stubVerifier struct {
	claims auth.Claims
	err    error
	got    string
}

func (s *stubVerifier) Verify(_ context.Context, raw string) (auth.Claims, error) {
	s.got = raw
	return s.claims, s.err
}

type stubResolver struct {
	user model.User
	err  error
}

func (s stubResolver) Resolve(context.Context, auth.Claims) (model.User, error) { return s.user, s.err }

func newContext(authz string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestBearerAuth(t *testing.T) {
	email := "ann@example.com"
	tests := []struct {
		name    string
		header  string
		verr    error
		wantErr error
		wantTok string
	}{
		{"missing header", "", nil, auth.ErrUnauthenticated, ""},
		{"wrong scheme", "Basic abc", nil, auth.ErrUnauthenticated, ""},
		{"empty token", "Bearer ", nil, auth.ErrUnauthenticated, ""},
		{"invalid token", "Bearer bad", auth.ErrUnauthenticated, auth.ErrUnauthenticated, "bad"},
		{"provider down", "Bearer tok", auth.ErrServiceUnavailable, auth.ErrServiceUnavailable, "tok"},
		{"valid", "bearer tok", nil, nil, "tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubVerifier{claims: auth.Claims{Subject: "uid-1", Email: &email}, err: tt.verr}
			c, _ := newContext(tt.header)
			err := BearerAuth(v)(ok)(c)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if v.got != tt.wantTok {
				t.Errorf("verifier got %q, want %q", v.got, tt.wantTok)
			}
			claims, found := ClaimsFrom(c)
			if found != (tt.wantErr == nil) {
				t.Errorf("claims stored = %v", found)
			}
			if found && claims.Subject != "uid-1" {
				t.Errorf("subject = %q", claims.Subject)
			}
		})
	}
}

func TestCurrentUser(t *testing.T) {
	u := model.User{ID: uuid.New(), Email: "ann@example.com"}

	c, _ := newContext("")
	if err := CurrentUser(stubResolver{user: u})(ok)(c); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("without claims: err = %v", err)
	}

	notRegistered := errors.New("user not registered")
	c, _ = newContext("")
	c.Set(claimsKey, auth.Claims{Subject: "uid-1"})
	if err := CurrentUser(stubResolver{err: notRegistered})(ok)(c); !errors.Is(err, notRegistered) {
		t.Errorf("unregistered: err = %v", err)
	}
	if _, found := UserFrom(c); found {
		t.Error("user stored for unregistered caller")
	}

	c, rec := newContext("")
	c.Set(claimsKey, auth.Claims{Subject: "uid-1"})
	if err := CurrentUser(stubResolver{user: u})(ok)(c); err != nil {
		t.Fatal(err)
	}
	got, found := UserFrom(c)
	if !found || got.ID != u.ID || rec.Code != http.StatusNoContent {
		t.Errorf("user = %+v (%v), status %d", got, found, rec.Code)
	}
}

func TestNewTokenBucket_PassThroughWithoutRedis(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil)
	for i := 0; i < 3; i++ {
		c, rec := newContext("")
		if err := mw(ok)(c); err != nil || rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: %v, status %d", i, err, rec.Code)
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	c, _ := newContext("")
	c.SetPath("/api/v1/events")
	c.Request().RemoteAddr = "10.0.0.7:5555"

	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c); got != "rl:user:anon:route:GET /api/v1/events" {
		t.Errorf("anonymous key = %q", got)
	}
	c.Set(claimsKey, auth.Claims{Subject: "uid-1"})
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:uid-1" {
		t.Errorf("user key = %q", got)
	}
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c); got != "rl:ip:10.0.0.7" {
		t.Errorf("ip key = %q", got)
	}
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "route_user"}, c); got != "rl:route:GET /api/v1/events:user:uid-1" {
		t.Errorf("route_user key = %q", got)
	}
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "bogus"}, c); got != "rl:ip:10.0.0.7:user:uid-1:route:GET /api/v1/events" {
		t.Errorf("fallback key = %q", got)
	}
}
