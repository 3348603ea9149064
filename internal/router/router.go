package router // router builds the echo instance and registers every route

import (
	"database/sql"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/config"
	"github.com/wedding-table/seating-server/internal/handler"
	"github.com/wedding-table/seating-server/internal/middleware"
	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/repository"
)

// Deps is everything the HTTP layer needs.  Redis, Revocations and
// Publisher are optional.
type Deps struct {
	DB          *sql.DB
	Verifier    auth.Verifier
	Revocations auth.RevocationStore
	Publisher   queue.Publisher
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	CORSOrigins []string
	APIPrefix   string
	Logger      *slog.Logger
}

// New returns an echo instance with the global middleware chain, the
// shared error envelope and all routes registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Logger)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.Recover())
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: d.CORSOrigins,
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}

	Register(e, d)
	return e
}

// Register mounts the API under APIPrefix + "/v1".
func Register(e *echo.Echo, d Deps) {
	base := d.APIPrefix + "/v1"

	users := repository.NewUserRepo(d.DB)
	uh := handler.NewUserHandler(users, d.Revocations, d.Publisher, d.Logger)
	eh := handler.NewEventHandler(repository.NewEventRepo(d.DB), d.Publisher, d.Logger)
	th := handler.NewTableHandler(repository.NewTableRepo(d.DB), d.Publisher, d.Logger)
	sh := handler.NewSeatHandler(repository.NewSeatRepo(d.DB), d.Publisher, d.Logger)
	gh := handler.NewGuestHandler(repository.NewGuestRepo(d.DB), d.Publisher, d.Logger)
	mh := handler.NewMonitoringHandler(d.DB, d.Logger)

	// ---- Monitoring (public) ----
	e.GET(base+"/monitoring/ping", mh.Ping)
	e.GET(base+"/monitoring/healthz", mh.Healthz)

	bearer := middleware.BearerAuth(d.Verifier)
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger)

	// Registration needs verified claims but no existing user.
	e.POST(base+"/users", uh.Register, bearer, limiter)

	g := e.Group(base, bearer, limiter, middleware.CurrentUser(users))

	// ---- Users ----
	g.GET("/users/me", uh.Me)
	g.PATCH("/users/me", uh.UpdateMe)
	g.DELETE("/users", uh.Delete)
	g.POST("/users/me/revoke", uh.Revoke)

	// ---- Events ----
	g.GET("/events", eh.List)
	g.POST("/events", eh.Create)
	g.DELETE("/events", eh.Delete) // ?event_id=
	g.GET("/events/:event_id", eh.Get)
	g.PATCH("/events/:event_id", eh.Update)
	g.DELETE("/events/:event_id", eh.Delete)
	g.GET("/events/:event_id/collaborators", eh.Collaborators)
	g.POST("/events/:event_id/collaborators", eh.AddCollaborator)

	// ---- Tables ----
	g.GET("/events/:event_id/tables", th.ListByEvent)
	g.POST("/events/:event_id/tables", th.Create)
	g.POST("/tables", th.Create)
	g.GET("/tables/:table_id", th.Get)
	g.PATCH("/tables/:table_id", th.Update)
	g.DELETE("/tables/:table_id", th.Delete)

	// ---- Seats ----
	g.GET("/tables/:table_id/seats", sh.ListByTable)
	g.POST("/tables/:table_id/seats", sh.Create)
	g.GET("/seats/:seat_id", sh.Get)
	g.PATCH("/seats/:seat_id", sh.Update)
	g.DELETE("/seats/:seat_id", sh.Delete)

	// ---- Guests ----
	g.GET("/events/:event_id/guests", gh.ListByEvent)
	g.POST("/events/:event_id/guests", gh.Create)
	g.GET("/guests/:guest_id", gh.Get)
	g.PATCH("/guests/:guest_id", gh.Update)
	g.DELETE("/guests/:guest_id", gh.Delete)
}
