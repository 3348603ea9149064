package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/middleware"
	"github.com/wedding-table/seating-server/internal/model"
	"github.com/wedding-table/seating-server/internal/queue"
)

// bind decodes the request into dst and runs the registered validator.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

// pathID parses a UUID path parameter.
func pathID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("%s must be a UUID", name)
	}
	return id, nil
}

func currentUser(c echo.Context) (model.User, error) {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return model.User{}, fmt.Errorf("%w: no current user in context", auth.ErrUnauthenticated)
	}
	return u, nil
}

// nullableUUID tells an absent JSON field apart from an explicit null.
type nullableUUID struct {
	Set   bool
	Value uuid.NullUUID
}

func (n *nullableUUID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = uuid.NullUUID{}
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.Value = uuid.NullUUID{UUID: id, Valid: true}
	return nil
}

// auditor publishes audit events after a successful write.  Publishing is
// best effort: it is detached from the request's cancellation, bounded by
// a timeout, and failures are only logged.
type auditor struct {
	pub    queue.Publisher
	logger *slog.Logger
}

func newAuditor(pub queue.Publisher, logger *slog.Logger) auditor {
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return auditor{pub: pub, logger: logger}
}

func (a auditor) audit(c echo.Context, typ string, actor uuid.UUID, kind string, id, eventID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
	defer cancel()
	err := a.pub.Publish(ctx, queue.AuditEvent{
		Type:         typ,
		ActorID:      actor,
		ResourceKind: kind,
		ResourceID:   id,
		EventID:      eventID,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		a.logger.Warn("audit event dropped", "type", typ, "resource_id", id, "error", err)
	}
}
