package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/middleware"
	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/repository"
)

// UserHandler serves registration and the caller's own account.
type UserHandler struct {
	Users       *repository.UserRepo
	Revocations auth.RevocationStore // nil when Redis is not configured
	auditor
}

// NewUserHandler panics if users is nil.  revocations and pub may be nil.
func NewUserHandler(users *repository.UserRepo, revocations auth.RevocationStore, pub queue.Publisher, logger *slog.Logger) *UserHandler {
	if users == nil {
		panic("nil repository passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Revocations: revocations, auditor: newAuditor(pub, logger)}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

type registerRequest struct {
	FullName string `json:"full_name" validate:"max=255"`
}

// Register handles POST /users.  Identity comes from the verified token;
// the body only supplies the display name, defaulting to the token's
// name claim.
func (h *UserHandler) Register(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return fmt.Errorf("%w: no verified claims", auth.ErrUnauthenticated)
	}
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		name = strings.TrimSpace(claims.Name)
	}
	if name == "" {
		return badRequest("full_name is required")
	}
	u, err := h.Users.Register(c.Request().Context(), claims, name)
	if err != nil {
		return err
	}
	h.audit(c, queue.UserRegistered, u.ID, "user", u.ID, uuid.Nil)
	return c.JSON(http.StatusCreated, u)
}

type updateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,notblank,max=255"`
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Users.Update(c.Request().Context(), me.ID, repository.UserPatch{FullName: req.FullName})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Delete handles DELETE /users and returns the deleted user.
func (h *UserHandler) Delete(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	u, orphaned, err := h.Users.Delete(c.Request().Context(), me.ID)
	if err != nil {
		return err
	}
	for _, eventID := range orphaned {
		h.audit(c, queue.EventDeleted, u.ID, "event", eventID, eventID)
	}
	h.audit(c, queue.UserDeleted, u.ID, "user", u.ID, uuid.Nil)
	return c.JSON(http.StatusOK, u)
}

// Revoke handles POST /users/me/revoke: every token issued to the caller
// before now stops being accepted.
func (h *UserHandler) Revoke(c echo.Context) error {
	if h.Revocations == nil {
		return fmt.Errorf("%w: revocation store not configured", auth.ErrServiceUnavailable)
	}
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return fmt.Errorf("%w: no verified claims", auth.ErrUnauthenticated)
	}
	if err := h.Revocations.Revoke(c.Request().Context(), claims.Subject, time.Now()); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrServiceUnavailable, err)
	}
	return c.NoContent(http.StatusNoContent)
}
