package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/model"
	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/repository"
)

// GuestHandler serves an event's guest list.
type GuestHandler struct {
	Guests *repository.GuestRepo
	auditor
}

func NewGuestHandler(guests *repository.GuestRepo, pub queue.Publisher, logger *slog.Logger) *GuestHandler {
	if guests == nil {
		panic("nil repository passed to NewGuestHandler")
	}
	return &GuestHandler{Guests: guests, auditor: newAuditor(pub, logger)}
}

// ListByEvent handles GET /events/:event_id/guests.
func (h *GuestHandler) ListByEvent(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	guests, err := h.Guests.ListByEvent(c.Request().Context(), me.ID, eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, guests)
}

type createGuestRequest struct {
	FirstName string  `json:"first_name" validate:"required,notblank,max=255"`
	LastName  string  `json:"last_name" validate:"required,notblank,max=255"`
	Email     *string `json:"email" validate:"omitempty,email,max=320"`
}

// Create handles POST /events/:event_id/guests.
func (h *GuestHandler) Create(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	var req createGuestRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	g, err := h.Guests.Create(c.Request().Context(), me.ID, model.Guest{
		EventID:   eventID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return err
	}
	h.audit(c, queue.GuestCreated, me.ID, "guest", g.ID, g.EventID)
	return c.JSON(http.StatusCreated, g)
}

// Get handles GET /guests/:guest_id.
func (h *GuestHandler) Get(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "guest_id")
	if err != nil {
		return err
	}
	g, err := h.Guests.Get(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

type updateGuestRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,notblank,max=255"`
	LastName  *string `json:"last_name" validate:"omitempty,notblank,max=255"`
	Email     *string `json:"email" validate:"omitempty,max=320"` // "" clears
}

// Update handles PATCH /guests/:guest_id.
func (h *GuestHandler) Update(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "guest_id")
	if err != nil {
		return err
	}
	var req updateGuestRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	g, err := h.Guests.Update(c.Request().Context(), me.ID, id, repository.GuestPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// Delete handles DELETE /guests/:guest_id.
func (h *GuestHandler) Delete(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "guest_id")
	if err != nil {
		return err
	}
	g, err := h.Guests.Delete(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	h.audit(c, queue.GuestDeleted, me.ID, "guest", g.ID, g.EventID)
	return c.JSON(http.StatusOK, g)
}
