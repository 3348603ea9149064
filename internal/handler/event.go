package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/repository"
)

// EventHandler serves events and their collaborators.
type EventHandler struct {
	Events *repository.EventRepo
	auditor
}

func NewEventHandler(events *repository.EventRepo, pub queue.Publisher, logger *slog.Logger) *EventHandler {
	if events == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, auditor: newAuditor(pub, logger)}
}

// List handles GET /events.
func (h *EventHandler) List(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	events, err := h.Events.ListByUser(c.Request().Context(), me.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// Get handles GET /events/:event_id.
func (h *EventHandler) Get(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	e, err := h.Events.GetForUser(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

type createEventRequest struct {
	Title string `json:"title" validate:"required,notblank,max=255"`
}

// Create handles POST /events.  The caller becomes linked to the event.
func (h *EventHandler) Create(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createEventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := h.Events.Create(c.Request().Context(), me.ID, req.Title)
	if err != nil {
		return err
	}
	h.audit(c, queue.EventCreated, me.ID, "event", e.ID, e.ID)
	return c.JSON(http.StatusCreated, e)
}

type updateEventRequest struct {
	Title *string `json:"title" validate:"omitempty,notblank,max=255"`
}

// Update handles PATCH /events/:event_id.
func (h *EventHandler) Update(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	var req updateEventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := h.Events.UpdateForUser(c.Request().Context(), me.ID, id, repository.EventPatch{Title: req.Title})
	if err != nil {
		return err
	}
	h.audit(c, queue.EventUpdated, me.ID, "event", e.ID, e.ID)
	return c.JSON(http.StatusOK, e)
}

// Delete handles DELETE /events/:event_id and DELETE /events?event_id=.
func (h *EventHandler) Delete(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	raw := c.Param("event_id")
	if raw == "" {
		raw = c.QueryParam("event_id")
	}
	if raw == "" {
		return badRequest("event_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return badRequest("event_id must be a UUID")
	}
	e, err := h.Events.DeleteForUser(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	h.audit(c, queue.EventDeleted, me.ID, "event", e.ID, e.ID)
	return c.JSON(http.StatusOK, e)
}

type addCollaboratorRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AddCollaborator handles POST /events/:event_id/collaborators.
func (h *EventHandler) AddCollaborator(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	var req addCollaboratorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	link, err := h.Events.AddCollaborator(c.Request().Context(), me.ID, id, req.Email)
	if err != nil {
		return err
	}
	h.audit(c, queue.CollaboratorAdded, me.ID, "user", link.UserID, id)
	return c.JSON(http.StatusCreated, link)
}

// Collaborators handles GET /events/:event_id/collaborators.
func (h *EventHandler) Collaborators(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	users, err := h.Events.Collaborators(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}
