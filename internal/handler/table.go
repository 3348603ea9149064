package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/model"
	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/repository"
)

// TableHandler serves the tables of an event's floor plan.
type TableHandler struct {
	Tables *repository.TableRepo
	auditor
}

func NewTableHandler(tables *repository.TableRepo, pub queue.Publisher, logger *slog.Logger) *TableHandler {
	if tables == nil {
		panic("nil repository passed to NewTableHandler")
	}
	return &TableHandler{Tables: tables, auditor: newAuditor(pub, logger)}
}

type createTableRequest struct {
	EventID uuid.UUID `json:"event_id"`
	Title   string    `json:"title" validate:"max=255"`
	Shape   string    `json:"shape" validate:"omitempty,oneof=round rectangle square oval"`
	Seats   *int      `json:"seats" validate:"omitempty,gte=0,lte=100"`
	X       float64   `json:"x" validate:"gte=0"`
	Y       float64   `json:"y" validate:"gte=0"`
	Width   float64   `json:"width" validate:"gte=0"`
	Height  float64   `json:"height" validate:"gte=0"`
}

// Create handles POST /tables (event_id in the body) and
// POST /events/:event_id/tables.  Seats defaults to 4.
func (h *TableHandler) Create(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createTableRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if c.Param("event_id") != "" {
		if req.EventID, err = pathID(c, "event_id"); err != nil {
			return err
		}
	}
	if req.EventID == uuid.Nil {
		return badRequest("event_id is required")
	}
	seats := 4
	if req.Seats != nil {
		seats = *req.Seats
	}
	t, err := h.Tables.Create(c.Request().Context(), me.ID, model.Table{
		EventID: req.EventID,
		Title:   req.Title,
		Shape:   req.Shape,
		Seats:   seats,
		X:       req.X,
		Y:       req.Y,
		Width:   req.Width,
		Height:  req.Height,
	})
	if err != nil {
		return err
	}
	h.audit(c, queue.TableCreated, me.ID, "table", t.ID, t.EventID)
	return c.JSON(http.StatusCreated, t)
}

// ListByEvent handles GET /events/:event_id/tables.
func (h *TableHandler) ListByEvent(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}
	tables, err := h.Tables.ListByEvent(c.Request().Context(), me.ID, eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tables)
}

// Get handles GET /tables/:table_id.
func (h *TableHandler) Get(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "table_id")
	if err != nil {
		return err
	}
	t, err := h.Tables.Get(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

type updateTableRequest struct {
	Title  *string  `json:"title" validate:"omitempty,notblank,max=255"`
	Shape  *string  `json:"shape" validate:"omitempty,oneof=round rectangle square oval"`
	Seats  *int     `json:"seats" validate:"omitempty,gte=0,lte=100"`
	X      *float64 `json:"x" validate:"omitempty,gte=0"`
	Y      *float64 `json:"y" validate:"omitempty,gte=0"`
	Width  *float64 `json:"width" validate:"omitempty,gte=0"`
	Height *float64 `json:"height" validate:"omitempty,gte=0"`
}

// Update handles PATCH /tables/:table_id.
func (h *TableHandler) Update(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "table_id")
	if err != nil {
		return err
	}
	var req updateTableRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.Tables.Update(c.Request().Context(), me.ID, id, repository.TablePatch{
		Title:  req.Title,
		Shape:  req.Shape,
		Seats:  req.Seats,
		X:      req.X,
		Y:      req.Y,
		Width:  req.Width,
		Height: req.Height,
	})
	if err != nil {
		return err
	}
	h.audit(c, queue.TableUpdated, me.ID, "table", t.ID, t.EventID)
	return c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /tables/:table_id.
func (h *TableHandler) Delete(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "table_id")
	if err != nil {
		return err
	}
	t, err := h.Tables.Delete(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	h.audit(c, queue.TableDeleted, me.ID, "table", t.ID, t.EventID)
	return c.JSON(http.StatusOK, t)
}
