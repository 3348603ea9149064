package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/model"
	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/repository"
)

// SeatHandler serves seats and guest assignments.
type SeatHandler struct {
	Seats *repository.SeatRepo
	auditor
}

func NewSeatHandler(seats *repository.SeatRepo, pub queue.Publisher, logger *slog.Logger) *SeatHandler {
	if seats == nil {
		panic("nil repository passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats, auditor: newAuditor(pub, logger)}
}

// ListByTable handles GET /tables/:table_id/seats.
func (h *SeatHandler) ListByTable(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	tableID, err := pathID(c, "table_id")
	if err != nil {
		return err
	}
	seats, err := h.Seats.ListByTable(c.Request().Context(), me.ID, tableID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, seats)
}

type createSeatRequest struct {
	SeatNumber *int         `json:"seat_number" validate:"omitempty,gte=0"`
	X          float64      `json:"x" validate:"gte=0"`
	Y          float64      `json:"y" validate:"gte=0"`
	GuestID    nullableUUID `json:"guest_id"`
}

// Create handles POST /tables/:table_id/seats.
func (h *SeatHandler) Create(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	tableID, err := pathID(c, "table_id")
	if err != nil {
		return err
	}
	var req createSeatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.Seats.Create(c.Request().Context(), me.ID, model.Seat{
		TableID:    tableID,
		SeatNumber: req.SeatNumber,
		X:          req.X,
		Y:          req.Y,
		GuestID:    req.GuestID.Value,
	})
	if err != nil {
		return err
	}
	if s.GuestID.Valid {
		h.audit(c, queue.SeatAssigned, me.ID, "seat", s.ID, s.EventID)
	}
	return c.JSON(http.StatusCreated, s)
}

// Get handles GET /seats/:seat_id.
func (h *SeatHandler) Get(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "seat_id")
	if err != nil {
		return err
	}
	s, err := h.Seats.Get(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

type updateSeatRequest struct {
	SeatNumber *int         `json:"seat_number" validate:"omitempty,gte=0"`
	X          *float64     `json:"x" validate:"omitempty,gte=0"`
	Y          *float64     `json:"y" validate:"omitempty,gte=0"`
	GuestID    nullableUUID `json:"guest_id"` // null frees the seat
}

// Update handles PATCH /seats/:seat_id.
func (h *SeatHandler) Update(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "seat_id")
	if err != nil {
		return err
	}
	var req updateSeatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.Seats.Update(c.Request().Context(), me.ID, id, repository.SeatPatch{
		SeatNumber: req.SeatNumber,
		X:          req.X,
		Y:          req.Y,
		GuestSet:   req.GuestID.Set,
		GuestID:    req.GuestID.Value,
	})
	if err != nil {
		return err
	}
	if req.GuestID.Set && s.GuestID.Valid {
		h.audit(c, queue.SeatAssigned, me.ID, "seat", s.ID, s.EventID)
	}
	return c.JSON(http.StatusOK, s)
}

// Delete handles DELETE /seats/:seat_id.
func (h *SeatHandler) Delete(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "seat_id")
	if err != nil {
		return err
	}
	s, err := h.Seats.Delete(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}
