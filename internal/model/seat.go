package model

import (
	"time"

	"github.com/google/uuid"
)

// Seat is a position around a table, optionally occupied by a guest of the
// same event.  A guest holds at most one seat.
type Seat struct {
	ID         uuid.UUID     `json:"id"`
	TableID    uuid.UUID     `json:"table_id"`
	SeatNumber *int          `json:"seat_number"` // nullable
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	GuestID    uuid.NullUUID `json:"guest_id"` // null when the seat is free
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`

	// EventID is the owning table's event, filled in by writes only.
	EventID uuid.UUID `json:"-"`
}
