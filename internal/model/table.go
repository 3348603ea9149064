package model

import (
	"time"

	"github.com/google/uuid"
)

// Table shapes accepted by the API.
const (
	ShapeRound     = "round"
	ShapeRectangle = "rectangle"
	ShapeSquare    = "square"
	ShapeOval      = "oval"
)

// Table is a piece of furniture placed on the event's canvas.  Seats is
// kept equal to the number of rows in `seats` belonging to the table.
// Position and extent are never negative.
type Table struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Title     string    `json:"title"`
	Shape     string    `json:"shape"`
	Seats     int       `json:"seats"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
