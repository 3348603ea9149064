package model

import (
	"time"

	"github.com/google/uuid"
)

// Event is a wedding (or any seated occasion) that owns tables and a
// guest list.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
