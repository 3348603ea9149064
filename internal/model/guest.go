package model

import (
	"time"

	"github.com/google/uuid"
)

// Guest is an invitee on an event's guest list.  Guests outlive seat
// assignments: deleting a seat or table frees the guest, it does not
// remove them.
type Guest struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
