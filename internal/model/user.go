package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application user record as stored in the `users`
// table.  A user is created only by explicit registration after the
// identity provider verified the caller; FirebaseUID never changes
// afterwards.
type User struct {
	ID          uuid.UUID `json:"id"`         // users.id
	FirebaseUID string    `json:"-"`          // users.firebase_uid (unique)
	Email       string    `json:"email"`      // users.email (unique)
	FullName    string    `json:"full_name"`  // users.full_name
	CreatedAt   time.Time `json:"created_at"` // users.created_at
	UpdatedAt   time.Time `json:"updated_at"` // users.updated_at
}

// UserEventLink models a row of `user_event_links`.  Its presence is the
// sole authorization fact for a user acting on an event.
type UserEventLink struct {
	UserID    uuid.UUID `json:"user_id"`
	EventID   uuid.UUID `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
