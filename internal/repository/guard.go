package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind names the resource an authorization check is about.
type Kind int

const (
	KindEvent Kind = iota
	KindTable
	KindSeat
	KindGuest
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindTable:
		return "table"
	case KindSeat:
		return "seat"
	case KindGuest:
		return "guest"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is what the caller wants to do with the resource.  Every action
// currently requires the same fact (a link to the owning event); it is
// carried so denials say what was refused.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// owningEvent maps each kind to the query that returns the event a
// resource belongs to.
var owningEvent = map[Kind]string{
	KindEvent: `SELECT id FROM events WHERE id = ?`,
	KindTable: `SELECT event_id FROM seating_tables WHERE id = ?`,
	KindSeat: `SELECT t.event_id FROM seats s
	           JOIN seating_tables t ON t.id = s.table_id
	           WHERE s.id = ?`,
	KindGuest: `SELECT event_id FROM guests WHERE id = ?`,
}

// Authorize decides whether userID may perform action on the resource.
// The resource is looked up first so a missing row yields ErrNotFound;
// an existing resource whose event has no (userID, event) link yields
// ErrForbidden.  On success the owning event id is returned.
//
// Pass the mutation's *sql.Tx as q so the check and the write see the
// same snapshot.  Authorize itself never writes.
func Authorize(ctx context.Context, q Querier, userID uuid.UUID, kind Kind, id uuid.UUID, action Action) (uuid.UUID, error) {
	query, ok := owningEvent[kind]
	if !ok {
		return uuid.Nil, fmt.Errorf("authorize: unknown resource kind %v", kind)
	}

	var eventID uuid.UUID
	if err := q.QueryRowContext(ctx, query, id).Scan(&eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return uuid.Nil, err
	}

	linked, err := hasLink(ctx, q, userID, eventID)
	if err != nil {
		return uuid.Nil, err
	}
	if !linked {
		return uuid.Nil, fmt.Errorf("%s %s of %s: %w", action, kind, id, ErrForbidden)
	}
	return eventID, nil
}

func hasLink(ctx context.Context, q Querier, userID, eventID uuid.UUID) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM user_event_links WHERE user_id = ? AND event_id = ?`,
		userID, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
