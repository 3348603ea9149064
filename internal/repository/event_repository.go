package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/model"
)

const eventColumns = `id, title, created_at, updated_at`

// EventRepo stores events.  Every method taking a userID is scoped: it
// only sees events the user holds a link to.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func scanEvent(s scanner, e *model.Event) error {
	return s.Scan(&e.ID, &e.Title, database.Time(&e.CreatedAt), database.Time(&e.UpdatedAt))
}

func getEvent(ctx context.Context, q Querier, id uuid.UUID) (model.Event, error) {
	var e model.Event
	err := scanEvent(q.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id), &e)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return e, err
}

// Create inserts the event and the creator's link in one transaction, so
// an event never exists without at least one linked user.
func (r *EventRepo) Create(ctx context.Context, userID uuid.UUID, title string) (model.Event, error) {
	now := database.Now()
	e := model.Event{ID: uuid.New(), Title: strings.TrimSpace(title), CreatedAt: now, UpdatedAt: now}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO events ("+eventColumns+") VALUES (?,?,?,?)",
			e.ID, e.Title, e.CreatedAt, e.UpdatedAt); err != nil {
			return err
		}
		return insertLink(ctx, tx, userID, e.ID, now)
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func insertLink(ctx context.Context, q Querier, userID, eventID uuid.UUID, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO user_event_links (user_id, event_id, created_at, updated_at) VALUES (?,?,?,?)`,
		userID, eventID, now, now)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user already linked to event: %w", ErrConflict)
	}
	return err
}

// ListByUser returns the events linked to userID, oldest first.
func (r *EventRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.title, e.created_at, e.updated_at
		 FROM events e
		 JOIN user_event_links l ON l.event_id = e.id
		 WHERE l.user_id = ?
		 ORDER BY e.created_at, e.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetForUser returns the event if userID is linked to it.
func (r *EventRepo) GetForUser(ctx context.Context, userID, eventID uuid.UUID) (model.Event, error) {
	if _, err := Authorize(ctx, r.db, userID, KindEvent, eventID, ActionRead); err != nil {
		return model.Event{}, err
	}
	return getEvent(ctx, r.db, eventID)
}

// EventPatch holds the event fields a caller may change.
type EventPatch struct {
	Title *string
}

// UpdateForUser applies the set fields of p.  The guard runs inside the
// same transaction, so a denied caller changes nothing.
func (r *EventRepo) UpdateForUser(ctx context.Context, userID, eventID uuid.UUID, p EventPatch) (model.Event, error) {
	var e model.Event
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindEvent, eventID, ActionUpdate); err != nil {
			return err
		}
		var err error
		if e, err = getEvent(ctx, tx, eventID); err != nil {
			return err
		}
		if p.Title != nil {
			e.Title = strings.TrimSpace(*p.Title)
		}
		e.UpdatedAt = database.Now()
		_, err = tx.ExecContext(ctx,
			`UPDATE events SET title = ?, updated_at = ? WHERE id = ?`,
			e.Title, e.UpdatedAt, e.ID)
		return err
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// DeleteForUser removes the event along with its links, tables, seats and
// guests.  It returns the deleted event.
func (r *EventRepo) DeleteForUser(ctx context.Context, userID, eventID uuid.UUID) (model.Event, error) {
	var e model.Event
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindEvent, eventID, ActionDelete); err != nil {
			return err
		}
		var err error
		if e, err = getEvent(ctx, tx, eventID); err != nil {
			return err
		}
		return deleteEventCascade(ctx, tx, eventID)
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// deleteEventCascade removes an event and everything that hangs off it,
// children first.  The schema's foreign keys would do the same; the
// explicit statements keep MySQL tables without FK support consistent too.
func deleteEventCascade(ctx context.Context, tx *sql.Tx, eventID uuid.UUID) error {
	stmts := []string{
		`DELETE FROM seats WHERE table_id IN (SELECT id FROM seating_tables WHERE event_id = ?)`,
		`DELETE FROM seating_tables WHERE event_id = ?`,
		`DELETE FROM guests WHERE event_id = ?`,
		`DELETE FROM user_event_links WHERE event_id = ?`,
		`DELETE FROM events WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, eventID); err != nil {
			return err
		}
	}
	return nil
}

// AddCollaborator links the registered user with the given email to the
// event.  The caller must already be linked.  Linking someone twice is
// ErrConflict; an unknown email is ErrNotFound.
func (r *EventRepo) AddCollaborator(ctx context.Context, userID, eventID uuid.UUID, email string) (model.UserEventLink, error) {
	var link model.UserEventLink
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindEvent, eventID, ActionUpdate); err != nil {
			return err
		}
		other, err := getUser(ctx, tx, "email = ?", normalizeEmail(email))
		if err != nil {
			return err
		}
		now := database.Now()
		if err := insertLink(ctx, tx, other.ID, eventID, now); err != nil {
			return err
		}
		link = model.UserEventLink{UserID: other.ID, EventID: eventID, CreatedAt: now, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return model.UserEventLink{}, err
	}
	return link, nil
}

// Collaborators lists the users linked to an event the caller can read.
func (r *EventRepo) Collaborators(ctx context.Context, userID, eventID uuid.UUID) ([]model.User, error) {
	if _, err := Authorize(ctx, r.db, userID, KindEvent, eventID, ActionRead); err != nil {
		return nil, err
	}
	return listUsersByEvent(ctx, r.db, eventID)
}
