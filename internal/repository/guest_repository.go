package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/model"
)

const guestColumns = `id, event_id, first_name, last_name, email, created_at, updated_at`

// GuestRepo stores an event's guest list.
type GuestRepo struct{ db *sql.DB }

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

func scanGuest(s scanner, g *model.Guest) error {
	var email sql.NullString
	if err := s.Scan(&g.ID, &g.EventID, &g.FirstName, &g.LastName, &email,
		database.Time(&g.CreatedAt), database.Time(&g.UpdatedAt)); err != nil {
		return err
	}
	g.Email = nil
	if email.Valid {
		e := email.String
		g.Email = &e
	}
	return nil
}

func getGuest(ctx context.Context, q Querier, id uuid.UUID) (model.Guest, error) {
	var g model.Guest
	err := scanGuest(q.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE id = ?", id), &g)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Guest{}, fmt.Errorf("guest %s: %w", id, ErrNotFound)
	}
	return g, err
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Create adds g to the guest list of g.EventID.
func (r *GuestRepo) Create(ctx context.Context, userID uuid.UUID, g model.Guest) (model.Guest, error) {
	now := database.Now()
	g.ID = uuid.New()
	g.FirstName = strings.TrimSpace(g.FirstName)
	g.LastName = strings.TrimSpace(g.LastName)
	g.Email = trimmedOrNil(g.Email)
	g.CreatedAt, g.UpdatedAt = now, now

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindEvent, g.EventID, ActionUpdate); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO guests ("+guestColumns+") VALUES (?,?,?,?,?,?,?)",
			g.ID, g.EventID, g.FirstName, g.LastName, g.Email, g.CreatedAt, g.UpdatedAt)
		return err
	})
	if err != nil {
		return model.Guest{}, err
	}
	return g, nil
}

// ListByEvent returns the guest list ordered by name.
func (r *GuestRepo) ListByEvent(ctx context.Context, userID, eventID uuid.UUID) ([]model.Guest, error) {
	if _, err := Authorize(ctx, r.db, userID, KindEvent, eventID, ActionRead); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE event_id = ? ORDER BY last_name, first_name, created_at", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Guest{}
	for rows.Next() {
		var g model.Guest
		if err := scanGuest(rows, &g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GuestRepo) Get(ctx context.Context, userID, guestID uuid.UUID) (model.Guest, error) {
	if _, err := Authorize(ctx, r.db, userID, KindGuest, guestID, ActionRead); err != nil {
		return model.Guest{}, err
	}
	return getGuest(ctx, r.db, guestID)
}

// GuestPatch holds the guest fields a caller may change.
type GuestPatch struct {
	FirstName *string
	LastName  *string
	Email     *string // empty string clears
}

func (r *GuestRepo) Update(ctx context.Context, userID, guestID uuid.UUID, p GuestPatch) (model.Guest, error) {
	var g model.Guest
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindGuest, guestID, ActionUpdate); err != nil {
			return err
		}
		var err error
		if g, err = getGuest(ctx, tx, guestID); err != nil {
			return err
		}
		if p.FirstName != nil {
			g.FirstName = strings.TrimSpace(*p.FirstName)
		}
		if p.LastName != nil {
			g.LastName = strings.TrimSpace(*p.LastName)
		}
		if p.Email != nil {
			g.Email = trimmedOrNil(p.Email)
		}
		g.UpdatedAt = database.Now()
		_, err = tx.ExecContext(ctx,
			`UPDATE guests SET first_name = ?, last_name = ?, email = ?, updated_at = ? WHERE id = ?`,
			g.FirstName, g.LastName, g.Email, g.UpdatedAt, g.ID)
		return err
	})
	if err != nil {
		return model.Guest{}, err
	}
	return g, nil
}

// Delete removes the guest; any seat they held becomes free.
func (r *GuestRepo) Delete(ctx context.Context, userID, guestID uuid.UUID) (model.Guest, error) {
	var g model.Guest
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindGuest, guestID, ActionDelete); err != nil {
			return err
		}
		var err error
		if g, err = getGuest(ctx, tx, guestID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET guest_id = NULL, updated_at = ? WHERE guest_id = ?`, database.Now(), guestID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, guestID)
		return err
	})
	if err != nil {
		return model.Guest{}, err
	}
	return g, nil
}
