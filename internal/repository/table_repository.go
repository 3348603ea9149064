package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/model"
)

const tableColumns = `id, event_id, title, shape, seats, x, y, width, height, created_at, updated_at`

// TableRepo stores seating tables.  A table is reachable only through a
// link to its event, and its seat rows are kept in step with Seats.
type TableRepo struct{ db *sql.DB }

func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

func scanTable(s scanner, t *model.Table) error {
	return s.Scan(&t.ID, &t.EventID, &t.Title, &t.Shape, &t.Seats, &t.X, &t.Y, &t.Width, &t.Height,
		database.Time(&t.CreatedAt), database.Time(&t.UpdatedAt))
}

func getTable(ctx context.Context, q Querier, id uuid.UUID) (model.Table, error) {
	var t model.Table
	err := scanTable(q.QueryRowContext(ctx,
		"SELECT "+tableColumns+" FROM seating_tables WHERE id = ?", id), &t)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	return t, err
}

// Create inserts t under t.EventID together with t.Seats seat rows
// numbered from 1.  The caller must be linked to the event; otherwise
// nothing is written and ErrForbidden (or ErrNotFound for a missing
// event) is returned.
func (r *TableRepo) Create(ctx context.Context, userID uuid.UUID, t model.Table) (model.Table, error) {
	if t.Title = strings.TrimSpace(t.Title); t.Title == "" {
		t.Title = "Table 1"
	}
	if t.Shape == "" {
		t.Shape = model.ShapeRound
	}
	now := database.Now()
	t.ID = uuid.New()
	t.CreatedAt, t.UpdatedAt = now, now

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindEvent, t.EventID, ActionUpdate); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO seating_tables ("+tableColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
			t.ID, t.EventID, t.Title, t.Shape, t.Seats, t.X, t.Y, t.Width, t.Height, t.CreatedAt, t.UpdatedAt); err != nil {
			return err
		}
		for n := 1; n <= t.Seats; n++ {
			if err := insertSeat(ctx, tx, seatAround(t, n), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Table{}, err
	}
	return t, nil
}

// seatAround places seat n of t.Seats evenly on the ellipse inscribed in
// the table's bounding box, starting at the top.
func seatAround(t model.Table, n int) model.Seat {
	angle := 2*math.Pi*float64(n-1)/float64(max(t.Seats, 1)) - math.Pi/2
	cx, cy := t.X+t.Width/2, t.Y+t.Height/2
	num := n
	return model.Seat{
		ID:         uuid.New(),
		TableID:    t.ID,
		SeatNumber: &num,
		X:          math.Max(0, cx+t.Width/2*math.Cos(angle)),
		Y:          math.Max(0, cy+t.Height/2*math.Sin(angle)),
	}
}

// ListByEvent returns the event's tables if the caller is linked to it.
func (r *TableRepo) ListByEvent(ctx context.Context, userID, eventID uuid.UUID) ([]model.Table, error) {
	if _, err := Authorize(ctx, r.db, userID, KindEvent, eventID, ActionRead); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tableColumns+" FROM seating_tables WHERE event_id = ? ORDER BY created_at, title", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Table{}
	for rows.Next() {
		var t model.Table
		if err := scanTable(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns a table the caller can reach through its event.
func (r *TableRepo) Get(ctx context.Context, userID, tableID uuid.UUID) (model.Table, error) {
	if _, err := Authorize(ctx, r.db, userID, KindTable, tableID, ActionRead); err != nil {
		return model.Table{}, err
	}
	return getTable(ctx, r.db, tableID)
}

// TablePatch holds the table fields a caller may change.  Nil fields are
// left untouched.
type TablePatch struct {
	Title  *string
	Shape  *string
	Seats  *int
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
}

// Update applies p to the table.  Growing Seats appends seat rows;
// shrinking removes free seats, highest number first, and fails with
// ErrConflict when not enough seats are free.
func (r *TableRepo) Update(ctx context.Context, userID, tableID uuid.UUID, p TablePatch) (model.Table, error) {
	var t model.Table
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindTable, tableID, ActionUpdate); err != nil {
			return err
		}
		var err error
		if t, err = getTable(ctx, tx, tableID); err != nil {
			return err
		}
		if p.Title != nil {
			t.Title = strings.TrimSpace(*p.Title)
		}
		if p.Shape != nil {
			t.Shape = *p.Shape
		}
		if p.X != nil {
			t.X = *p.X
		}
		if p.Y != nil {
			t.Y = *p.Y
		}
		if p.Width != nil {
			t.Width = *p.Width
		}
		if p.Height != nil {
			t.Height = *p.Height
		}
		now := database.Now()
		if p.Seats != nil && *p.Seats != t.Seats {
			if err := resizeSeats(ctx, tx, t, *p.Seats, now); err != nil {
				return err
			}
			t.Seats = *p.Seats
		}
		t.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE seating_tables
			 SET title = ?, shape = ?, seats = ?, x = ?, y = ?, width = ?, height = ?, updated_at = ?
			 WHERE id = ?`,
			t.Title, t.Shape, t.Seats, t.X, t.Y, t.Width, t.Height, t.UpdatedAt, t.ID)
		return err
	})
	if err != nil {
		return model.Table{}, err
	}
	return t, nil
}

func resizeSeats(ctx context.Context, tx *sql.Tx, t model.Table, want int, now time.Time) error {
	var have, top int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(seat_number), 0) FROM seats WHERE table_id = ?`, t.ID).
		Scan(&have, &top); err != nil {
		return err
	}

	if want > have {
		grown := t
		grown.Seats = want
		for n := have + 1; n <= want; n++ {
			s := seatAround(grown, n)
			top++
			*s.SeatNumber = top
			if err := insertSeat(ctx, tx, s, now); err != nil {
				return err
			}
		}
		return nil
	}

	drop := have - want
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM seats WHERE table_id = ? AND guest_id IS NULL
		 ORDER BY seat_number DESC, created_at DESC LIMIT ?`, t.ID, drop)
	if err != nil {
		return err
	}
	var free []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		free = append(free, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(free) < drop {
		return fmt.Errorf("table %s: only %d of %d seats to remove are free: %w", t.ID, len(free), drop, ErrConflict)
	}
	for _, id := range free {
		if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the table and its seats.  Guests seated there stay on
// the guest list.
func (r *TableRepo) Delete(ctx context.Context, userID, tableID uuid.UUID) (model.Table, error) {
	var t model.Table
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := Authorize(ctx, tx, userID, KindTable, tableID, ActionDelete); err != nil {
			return err
		}
		var err error
		if t, err = getTable(ctx, tx, tableID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE table_id = ?`, tableID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM seating_tables WHERE id = ?`, tableID)
		return err
	})
	if err != nil {
		return model.Table{}, err
	}
	return t, nil
}
