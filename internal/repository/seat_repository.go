package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/model"
)

const seatColumns = `id, table_id, seat_number, x, y, guest_id, created_at, updated_at`

// SeatRepo stores seats and guest assignments.
type SeatRepo struct{ db *sql.DB }

func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

func scanSeat(s scanner, seat *model.Seat) error {
	var number sql.NullInt64
	if err := s.Scan(&seat.ID, &seat.TableID, &number, &seat.X, &seat.Y, &seat.GuestID,
		database.Time(&seat.CreatedAt), database.Time(&seat.UpdatedAt)); err != nil {
		return err
	}
	seat.SeatNumber = nil
	if number.Valid {
		n := int(number.Int64)
		seat.SeatNumber = &n
	}
	return nil
}

func getSeat(ctx context.Context, q Querier, id uuid.UUID) (model.Seat, error) {
	var s model.Seat
	err := scanSeat(q.QueryRowContext(ctx,
		"SELECT "+seatColumns+" FROM seats WHERE id = ?", id), &s)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, fmt.Errorf("seat %s: %w", id, ErrNotFound)
	}
	return s, err
}

func insertSeat(ctx context.Context, q Querier, s model.Seat, now time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO seats ("+seatColumns+") VALUES (?,?,?,?,?,?,?,?)",
		s.ID, s.TableID, s.SeatNumber, s.X, s.Y, s.GuestID, now, now)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("guest already seated: %w", ErrConflict)
	}
	return err
}

// checkGuestFree verifies guestID belongs to eventID and holds no seat
// other than exceptSeat.
func checkGuestFree(ctx context.Context, q Querier, guestID, eventID, exceptSeat uuid.UUID) error {
	var guestEvent uuid.UUID
	err := q.QueryRowContext(ctx, `SELECT event_id FROM guests WHERE id = ?`, guestID).Scan(&guestEvent)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("guest %s: %w", guestID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if guestEvent != eventID {
		return fmt.Errorf("guest %s belongs to another event: %w", guestID, ErrForbidden)
	}

	var taken uuid.UUID
	err = q.QueryRowContext(ctx,
		`SELECT id FROM seats WHERE guest_id = ? AND id <> ?`, guestID, exceptSeat).Scan(&taken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("guest %s already holds seat %s: %w", guestID, taken, ErrConflict)
}

// Create adds a seat to a table and bumps the table's seat count.
func (r *SeatRepo) Create(ctx context.Context, userID uuid.UUID, s model.Seat) (model.Seat, error) {
	now := database.Now()
	s.ID = uuid.New()
	s.CreatedAt, s.UpdatedAt = now, now

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		eventID, err := Authorize(ctx, tx, userID, KindTable, s.TableID, ActionUpdate)
		if err != nil {
			return err
		}
		s.EventID = eventID
		if s.GuestID.Valid {
			if err := checkGuestFree(ctx, tx, s.GuestID.UUID, eventID, s.ID); err != nil {
				return err
			}
		}
		if err := insertSeat(ctx, tx, s, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE seating_tables SET seats = seats + 1, updated_at = ? WHERE id = ?`, now, s.TableID)
		return err
	})
	if err != nil {
		return model.Seat{}, err
	}
	return s, nil
}

// ListByTable returns a table's seats in seat-number order.
func (r *SeatRepo) ListByTable(ctx context.Context, userID, tableID uuid.UUID) ([]model.Seat, error) {
	if _, err := Authorize(ctx, r.db, userID, KindTable, tableID, ActionRead); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+seatColumns+" FROM seats WHERE table_id = ? ORDER BY seat_number, created_at", tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Seat{}
	for rows.Next() {
		var s model.Seat
		if err := scanSeat(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns a seat the caller can reach through its table's event.
func (r *SeatRepo) Get(ctx context.Context, userID, seatID uuid.UUID) (model.Seat, error) {
	if _, err := Authorize(ctx, r.db, userID, KindSeat, seatID, ActionRead); err != nil {
		return model.Seat{}, err
	}
	return getSeat(ctx, r.db, seatID)
}

// SeatPatch holds the seat fields a caller may change.  GuestSet marks
// GuestID as present in the request, which lets an explicit null free the
// seat.
type SeatPatch struct {
	SeatNumber *int
	X          *float64
	Y          *float64
	GuestSet   bool
	GuestID    uuid.NullUUID
}

// Update applies p to the seat.  An assigned guest must be on the same
// event's guest list (ErrForbidden otherwise) and may hold only one seat
// (ErrConflict).
func (r *SeatRepo) Update(ctx context.Context, userID, seatID uuid.UUID, p SeatPatch) (model.Seat, error) {
	var s model.Seat
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		eventID, err := Authorize(ctx, tx, userID, KindSeat, seatID, ActionUpdate)
		if err != nil {
			return err
		}
		if s, err = getSeat(ctx, tx, seatID); err != nil {
			return err
		}
		s.EventID = eventID
		if p.SeatNumber != nil {
			n := *p.SeatNumber
			s.SeatNumber = &n
		}
		if p.X != nil {
			s.X = *p.X
		}
		if p.Y != nil {
			s.Y = *p.Y
		}
		if p.GuestSet {
			if p.GuestID.Valid {
				if err := checkGuestFree(ctx, tx, p.GuestID.UUID, eventID, s.ID); err != nil {
					return err
				}
			}
			s.GuestID = p.GuestID
		}
		s.UpdatedAt = database.Now()
		_, err = tx.ExecContext(ctx,
			`UPDATE seats SET seat_number = ?, x = ?, y = ?, guest_id = ?, updated_at = ? WHERE id = ?`,
			s.SeatNumber, s.X, s.Y, s.GuestID, s.UpdatedAt, s.ID)
		if err != nil && isUniqueViolation(err) {
			return fmt.Errorf("guest already seated: %w", ErrConflict)
		}
		return err
	})
	if err != nil {
		return model.Seat{}, err
	}
	return s, nil
}

// Delete removes the seat and lowers the table's seat count.
func (r *SeatRepo) Delete(ctx context.Context, userID, seatID uuid.UUID) (model.Seat, error) {
	var s model.Seat
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		eventID, err := Authorize(ctx, tx, userID, KindSeat, seatID, ActionDelete)
		if err != nil {
			return err
		}
		if s, err = getSeat(ctx, tx, seatID); err != nil {
			return err
		}
		s.EventID = eventID
		if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, seatID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE seating_tables SET seats = seats - 1, updated_at = ? WHERE id = ? AND seats > 0`,
			database.Now(), s.TableID)
		return err
	})
	if err != nil {
		return model.Seat{}, err
	}
	return s, nil
}
