package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/model"
)

// ErrEmailRequired is returned by Register when the verified identity
// carries no email address.
var ErrEmailRequired = errors.New("identity has no email address")

const userColumns = `id, firebase_uid, email, full_name, created_at, updated_at`

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func scanUser(s scanner, u *model.User) error {
	return s.Scan(&u.ID, &u.FirebaseUID, &u.Email, &u.FullName,
		database.Time(&u.CreatedAt), database.Time(&u.UpdatedAt))
}

// Register inserts the user described by verified claims.  Subject and
// email come from the token only.  A duplicate subject or email yields
// ErrConflict and leaves no row behind.
func (r *UserRepo) Register(ctx context.Context, c auth.Claims, fullName string) (model.User, error) {
	if c.Email == nil || strings.TrimSpace(*c.Email) == "" {
		return model.User{}, ErrEmailRequired
	}
	now := database.Now()
	u := model.User{
		ID:          uuid.New(),
		FirebaseUID: c.Subject,
		Email:       normalizeEmail(*c.Email),
		FullName:    strings.TrimSpace(fullName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?)",
		u.ID, u.FirebaseUID, u.Email, u.FullName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("user already registered: %w", ErrConflict)
		}
		return model.User{}, err
	}
	return u, nil
}

// Resolve maps verified claims to the local user.  Both the subject and
// the email must match the same row; anything else is ErrNotRegistered.
func (r *UserRepo) Resolve(ctx context.Context, c auth.Claims) (model.User, error) {
	if c.Email == nil {
		return model.User{}, ErrNotRegistered
	}
	var u model.User
	err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE firebase_uid = ? AND email = ? LIMIT 1",
		c.Subject, normalizeEmail(*c.Email)), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotRegistered
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return getUser(ctx, r.db, "id = ?", id)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return getUser(ctx, r.db, "email = ?", normalizeEmail(email))
}

func getUser(ctx context.Context, q Querier, where string, arg any) (model.User, error) {
	var u model.User
	err := scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user: %w", ErrNotFound)
	}
	return u, err
}

// UserPatch holds the user fields a caller may change.
type UserPatch struct {
	FullName *string
}

// Update applies the set fields of p to the user.
func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, p UserPatch) (model.User, error) {
	var u model.User
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if u, err = getUser(ctx, tx, "id = ?", id); err != nil {
			return err
		}
		if p.FullName != nil {
			u.FullName = strings.TrimSpace(*p.FullName)
		}
		u.UpdatedAt = database.Now()
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET full_name = ?, updated_at = ? WHERE id = ?`,
			u.FullName, u.UpdatedAt, u.ID)
		return err
	})
	return u, err
}

// Delete removes the user and their links.  Events left without any
// linked user are deleted with everything under them, so no event is
// ever unreachable.  Everything happens in one transaction.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) (model.User, []uuid.UUID, error) {
	var (
		u        model.User
		orphaned []uuid.UUID
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if u, err = getUser(ctx, tx, "id = ?", id); err != nil {
			return err
		}

		// events where the user is the last remaining link
		rows, err := tx.QueryContext(ctx,
			`SELECT l.event_id FROM user_event_links l
			 WHERE l.user_id = ?
			   AND NOT EXISTS (SELECT 1 FROM user_event_links o
			                   WHERE o.event_id = l.event_id AND o.user_id <> l.user_id)`,
			id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var eventID uuid.UUID
			if err := rows.Scan(&eventID); err != nil {
				rows.Close()
				return err
			}
			orphaned = append(orphaned, eventID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, eventID := range orphaned {
			if err := deleteEventCascade(ctx, tx, eventID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_event_links WHERE user_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return model.User{}, nil, err
	}
	return u, orphaned, nil
}

// ListByEvent returns the users linked to an event, oldest link first.
func (r *UserRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.User, error) {
	return listUsersByEvent(ctx, r.db, eventID)
}

func listUsersByEvent(ctx context.Context, q Querier, eventID uuid.UUID) ([]model.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT u.id, u.firebase_uid, u.email, u.full_name, u.created_at, u.updated_at
		 FROM users u
		 JOIN user_event_links l ON l.user_id = u.id
		 WHERE l.event_id = ?
		 ORDER BY l.created_at, u.email`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
