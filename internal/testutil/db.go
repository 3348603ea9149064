// Package testutil holds helpers shared by package tests: an in-memory
// database carrying the production schema and a Firebase-style token
// issuer.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/model"
)

// OpenTestDB returns a fresh in-memory SQLite database with the schema
// applied.  It is closed when the test ends.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.CreateSchema(ctx, db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

// InsertUser writes a registered user row directly.
func InsertUser(t *testing.T, db *sql.DB, subject, email, fullName string) model.User {
	t.Helper()
	now := database.Now()
	u := model.User{
		ID:          uuid.New(),
		FirebaseUID: subject,
		Email:       email,
		FullName:    fullName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := db.Exec(
		`INSERT INTO users (id, firebase_uid, email, full_name, created_at, updated_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.FirebaseUID, u.Email, u.FullName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		t.Fatalf("insert user %s: %v", email, err)
	}
	return u
}

// Count returns SELECT COUNT(*) for the given table and optional where
// clause.
func Count(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
