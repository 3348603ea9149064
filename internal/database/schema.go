package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.  Safe to call
// multiple times; statements use IF NOT EXISTS and run one at a time because
// the MySQL driver rejects multi-statement strings.  The DDL sticks to the
// subset MySQL and SQLite share.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) NOT NULL PRIMARY KEY,
		firebase_uid VARCHAR(128) NOT NULL UNIQUE,
		email VARCHAR(320) NOT NULL UNIQUE,
		full_name VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id CHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	// a row here is the only fact that grants a user access to an event
	`CREATE TABLE IF NOT EXISTS user_event_links (
		user_id CHAR(36) NOT NULL,
		event_id CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, event_id),
		FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS seating_tables (
		id CHAR(36) NOT NULL PRIMARY KEY,
		event_id CHAR(36) NOT NULL,
		title VARCHAR(255) NOT NULL,
		shape VARCHAR(32) NOT NULL,
		seats INT NOT NULL,
		x DOUBLE NOT NULL,
		y DOUBLE NOT NULL,
		width DOUBLE NOT NULL,
		height DOUBLE NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS guests (
		id CHAR(36) NOT NULL PRIMARY KEY,
		event_id CHAR(36) NOT NULL,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		email VARCHAR(320) NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		id CHAR(36) NOT NULL PRIMARY KEY,
		table_id CHAR(36) NOT NULL,
		seat_number INT NULL,
		x DOUBLE NOT NULL,
		y DOUBLE NOT NULL,
		guest_id CHAR(36) NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (table_id) REFERENCES seating_tables (id) ON DELETE CASCADE,
		FOREIGN KEY (guest_id) REFERENCES guests (id) ON DELETE SET NULL
	)`,
}
