package database

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestOpen_SQLiteAndCreateSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Options{Driver: DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := CreateSchema(ctx, db); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}
	// second run is a no-op
	if err := CreateSchema(ctx, db); err != nil {
		t.Fatalf("CreateSchema not idempotent: %v", err)
	}

	for _, table := range []string{"users", "events", "user_event_links", "seating_tables", "guests", "seats"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	var fk int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("expected foreign keys enabled, got %d (%v)", fk, err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(Options{User: "app", Pass: "secret", Host: "db", Port: "3306", Name: "wedding"})
	for _, part := range []string{"app:secret@tcp(db:3306)/wedding", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("dsn %q missing %q", dsn, part)
		}
	}
}

func TestTimeScanner(t *testing.T) {
	want := time.Date(2025, 6, 14, 16, 30, 0, 0, time.UTC)
	inputs := []any{
		want,
		want.In(time.FixedZone("CEST", 2*3600)),
		"2025-06-14T16:30:00Z",
		"2025-06-14 16:30:00+00:00",
		"2025-06-14 16:30:00 +0000 UTC",
		[]byte("2025-06-14 16:30:00"),
	}
	for _, in := range inputs {
		var got time.Time
		if err := Time(&got).Scan(in); err != nil {
			t.Errorf("Scan(%v) failed: %v", in, err)
			continue
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("Scan(%v) = %v, want %v", in, got, want)
		}
	}

	var got time.Time
	if err := Time(&got).Scan("not a time"); err == nil {
		t.Error("expected error for garbage input")
	}
	if err := Time(&got).Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}
