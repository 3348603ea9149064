package database

import (
	"database/sql"
	"fmt"
	"time"
)

// layouts accepted from drivers that hand DATETIME columns back as text
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type timestamp struct{ dst *time.Time }

// Time returns a scanner that fills dst from either a time.Time (MySQL with
// parseTime) or a textual timestamp (SQLite).  Results are normalized to UTC.
func Time(dst *time.Time) sql.Scanner { return timestamp{dst: dst} }

func (t timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t.dst = time.Time{}
		return nil
	case time.Time:
		*t.dst = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("database: cannot scan %T into time.Time", src)
}

func (t timestamp) parse(s string) error {
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t.dst = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("database: unrecognized timestamp %q", s)
}

// Now is the timestamp stored on insert/update.  DATETIME has second
// precision in MySQL, so values are truncated before they are written to
// keep what a caller sees identical to what a later read returns.
func Now() time.Time { return time.Now().UTC().Truncate(time.Second) }
