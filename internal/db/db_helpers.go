package db

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ─── Time Helpers ────────────────────────────────────────────────────────────

// Timestamps are stored as UTC text so that string comparison in SQL
// matches chronological order. The fixed-width fraction keeps sub-second
// ordering intact for the cooldown window.
const timeFormat = "2006-01-02 15:04:05.000000"

func timeString(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeFormat, s, time.UTC)
	if err != nil {
		// Rows written by sqlite's CURRENT_TIMESTAMP or RFC 3339 clients.
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2.UTC()
		}
		return time.Time{}
	}
	return t
}

// ─── Type Conversion Helpers ─────────────────────────────────────────────────

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeAttributes serializes an attribute map for a TEXT column.
func encodeAttributes(attrs map[string]any) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

// decodeAttributes keeps numbers as json.Number so 48-bit raw values
// survive without float rounding.
func decodeAttributes(s string) (map[string]any, error) {
	attrs := make(map[string]any)
	if s == "" {
		return attrs, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

// ─── Query Helpers ───────────────────────────────────────────────────────────

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sql.ErrNoRows)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
