package db

import (
	"database/sql"
	"fmt"
	"log"
)

// Migrate creates the disk, alert and notification tables. Every statement
// is idempotent.
func Migrate(db *sql.DB) error {
	log.Println("📊 Running migration: disk status, history, alerts, notification log")

	statements := []struct {
		label string
		sql   string
	}{
		// ─── disk_status ─────────────────────────────────────────────────
		{"disk_status", `
			CREATE TABLE IF NOT EXISTS disk_status (
				disk_id       TEXT PRIMARY KEY,
				host          TEXT NOT NULL DEFAULT '',
				device        TEXT NOT NULL DEFAULT '',
				model         TEXT NOT NULL DEFAULT '',
				disk_type     TEXT NOT NULL DEFAULT '',
				smart_status  TEXT NOT NULL DEFAULT '',
				attributes    TEXT NOT NULL DEFAULT '{}',
				status        TEXT NOT NULL DEFAULT 'ok',
				updated_at    DATETIME NOT NULL
			);`},
		{"disk_status indexes", `
			CREATE INDEX IF NOT EXISTS idx_disk_status_host ON disk_status(host);`},

		// ─── disk_history ────────────────────────────────────────────────
		{"disk_history", `
			CREATE TABLE IF NOT EXISTS disk_history (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				disk_id     TEXT NOT NULL,
				attributes  TEXT NOT NULL,
				timestamp   DATETIME NOT NULL
			);`},
		{"disk_history indexes", `
			CREATE INDEX IF NOT EXISTS idx_disk_history_disk_time ON disk_history(disk_id, timestamp);`},

		// ─── alerts ──────────────────────────────────────────────────────
		{"alerts", `
			CREATE TABLE IF NOT EXISTS alerts (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				scan_id       TEXT NOT NULL DEFAULT '',
				disk_id       TEXT NOT NULL,
				host          TEXT NOT NULL DEFAULT '',
				timestamp     DATETIME NOT NULL,
				alert_type    TEXT NOT NULL,
				severity      TEXT NOT NULL,
				attribute     TEXT NOT NULL DEFAULT '',
				old_value     TEXT NOT NULL DEFAULT '',
				new_value     TEXT NOT NULL DEFAULT '',
				message       TEXT NOT NULL,
				acknowledged  INTEGER NOT NULL DEFAULT 0
			);`},
		{"alerts indexes", `
			CREATE INDEX IF NOT EXISTS idx_alerts_disk      ON alerts(disk_id);
			CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
			CREATE INDEX IF NOT EXISTS idx_alerts_unread    ON alerts(acknowledged);`},

		// ─── notification_log ────────────────────────────────────────────
		{"notification_log", `
			CREATE TABLE IF NOT EXISTS notification_log (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				alert_id   INTEGER NOT NULL,
				timestamp  DATETIME NOT NULL,
				channel    TEXT NOT NULL,
				success    INTEGER NOT NULL,
				error      TEXT NOT NULL DEFAULT ''
			);`},
		{"notification_log indexes", `
			CREATE INDEX IF NOT EXISTS idx_notification_log_alert   ON notification_log(alert_id);
			CREATE INDEX IF NOT EXISTS idx_notification_log_channel ON notification_log(channel, timestamp);`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("migration %s: %w", s.label, err)
		}
		log.Printf("  ✓ %s", s.label)
	}

	if err := addColumn(db, "disk_status", "archived", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

// addColumn adds a column unless the table already has it.
func addColumn(db *sql.DB, table, column, decl string) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("migration %s.%s: %w", table, column, err)
	}
	log.Printf("  ✓ %s.%s", table, column)
	return nil
}
