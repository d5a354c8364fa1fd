package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"diskmind/internal/alerts"
	"diskmind/internal/smart"
)

// WithDisk runs fn in a single transaction. The transaction commits only if
// fn returns nil.
func (s *Store) WithDisk(ctx context.Context, diskID string, fn func(tx alerts.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", diskID, err)
	}
	defer tx.Rollback()

	if err := fn(&diskTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", diskID, err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type diskTx struct {
	tx *sql.Tx
}

func (t *diskTx) Snapshot(diskID string) (*alerts.Snapshot, error) {
	return getSnapshot(t.tx, diskID)
}

func (t *diskTx) InsertSnapshot(snap alerts.Snapshot) error {
	attrs, err := encodeAttributes(snap.Attributes)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(`
		INSERT INTO disk_status (disk_id, host, device, model, disk_type, smart_status, attributes, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.DiskID, snap.Host, snap.Device, snap.Model, snap.DiskType,
		snap.SmartStatus, attrs, string(snap.Status), timeString(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert disk_status %s: %w", snap.DiskID, err)
	}
	return nil
}

func (t *diskTx) UpdateSnapshot(snap alerts.Snapshot) error {
	attrs, err := encodeAttributes(snap.Attributes)
	if err != nil {
		return err
	}
	res, err := t.tx.Exec(`
		UPDATE disk_status
		SET host = ?, device = ?, model = ?, disk_type = ?, smart_status = ?,
		    attributes = ?, status = ?, updated_at = ?
		WHERE disk_id = ?`,
		snap.Host, snap.Device, snap.Model, snap.DiskType, snap.SmartStatus,
		attrs, string(snap.Status), timeString(snap.UpdatedAt), snap.DiskID,
	)
	if err != nil {
		return fmt.Errorf("update disk_status %s: %w", snap.DiskID, err)
	}
	return expectOneRow(res, "update disk_status "+snap.DiskID)
}

func (t *diskTx) InsertAlert(a *alerts.Alert) error {
	r := a.Record()
	res, err := t.tx.Exec(`
		INSERT INTO alerts (scan_id, disk_id, host, timestamp, alert_type, severity, attribute, old_value, new_value, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ScanID, r.DiskID, r.Host, timeString(r.Timestamp), string(r.Type), string(r.Severity),
		r.Attribute, r.OldValue, r.NewValue, r.Message,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("alert id: %w", err)
	}
	a.ID = id
	return nil
}

func (t *diskTx) History(diskID string, since time.Time) ([]smart.HistoryEntry, error) {
	return history(t.tx, diskID, since)
}

func (t *diskTx) AppendHistory(diskID string, e smart.HistoryEntry) error {
	attrs, err := encodeAttributes(e.Attributes)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(
		`INSERT INTO disk_history (disk_id, attributes, timestamp) VALUES (?, ?, ?)`,
		diskID, attrs, timeString(e.Timestamp),
	); err != nil {
		return fmt.Errorf("insert disk_history %s: %w", diskID, err)
	}
	return nil
}

// ── Reads outside a unit of work ─────────────────────────────────────────────

// GetSnapshot returns nil, nil for unknown disks.
func (s *Store) GetSnapshot(diskID string) (*alerts.Snapshot, error) {
	return getSnapshot(s.db, diskID)
}

// ListSnapshots returns every known disk ordered by host and device.
func (s *Store) ListSnapshots() ([]alerts.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT disk_id, host, device, model, disk_type, smart_status, attributes, status, updated_at, archived
		FROM disk_status
		ORDER BY host, device, disk_id`)
	if err != nil {
		return nil, fmt.Errorf("query disk_status: %w", err)
	}
	defer rows.Close()

	var out []alerts.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

// SetArchived hides a disk from the listing or brings it back. Unknown
// disks return sql.ErrNoRows.
func (s *Store) SetArchived(diskID string, archived bool) error {
	res, err := s.db.Exec(`UPDATE disk_status SET archived = ? WHERE disk_id = ?`, boolToInt(archived), diskID)
	if err != nil {
		return fmt.Errorf("archive %s: %w", diskID, err)
	}
	return expectOneRow(res, "archive "+diskID)
}

// ArchivedDisks returns the ids of every archived disk.
func (s *Store) ArchivedDisks() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT disk_id FROM disk_status WHERE archived = 1`)
	if err != nil {
		return nil, fmt.Errorf("query archived disks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// History returns a disk's entries at or after since, oldest first.
func (s *Store) History(diskID string, since time.Time) ([]smart.HistoryEntry, error) {
	return history(s.db, diskID, since)
}

type scanner interface {
	Scan(dest ...any) error
}

func getSnapshot(q querier, diskID string) (*alerts.Snapshot, error) {
	row := q.QueryRow(`
		SELECT disk_id, host, device, model, disk_type, smart_status, attributes, status, updated_at, archived
		FROM disk_status WHERE disk_id = ?`, diskID)
	snap, err := scanSnapshot(row)
	if isNoRows(err) {
		return nil, nil
	}
	return snap, err
}

func scanSnapshot(row scanner) (*alerts.Snapshot, error) {
	var (
		snap      alerts.Snapshot
		attrs     string
		status    string
		updatedAt string
		archived  int
	)
	if err := row.Scan(&snap.DiskID, &snap.Host, &snap.Device, &snap.Model, &snap.DiskType,
		&snap.SmartStatus, &attrs, &status, &updatedAt, &archived); err != nil {
		return nil, err
	}
	decoded, err := decodeAttributes(attrs)
	if err != nil {
		return nil, fmt.Errorf("disk %s: %w", snap.DiskID, err)
	}
	snap.Attributes = decoded
	snap.Status = smart.Status(status)
	snap.UpdatedAt = parseTime(updatedAt)
	snap.Archived = archived == 1
	return &snap, nil
}

func history(q querier, diskID string, since time.Time) ([]smart.HistoryEntry, error) {
	var from string
	if !since.IsZero() {
		from = timeString(since)
	}
	rows, err := q.Query(`
		SELECT attributes, timestamp FROM disk_history
		WHERE disk_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC`, diskID, from)
	if err != nil {
		return nil, fmt.Errorf("query disk_history %s: %w", diskID, err)
	}
	defer rows.Close()

	var out []smart.HistoryEntry
	for rows.Next() {
		var attrs, ts string
		if err := rows.Scan(&attrs, &ts); err != nil {
			return nil, err
		}
		decoded, err := decodeAttributes(attrs)
		if err != nil {
			// A corrupt row only loses itself.
			continue
		}
		out = append(out, smart.HistoryEntry{Attributes: decoded, Timestamp: parseTime(ts)})
	}
	return out, rows.Err()
}
