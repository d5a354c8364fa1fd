package db

import (
	"fmt"
	"strings"

	"diskmind/internal/alerts"
)

// AlertFilter narrows ListAlerts. Zero values mean no restriction.
type AlertFilter struct {
	DiskID   string
	Severity string
	Type     string
	Unread   bool
	Limit    int
}

// ListAlerts returns alerts newest first.
func (s *Store) ListAlerts(f AlertFilter) ([]alerts.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.DiskID != "" {
		where = append(where, "disk_id = ?")
		args = append(args, f.DiskID)
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.Type != "" {
		where = append(where, "alert_type = ?")
		args = append(args, f.Type)
	}
	if f.Unread {
		where = append(where, "acknowledged = 0")
	}

	query := `SELECT id, scan_id, disk_id, host, timestamp, alert_type, severity,
		attribute, old_value, new_value, message, acknowledged FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []alerts.Record
	for rows.Next() {
		var (
			r     alerts.Record
			ts    string
			typ   string
			sev   string
			acked int
		)
		if err := rows.Scan(&r.ID, &r.ScanID, &r.DiskID, &r.Host, &ts, &typ, &sev,
			&r.Attribute, &r.OldValue, &r.NewValue, &r.Message, &acked); err != nil {
			return nil, err
		}
		r.Timestamp = parseTime(ts)
		r.Type = alerts.Type(typ)
		r.Severity = alerts.Severity(sev)
		r.Acknowledged = acked == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// UnreadSummary counts unacknowledged alerts and reports the highest
// severity among them ("" when there are none). Dashboard-only types are
// not counted.
func (s *Store) UnreadSummary() (int, alerts.Severity, error) {
	rows, err := s.db.Query(`
		SELECT severity, COUNT(*) FROM alerts
		WHERE acknowledged = 0 AND alert_type NOT IN (?, ?)
		GROUP BY severity`,
		string(alerts.TypeStateChange), string(alerts.TypeCumulativeBurst))
	if err != nil {
		return 0, "", fmt.Errorf("count unread alerts: %w", err)
	}
	defer rows.Close()

	var (
		total int
		worst alerts.Severity
	)
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return 0, "", err
		}
		total += n
		if sv := alerts.Severity(sev); worst == "" || sv.Rank() > worst.Rank() {
			worst = sv
		}
	}
	return total, worst, rows.Err()
}

// AcknowledgeAlerts marks alerts as read. No ids acknowledges everything.
func (s *Store) AcknowledgeAlerts(ids ...int64) (int64, error) {
	query := "UPDATE alerts SET acknowledged = 1 WHERE acknowledged = 0"
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += " AND id IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("acknowledge alerts: %w", err)
	}
	return res.RowsAffected()
}
