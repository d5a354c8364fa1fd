package db

import (
	"fmt"
	"time"

	"diskmind/internal/notify"
)

// RecordNotification stores one delivery attempt.
func (s *Store) RecordNotification(d notify.Delivery) error {
	_, err := s.db.Exec(`
		INSERT INTO notification_log (alert_id, timestamp, channel, success, error)
		VALUES (?, ?, ?, ?, ?)`,
		d.AlertID, timeString(d.Timestamp), d.Channel, boolToInt(d.Success), d.Error,
	)
	if err != nil {
		return fmt.Errorf("insert notification_log: %w", err)
	}
	return nil
}

// CountSuccessfulNotifications counts successful deliveries for any alert of
// the disk strictly after since.
func (s *Store) CountSuccessfulNotifications(diskID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM notification_log nl
		JOIN alerts a ON a.id = nl.alert_id
		WHERE a.disk_id = ? AND nl.success = 1 AND nl.timestamp > ?`,
		diskID, timeString(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications for %s: %w", diskID, err)
	}
	return n, nil
}

// ChannelStatus is the most recent delivery outcome of one channel.
type ChannelStatus struct {
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookStatus returns the latest attempt for every channel that has one.
func (s *Store) WebhookStatus() ([]ChannelStatus, error) {
	rows, err := s.db.Query(`
		SELECT nl.channel, nl.success, nl.error, nl.timestamp
		FROM notification_log nl
		JOIN (SELECT channel, MAX(id) AS id FROM notification_log GROUP BY channel) latest
		  ON latest.id = nl.id
		ORDER BY nl.channel`)
	if err != nil {
		return nil, fmt.Errorf("query webhook status: %w", err)
	}
	defer rows.Close()

	var out []ChannelStatus
	for rows.Next() {
		var (
			cs      ChannelStatus
			success int
			ts      string
		)
		if err := rows.Scan(&cs.Channel, &success, &cs.Error, &ts); err != nil {
			return nil, err
		}
		cs.Success = success == 1
		cs.Timestamp = parseTime(ts)
		out = append(out, cs)
	}
	return out, rows.Err()
}
