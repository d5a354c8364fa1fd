package db

import (
	"fmt"
	"time"
)

// PruneResult reports how many rows each table lost.
type PruneResult struct {
	History       int64
	Alerts        int64
	Notifications int64
}

// Prune deletes history older than historyBefore, and alerts plus their
// notification log rows older than alertsBefore. A zero time skips that
// table.
func (s *Store) Prune(historyBefore, alertsBefore time.Time) (PruneResult, error) {
	var res PruneResult

	if !historyBefore.IsZero() {
		r, err := s.db.Exec(`DELETE FROM disk_history WHERE timestamp < ?`, timeString(historyBefore))
		if err != nil {
			return res, fmt.Errorf("prune disk_history: %w", err)
		}
		res.History, _ = r.RowsAffected()
	}

	if !alertsBefore.IsZero() {
		cutoff := timeString(alertsBefore)
		r, err := s.db.Exec(`DELETE FROM notification_log WHERE timestamp < ?`, cutoff)
		if err != nil {
			return res, fmt.Errorf("prune notification_log: %w", err)
		}
		res.Notifications, _ = r.RowsAffected()

		r, err = s.db.Exec(`DELETE FROM alerts WHERE timestamp < ?`, cutoff)
		if err != nil {
			return res, fmt.Errorf("prune alerts: %w", err)
		}
		res.Alerts, _ = r.RowsAffected()
	}
	return res, nil
}
