package alerts

import (
	"context"
	"fmt"
	"time"

	"diskmind/internal/smart"
)

// Engine diffs readings against stored snapshots and raises alerts.
// Runs for the same disk are serialized; different disks do not block each
// other.
type Engine struct {
	store UnitOfWork
	locks *diskLocks
	now   func() time.Time
}

// NewEngine creates an engine backed by store.
func NewEngine(store UnitOfWork) *Engine {
	return &Engine{
		store: store,
		locks: newDiskLocks(),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run processes one reading: loads the disk's snapshot, computes alerts,
// persists them and replaces the snapshot, all in one unit of work. The
// first reading of a disk only creates its snapshot.
func (e *Engine) Run(ctx context.Context, r smart.Reading, th smart.Thresholds, scanID string) ([]Alert, error) {
	diskID := r.Identity()
	if diskID == "" {
		return nil, ErrMissingIdentity
	}

	unlock := e.locks.lock(diskID)
	defer unlock()

	now := e.now().UTC()
	issues := smart.Issues(r, th.ForType(r.DiskType), smart.AllTime)
	status := smart.StatusFromIssues(issues)

	next := Snapshot{
		DiskID:      diskID,
		Host:        r.Host,
		Device:      r.Device,
		Model:       r.Model,
		DiskType:    r.DiskType,
		SmartStatus: r.SmartStatus,
		Attributes:  r.Attributes,
		Status:      status,
		UpdatedAt:   now,
	}
	entry := smart.HistoryEntry{Attributes: r.Attributes, Timestamp: now}

	var created []Alert
	err := e.store.WithDisk(ctx, diskID, func(tx Tx) error {
		created = nil

		prev, err := tx.Snapshot(diskID)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if prev == nil {
			if err := tx.InsertSnapshot(next); err != nil {
				return fmt.Errorf("insert snapshot: %w", err)
			}
			return tx.AppendHistory(diskID, entry)
		}

		changes, err := e.diff(tx, prev, r, issues, status, now)
		if err != nil {
			return err
		}

		label := r.Label()
		for _, c := range changes {
			a := Alert{
				ScanID:    scanID,
				DiskID:    diskID,
				Host:      r.Host,
				Timestamp: now,
				Severity:  c.Severity,
				Message:   message(c.Detail, label),
				Detail:    c.Detail,
			}
			if err := tx.InsertAlert(&a); err != nil {
				return fmt.Errorf("insert %s alert: %w", a.Type(), err)
			}
			created = append(created, a)
		}

		if err := tx.UpdateSnapshot(next); err != nil {
			return fmt.Errorf("update snapshot: %w", err)
		}
		if err := tx.AppendHistory(diskID, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("disk %s: %w", diskID, err)
	}
	return created, nil
}

// diff emits changes in a fixed order: status, SMART status, state
// changes, bursts, temperature.
func (e *Engine) diff(tx Tx, prev *Snapshot, r smart.Reading, issues []smart.Issue, status smart.Status, now time.Time) ([]Change, error) {
	var changes []Change

	if c, ok := StatusTransition(prev.Status, status, issues); ok {
		changes = append(changes, c)
	}
	if c, ok := SmartTransition(prev.SmartStatus, r.SmartStatus); ok {
		changes = append(changes, c)
	}
	changes = append(changes, StateChanges(r.DiskType, prev.Attributes, r.Attributes)...)
	changes = append(changes, CumulativeBursts(r.DiskType, prev.Attributes, r.Attributes)...)

	if _, current, ok := CurrentTemperature(r.DiskType, r.Attributes); ok {
		var history []smart.HistoryEntry
		if current < Ceiling(r.DiskType) {
			h, err := tx.History(r.Identity(), now.Add(-BaselineWindow))
			if err != nil {
				return nil, fmt.Errorf("load history: %w", err)
			}
			history = h
		}
		if c, ok := TemperatureAnomaly(r.DiskType, r.Attributes, history); ok {
			changes = append(changes, c)
		}
	}
	return changes, nil
}
