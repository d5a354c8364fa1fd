package alerts

import (
	"context"
	"time"

	"diskmind/internal/smart"
)

// Tx is the store view available while one disk is being processed.
type Tx interface {
	// Snapshot returns nil, nil when the disk has never been seen.
	Snapshot(diskID string) (*Snapshot, error)
	InsertSnapshot(s Snapshot) error
	UpdateSnapshot(s Snapshot) error
	// InsertAlert persists a and sets a.ID.
	InsertAlert(a *Alert) error
	// History returns entries at or after since, oldest first.
	History(diskID string, since time.Time) ([]smart.HistoryEntry, error)
	AppendHistory(diskID string, e smart.HistoryEntry) error
}

// UnitOfWork runs fn in one transaction scoped to a single disk. Returning
// an error from fn rolls back every write made through tx.
type UnitOfWork interface {
	WithDisk(ctx context.Context, diskID string, fn func(tx Tx) error) error
}
