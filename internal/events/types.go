package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// AlertCreated carries one persisted alert.
	AlertCreated EventType = "alert_created"
	// DiskSkipped reports a reading that could not be processed.
	DiskSkipped EventType = "disk_skipped"
	// ScanCompleted closes a scan pass.
	ScanCompleted EventType = "scan_completed"
	// DeliveryFailed reports a notification that did not go through.
	DeliveryFailed EventType = "delivery_failed"
)

// Event is the payload published through the bus. Severity uses the alert
// severity names (info, warning, critical, recovery).
type Event struct {
	Type      EventType `json:"type"`
	Severity  string    `json:"severity,omitempty"`
	ScanID    string    `json:"scan_id,omitempty"`
	Host      string    `json:"host,omitempty"`
	DiskID    string    `json:"disk_id,omitempty"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
