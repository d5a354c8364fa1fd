package alerts

import (
	"errors"
	"strconv"
	"time"

	"diskmind/internal/smart"
)

// ErrMissingIdentity is returned for readings without a disk id or serial.
var ErrMissingIdentity = errors.New("reading has no disk identity")

// Type is the persisted alert_type column.
type Type string

const (
	TypeStatusChange    Type = "disk_status_change"
	TypeSmartStatus     Type = "smart_status"
	TypeStateChange     Type = "state_change"
	TypeCumulativeBurst Type = "cumulative_burst"
	TypeTemperature     Type = "temperature"
)

// DashboardOnly reports whether alerts of this type stay out of notifications.
func (t Type) DashboardOnly() bool {
	return t == TypeStateChange || t == TypeCumulativeBurst
}

// Severity of an alert. Recovery sits outside the info/warning/critical
// ranking.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityRecovery Severity = "recovery"
)

// Rank orders info < warning < critical. Recovery and unknown values rank
// as -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return -1
	}
}

// Detail is the type-specific payload of an alert. The set of
// implementations is closed to this package.
type Detail interface {
	Type() Type
	Attribute() string
	OldValue() string
	NewValue() string
	isDetail()
}

// StatusChange is a move between ok, warning and critical.
type StatusChange struct {
	Old    smart.Status
	New    smart.Status
	Reason string
}

func (StatusChange) isDetail() {}

func (StatusChange) Type() Type         { return TypeStatusChange }
func (StatusChange) Attribute() string  { return "" }
func (d StatusChange) OldValue() string { return string(d.Old) }
func (d StatusChange) NewValue() string { return string(d.New) }

// SmartStatusChange is a change of the drive's SMART self-assessment.
type SmartStatusChange struct {
	Old string
	New string
}

func (SmartStatusChange) isDetail() {}

func (SmartStatusChange) Type() Type         { return TypeSmartStatus }
func (SmartStatusChange) Attribute() string  { return "smart_status" }
func (d SmartStatusChange) OldValue() string { return d.Old }
func (d SmartStatusChange) NewValue() string { return d.New }

// StateChange is any change of a critical-state attribute.
type StateChange struct {
	Attr string
	Old  int64
	New  int64
}

func (StateChange) isDetail() {}

func (StateChange) Type() Type          { return TypeStateChange }
func (d StateChange) Attribute() string { return d.Attr }
func (d StateChange) OldValue() string  { return strconv.FormatInt(d.Old, 10) }
func (d StateChange) NewValue() string  { return strconv.FormatInt(d.New, 10) }

// CumulativeBurst is an increase of an event counter.
type CumulativeBurst struct {
	Attr  string
	Delta int64
	Total int64
}

func (CumulativeBurst) isDetail() {}

func (CumulativeBurst) Type() Type          { return TypeCumulativeBurst }
func (d CumulativeBurst) Attribute() string { return d.Attr }
func (d CumulativeBurst) OldValue() string  { return strconv.FormatInt(d.Total-d.Delta, 10) }
func (d CumulativeBurst) NewValue() string  { return strconv.FormatInt(d.Total, 10) }

// Temperature is either a hard ceiling breach or a deviation from the
// rolling baseline. Reference holds the ceiling or the baseline mean.
type Temperature struct {
	Attr      string
	Current   float64
	Reference float64
	Ceiling   bool
}

func (Temperature) isDetail() {}

func (Temperature) Type() Type          { return TypeTemperature }
func (d Temperature) Attribute() string { return d.Attr }
func (d Temperature) OldValue() string  { return formatTemp(d.Reference) }
func (d Temperature) NewValue() string  { return formatTemp(d.Current) }

// Deviation is the distance above the reference.
func (d Temperature) Deviation() float64 { return d.Current - d.Reference }

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Alert is one event produced by the diff engine.
type Alert struct {
	ID        int64
	ScanID    string
	DiskID    string
	Host      string
	Timestamp time.Time
	Severity  Severity
	Message   string
	Detail    Detail
}

// Type returns the alert's type, derived from its detail.
func (a Alert) Type() Type {
	if a.Detail == nil {
		return ""
	}
	return a.Detail.Type()
}

// Record flattens an alert into its persisted shape.
func (a Alert) Record() Record {
	r := Record{
		ID:        a.ID,
		ScanID:    a.ScanID,
		DiskID:    a.DiskID,
		Host:      a.Host,
		Timestamp: a.Timestamp,
		Severity:  a.Severity,
		Message:   a.Message,
	}
	if a.Detail != nil {
		r.Type = a.Detail.Type()
		r.Attribute = a.Detail.Attribute()
		r.OldValue = a.Detail.OldValue()
		r.NewValue = a.Detail.NewValue()
	}
	return r
}

// Record is an alert as stored and served by the API.
type Record struct {
	ID           int64     `json:"id"`
	ScanID       string    `json:"scan_id,omitempty"`
	DiskID       string    `json:"disk_id"`
	Host         string    `json:"host"`
	Timestamp    time.Time `json:"timestamp"`
	Type         Type      `json:"alert_type"`
	Severity     Severity  `json:"severity"`
	Attribute    string    `json:"attribute,omitempty"`
	OldValue     string    `json:"old_value,omitempty"`
	NewValue     string    `json:"new_value,omitempty"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
}

// Snapshot is the last classified state of a disk.
type Snapshot struct {
	DiskID      string         `json:"disk_id"`
	Host        string         `json:"host"`
	Device      string         `json:"device"`
	Model       string         `json:"model"`
	DiskType    string         `json:"type"`
	SmartStatus string         `json:"smart_status"`
	Attributes  map[string]any `json:"attributes"`
	Status      smart.Status   `json:"status"`
	UpdatedAt   time.Time      `json:"updated_at"`
	// Archived disks are still diffed but hidden from the disk list and
	// never notified. The engine does not change this flag.
	Archived bool `json:"archived"`
}

// Reading rebuilds the reading this snapshot was taken from.
func (s Snapshot) Reading() smart.Reading {
	return smart.Reading{
		DiskID:      s.DiskID,
		Host:        s.Host,
		Device:      s.Device,
		Model:       s.Model,
		DiskType:    s.DiskType,
		SmartStatus: s.SmartStatus,
		Attributes:  s.Attributes,
	}
}
