package smart

import (
	"strings"
	"time"
)

// Reading is one SMART snapshot of a single disk as reported by a host.
type Reading struct {
	DiskID      string         `json:"disk_id"`
	Serial      string         `json:"serial"`
	Host        string         `json:"host"`
	Device      string         `json:"device"`
	Model       string         `json:"model"`
	DiskType    string         `json:"type"`
	SmartStatus string         `json:"smart_status"`
	Attributes  map[string]any `json:"attributes"`
}

// Identity returns the disk id, falling back to the serial number.
func (r Reading) Identity() string {
	if id := strings.TrimSpace(r.DiskID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Serial)
}

// Label is the human description used in alert messages.
func (r Reading) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Host, r.Device, r.Model} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return r.Identity()
	}
	return strings.Join(parts, " ")
}

// IsNVMe reports whether a disk type string denotes an NVMe device.
// Everything else is treated as ATA-family (ATA, SAT, SCSI, ...).
func IsNVMe(diskType string) bool {
	return strings.EqualFold(strings.TrimSpace(diskType), "nvme")
}

// SMART status values with special meaning to the classifier.
const (
	SmartPassed = "PASSED"
	SmartFailed = "FAILED"
	SmartNA     = "N/A"
)

// Status is the overall health classification of a disk.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Rank orders statuses ok < warning < critical.
func (s Status) Rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Rule is a single threshold comparison.
type Rule struct {
	Op    string  `json:"op" yaml:"op"`
	Value float64 `json:"value" yaml:"value"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// RuleTable maps attribute name to rule.
type RuleTable map[string]Rule

// RuleSet holds the critical and warning tables for one disk type.
type RuleSet struct {
	Critical RuleTable `json:"critical" yaml:"critical"`
	Warning  RuleTable `json:"warning" yaml:"warning"`
}

// Thresholds is the full rule configuration, split by disk type.
type Thresholds struct {
	ATA  RuleSet `json:"ata" yaml:"ata"`
	NVMe RuleSet `json:"nvme" yaml:"nvme"`
}

// ForType picks the rule set for a disk type.
func (t Thresholds) ForType(diskType string) RuleSet {
	if IsNVMe(diskType) {
		return t.NVMe
	}
	return t.ATA
}

// Issue severities.
const (
	IssueCritical = "critical"
	IssueWarning  = "warning"
)

// Issue is one finding of the classifier. Attribute is empty for a SMART
// self-assessment failure.
type Issue struct {
	Severity  string `json:"severity"`
	Attribute string `json:"attribute,omitempty"`
	Text      string `json:"text"`
}

// HistoryEntry is one archived reading of a disk.
type HistoryEntry struct {
	Attributes map[string]any `json:"attributes"`
	Timestamp  time.Time      `json:"timestamp"`
}
