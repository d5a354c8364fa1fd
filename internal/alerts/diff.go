package alerts

import (
	"fmt"
	"math"
	"time"

	"diskmind/internal/smart"
)

// Temperature limits. The ceilings are fixed: thermal damage does not depend
// on what the disk has been running at.
const (
	ATACeilingC  = 55.0
	NVMeCeilingC = 70.0

	BaselineWindow  = 14 * 24 * time.Hour
	MinBaselineSpan = 7 * 24 * time.Hour

	deviationInfo     = 8.0
	deviationWarning  = 12.0
	deviationCritical = 18.0
)

// noIssuesReason is shown when a disk's status changed but nothing is wrong
// any more.
const noIssuesReason = "no active issues"

// Change is a detail together with the severity it was raised at.
type Change struct {
	Severity Severity
	Detail   Detail
}

// StatusTransition compares the stored and the new classification.
func StatusTransition(prev, next smart.Status, issues []smart.Issue) (Change, bool) {
	if prev == next {
		return Change{}, false
	}
	reason := smart.IssueSummary(issues)
	if reason == "" {
		reason = noIssuesReason
	}
	sev := SeverityRecovery
	if next.Rank() > prev.Rank() {
		sev = Severity(next)
	}
	return Change{Severity: sev, Detail: StatusChange{Old: prev, New: next, Reason: reason}}, true
}

// SmartTransition reports a drive entering FAILED or leaving it for PASSED.
// Nothing is reported without a previous SMART status.
func SmartTransition(prev, next string) (Change, bool) {
	if prev == "" || prev == next {
		return Change{}, false
	}
	d := SmartStatusChange{Old: prev, New: next}
	switch {
	case next == smart.SmartFailed:
		return Change{Severity: SeverityCritical, Detail: d}, true
	case prev == smart.SmartFailed && next == smart.SmartPassed:
		return Change{Severity: SeverityRecovery, Detail: d}, true
	default:
		return Change{}, false
	}
}

// StateChanges lists critical-state attributes whose value changed.
// Decreases of monotonic attributes are ignored.
func StateChanges(diskType string, prev, next map[string]any) []Change {
	var changes []Change
	for _, a := range smart.CriticalStateAttributes() {
		name := string(a)
		rawNew, present := next[name]
		if !present {
			continue
		}
		newV, ok := smart.Value(diskType, name, rawNew)
		if !ok {
			continue
		}
		oldV, ok := smart.Value(diskType, name, prev[name])
		if !ok || oldV == newV {
			continue
		}
		if newV < oldV && smart.IsMonotonic(name) {
			continue
		}
		changes = append(changes, Change{
			Severity: SeverityInfo,
			Detail:   StateChange{Attr: name, Old: oldV, New: newV},
		})
	}
	return changes
}

// CumulativeBursts lists event counters that went up.
func CumulativeBursts(diskType string, prev, next map[string]any) []Change {
	var changes []Change
	for _, a := range smart.CumulativeEventAttributes() {
		name := string(a)
		newV, ok := smart.Value(diskType, name, next[name])
		if !ok {
			continue
		}
		oldV, ok := smart.Value(diskType, name, prev[name])
		if !ok {
			continue
		}
		if delta := newV - oldV; delta > 0 {
			changes = append(changes, Change{
				Severity: SeverityInfo,
				Detail:   CumulativeBurst{Attr: name, Delta: delta, Total: newV},
			})
		}
	}
	return changes
}

// CurrentTemperature picks the first temperature attribute present for the
// disk type. Any further temperature attributes are not looked at.
func CurrentTemperature(diskType string, attrs map[string]any) (string, float64, bool) {
	for _, a := range smart.TemperatureAttributes(diskType) {
		raw, present := attrs[string(a)]
		if !present || raw == nil {
			continue
		}
		v, ok := smart.ParseFloat(raw)
		return string(a), v, ok
	}
	return "", 0, false
}

// Ceiling is the hard temperature limit for a disk type.
func Ceiling(diskType string) float64 {
	if smart.IsNVMe(diskType) {
		return NVMeCeilingC
	}
	return ATACeilingC
}

// TemperatureAnomaly checks the current temperature against the ceiling and,
// below it, against the mean of the history. history must already be limited
// to the baseline window.
func TemperatureAnomaly(diskType string, attrs map[string]any, history []smart.HistoryEntry) (Change, bool) {
	attr, current, ok := CurrentTemperature(diskType, attrs)
	if !ok {
		return Change{}, false
	}

	if ceiling := Ceiling(diskType); current >= ceiling {
		return Change{
			Severity: SeverityCritical,
			Detail:   Temperature{Attr: attr, Current: current, Reference: ceiling, Ceiling: true},
		}, true
	}

	if len(history) == 0 {
		return Change{}, false
	}
	earliest, latest := history[0].Timestamp, history[0].Timestamp
	var sum float64
	var n int
	for _, h := range history {
		if h.Timestamp.Before(earliest) {
			earliest = h.Timestamp
		}
		if h.Timestamp.After(latest) {
			latest = h.Timestamp
		}
		if v, ok := smart.ParseFloat(h.Attributes[attr]); ok {
			sum += v
			n++
		}
	}
	if latest.Sub(earliest) < MinBaselineSpan || n == 0 {
		return Change{}, false
	}

	mean := sum / float64(n)
	var sev Severity
	switch dev := current - mean; {
	case dev >= deviationCritical:
		sev = SeverityCritical
	case dev >= deviationWarning:
		sev = SeverityWarning
	case dev >= deviationInfo:
		sev = SeverityInfo
	default:
		return Change{}, false
	}
	return Change{
		Severity: sev,
		Detail:   Temperature{Attr: attr, Current: current, Reference: math.Round(mean*10) / 10},
	}, true
}

// message renders the human text for a change on the given disk.
func message(d Detail, disk string) string {
	switch d := d.(type) {
	case StatusChange:
		return fmt.Sprintf("Disk status: %s → %s (%s) — %s", d.Old, d.New, d.Reason, disk)
	case SmartStatusChange:
		return fmt.Sprintf("SMART status: %s → %s — %s", d.Old, d.New, disk)
	case StateChange:
		return fmt.Sprintf("%s: %d → %d — %s", d.Attr, d.Old, d.New, disk)
	case CumulativeBurst:
		return fmt.Sprintf("%s: +%d (now %d) — %s", d.Attr, d.Delta, d.Total, disk)
	case Temperature:
		if d.Ceiling {
			return fmt.Sprintf("Temperature %s°C at or above %s°C ceiling — %s",
				formatTemp(d.Current), formatTemp(d.Reference), disk)
		}
		return fmt.Sprintf("Temperature %s°C is %s°C above the %d-day average of %s°C — %s",
			formatTemp(d.Current), formatTemp(math.Round(d.Deviation()*10)/10),
			int(BaselineWindow.Hours()/24), formatTemp(d.Reference), disk)
	default:
		return disk
	}
}
