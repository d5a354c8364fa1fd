package smart

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// allTimeDays is the window length at and beyond which a window is treated
// as unbounded.
const allTimeDays = 36500

// Window restricts which issues are visible. Critical-state attributes are
// always visible; cumulative-event attributes only when they grew inside the
// window.
type Window struct {
	Days   float64
	Deltas map[string]int64
}

// AllTime is the unbounded window used for persisted classification.
var AllTime = Window{}

// IsAllTime reports whether w imposes no restriction.
func (w Window) IsAllTime() bool {
	return w.Days <= 0 || w.Days >= allTimeDays
}

func (w Window) visible(attr string) bool {
	if w.IsAllTime() {
		return true
	}
	if ClassOf(attr) != ClassCumulativeEvent {
		return true
	}
	return w.Deltas[attr] > 0
}

// CheckThreshold reports whether value satisfies rule. Non-numeric values
// and unknown operators never match.
func CheckThreshold(value any, rule Rule) bool {
	v, ok := ParseFloat(value)
	if !ok {
		return false
	}
	switch rule.Op {
	case ">":
		return v > rule.Value
	case ">=":
		return v >= rule.Value
	case "<":
		return v < rule.Value
	case "<=":
		return v <= rule.Value
	case "==":
		return v == rule.Value
	default:
		return false
	}
}

// Issues lists the findings for a reading, SMART failure first, then
// critical rule matches, then warning matches. Within a table attributes are
// visited in name order so the result is deterministic.
func Issues(r Reading, rules RuleSet, w Window) []Issue {
	var issues []Issue

	if smartFailed(r.SmartStatus) {
		issues = append(issues, Issue{Severity: IssueCritical, Text: "SMART Failed"})
	}

	matched := make(map[string]bool)
	for _, attr := range sortedKeys(rules.Critical) {
		if text, ok := evaluate(r, attr, rules.Critical[attr], w); ok {
			matched[attr] = true
			issues = append(issues, Issue{Severity: IssueCritical, Attribute: attr, Text: text})
		}
	}
	for _, attr := range sortedKeys(rules.Warning) {
		if matched[attr] {
			continue
		}
		if text, ok := evaluate(r, attr, rules.Warning[attr], w); ok {
			issues = append(issues, Issue{Severity: IssueWarning, Attribute: attr, Text: text})
		}
	}
	return issues
}

// Classify folds the issues of a reading into one status.
func Classify(r Reading, rules RuleSet, w Window) Status {
	return StatusFromIssues(Issues(r, rules, w))
}

// StatusFromIssues is critical if any issue is critical, warning if any is
// a warning, ok otherwise.
func StatusFromIssues(issues []Issue) Status {
	status := StatusOK
	for _, is := range issues {
		switch is.Severity {
		case IssueCritical:
			return StatusCritical
		case IssueWarning:
			status = StatusWarning
		}
	}
	return status
}

// IssueSummary joins issue texts for display.
func IssueSummary(issues []Issue) string {
	texts := make([]string, 0, len(issues))
	for _, is := range issues {
		texts = append(texts, is.Text)
	}
	return strings.Join(texts, ", ")
}

func smartFailed(status string) bool {
	switch strings.TrimSpace(status) {
	case "", SmartPassed, SmartNA:
		return false
	default:
		return true
	}
}

func evaluate(r Reading, attr string, rule Rule, w Window) (string, bool) {
	if strings.HasPrefix(attr, "_") || IsTemperature(r.DiskType, attr) {
		return "", false
	}
	raw, present := r.Attributes[attr]
	if !present {
		return "", false
	}
	value, ok := Value(r.DiskType, attr, raw)
	if !ok || !CheckThreshold(value, rule) {
		return "", false
	}
	if !w.visible(attr) {
		return "", false
	}
	label := rule.Label
	if label == "" {
		label = attr
	}
	return fmt.Sprintf("%s: %d", label, value), true
}

func sortedKeys(t RuleTable) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WindowDeltas computes, for each attribute, the change in its comparable
// value between the oldest and newest history entry at or after since.
func WindowDeltas(history []HistoryEntry, diskType string, since time.Time) map[string]int64 {
	var inWindow []HistoryEntry
	for _, h := range history {
		if !h.Timestamp.Before(since) {
			inWindow = append(inWindow, h)
		}
	}
	deltas := make(map[string]int64)
	if len(inWindow) < 2 {
		return deltas
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].Timestamp.Before(inWindow[j].Timestamp)
	})

	first, last := inWindow[0], inWindow[len(inWindow)-1]
	for attr, raw := range last.Attributes {
		newV, ok := Value(diskType, attr, raw)
		if !ok {
			continue
		}
		oldV, ok := Value(diskType, attr, first.Attributes[attr])
		if !ok {
			continue
		}
		deltas[attr] = newV - oldV
	}
	return deltas
}
