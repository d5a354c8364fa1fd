package settings

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Setting categories and keys.
const (
	CategoryNotifications = "notifications"
	CategoryThresholds    = "thresholds"
	CategorySystem        = "system"

	KeyMinSeverity     = "min_severity"
	KeyIncludeRecovery = "include_recovery"
	KeyCooldownMinutes = "cooldown_minutes"
	KeyWebhookURLs     = "webhook_urls"
	KeyPreset          = "preset"
	KeyHistoryDays     = "history_retention_days"
	KeyAlertDays       = "alert_retention_days"
	KeyCleanupHours    = "cleanup_interval_hours"
)

// DefaultSettings defines the default configuration values
var DefaultSettings = []Setting{
	// Notification policy
	{Category: CategoryNotifications, Key: KeyMinSeverity, Value: "warning", ValueType: "enum:off,info,warning,critical", Description: "Lowest alert severity that is sent (off disables notifications)"},
	{Category: CategoryNotifications, Key: KeyIncludeRecovery, Value: "false", ValueType: "bool", Description: "Also send recovery alerts"},
	{Category: CategoryNotifications, Key: KeyCooldownMinutes, Value: "60", ValueType: "int", Description: "Minutes after a successful notification during which a disk stays quiet"},
	{Category: CategoryNotifications, Key: KeyWebhookURLs, Value: "[]", ValueType: "json", Description: "Endpoints as [!]service:url, a leading ! disables one"},

	// Threshold preset
	{Category: CategoryThresholds, Key: KeyPreset, Value: "backblaze", ValueType: "enum:backblaze,conservative,relaxed", Description: "Threshold preset used for classification"},

	// Retention
	{Category: CategorySystem, Key: KeyHistoryDays, Value: "90", ValueType: "int", Description: "Days to keep per-disk history"},
	{Category: CategorySystem, Key: KeyAlertDays, Value: "365", ValueType: "int", Description: "Days to keep alerts and delivery log"},
	{Category: CategorySystem, Key: KeyCleanupHours, Value: "24", ValueType: "int", Description: "Hours between retention cleanups"},
}

// validateSettingValue validates a value against its expected type
func validateSettingValue(valueType, value string) error {
	switch {
	case valueType == "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("value must be an integer")
		}
		if n < 0 {
			return fmt.Errorf("value must not be negative")
		}
	case valueType == "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("value must be 'true' or 'false'")
		}
	case valueType == "json":
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("value must be valid JSON")
		}
	case strings.HasPrefix(valueType, "enum:"):
		options := strings.Split(strings.TrimPrefix(valueType, "enum:"), ",")
		if !slices.Contains(options, value) {
			return fmt.Errorf("value must be one of %s", strings.Join(options, ", "))
		}
	}
	return nil
}
