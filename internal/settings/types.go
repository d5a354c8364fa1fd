package settings

import "time"

// Setting represents a configuration setting in the database.
// ValueType is one of int, bool, string, json or "enum:a,b,c".
type Setting struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingUpdate represents a request to update a setting
type SettingUpdate struct {
	Value string `json:"value"`
}

// NotificationSettings is the structured view of the notifications
// category used by the dashboard.
type NotificationSettings struct {
	MinSeverity     string   `json:"min_severity"`
	IncludeRecovery bool     `json:"include_recovery"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	WebhookURLs     []string `json:"webhook_urls"`
	ThresholdPreset string   `json:"threshold_preset"`
}
