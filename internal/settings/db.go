package settings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"diskmind/internal/notify"
)

// ErrNotFound is returned when updating a setting that does not exist.
var ErrNotFound = errors.New("setting not found")

// InitSettingsTable creates the settings table and populates defaults
func InitSettingsTable(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		value_type TEXT DEFAULT 'string',
		description TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(category, key)
	);

	CREATE INDEX IF NOT EXISTS idx_settings_category_key ON settings(category, key);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	insertSQL := `
	INSERT OR IGNORE INTO settings (category, key, value, value_type, description)
	VALUES (?, ?, ?, ?, ?)
	`

	for _, setting := range DefaultSettings {
		if _, err := db.Exec(insertSQL,
			setting.Category,
			setting.Key,
			setting.Value,
			setting.ValueType,
			setting.Description,
		); err != nil {
			return fmt.Errorf("failed to insert default setting %s.%s: %w",
				setting.Category, setting.Key, err)
		}
	}

	return nil
}

const selectSettings = `
	SELECT id, category, key, value, value_type, COALESCE(description, ''), updated_at
	FROM settings`

// GetAllSettings retrieves all settings from the database
func GetAllSettings(db *sql.DB) ([]Setting, error) {
	rows, err := db.Query(selectSettings + ` ORDER BY category, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, *s)
	}

	return settings, rows.Err()
}

// GetSetting retrieves a specific setting by category and key.
// A missing setting is nil, nil.
func GetSetting(db *sql.DB, category, key string) (*Setting, error) {
	row := db.QueryRow(selectSettings+` WHERE category = ? AND key = ?`, category, key)
	s, err := scanSetting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s.%s: %w", category, key, err)
	}
	return s, nil
}

func scanSetting(row interface{ Scan(...any) error }) (*Setting, error) {
	var s Setting
	var updatedAt string
	if err := row.Scan(&s.ID, &s.Category, &s.Key, &s.Value, &s.ValueType, &s.Description, &updatedAt); err != nil {
		return nil, err
	}
	s.UpdatedAt = parseUpdatedAt(updatedAt)
	return &s, nil
}

// parseUpdatedAt accepts sqlite's CURRENT_TIMESTAMP text as well as the
// RFC 3339 form the driver produces for DATETIME columns.
func parseUpdatedAt(s string) time.Time {
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t.UTC()
}

// UpdateSetting validates and stores a new value.
func UpdateSetting(db *sql.DB, category, key, value string) error {
	existing, err := GetSetting(db, category, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%s.%s: %w", category, key, ErrNotFound)
	}

	if err := validateSettingValue(existing.ValueType, value); err != nil {
		return fmt.Errorf("invalid value for %s.%s: %w", category, key, err)
	}

	if _, err := db.Exec(`
		UPDATE settings
		SET value = ?, updated_at = CURRENT_TIMESTAMP
		WHERE category = ? AND key = ?`, value, category, key); err != nil {
		return fmt.Errorf("failed to update setting %s.%s: %w", category, key, err)
	}
	return nil
}

// ResetAllToDefaults resets all settings to their default values
func ResetAllToDefaults(db *sql.DB) error {
	for _, def := range DefaultSettings {
		if err := UpdateSetting(db, def.Category, def.Key, def.Value); err != nil {
			return fmt.Errorf("failed to reset %s.%s: %w", def.Category, def.Key, err)
		}
	}
	return nil
}

// ── Typed getters ───────────────────────────────────────────────────────────

// GetIntSettingWithDefault retrieves a setting as int, returning default if
// missing or malformed.
func GetIntSettingWithDefault(db *sql.DB, category, key string, defaultVal int) int {
	s, err := GetSetting(db, category, key)
	if err != nil || s == nil {
		return defaultVal
	}
	val, err := strconv.Atoi(strings.TrimSpace(s.Value))
	if err != nil {
		return defaultVal
	}
	return val
}

// GetBoolSettingWithDefault retrieves a setting as bool, returning default if not found
func GetBoolSettingWithDefault(db *sql.DB, category, key string, defaultVal bool) bool {
	s, err := GetSetting(db, category, key)
	if err != nil || s == nil {
		return defaultVal
	}
	return s.Value == "true"
}

// GetStringSettingWithDefault retrieves a setting as string, returning default if not found
func GetStringSettingWithDefault(db *sql.DB, category, key, defaultVal string) string {
	s, err := GetSetting(db, category, key)
	if err != nil || s == nil {
		return defaultVal
	}
	return s.Value
}

// ── Runtime views ───────────────────────────────────────────────────────────

// LoadPolicy reads the notification policy.
func LoadPolicy(db *sql.DB) notify.Policy {
	return notify.Policy{
		MinSeverity:     GetStringSettingWithDefault(db, CategoryNotifications, KeyMinSeverity, notify.MinWarning),
		IncludeRecovery: GetBoolSettingWithDefault(db, CategoryNotifications, KeyIncludeRecovery, false),
		CooldownMinutes: GetIntSettingWithDefault(db, CategoryNotifications, KeyCooldownMinutes, 60),
	}
}

// LoadWebhookURLs returns the configured endpoint strings. A malformed
// value yields an empty list.
func LoadWebhookURLs(db *sql.DB) []string {
	raw := GetStringSettingWithDefault(db, CategoryNotifications, KeyWebhookURLs, "[]")
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil
	}
	return urls
}

// SaveWebhookURLs replaces the endpoint list.
func SaveWebhookURLs(db *sql.DB, urls []string) error {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	b, err := json.Marshal(cleaned)
	if err != nil {
		return err
	}
	return UpdateSetting(db, CategoryNotifications, KeyWebhookURLs, string(b))
}

// LoadNotificationSettings assembles the structured notification view.
func LoadNotificationSettings(db *sql.DB) NotificationSettings {
	p := LoadPolicy(db)
	urls := LoadWebhookURLs(db)
	if urls == nil {
		urls = []string{}
	}
	return NotificationSettings{
		MinSeverity:     p.MinSeverity,
		IncludeRecovery: p.IncludeRecovery,
		CooldownMinutes: p.CooldownMinutes,
		WebhookURLs:     urls,
		ThresholdPreset: Preset(db),
	}
}

// SaveNotificationSettings validates and writes every field.
func SaveNotificationSettings(db *sql.DB, ns NotificationSettings) error {
	updates := []struct{ category, key, value string }{
		{CategoryNotifications, KeyMinSeverity, ns.MinSeverity},
		{CategoryNotifications, KeyIncludeRecovery, strconv.FormatBool(ns.IncludeRecovery)},
		{CategoryNotifications, KeyCooldownMinutes, strconv.Itoa(ns.CooldownMinutes)},
	}
	if ns.ThresholdPreset != "" {
		updates = append(updates, struct{ category, key, value string }{CategoryThresholds, KeyPreset, ns.ThresholdPreset})
	}
	// Validate everything first so a bad field leaves the stored policy intact.
	for _, u := range updates {
		if err := validateDefault(u.category, u.key, u.value); err != nil {
			return err
		}
	}
	for _, u := range updates {
		if err := UpdateSetting(db, u.category, u.key, u.value); err != nil {
			return err
		}
	}
	return SaveWebhookURLs(db, ns.WebhookURLs)
}

func validateDefault(category, key, value string) error {
	for _, def := range DefaultSettings {
		if def.Category == category && def.Key == key {
			if err := validateSettingValue(def.ValueType, value); err != nil {
				return fmt.Errorf("invalid value for %s.%s: %w", category, key, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%s.%s: %w", category, key, ErrNotFound)
}

// Preset returns the active threshold preset name.
func Preset(db *sql.DB) string {
	return GetStringSettingWithDefault(db, CategoryThresholds, KeyPreset, "backblaze")
}
