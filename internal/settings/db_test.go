package settings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := InitSettingsTable(db); err != nil {
		t.Fatalf("Failed to initialize settings table: %v", err)
	}
	return db
}

func TestInitSettingsTable(t *testing.T) {
	db := setupTestDB(t)

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM settings").Scan(&count); err != nil {
		t.Fatalf("Failed to query settings table: %v", err)
	}
	if count != len(DefaultSettings) {
		t.Errorf("Expected %d default settings, got %d", len(DefaultSettings), count)
	}

	// Second init must not duplicate or overwrite.
	if err := UpdateSetting(db, CategoryNotifications, KeyCooldownMinutes, "5"); err != nil {
		t.Fatal(err)
	}
	if err := InitSettingsTable(db); err != nil {
		t.Fatal(err)
	}
	if got := GetIntSettingWithDefault(db, CategoryNotifications, KeyCooldownMinutes, 0); got != 5 {
		t.Errorf("cooldown after re-init = %d, want 5", got)
	}
}

func TestLoadPolicyDefaults(t *testing.T) {
	db := setupTestDB(t)

	p := LoadPolicy(db)
	if p.MinSeverity != "warning" || p.IncludeRecovery || p.CooldownMinutes != 60 {
		t.Errorf("default policy = %+v", p)
	}
	if got := LoadWebhookURLs(db); len(got) != 0 {
		t.Errorf("default webhook urls = %v, want empty", got)
	}
	if Preset(db) != "backblaze" {
		t.Errorf("default preset = %q", Preset(db))
	}
}

func TestUpdateSettingValidation(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		category, key, value string
		wantErr              bool
	}{
		{CategoryNotifications, KeyMinSeverity, "critical", false},
		{CategoryNotifications, KeyMinSeverity, "loud", true},
		{CategoryNotifications, KeyIncludeRecovery, "yes", true},
		{CategoryNotifications, KeyCooldownMinutes, "abc", true},
		{CategoryNotifications, KeyCooldownMinutes, "-1", true},
		{CategoryNotifications, KeyWebhookURLs, "[not json", true},
		{CategoryThresholds, KeyPreset, "conservative", false},
		{CategoryThresholds, KeyPreset, "yolo", true},
	}
	for _, tt := range tests {
		err := UpdateSetting(db, tt.category, tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("UpdateSetting(%s.%s=%q) err = %v, wantErr %v", tt.category, tt.key, tt.value, err, tt.wantErr)
		}
	}

	if err := UpdateSetting(db, "nope", "missing", "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing setting err = %v, want ErrNotFound", err)
	}
}

func TestWebhookURLsRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	in := []string{"ntfy:https://ntfy.sh/a", "  ", "!gotify:https://g.lan/message"}
	if err := SaveWebhookURLs(db, in); err != nil {
		t.Fatal(err)
	}
	got := LoadWebhookURLs(db)
	if len(got) != 2 || got[0] != in[0] || got[1] != in[2] {
		t.Errorf("LoadWebhookURLs = %v", got)
	}
}

func TestSaveNotificationSettings_AllOrNothing(t *testing.T) {
	db := setupTestDB(t)

	err := SaveNotificationSettings(db, NotificationSettings{
		MinSeverity:     "info",
		CooldownMinutes: 10,
		ThresholdPreset: "bogus",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if p := LoadPolicy(db); p.MinSeverity != "warning" || p.CooldownMinutes != 60 {
		t.Errorf("policy changed despite error: %+v", p)
	}
}

func TestResetAllToDefaults(t *testing.T) {
	db := setupTestDB(t)
	UpdateSetting(db, CategoryNotifications, KeyMinSeverity, "off")

	if err := ResetAllToDefaults(db); err != nil {
		t.Fatal(err)
	}
	if LoadPolicy(db).MinSeverity != "warning" {
		t.Error("min_severity not reset")
	}
}

func TestGetIntSettingWithDefault(t *testing.T) {
	db := setupTestDB(t)

	if got := GetIntSettingWithDefault(db, CategorySystem, KeyHistoryDays, 1); got != 90 {
		t.Errorf("history days = %d, want 90", got)
	}
	if got := GetIntSettingWithDefault(db, "nope", "missing", 7); got != 7 {
		t.Errorf("missing = %d, want default 7", got)
	}
}

func TestNotificationHandlers(t *testing.T) {
	db := setupTestDB(t)
	h := NewHandler(db)

	body := `{"min_severity":"critical","include_recovery":true,"webhook_urls":["ntfy:https://ntfy.sh/x"]}`
	rec := httptest.NewRecorder()
	h.UpdateNotifications(rec, httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var ns NotificationSettings
	if err := json.NewDecoder(rec.Body).Decode(&ns); err != nil {
		t.Fatal(err)
	}
	if ns.MinSeverity != "critical" || !ns.IncludeRecovery || ns.CooldownMinutes != 60 || len(ns.WebhookURLs) != 1 {
		t.Errorf("response = %+v", ns)
	}

	rec = httptest.NewRecorder()
	h.UpdateNotifications(rec, httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(`{"min_severity":"loud"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid severity status = %d, want 400", rec.Code)
	}
}

func TestUpdateSettingHandler(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	h := NewHandler(db)
	mux.HandleFunc("PUT /api/settings/{category}/{key}", h.UpdateSetting)

	tests := []struct {
		path string
		body string
		want int
	}{
		{"/api/settings/system/history_retention_days", `{"value":"30"}`, http.StatusOK},
		{"/api/settings/system/history_retention_days", `{"value":"x"}`, http.StatusBadRequest},
		{"/api/settings/system/nope", `{"value":"1"}`, http.StatusNotFound},
		{"/api/settings/system/history_retention_days", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Errorf("PUT %s %s = %d, want %d", tt.path, tt.body, rec.Code, tt.want)
		}
	}
}

func TestGetSettingUpdatedAt(t *testing.T) {
	db := setupTestDB(t)

	s, err := GetSetting(db, CategorySystem, KeyHistoryDays)
	if err != nil || s == nil {
		t.Fatalf("GetSetting = %v, %v", s, err)
	}
	if s.UpdatedAt.IsZero() {
		t.Error("updated_at not parsed")
	}

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01 12:30:00", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2024-03-01T12:30:00Z", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseUpdatedAt(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseUpdatedAt(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
