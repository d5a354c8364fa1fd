package settings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Handler handles settings-related API requests
type Handler struct {
	DB *sql.DB
}

// NewHandler creates a new settings handler
func NewHandler(database *sql.DB) *Handler {
	return &Handler{DB: database}
}

// GetAllSettings handles GET /api/settings/all
func (h *Handler) GetAllSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := GetAllSettings(h.DB)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{
		"settings":      settings,
		"notifications": LoadNotificationSettings(h.DB),
	})
}

// UpdateSetting handles PUT /api/settings/{category}/{key}
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	key := r.PathValue("key")
	if category == "" || key == "" {
		respondError(w, "category and key are required", http.StatusBadRequest)
		return
	}

	var update SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := UpdateSetting(h.DB, category, key, update.Value); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	setting, err := GetSetting(h.DB, category, key)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, setting)
}

// GetNotifications handles GET /api/settings
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, LoadNotificationSettings(h.DB))
}

// UpdateNotifications handles POST /api/settings
func (h *Handler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	ns := LoadNotificationSettings(h.DB)
	if err := json.NewDecoder(r.Body).Decode(&ns); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := SaveNotificationSettings(h.DB, ns); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("🔔 Notification settings updated (min=%s, endpoints=%d)", ns.MinSeverity, len(ns.WebhookURLs))
	respondJSON(w, LoadNotificationSettings(h.DB))
}

// ResetAll handles POST /api/settings/reset
func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	if err := ResetAllToDefaults(h.DB); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	settings, err := GetAllSettings(h.DB)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{
		"message":  "all settings reset to defaults",
		"settings": settings,
	})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
