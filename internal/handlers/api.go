package handlers

import (
	"net/http"
	"time"

	"diskmind/internal/config"
	"diskmind/internal/db"
	"diskmind/internal/monitor"
)

// API serves the disk, alert and threshold endpoints.
type API struct {
	Store    *db.Store
	Monitor  *monitor.Monitor
	Resolver *config.Resolver
	now      func() time.Time
}

// NewAPI creates the handler set.
func NewAPI(store *db.Store, mon *monitor.Monitor, resolver *config.Resolver) *API {
	return &API{Store: store, Monitor: mon, Resolver: resolver, now: time.Now}
}

// Health handles GET /health
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DB().PingContext(r.Context()); err != nil {
		JSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	JSONResponse(w, map[string]string{"status": "ok"})
}

// Thresholds handles GET /api/thresholds
func (a *API) Thresholds(w http.ResponseWriter, r *http.Request) {
	preset, th := a.Monitor.Thresholds()
	JSONResponse(w, map[string]any{
		"preset":     preset,
		"presets":    a.Resolver.Names(),
		"thresholds": th,
	})
}
