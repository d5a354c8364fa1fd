package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"diskmind/internal/alerts"
	"diskmind/internal/db"
	"diskmind/internal/notify"
)

// Alerts handles GET /api/alerts
// Query params: disk, severity, type, unread, limit
func (a *API) Alerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.AlertFilter{
		DiskID:   q.Get("disk"),
		Severity: q.Get("severity"),
		Type:     q.Get("type"),
		Unread:   q.Get("unread") == "true",
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			JSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = l
	}

	list, err := a.Store.ListAlerts(filter)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alerts.Record{}
	}
	unread, worst, err := a.Store.UnreadSummary()
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	JSONResponse(w, map[string]any{
		"alerts":       list,
		"unread":       unread,
		"max_severity": worst,
	})
}

// AcknowledgeAlerts handles POST /api/alerts/ack
// An empty body or id list acknowledges everything.
func (a *API) AcknowledgeAlerts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	n, err := a.Store.AcknowledgeAlerts(req.IDs...)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]any{"acknowledged": n})
}

// WebhookStatus handles GET /api/webhook-status
func (a *API) WebhookStatus(w http.ResponseWriter, r *http.Request) {
	channels, err := a.Store.WebhookStatus()
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []db.ChannelStatus{}
	}
	JSONResponse(w, map[string]any{"channels": channels})
}

// TestWebhook handles POST /api/test-webhook
// The body names either a configured endpoint string or a service and URL
// pair. Delivery failures are reported in the body with status 200.
func (a *API) TestWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
		URL      string `json:"url"`
		Service  string `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	raw := req.Endpoint
	if raw == "" {
		raw = strings.TrimSpace(req.URL)
		if svc := strings.TrimSpace(req.Service); svc != "" && svc != string(notify.ServiceGeneric) {
			raw = svc + ":" + raw
		}
	}
	ep, err := notify.ParseEndpoint(raw)
	if err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]any{"success": true, "channel": ep.Channel}
	if err := a.Monitor.TestEndpoint(r.Context(), ep); err != nil {
		resp["success"] = false
		resp["error"] = err.Error()
	}
	JSONResponse(w, resp)
}
