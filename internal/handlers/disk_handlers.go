package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"diskmind/internal/alerts"
	"diskmind/internal/smart"
)

// windowPresets maps the dashboard range selector to days.
var windowPresets = map[string]float64{
	"1h":  1.0 / 24,
	"24h": 1,
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"all": 36500,
}

// parseWindow accepts a preset name or a number of days. Empty means all
// time.
func parseWindow(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	if d, ok := windowPresets[s]; ok {
		return d, nil
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	return d, nil
}

// diskView is a snapshot with its issues evaluated for a display window.
type diskView struct {
	alerts.Snapshot
	Issues       []smart.Issue    `json:"issues"`
	Summary      string           `json:"summary"`
	WindowStatus smart.Status     `json:"window_status"`
	Deltas       map[string]int64 `json:"deltas,omitempty"`
}

// Disks handles GET /api/disks?window=
// The stored status is always the all-time classification; the window only
// hides cumulative counters that did not move within it.
func (a *API) Disks(w http.ResponseWriter, r *http.Request) {
	days, err := parseWindow(r.URL.Query().Get("window"))
	if err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snaps, err := a.Store.ListSnapshots()
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	preset, th := a.Monitor.Thresholds()

	views := make([]diskView, 0, len(snaps))
	archived := make([]diskView, 0)
	for _, snap := range snaps {
		win := smart.Window{Days: days}
		if !win.IsAllTime() {
			since := a.now().Add(-time.Duration(days * float64(24*time.Hour)))
			history, err := a.Store.History(snap.DiskID, since)
			if err != nil {
				JSONError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			win.Deltas = smart.WindowDeltas(history, snap.DiskType, since)
		}

		issues := smart.Issues(snap.Reading(), th.ForType(snap.DiskType), win)
		if issues == nil {
			issues = []smart.Issue{}
		}
		v := diskView{
			Snapshot:     snap,
			Issues:       issues,
			Summary:      smart.IssueSummary(issues),
			WindowStatus: smart.StatusFromIssues(issues),
			Deltas:       win.Deltas,
		}
		if snap.Archived {
			archived = append(archived, v)
		} else {
			views = append(views, v)
		}
	}

	JSONResponse(w, map[string]any{
		"preset":         preset,
		"days":           days,
		"disks":          views,
		"archived_disks": archived,
	})
}

type archiveRequest struct {
	DiskID string `json:"disk_id"`
}

// ArchiveDisk handles POST /api/disk/archive
func (a *API) ArchiveDisk(w http.ResponseWriter, r *http.Request) {
	a.setArchived(w, r, true)
}

// UnarchiveDisk handles POST /api/disk/unarchive
func (a *API) UnarchiveDisk(w http.ResponseWriter, r *http.Request) {
	a.setArchived(w, r, false)
}

func (a *API) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DiskID == "" {
		JSONError(w, "disk_id is required", http.StatusBadRequest)
		return
	}
	if err := a.Store.SetArchived(req.DiskID, archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			JSONError(w, "unknown disk", http.StatusNotFound)
			return
		}
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if archived {
		log.Printf("📦 Disk %s archived", req.DiskID)
	} else {
		log.Printf("📦 Disk %s restored", req.DiskID)
	}
	JSONResponse(w, map[string]any{"success": true, "disk_id": req.DiskID, "archived": archived})
}

// History handles GET /api/history?days=&disk=
// Without disk it covers every disk that is not archived.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	days, err := parseWindow(r.URL.Query().Get("days"))
	if err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var since time.Time
	if !(smart.Window{Days: days}).IsAllTime() {
		since = a.now().Add(-time.Duration(days * float64(24*time.Hour)))
	}

	var ids []string
	if disk := r.URL.Query().Get("disk"); disk != "" {
		ids = []string{disk}
	} else {
		snaps, err := a.Store.ListSnapshots()
		if err != nil {
			JSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, snap := range snaps {
			if !snap.Archived {
				ids = append(ids, snap.DiskID)
			}
		}
	}

	out := make(map[string][]smart.HistoryEntry, len(ids))
	for _, id := range ids {
		entries, err := a.Store.History(id, since)
		if err != nil {
			JSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []smart.HistoryEntry{}
		}
		out[id] = entries
	}
	JSONResponse(w, map[string]any{"days": days, "history": out})
}
