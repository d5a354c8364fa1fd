package handlers

import (
	"context"
	"log"
	"net/http"

	"diskmind/internal/ingest"
)

// maxReportBytes caps a single report body.
const maxReportBytes = 32 << 20

// Report handles POST /api/report. The pass runs to completion even if the
// reporting host hangs up.
func (a *API) Report(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxReportBytes)
	host, readings, skipped, err := ingest.Parse(body)
	if err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if host == "" {
		JSONError(w, "Missing hostname", http.StatusBadRequest)
		return
	}
	for _, err := range skipped {
		log.Printf("⚠️  Report from %s: skipping %v", host, err)
	}

	scan := a.Monitor.ProcessReport(context.WithoutCancel(r.Context()), host, readings)

	log.Printf("💾 Report: %s (%d drives)", host, len(readings))
	JSONResponse(w, map[string]any{
		"status":       "ok",
		"scan_id":      scan.ID,
		"disks":        scan.Disks,
		"skipped":      scan.Skipped + len(skipped),
		"alerts":       len(scan.Alerts),
		"notification": scan.Notify,
	})
}
