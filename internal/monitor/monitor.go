// Package monitor runs scan passes over reported disks: classification and
// diffing through the alert engine, then notification dispatch.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"diskmind/internal/alerts"
	"diskmind/internal/config"
	"diskmind/internal/db"
	"diskmind/internal/events"
	"diskmind/internal/notify"
	"diskmind/internal/settings"
	"diskmind/internal/smart"
)

// Scan summarizes one pass over a host's report.
type Scan struct {
	ID      string         `json:"scan_id"`
	Host    string         `json:"host"`
	Disks   int            `json:"disks"`
	Skipped int            `json:"skipped"`
	Alerts  []alerts.Alert `json:"-"`
	Notify  notify.Summary `json:"notify"`
}

// Monitor owns the alert engine and the dispatcher for the server.
type Monitor struct {
	store      *db.Store
	engine     *alerts.Engine
	dispatcher *notify.Dispatcher
	resolver   *config.Resolver
	bus        *events.Bus
	now        func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// New wires a monitor. bus may be nil.
func New(store *db.Store, resolver *config.Resolver, dispatcher *notify.Dispatcher, bus *events.Bus) *Monitor {
	return &Monitor{
		store:      store,
		engine:     alerts.NewEngine(store),
		dispatcher: dispatcher,
		resolver:   resolver,
		bus:        bus,
		now:        time.Now,
	}
}

// SetClock replaces the time source of the monitor and its engine.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
	m.engine.SetClock(now)
}

// Thresholds resolves the configured preset. An unknown preset yields empty
// rule tables so every disk classifies ok.
func (m *Monitor) Thresholds() (string, smart.Thresholds) {
	preset := settings.Preset(m.store.DB())
	th, err := m.resolver.Resolve(preset)
	if err != nil {
		log.Printf("[Monitor] ⚠️  %v, classifying with empty rule tables", err)
	}
	return preset, th
}

// ProcessReport runs one scan pass. Disks are processed one at a time and
// each commits before the next starts; a failing disk is skipped. Alerts
// created during the pass are dispatched once the pass is over.
func (m *Monitor) ProcessReport(ctx context.Context, host string, readings []smart.Reading) Scan {
	scan := Scan{ID: uuid.NewString(), Host: host, Disks: len(readings)}
	_, th := m.Thresholds()

	for _, r := range readings {
		if r.Host == "" {
			r.Host = host
		}
		created, err := m.engine.Run(ctx, r, th, scan.ID)
		if err != nil {
			scan.Skipped++
			log.Printf("[Monitor] ⚠️  Skipping disk %q on %s: %v", r.Identity(), host, err)
			m.bus.Publish(events.Event{
				Type:      events.DiskSkipped,
				ScanID:    scan.ID,
				Host:      host,
				DiskID:    r.Identity(),
				Message:   err.Error(),
				Timestamp: m.now(),
			})
			continue
		}
		for _, a := range created {
			m.bus.Publish(events.Event{
				Type:      events.AlertCreated,
				Severity:  string(a.Severity),
				ScanID:    scan.ID,
				Host:      a.Host,
				DiskID:    a.DiskID,
				Message:   a.Message,
				Data:      a.Record(),
				Timestamp: a.Timestamp,
			})
		}
		scan.Alerts = append(scan.Alerts, created...)
	}

	m.bus.Publish(events.Event{
		Type:      events.ScanCompleted,
		ScanID:    scan.ID,
		Host:      host,
		Message:   fmt.Sprintf("%d disks, %d alerts, %d skipped", scan.Disks, len(scan.Alerts), scan.Skipped),
		Timestamp: m.now(),
	})

	if len(scan.Alerts) > 0 {
		scan.Notify = m.dispatch(ctx, scan.Alerts)
	}

	log.Printf("📊 Scan %s for %s: %d disks, %d alerts, %d skipped", scan.ID, host, scan.Disks, len(scan.Alerts), scan.Skipped)
	return scan
}

// dispatch notifies about alerts of disks that are not archived. Alerts of
// archived disks stay on the dashboard only.
func (m *Monitor) dispatch(ctx context.Context, list []alerts.Alert) notify.Summary {
	archived, err := m.store.ArchivedDisks()
	if err != nil {
		log.Printf("[Monitor] ⚠️  Could not load archived disks: %v", err)
	}
	send := make([]alerts.Alert, 0, len(list))
	for _, a := range list {
		if !archived[a.DiskID] {
			send = append(send, a)
		}
	}
	held := len(list) - len(send)

	conn := m.store.DB()
	endpoints, errs := notify.ParseEndpoints(settings.LoadWebhookURLs(conn))
	for _, err := range errs {
		log.Printf("notify: ⚠️  ignoring endpoint: %v", err)
	}
	sum := m.dispatcher.Dispatch(ctx, send, settings.LoadPolicy(conn), endpoints)
	sum.Alerts += held
	sum.Filtered += held
	return sum
}

// TestEndpoint sends a test message to ep through the dispatcher.
func (m *Monitor) TestEndpoint(ctx context.Context, ep notify.Endpoint) error {
	return m.dispatcher.Test(ctx, ep)
}

// ─── Retention ───────────────────────────────────────────────────────────────

// Start begins periodic pruning of history, alerts and the delivery log.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})

	go m.periodicTasks(m.stopChan, m.done)
	log.Println("[Monitor] Retention worker started")
}

// Stop halts the retention worker and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.done
	m.mu.Unlock()

	<-done
	log.Println("[Monitor] Retention worker stopped")
}

func (m *Monitor) periodicTasks(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	hours := settings.GetIntSettingWithDefault(m.store.DB(), settings.CategorySystem, settings.KeyCleanupHours, 24)
	if hours <= 0 {
		hours = 24
	}
	ticker := time.NewTicker(time.Duration(hours) * time.Hour)
	defer ticker.Stop()

	// Initial cleanup on startup (delayed by 1 minute)
	initial := time.NewTimer(time.Minute)
	defer initial.Stop()

	for {
		select {
		case <-stop:
			return
		case <-initial.C:
			m.RunCleanup()
		case <-ticker.C:
			m.RunCleanup()
		}
	}
}

// RunCleanup prunes rows past their retention. A retention of zero days
// keeps that data forever.
func (m *Monitor) RunCleanup() (db.PruneResult, error) {
	conn := m.store.DB()
	historyDays := settings.GetIntSettingWithDefault(conn, settings.CategorySystem, settings.KeyHistoryDays, 90)
	alertDays := settings.GetIntSettingWithDefault(conn, settings.CategorySystem, settings.KeyAlertDays, 365)

	now := m.now()
	var historyBefore, alertsBefore time.Time
	if historyDays > 0 {
		historyBefore = now.AddDate(0, 0, -historyDays)
	}
	if alertDays > 0 {
		alertsBefore = now.AddDate(0, 0, -alertDays)
	}

	res, err := m.store.Prune(historyBefore, alertsBefore)
	if err != nil {
		log.Printf("[Monitor] Cleanup error: %v", err)
		return res, err
	}
	if res.History+res.Alerts+res.Notifications > 0 {
		log.Printf("[Monitor] Cleaned up %d history rows, %d alerts, %d delivery records",
			res.History, res.Alerts, res.Notifications)
	}
	return res, nil
}
