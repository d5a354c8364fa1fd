package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"diskmind/internal/alerts"
	"diskmind/internal/notify"
	"diskmind/internal/smart"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	s, err := New(conn)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return s
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testSnapshot(id string, realloc string) alerts.Snapshot {
	return alerts.Snapshot{
		DiskID:      id,
		Host:        "nas1",
		Device:      "/dev/sda",
		Model:       "ST8000VN004",
		DiskType:    "HDD",
		SmartStatus: smart.SmartPassed,
		Attributes: map[string]any{
			"Reallocated_Sector_Ct": json.Number(realloc),
			"Raw_Read_Error_Rate":   json.Number("281474976710655"),
		},
		Status:    smart.StatusOK,
		UpdatedAt: t0,
	}
}

func insertAlert(t *testing.T, s *Store, a *alerts.Alert) {
	t.Helper()
	err := s.WithDisk(context.Background(), a.DiskID, func(tx alerts.Tx) error {
		return tx.InsertAlert(a)
	})
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}
}

func statusAlert(diskID string, sev alerts.Severity, ts time.Time) *alerts.Alert {
	return &alerts.Alert{
		DiskID:    diskID,
		Host:      "nas1",
		Timestamp: ts,
		Severity:  sev,
		Message:   "status changed",
		Detail:    alerts.StatusChange{Old: smart.StatusOK, New: smart.StatusWarning, Reason: "Reallocated Sectors: 8"},
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "diskmind.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM disk_status`).Scan(&n); err != nil {
		t.Fatalf("schema missing: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	if err := Migrate(s.DB()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestMigrate_AddsArchivedToOldSchema(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Exec(`CREATE TABLE disk_status (
		disk_id TEXT PRIMARY KEY, host TEXT NOT NULL DEFAULT '', device TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '', disk_type TEXT NOT NULL DEFAULT '', smart_status TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '{}', status TEXT NOT NULL DEFAULT 'ok', updated_at DATETIME NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`INSERT INTO disk_status (disk_id, updated_at) VALUES ('OLD', '2024-01-01 00:00:00')`); err != nil {
		t.Fatal(err)
	}

	s, err := New(conn)
	if err != nil {
		t.Fatalf("New on old schema: %v", err)
	}
	snap, err := s.GetSnapshot("OLD")
	if err != nil || snap == nil || snap.Archived {
		t.Errorf("old row = %+v, %v; want unarchived", snap, err)
	}
}

func TestSetArchived(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"D1", "D2"} {
		snap := testSnapshot(id, "0")
		if err := s.WithDisk(ctx, id, func(tx alerts.Tx) error { return tx.InsertSnapshot(snap) }); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.SetArchived("D1", true); err != nil {
		t.Fatalf("SetArchived: %v", err)
	}
	if err := s.SetArchived("missing", true); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unknown disk err = %v, want ErrNoRows", err)
	}

	// Engine updates leave the flag alone.
	upd := testSnapshot("D1", "3")
	if err := s.WithDisk(ctx, "D1", func(tx alerts.Tx) error { return tx.UpdateSnapshot(upd) }); err != nil {
		t.Fatal(err)
	}

	archived, err := s.ArchivedDisks()
	if err != nil {
		t.Fatal(err)
	}
	if !archived["D1"] || archived["D2"] || len(archived) != 1 {
		t.Errorf("archived = %v, want only D1", archived)
	}

	snaps, err := s.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	for _, snap := range snaps {
		if snap.Archived != (snap.DiskID == "D1") {
			t.Errorf("%s archived = %v", snap.DiskID, snap.Archived)
		}
	}

	if err := s.SetArchived("D1", false); err != nil {
		t.Fatal(err)
	}
	if archived, _ := s.ArchivedDisks(); len(archived) != 0 {
		t.Errorf("after restore archived = %v", archived)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if snap, err := s.GetSnapshot("nope"); snap != nil || err != nil {
		t.Fatalf("GetSnapshot(missing) = %v, %v; want nil, nil", snap, err)
	}

	want := testSnapshot("D1", "8")
	if err := s.WithDisk(ctx, "D1", func(tx alerts.Tx) error { return tx.InsertSnapshot(want) }); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}

	got, err := s.GetSnapshot("D1")
	if err != nil || got == nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.Host != want.Host || got.DiskType != want.DiskType || got.Status != want.Status {
		t.Errorf("snapshot = %+v", got)
	}
	if !got.UpdatedAt.Equal(t0) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, t0)
	}
	// 48-bit raw values must survive without float rounding.
	if v, ok := got.Attributes["Raw_Read_Error_Rate"].(json.Number); !ok || v.String() != "281474976710655" {
		t.Errorf("Raw_Read_Error_Rate = %#v", got.Attributes["Raw_Read_Error_Rate"])
	}

	next := testSnapshot("D1", "9")
	next.Status = smart.StatusWarning
	if err := s.WithDisk(ctx, "D1", func(tx alerts.Tx) error { return tx.UpdateSnapshot(next) }); err != nil {
		t.Fatalf("UpdateSnapshot: %v", err)
	}
	got, _ = s.GetSnapshot("D1")
	if got.Status != smart.StatusWarning {
		t.Errorf("status after update = %s", got.Status)
	}

	err = s.WithDisk(ctx, "D2", func(tx alerts.Tx) error { return tx.UpdateSnapshot(testSnapshot("D2", "0")) })
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("update of unknown disk err = %v, want ErrNoRows", err)
	}
}

func TestWithDisk_RollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	boom := errors.New("boom")

	err := s.WithDisk(context.Background(), "D1", func(tx alerts.Tx) error {
		if err := tx.InsertSnapshot(testSnapshot("D1", "0")); err != nil {
			return err
		}
		if err := tx.InsertAlert(statusAlert("D1", alerts.SeverityWarning, t0)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if snap, _ := s.GetSnapshot("D1"); snap != nil {
		t.Error("snapshot survived a failed unit of work")
	}
	list, _ := s.ListAlerts(AlertFilter{})
	if len(list) != 0 {
		t.Errorf("%d alerts survived a failed unit of work", len(list))
	}
}

func TestHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, v := range []string{"1", "2", "3"} {
		e := smart.HistoryEntry{
			Attributes: map[string]any{"Command_Timeout": json.Number(v)},
			Timestamp:  t0.Add(time.Duration(i) * 24 * time.Hour),
		}
		if err := s.WithDisk(ctx, "D1", func(tx alerts.Tx) error { return tx.AppendHistory("D1", e) }); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}
	// Corrupt rows are skipped.
	if _, err := s.DB().Exec(`INSERT INTO disk_history (disk_id, attributes, timestamp) VALUES ('D1', 'not json', ?)`, timeString(t0.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	all, err := s.History("D1", time.Time{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if !all[0].Timestamp.Equal(t0) {
		t.Errorf("history not oldest first: %v", all[0].Timestamp)
	}

	recent, _ := s.History("D1", t0.Add(24*time.Hour))
	if len(recent) != 2 {
		t.Errorf("since filter returned %d entries, want 2", len(recent))
	}
}

func TestListAlertsAndUnreadSummary(t *testing.T) {
	s := setupTestStore(t)

	insertAlert(t, s, statusAlert("D1", alerts.SeverityWarning, t0))
	insertAlert(t, s, statusAlert("D2", alerts.SeverityCritical, t0.Add(time.Minute)))
	insertAlert(t, s, &alerts.Alert{
		DiskID: "D1", Host: "nas1", Timestamp: t0.Add(2 * time.Minute),
		Severity: alerts.SeverityCritical, Message: "burst",
		Detail: alerts.CumulativeBurst{Attr: "Command_Timeout", Delta: 4, Total: 10},
	})

	list, err := s.ListAlerts(AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(list) != 3 || list[0].Type != alerts.TypeCumulativeBurst {
		t.Fatalf("ListAlerts order = %+v", list)
	}
	if list[0].OldValue != "6" || list[0].NewValue != "10" {
		t.Errorf("burst values = %s -> %s, want 6 -> 10", list[0].OldValue, list[0].NewValue)
	}

	d1, _ := s.ListAlerts(AlertFilter{DiskID: "D1", Type: string(alerts.TypeStatusChange)})
	if len(d1) != 1 {
		t.Errorf("filtered alerts = %d, want 1", len(d1))
	}
	limited, _ := s.ListAlerts(AlertFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit returned %d", len(limited))
	}

	// The burst is dashboard-only and does not count as unread.
	n, worst, err := s.UnreadSummary()
	if err != nil {
		t.Fatalf("UnreadSummary: %v", err)
	}
	if n != 2 || worst != alerts.SeverityCritical {
		t.Errorf("UnreadSummary = %d, %q; want 2, critical", n, worst)
	}

	acked, err := s.AcknowledgeAlerts(list[2].ID)
	if err != nil || acked != 1 {
		t.Fatalf("AcknowledgeAlerts = %d, %v", acked, err)
	}
	n, worst, _ = s.UnreadSummary()
	if n != 1 || worst != alerts.SeverityCritical {
		t.Errorf("after ack = %d, %q", n, worst)
	}

	acked, _ = s.AcknowledgeAlerts()
	if acked != 2 {
		t.Errorf("ack all = %d, want 2", acked)
	}
	unread, _ := s.ListAlerts(AlertFilter{Unread: true})
	if len(unread) != 0 {
		t.Errorf("unread after ack all = %d", len(unread))
	}
}

func TestCountSuccessfulNotifications(t *testing.T) {
	s := setupTestStore(t)
	a := statusAlert("D1", alerts.SeverityWarning, t0)
	insertAlert(t, s, a)
	other := statusAlert("D2", alerts.SeverityWarning, t0)
	insertAlert(t, s, other)

	deliveries := []notify.Delivery{
		{AlertID: a.ID, Timestamp: t0, Channel: "ntfy:https://ntfy.sh/disks", Success: true},
		{AlertID: a.ID, Timestamp: t0.Add(10 * time.Minute), Channel: "generic:http://hook", Success: false, Error: "timeout"},
		{AlertID: other.ID, Timestamp: t0.Add(20 * time.Minute), Channel: "ntfy:https://ntfy.sh/disks", Success: true},
	}
	for _, d := range deliveries {
		if err := s.RecordNotification(d); err != nil {
			t.Fatalf("RecordNotification: %v", err)
		}
	}

	tests := []struct {
		name  string
		disk  string
		since time.Time
		want  int
	}{
		{"success inside window", "D1", t0.Add(-time.Minute), 1},
		{"boundary is exclusive", "D1", t0, 0},
		{"failures do not count", "D1", t0.Add(5 * time.Minute), 0},
		{"other disk", "D2", t0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.CountSuccessfulNotifications(tt.disk, tt.since)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("count = %d, want %d", n, tt.want)
			}
		})
	}

	status, err := s.WebhookStatus()
	if err != nil {
		t.Fatalf("WebhookStatus: %v", err)
	}
	if len(status) != 2 {
		t.Fatalf("channels = %d, want 2", len(status))
	}
	if status[0].Channel != "generic:http://hook" || status[0].Success || status[0].Error != "timeout" {
		t.Errorf("generic status = %+v", status[0])
	}
	if !status[1].Success || !status[1].Timestamp.Equal(t0.Add(20*time.Minute)) {
		t.Errorf("ntfy status should be the latest attempt: %+v", status[1])
	}
}

func TestCountSuccessfulNotifications_SubSecond(t *testing.T) {
	s := setupTestStore(t)
	a := statusAlert("D1", alerts.SeverityWarning, t0)
	insertAlert(t, s, a)

	sent := t0.Add(700 * time.Millisecond)
	if err := s.RecordNotification(notify.Delivery{AlertID: a.ID, Timestamp: sent, Channel: "generic:http://hook", Success: true}); err != nil {
		t.Fatal(err)
	}

	// A 60-minute cooldown checked at 11:00:00.5 starts at 10:00:00.5.
	n, err := s.CountSuccessfulNotifications("D1", t0.Add(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want the 10:00:00.7 send inside the window", n)
	}

	n, err = s.CountSuccessfulNotifications("D1", sent)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count at the send instant = %d, want 0", n)
	}
}

func TestTimeStringRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	if got := parseTime(timeString(ts)); !got.Equal(ts) {
		t.Errorf("parseTime(timeString) = %v, want %v", got, ts)
	}
	if got := parseTime("2024-03-01 10:00:00"); !got.Equal(t0) {
		t.Errorf("second-resolution row = %v, want %v", got, t0)
	}
	if a, b := timeString(ts), timeString(ts.Add(time.Second)); a >= b {
		t.Errorf("%q should sort before %q", a, b)
	}
}

func TestPrune(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, ts := range []time.Time{t0.AddDate(0, 0, -100), t0} {
		e := smart.HistoryEntry{Attributes: map[string]any{}, Timestamp: ts}
		if err := s.WithDisk(ctx, "D1", func(tx alerts.Tx) error { return tx.AppendHistory("D1", e) }); err != nil {
			t.Fatal(err)
		}
	}
	old := statusAlert("D1", alerts.SeverityWarning, t0.AddDate(-2, 0, 0))
	insertAlert(t, s, old)
	insertAlert(t, s, statusAlert("D1", alerts.SeverityWarning, t0))
	s.RecordNotification(notify.Delivery{AlertID: old.ID, Timestamp: old.Timestamp, Channel: "x", Success: true})

	res, err := s.Prune(t0.AddDate(0, 0, -90), t0.AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	want := PruneResult{History: 1, Alerts: 1, Notifications: 1}
	if res != want {
		t.Errorf("Prune = %+v, want %+v", res, want)
	}

	res, _ = s.Prune(time.Time{}, time.Time{})
	if res != (PruneResult{}) {
		t.Errorf("zero cutoffs pruned %+v", res)
	}
}

func TestEngineOverSQLite(t *testing.T) {
	s := setupTestStore(t)
	engine := alerts.NewEngine(s)
	engine.SetClock(func() time.Time { return t0 })

	th := smart.Thresholds{ATA: smart.RuleSet{
		Warning: smart.RuleTable{"Reallocated_Sector_Ct": {Op: ">", Value: 0, Label: "Reallocated Sectors"}},
	}}
	reading := func(realloc string) smart.Reading {
		return smart.Reading{
			DiskID: "D1", Host: "nas1", DiskType: "HDD", SmartStatus: smart.SmartPassed,
			Attributes: map[string]any{"Reallocated_Sector_Ct": json.Number(realloc)},
		}
	}

	ctx := context.Background()
	if got, err := engine.Run(ctx, reading("0"), th, "scan-1"); err != nil || len(got) != 0 {
		t.Fatalf("first run = %v, %v", got, err)
	}
	got, err := engine.Run(ctx, reading("3"), th, "scan-2")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("alerts = %d, want status change and state change", len(got))
	}

	stored, _ := s.ListAlerts(AlertFilter{DiskID: "D1"})
	if len(stored) != 2 {
		t.Fatalf("stored %d alerts", len(stored))
	}
	for _, r := range stored {
		if r.ScanID != "scan-2" {
			t.Errorf("scan id = %q", r.ScanID)
		}
	}
	snap, _ := s.GetSnapshot("D1")
	if snap.Status != smart.StatusWarning {
		t.Errorf("snapshot status = %s", snap.Status)
	}
	hist, _ := s.History("D1", time.Time{})
	if len(hist) != 2 {
		t.Errorf("history = %d entries, want 2", len(hist))
	}
}
