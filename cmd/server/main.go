package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diskmind/internal/config"
	"diskmind/internal/db"
	"diskmind/internal/events"
	"diskmind/internal/handlers"
	"diskmind/internal/middleware"
	"diskmind/internal/monitor"
	"diskmind/internal/notify"
	"diskmind/internal/settings"
	"diskmind/internal/stream"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	log.Printf("diskmind %s starting", version)

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ Database: %v", err)
	}
	defer store.Close()
	log.Printf("✅ Database connected (%s)", cfg.DBPath)

	if err := settings.InitSettingsTable(store.DB()); err != nil {
		log.Fatalf("❌ Settings: %v", err)
	}

	resolver, err := config.NewResolver(cfg.ThresholdsFile)
	if err != nil {
		log.Fatalf("❌ Thresholds: %v", err)
	}

	bus := events.NewBus()
	dispatcher := notify.NewDispatcher(store, nil, nil, cfg.NotifyTimeout)
	dispatcher.SetBus(bus)

	mon := monitor.New(store, resolver, dispatcher, bus)
	mon.Start()
	defer mon.Stop()

	hub := stream.NewHub(bus, cfg.AllowedOrigins)
	defer hub.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	if cfg.IngestTokenHash == "" {
		log.Println("⚠️  INGEST_TOKEN_HASH not set, /api/report accepts unauthenticated reports")
	}

	api := handlers.NewAPI(store, mon, resolver)
	sh := settings.NewHandler(store.DB())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", api.Health)
	mux.HandleFunc("POST /api/report", limiter.Limit(middleware.IngestToken(cfg.IngestTokenHash, api.Report)))
	mux.HandleFunc("GET /api/disks", api.Disks)
	mux.HandleFunc("GET /api/alerts", api.Alerts)
	mux.HandleFunc("POST /api/alerts/ack", api.AcknowledgeAlerts)
	mux.HandleFunc("GET /api/webhook-status", api.WebhookStatus)
	mux.HandleFunc("POST /api/test-webhook", api.TestWebhook)
	mux.HandleFunc("GET /api/history", api.History)
	mux.HandleFunc("POST /api/disk/archive", api.ArchiveDisk)
	mux.HandleFunc("POST /api/disk/unarchive", api.UnarchiveDisk)
	mux.HandleFunc("GET /api/thresholds", api.Thresholds)

	mux.HandleFunc("GET /api/settings", sh.GetNotifications)
	mux.HandleFunc("POST /api/settings", sh.UpdateNotifications)
	mux.HandleFunc("GET /api/settings/all", sh.GetAllSettings)
	mux.HandleFunc("PUT /api/settings/{category}/{key}", sh.UpdateSetting)
	mux.HandleFunc("POST /api/settings/reset", sh.ResetAll)

	mux.HandleFunc("GET /ws/alerts", hub.HandleConnection)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.Logging(middleware.CORS(cfg.AllowedOrigins)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("diskmind listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Shutdown: %v", err)
	}
}
