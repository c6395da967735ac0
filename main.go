package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"badgetrack/internal/auth"
	"badgetrack/internal/config"
	"badgetrack/internal/dispatch"
	"badgetrack/internal/httpapi"
	"badgetrack/internal/listener"
	"badgetrack/internal/natsrelay"
	"badgetrack/internal/queue"
	"badgetrack/internal/sheets"
	"badgetrack/internal/sheetsync"
	"badgetrack/internal/store"
	"badgetrack/internal/ws"
)

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)

	// Load configuration
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.Info("Starting badge attendance service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared Postgres pool for handlers and sync runs.
	st, err := store.New(ctx, cfg.Postgres.DSN(), logger)
	if err != nil {
		logger.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer st.Close()

	if err := st.Check(ctx); err != nil {
		logger.Fatalf("Database preflight failed: %v", err)
	}

	// Sheet-sync worker pool. Without a configured spreadsheet the pipeline
	// degrades to a no-op trigger so the rest of the fan-out still runs.
	var syncTrigger dispatch.SyncTrigger = noopTrigger{}
	var runner *sheetsync.Runner
	if cfg.Sheets.Enabled() {
		location, err := time.LoadLocation(cfg.Sheets.DisplayTimezone)
		if err != nil {
			logger.Fatalf("Invalid display timezone %q: %v", cfg.Sheets.DisplayTimezone, err)
		}
		gateway, err := sheets.NewGateway(ctx,
			cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Worksheet, logger)
		if err != nil {
			logger.Fatalf("Failed to create sheets gateway: %v", err)
		}
		syncer := sheetsync.New(st, gateway,
			cfg.Sheets.ClearRange, cfg.Sheets.AnchorCell, location, logger)
		runner = sheetsync.NewRunner(ctx, syncer, cfg.Sheets.Workers, cfg.Sheets.QueueSize, logger)
		syncTrigger = runner
	} else {
		logger.Warn("No spreadsheet configured, sheet sync disabled")
	}

	// Optional broker relay.
	var relay dispatch.Relay
	if cfg.NATS.URL != "" {
		r, err := natsrelay.New(cfg.NATS.URL, cfg.NATS.Subject,
			cfg.NATS.MaxReconnect, cfg.NATS.ReconnectWait, logger)
		if err != nil {
			logger.Fatalf("Failed to connect broker relay: %v", err)
		}
		defer r.Close()
		relay = r
	}

	hub := ws.NewHub(logger)
	events := queue.New()
	dispatcher := dispatch.New(events, hub, relay, syncTrigger, logger)
	change := listener.New(listener.PgxConnect(cfg.Postgres.DSN()),
		cfg.Postgres.Channel, events, logger)

	errChan := make(chan error, 3)
	go func() { errChan <- change.Run(ctx) }()
	go func() { errChan <- dispatcher.Run(ctx) }()

	// HTTP surface.
	authSvc := auth.NewService(st, cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.MaxManagers, logger)
	wsHandler := ws.NewHandler(hub, cfg.HTTP.AllowOrigin, logger)
	api := httpapi.NewServer(st, authSvc, wsHandler, cfg.HTTP.AllowOrigin, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.Router(),
	}
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for signal or fatal component error.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v, shutting down...", sig)
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Component error: %v", err)
		}
	}

	// Stop producing events, then drain in-flight sync runs, then drop
	// subscribers and the HTTP server.
	cancel()
	if runner != nil {
		runner.Close()
	}
	hub.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	logger.Info("Badge attendance service stopped")
}

// noopTrigger stands in for the sync runner when no spreadsheet is
// configured.
type noopTrigger struct{}

func (noopTrigger) Trigger() {}
