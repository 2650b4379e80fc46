// Package main is the entry point for the Game Studio idle server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/config"
	"github.com/circle-gon/nyigj-2024/server/internal/engine"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/infra/storage"
	"github.com/circle-gon/nyigj-2024/server/internal/network"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
)

func main() {
	configPath := flag.String("config", "studio.yml", "Path to the YAML config file")
	flag.Parse()

	log.Println("[STUDIO-SERVER] Initializing Game Studio server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[STUDIO-SERVER] %v", err)
	}

	appLogger := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	collector := metrics.Get()
	tuning := cfg.Tuning()

	appLogger.Info("opening SQLite database", "path", cfg.Storage.Path)
	db, err := storage.InitSQLite(cfg.Storage.Path, tuning)
	if err != nil {
		appLogger.Error("failed to initialize SQLite", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	eventRepo := storage.NewSQLiteEventRepository(db)
	saveRepo := storage.NewSQLiteSaveRepository(db)
	persister := storage.NewLedgerPersister(eventRepo, cfg.Storage.SaveID, appLogger, collector)

	eventLog := events.NewEventLog(tuning.EventLogCapacity, persister)
	studio := engine.NewEngine(eventLog, appLogger, engine.Options{
		Ticker: engine.TickerOptions{
			Rate:          cfg.Loop.TickRate,
			MaxTickLength: cfg.Loop.MaxTickLength,
			DevSpeed:      cfg.Loop.DevSpeed,
		},
		Metrics: collector,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restore(ctx, saveRepo, studio, cfg.Storage.SaveID, appLogger)
	studio.Start(ctx)

	go autosave(ctx, saveRepo, studio, cfg, appLogger, collector)

	hub := network.NewHub(studio, appLogger, collector, network.HubOptions{
		BroadcastInterval:    cfg.Network.BroadcastInterval,
		BroadcastBuffer:      tuning.BroadcastChannelBuffer,
		ClientSendBuffer:     tuning.ClientSendBuffer,
		MaxMessagesPerSecond: tuning.MaxMessagesPerSecond,
		MaxClients:           tuning.MaxClients,
	})
	go hub.Run(ctx)
	hub.StartSnapshotBroadcaster(ctx)
	hub.StartEventPoller(ctx, eventLog)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	network.NewActionsHandler(studio, appLogger).RegisterRoutes(mux)
	network.NewReplayHandler(eventLog, storage.NewRecapper(eventRepo), cfg.Storage.SaveID, appLogger).RegisterRoutes(mux)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP API & WS server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server failed", "error", err)
			cancel()
		}
	}()

	log.Println("[STUDIO-SERVER] Server running. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Println("[STUDIO-SERVER] Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("http shutdown", "error", err)
	}

	studio.Stop()
	studio.ProcessPending()
	err = storage.WriteSave(shutdownCtx, saveRepo, cfg.Storage.SaveID, studio.SaveState())
	collector.RecordSave(err)
	if err != nil {
		appLogger.Error("final save failed", "error", err)
	}

	eventLog.Close()
	if n := eventLog.PersistErrors(); n > 0 {
		appLogger.Warn("some ledger writes failed", "count", n)
	}
	cancel()
}

// restore loads the stored save into the engine, if one exists.
func restore(ctx context.Context, repo storage.SaveRepository, studio *engine.Engine, saveID string, log *logger.Logger) {
	s, err := storage.ReadSave(ctx, repo, saveID)
	switch {
	case err != nil:
		log.Warn("could not read save, starting fresh", "save_id", saveID, "error", err)
	case s == nil:
		log.Info("no save found, starting fresh", "save_id", saveID)
	default:
		studio.LoadState(*s)
	}
}

func autosave(ctx context.Context, repo storage.SaveRepository, studio *engine.Engine, cfg *config.Config, log *logger.Logger, m *metrics.Collector) {
	ticker := time.NewTicker(cfg.Storage.AutosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := storage.WriteSave(ctx, repo, cfg.Storage.SaveID, studio.SaveState())
			m.RecordSave(err)
			if err != nil {
				log.Error("autosave failed", "error", err)
			}
		}
	}
}
