package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/order-dispatch/internal/broker"
	"github.com/example/order-dispatch/internal/config"
	"github.com/example/order-dispatch/internal/dedup"
	"github.com/example/order-dispatch/internal/dispatch"
	"github.com/example/order-dispatch/internal/distance"
	"github.com/example/order-dispatch/internal/history"
	httpapi "github.com/example/order-dispatch/internal/http"
	"github.com/example/order-dispatch/internal/ingest"
	"github.com/example/order-dispatch/internal/logging"
	"github.com/example/order-dispatch/internal/match"
	"github.com/example/order-dispatch/internal/presence"
	"github.com/example/order-dispatch/internal/sched"
	"github.com/example/order-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var (
		store    storage.OrderStore
		drivers  storage.DriverDirectory
		recorder history.Recorder
	)
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			runMigrations(ps, logger)
		}
		store = ps
		drivers = ps
		recorder = history.NewPostgresRecorder(ps.DB())
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
		recorder = history.NewMemoryRecorder()
	}

	var tracker dedup.Tracker
	if cfg.RedisAddr != "" {
		tracker = dedup.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		tracker = dedup.NewMemory()
	}

	var oracle distance.Oracle
	if cfg.OSRMEndpoint != "" {
		oracle = distance.NewOSRMClient(cfg.OSRMEndpoint)
	} else {
		logger.Warn("OSRM_ENDPOINT not set, using straight-line estimator")
		oracle = &distance.Estimator{SpeedMps: cfg.DefaultSpeedMps}
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaLocationTopic)
		defer producer.Close()
	}

	registry := presence.NewRegistry()
	router := broker.NewRouter(logger)

	svc := &dispatch.Service{
		Store:    store,
		Drivers:  drivers,
		History:  recorder,
		Dedup:    tracker,
		Presence: registry,
		Router:   router,
		Producer: producer,
		Log:      logger.With("component", "dispatch"),
	}
	svc.Engine = &match.Engine{
		Profiles:         cfg.ClassProfiles,
		Presence:         registry,
		Dedup:            tracker,
		Oracle:           oracle,
		Offers:           svc,
		OfferNonMatching: cfg.OfferNonMatching,
		Log:              logger.With("component", "match"),
	}
	scheduler := sched.New(cfg.ClassProfiles, store, svc, sched.RealClock{}, logger)
	svc.Bind(scheduler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Restore(ctx); err != nil {
		logger.Error("schedule restore failed", "error", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(svc, router, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("order-dispatch listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func runMigrations(ps *storage.PostgresStore, logger *slog.Logger) {
	for _, name := range []string{"001_create_orders.sql", "002_create_order_status_history.sql", "003_create_drivers.sql"} {
		b, err := os.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			logger.Error("migration read failed", "file", name, "error", err)
			continue
		}
		if _, err := ps.DB().Exec(string(b)); err != nil {
			logger.Error("migration exec failed", "file", name, "error", err)
			continue
		}
		logger.Info("migration applied", "file", name)
	}
}
