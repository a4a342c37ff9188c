package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"intel-correlation-service/internal/api"
	"intel-correlation-service/internal/config"
	"intel-correlation-service/internal/correlation"
	"intel-correlation-service/internal/db"
	"intel-correlation-service/internal/ingest"
	"intel-correlation-service/internal/jobevents"
	"intel-correlation-service/internal/logging"
	"intel-correlation-service/internal/notify"
	"intel-correlation-service/internal/providers"
	"intel-correlation-service/internal/reporting"
	"intel-correlation-service/internal/scheduler"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Runtime settings (schedule + notification policy)
	store, err := config.NewStore(cfg.Paths.Settings, logger)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	events := jobevents.New(cfg.Paths.JobEvents)
	renderer := reporting.NewFileRenderer(cfg.Paths.Reports)

	mailer := providers.NewMailer(cfg, logger)
	telegram, err := providers.NewTelegram(cfg, logger)
	if err != nil {
		logger.Errorf("Telegram provider disabled: %v", err)
	}

	notifier := notify.NewEngine(dbConn, events, renderer, mailer, telegram, store.Get, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Intel ingestion and fetch requests ride Kafka when a broker is
	// configured; without one the pipeline correlates pending intel only.
	var requester scheduler.FetchRequester
	if cfg.Kafka.Broker != "" {
		consumer := ingest.NewConsumer(cfg, dbConn, logger)
		go consumer.Start(ctx)
		defer consumer.Close()

		req := ingest.NewRequester(cfg, logger)
		defer req.Close()
		requester = req
	} else {
		logger.Warnf("KAFKA_BROKER not set, intel ingestion disabled")
	}

	engine := correlation.NewEngine(logger)
	runner := scheduler.NewRunner(dbConn, engine, notifier, requester, store.Get, logger)
	controller := scheduler.NewController(runner, store.Get, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.Run(ctx)
	}()

	// SIGHUP re-reads the settings file and recomputes the timers.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			logger.Infof("SIGHUP received, reloading settings")
			if err := store.Reload(); err != nil {
				logger.Errorf("Settings reload failed, keeping previous: %v", err)
				continue
			}
			controller.Reload()
		}
	}()

	// Stream job events to websocket subscribers.
	wsManager := api.NewWebSocketManager(logger)
	events.OnAppend(wsManager.Broadcast)

	handler := api.NewHandler(dbConn, store, runner, controller, notifier, events, logger)
	router := api.NewRouter(handler, wsManager, cfg, logger)

	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown failed: %v", err)
	}
	wg.Wait()
	logger.Infof("Shutdown complete")
}
