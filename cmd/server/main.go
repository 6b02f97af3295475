package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"society-live/auth"
	"society-live/contract"
	"society-live/infrastructure/api"
	natsbackbone "society-live/infrastructure/nats"
	"society-live/infrastructure/storage"
	"society-live/infrastructure/ws"
	"society-live/internal"
	"society-live/observability"
	"society-live/runtime"
	"society-live/runtime/workers"
	"society-live/services"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	sequencerStripes = 256
	debugPort        = 8081
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a fatal error.
// Returning instead of exiting lets the deferred closers run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()
	debug := logger.Enabled(ctx, slog.LevelDebug)

	// 2. Database (BadgerDB)
	db, err := storage.Open(config.BadgerFilepath, logger, debug)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	pollRepository := storage.NewPollRepository(db)
	bookingRepository := storage.NewBookingRepository(db)
	notificationRepository := storage.NewNotificationRepository(db)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// 4. Sessions, rooms & fan-out
	authenticator := auth.NewAuthenticator(config.JWTSecret, config.JWTIssuer)
	rooms := runtime.NewRegistry()
	policy := runtime.NewRoomPolicy(pollRepository, bookingRepository, runtime.ManagersOnly{})
	sessions := runtime.NewSessionManager(logger, rooms, authenticator, policy, metrics,
		config.SendQueueSize, config.SendTimeout)

	backbone, err := buildBackbone(config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = backbone.Close() }()

	router := runtime.NewRouter(logger, rooms, sessions, backbone, metrics)
	if err := router.Start(); err != nil {
		return exitRuntime, fmt.Errorf("backbone subscription failed: %w", err)
	}

	if debug {
		internal.StartDebugServer(logger, db, debugPort, "/inspect", internal.DefaultMapper, func() map[string]any {
			return map[string]any{"sessions": sessions.Count(), "rooms": sessions.RoomCount()}
		})
	}

	// 5. Services
	sequencer := runtime.NewSequencer(sequencerStripes)
	pollService := services.NewPollService(logger, pollRepository, router, sequencer, metrics, nil)
	bookingService := services.NewBookingService(logger, bookingRepository, router, sequencer, metrics,
		config.Location(), nil)
	notificationService := services.NewNotificationService(logger, notificationRepository, router, metrics, nil)

	// 6. Background workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewIdleReaperWorker(logger, sessions, config.IdleTimeout, config.ReaperInterval),
		workers.NewBookingReminderWorker(logger, bookingService, config.ReminderLead, config.ReminderInterval),
		workers.NewPollCloserWorker(logger, pollService, config.PollCloseInterval),
		workers.NewProcessStatsWorker(logger, metrics, sessions, config.MetricInterval),
	)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		logger.Info("Starting workers...")
		sup.Run(ctx)
	}()

	// 8. HTTP & websocket server
	wsHandler := ws.NewHandler(logger, sessions, ws.Config{
		InboundRate:    config.InboundRate,
		InboundBurst:   config.InboundBurst,
		ReadTimeout:    config.IdleTimeout,
		AllowedOrigins: config.Origins(),
	})
	apiServer := api.NewServer(logger, authenticator, pollService, bookingService, notificationService,
		router, policy, metrics, registry, wsHandler)

	address := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	httpServer := &http.Server{
		Addr:              address,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 10. Graceful shutdown: stop accepting, close live sessions, drain workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sessions.CloseAll()
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// buildBackbone relays broadcasts through NATS when configured, so that other
// publishers and nodes reach the same rooms. A single node uses the in-process
// one. The store stays per node: only one node may serve mutations.
func buildBackbone(config internal.Config, logger *slog.Logger) (contract.Backbone, error) {
	if config.NatsURL == "" {
		logger.Info("Single node mode, no NATS_URL configured")
		return runtime.NewLocalBackbone(), nil
	}
	backbone, err := natsbackbone.Connect(logger, config.NatsURL, config.NodeName)
	if err != nil {
		return nil, err
	}
	logger.Warn("NATS relays events only, votes and bookings stay consistent within this node's store",
		"node", config.NodeName)
	return backbone, nil
}
