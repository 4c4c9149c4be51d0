package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poyuchen/tickbridge/internal/bridge"
	"github.com/poyuchen/tickbridge/internal/config"
	"github.com/poyuchen/tickbridge/internal/kafka"
	"github.com/poyuchen/tickbridge/internal/upstream"
	"github.com/poyuchen/tickbridge/internal/upstream/sim"
	"github.com/poyuchen/tickbridge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Set up structured logging
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tick bridge",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	hours, err := cfg.Hours()
	if err != nil {
		logger.Error("invalid session configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"contract", cfg.Upstream.Contract,
		"mode", cfg.Upstream.Mode,
		"broker", cfg.Kafka.Broker,
		"topic", cfg.Kafka.Topic,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect the Kafka producer
	writer, err := kafka.NewWriter(kafka.WriterConfig{
		Broker: cfg.Kafka.Broker,
		Topic:  cfg.Kafka.Topic,
	}, logger)
	if err != nil {
		logger.Error("failed to create kafka producer", "error", err)
		os.Exit(1)
	}
	defer writer.Close()

	probe := kafka.NewProbe(kafka.ProbeConfig{
		Broker: cfg.Kafka.Broker,
		Topic:  cfg.Kafka.Topic,
	}, hours, logger)

	svc := bridge.New(bridge.Config{
		MonitorInterval:   cfg.Monitor.Interval,
		Timeout:           cfg.Monitor.Timeout,
		MaxTimeoutRetries: cfg.Monitor.MaxTimeoutRetries,
	}, hours, writer, probe, logger)

	// Build the upstream session. The vendor SDK is injected behind a
	// factory; simulation mode uses the built-in random-walk feed.
	var factory upstream.Factory
	switch cfg.Upstream.Mode {
	case "simulation":
		factory = sim.NewFactory(sim.Config{Location: hours.Location})
	default:
		logger.Error("production vendor SDK binding is not linked in this build",
			"mode", cfg.Upstream.Mode)
		os.Exit(1)
	}

	session := upstream.NewManager(upstream.Config{
		APIKey:       cfg.Upstream.APIKey,
		SecretKey:    cfg.Upstream.SecretKey,
		ContractPath: cfg.Upstream.Contract,
	}, factory, svc.HandleTick, svc.HandleSubscriptionConfirmed, logger)
	svc.SetSession(session)

	// Start health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: svc.HealthHandler(),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Run the supervisor loop until the context is cancelled
	svc.Run(ctx)

	logger.Info("shutting down...")
	svc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("tick bridge stopped")
}
