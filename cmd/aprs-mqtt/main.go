package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/aminovpavel/aprs-mqtt/internal/app"
	"github.com/aminovpavel/aprs-mqtt/internal/config"
	"github.com/aminovpavel/aprs-mqtt/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file (.yaml, .yml or .toml); defaults to $APRSMQTT_CONFIG_FILE")
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aprs-mqtt: load config: %v\n", err)
		return 1
	}

	out, closeLog, err := observability.OpenLogFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aprs-mqtt: %v\n", err)
		return 1
	}
	defer closeLog()

	logger := observability.NewLogger(cfg.LogLevel,
		observability.WithFormat(cfg.LogFormat),
		observability.WithWriter(out),
	)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received atomic.Value
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		received.Store(sig)
		logger.Info("signal received, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	metrics := observability.NewMetrics()
	obsServer := observability.NewServer(observability.ServerConfig{
		Address: cfg.ObservabilityAddress,
		Logger:  observability.Component(logger, "observability"),
		Metrics: metrics,
	})
	go obsServer.Run(ctx)

	bridge, err := app.New(cfg,
		app.WithLogger(logger),
		app.WithMetrics(metrics),
	)
	if err != nil {
		logger.Error("failed to initialise bridge", slog.Any("error", err))
		return 1
	}

	logger.Info("aprs-mqtt starting",
		slog.String("name", cfg.Name),
		slog.String("broker_host", cfg.MQTTHost),
		slog.Int("broker_port", cfg.MQTTPort),
		slog.String("aprs_host", cfg.APRSHost),
		slog.Int("aprs_port", cfg.APRSPort),
		slog.String("config", cfg.ConfigPath),
	)

	runErr := bridge.Run(ctx)
	if runErr != nil {
		logger.Error("bridge stopped with error", slog.Any("error", runErr))
	}

	sig, _ := received.Load().(os.Signal)
	code := app.ExitCode(sig, runErr)
	logger.Info("aprs-mqtt stopped", slog.Int("exit_status", code))
	return code
}
