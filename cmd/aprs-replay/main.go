package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aminovpavel/aprs-mqtt/internal/app"
	"github.com/aminovpavel/aprs-mqtt/internal/config"
	"github.com/aminovpavel/aprs-mqtt/internal/mqtt"
	"github.com/aminovpavel/aprs-mqtt/internal/observability"
	"github.com/aminovpavel/aprs-mqtt/internal/pipeline"
	"github.com/aminovpavel/aprs-mqtt/internal/replay"
	"github.com/aminovpavel/aprs-mqtt/internal/topic"
)

func main() {
	var (
		source     = flag.String("source", "", "Path to capture file, one APRS-IS line per line (.gz accepted)")
		configPath = flag.String("config", "", "Path to config file (defaults to $APRSMQTT_CONFIG_FILE)")
		limit      = flag.Int("limit", 0, "Limit the number of packets to replay (0 = all)")
		dryRun     = flag.Bool("dry-run", false, "Log topics and payloads instead of publishing")
	)
	flag.Parse()

	if *source == "" {
		log.Fatal("aprs-replay: --source is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New(*configPath)
	if err != nil {
		log.Fatalf("aprs-replay: load config: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, observability.WithFormat(cfg.LogFormat))
	metrics := observability.NewMetrics(observability.WithNamespace("aprs_replay"))

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("aprs-replay: hostname: %v", err)
	}
	builder, err := topic.NewBuilder(hostname, cfg.MQTTSubtopic)
	if err != nil {
		log.Fatalf("aprs-replay: %v", err)
	}

	var publisher pipeline.Publisher = replay.LogPublisher{Logger: observability.Component(logger, "dry-run")}
	if !*dryRun {
		mqttCfg := app.BuildMQTTConfig(cfg, builder, os.Getpid())
		mqttCfg.ClientID += "_replay"
		session, err := mqtt.NewSession(mqttCfg,
			mqtt.WithLogger(observability.Component(logger, "mqtt")),
			mqtt.WithMetrics(metrics),
		)
		if err != nil {
			log.Fatalf("aprs-replay: init mqtt session: %v", err)
		}
		if err := session.Connect(ctx); err != nil {
			log.Fatalf("aprs-replay: connect: %v", err)
		}
		defer session.Close()
		publisher = session
	}

	handler, err := pipeline.NewHandler(pipeline.HandlerConfig{
		Builder:   builder,
		Publisher: publisher,
		Process:   cfg.APRSProcess,
		Reference: app.BuildReference(cfg),
		Logger:    observability.Component(logger, "handler"),
		Metrics:   metrics,
	})
	if err != nil {
		log.Fatalf("aprs-replay: %v", err)
	}

	res, err := replay.ReplayFile(ctx, *source, handler, replay.Options{Limit: *limit})
	if err != nil {
		logger.Error("replay stopped", slog.Any("error", err))
	}

	logger.Info("replay completed",
		slog.String("source", *source),
		slog.Int("packets", res.Lines),
		slog.Int("failed", res.Failed),
		slog.Bool("dry_run", *dryRun),
	)
}
