// Package app assembles the bridge from configuration and supervises its
// lifetime: broker first, then the feed, then an orderly shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/aminovpavel/aprs-mqtt/internal/config"
	"github.com/aminovpavel/aprs-mqtt/internal/mqtt"
	"github.com/aminovpavel/aprs-mqtt/internal/observability"
	"github.com/aminovpavel/aprs-mqtt/internal/pipeline"
	"github.com/aminovpavel/aprs-mqtt/internal/topic"
)

// Session is the broker side of the bridge.
type Session interface {
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte) error
	Close() error
}

// Feed is the APRS-IS side of the bridge.
type Feed interface {
	Run(ctx context.Context) error
}

// Bridge runs the broker session and the feed in order.
type Bridge struct {
	session Session
	feed    Feed
	logger  *slog.Logger
}

// Option customises bridge assembly in New.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	metrics       *observability.Metrics
	hostname      string
	pid           int
	clientFactory mqtt.ClientFactory
	dialer        pipeline.Dialer
}

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches metrics instrumentation to every component.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithHostname overrides the hostname used in topics.
func WithHostname(hostname string) Option {
	return func(o *options) {
		o.hostname = hostname
	}
}

// WithClientFactory overrides how paho clients are created.
func WithClientFactory(factory mqtt.ClientFactory) Option {
	return func(o *options) {
		o.clientFactory = factory
	}
}

// WithDialer overrides how the feed connects to APRS-IS.
func WithDialer(dial pipeline.Dialer) Option {
	return func(o *options) {
		o.dialer = dial
	}
}

// New builds the topic layout, broker session, line handler and feed from cfg.
func New(cfg *config.App, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		return nil, errors.New("app: config is nil")
	}
	o := options{logger: slog.Default(), pid: os.Getpid()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hostname == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("app: hostname: %w", err)
		}
		o.hostname = host
	}

	builder, err := topic.NewBuilder(o.hostname, cfg.MQTTSubtopic)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	sessionOpts := []mqtt.Option{
		mqtt.WithLogger(observability.Component(o.logger, "mqtt")),
		mqtt.WithMetrics(o.metrics),
	}
	if o.clientFactory != nil {
		sessionOpts = append(sessionOpts, mqtt.WithClientFactory(o.clientFactory))
	}
	session, err := mqtt.NewSession(BuildMQTTConfig(cfg, builder, o.pid), sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	handler, err := pipeline.NewHandler(pipeline.HandlerConfig{
		Builder:   builder,
		Publisher: session,
		Process:   cfg.APRSProcess,
		Reference: BuildReference(cfg),
		Logger:    observability.Component(o.logger, "handler"),
		Metrics:   o.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	dial := o.dialer
	if dial == nil {
		dial = pipeline.APRSDialer(BuildFeedConfig(cfg), observability.Component(o.logger, "aprsis"))
	}
	feed := pipeline.New(dial, handler, BuildPipelineConfig(cfg),
		pipeline.WithLogger(observability.Component(o.logger, "pipeline")),
		pipeline.WithMetrics(o.metrics),
	)

	o.logger.Info("bridge configured",
		slog.String("topic_root", builder.Root()),
		slog.String("presence_topic", builder.Presence()),
		slog.Bool("process", cfg.APRSProcess),
	)
	return NewBridge(session, feed, o.logger), nil
}

// NewBridge wires already-built components.
func NewBridge(session Session, feed Feed, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{session: session, feed: feed, logger: logger}
}

// Run blocks in the broker connect, then consumes the feed until ctx is
// cancelled. The feed is never started when the broker refuses the session.
// The session is closed before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.shutdown()

	if err := b.session.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("app: broker connect: %w", err)
	}

	b.logger.Info("broker ready, starting feed")
	if err := b.feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: feed: %w", err)
	}
	return nil
}

func (b *Bridge) shutdown() {
	b.logger.Info("shutting down")
	if err := b.session.Close(); err != nil {
		b.logger.Error("broker close error", slog.Any("error", err))
	}
}

// ExitCode maps how the bridge stopped to a process exit status: the signal
// number after SIGINT/SIGTERM, 1 after a fatal error, 0 otherwise.
func ExitCode(sig os.Signal, err error) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	if err != nil {
		return 1
	}
	return 0
}
