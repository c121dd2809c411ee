// Package pipeline consumes the APRS-IS feed and republishes every line
// through a Handler, reconnecting to the feed whenever it drops.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aminovpavel/aprs-mqtt/internal/aprsis"
	"github.com/aminovpavel/aprs-mqtt/internal/observability"
	"github.com/aminovpavel/aprs-mqtt/internal/retry"
)

const defaultReconnectDelay = 30 * time.Second

// Feed abstracts the APRS-IS connection behaviour required by the pipeline.
type Feed interface {
	SetFilter(expr string) error
	ReadLine() (aprsis.Line, error)
	Close() error
}

// Dialer opens and logs in a new feed connection.
type Dialer func(ctx context.Context) (Feed, error)

// APRSDialer dials real APRS-IS servers.
func APRSDialer(cfg aprsis.Config, logger *slog.Logger) Dialer {
	return func(ctx context.Context) (Feed, error) {
		client, err := aprsis.Dial(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// State is the feed connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDropped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDropped:
		return "dropped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config controls feed behaviour.
type Config struct {
	// Filter is sent once per connection after login.
	Filter string
	// ReconnectDelay is the wait after a dropped or failed connection.
	ReconnectDelay time.Duration
}

// Pipeline wires the feed with the line handler.
type Pipeline struct {
	dial    Dialer
	handler *Handler
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	errCh   chan error

	state      atomic.Int32
	reconnects atomic.Int64
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics attaches metrics instrumentation.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(p *Pipeline) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// New creates a pipeline instance.
func New(dial Dialer, handler *Handler, cfg Config, opts ...Option) *Pipeline {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	p := &Pipeline{
		dial:    dial,
		handler: handler,
		cfg:     cfg,
		logger:  slog.Default(),
		errCh:   make(chan error, 32),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Errors exposes feed and publish errors. Errors are dropped when nobody reads.
func (p *Pipeline) Errors() <-chan error {
	return p.errCh
}

// State returns the current feed state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Reconnects returns how many reconnect attempts have been made.
func (p *Pipeline) Reconnects() int64 {
	return p.reconnects.Load()
}

// Run consumes the feed until ctx is cancelled, reconnecting after every
// failure without limit. It returns nil on cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.dial == nil {
		return fmt.Errorf("pipeline: dialer is nil")
	}
	if p.handler == nil {
		return fmt.Errorf("pipeline: handler is nil")
	}
	defer p.setState(StateClosed)

	for {
		err := p.consume(ctx)
		if ctx.Err() != nil {
			p.logger.Info("feed stopped")
			return nil
		}

		p.setState(StateDropped)
		p.publishErr(err)
		if errors.Is(err, aprsis.ErrConnectionDrop) {
			p.logger.Warn("aprs-is connection dropped", slog.Duration("retry_in", p.cfg.ReconnectDelay))
		} else {
			p.logger.Error("aprs-is connection failed",
				slog.Duration("retry_in", p.cfg.ReconnectDelay),
				slog.Any("error", err),
			)
		}

		if err := retry.Sleep(ctx, p.cfg.ReconnectDelay); err != nil {
			p.logger.Info("feed stopped")
			return nil
		}
		attempt := p.reconnects.Add(1)
		p.metrics.IncAPRSReconnects()
		p.logger.Info("reconnecting to aprs-is", slog.Int64("attempt", attempt))
	}
}

// consume runs one connection from dial to failure.
func (p *Pipeline) consume(ctx context.Context) error {
	p.setState(StateConnecting)
	feed, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: connect: %w", err)
	}
	defer feed.Close()
	stop := context.AfterFunc(ctx, func() { _ = feed.Close() })
	defer stop()

	if err := feed.SetFilter(p.cfg.Filter); err != nil {
		return fmt.Errorf("pipeline: set filter: %w", err)
	}
	p.setState(StateConnected)
	p.logger.Info("consuming aprs-is feed", slog.String("filter", p.cfg.Filter))

	for {
		line, err := feed.ReadLine()
		if err != nil {
			return err
		}
		if line.IsComment() {
			p.logger.Debug("server comment", slog.String("line", line.Text))
			continue
		}
		if err := p.handler.Handle(line.Text); err != nil {
			p.logger.Warn("publish failed", slog.Any("error", err))
			p.publishErr(err)
		}
	}
}

func (p *Pipeline) setState(state State) {
	p.state.Store(int32(state))
	p.metrics.SetFeedConnected(state == StateConnected)
}

func (p *Pipeline) publishErr(err error) {
	if err == nil {
		return
	}
	select {
	case p.errCh <- err:
	default:
	}
}
