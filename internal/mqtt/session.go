package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/aminovpavel/aprs-mqtt/internal/observability"
	"github.com/aminovpavel/aprs-mqtt/internal/retry"
)

// ClientFactory builds the underlying paho client; tests swap it for a fake.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Session owns the broker connection and the retained presence topic.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	factory ClientFactory

	mu     sync.RWMutex
	client pahomqtt.Client

	// presenceMu orders the online presence of a late reconnect against the
	// offline presence of Close.
	presenceMu sync.Mutex
	state      atomic.Int32
	closing    atomic.Bool
	closeOnce  sync.Once
}

// Option configures the session.
type Option func(*Session)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches metrics instrumentation.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Session) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClientFactory overrides how paho clients are created.
func WithClientFactory(factory ClientFactory) Option {
	return func(s *Session) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// NewSession validates cfg and prepares a disconnected session.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalise()

	s := &Session{
		cfg:     cfg,
		logger:  slog.Default(),
		factory: pahomqtt.NewClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsConnected reports whether publishes can currently be sent.
func (s *Session) IsConnected() bool {
	if s.State() != StateConnected {
		return false
	}
	client := s.currentClient()
	return client != nil && client.IsConnected()
}

// Connect blocks until the broker accepts the session. Transient failures are
// retried without limit; refusals that retrying cannot fix return ErrRefused.
// Returning nil is the signal that the feed may start.
func (s *Session) Connect(ctx context.Context) error {
	if s.closing.Load() {
		return fmt.Errorf("%w: session closed", ErrNotConnected)
	}
	opts := s.clientOptions()

	s.logger.Info("connecting to broker",
		slog.String("broker", s.cfg.BrokerURL()),
		slog.String("client_id", s.cfg.ClientID),
		slog.Bool("tls", s.cfg.TLS),
	)

	err := retry.Do(ctx, retry.Config{
		Delay: s.cfg.ConnectRetryDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.logger.Info("broker connection failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		},
	}, func(attempt int) error {
		return s.attempt(opts, attempt)
	})
	if err != nil {
		s.setState(StateDisconnected)
		if retry.IsNonRetryable(err) {
			return errors.Unwrap(err)
		}
		return err
	}
	return nil
}

func (s *Session) attempt(opts *pahomqtt.ClientOptions, attempt int) error {
	s.setState(StateConnecting)

	client := s.factory(opts)
	code, err := s.dial(client)
	decision := s.cfg.DecideConnect(code)
	s.metrics.IncMQTTConnectAttempts(decision.Action.String())

	s.logger.Debug("connect result",
		slog.Int("attempt", attempt),
		slog.Int("result_code", int(code)),
		slog.String("action", decision.Action.String()),
	)

	switch decision.Action {
	case ActionProceed:
		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
		s.setState(StateConnected)
		s.logger.Info("connected to broker", slog.String("broker", s.cfg.BrokerURL()))
		return nil
	case ActionRetry:
		s.setState(StateDisconnected)
		if err == nil {
			err = errors.New(decision.Reason)
		}
		return retry.After(fmt.Errorf("mqtt: %s: %w", decision.Reason, err), decision.Delay)
	default:
		s.setState(StateDisconnected)
		s.logger.Error("broker refused connection",
			slog.Int("result_code", int(code)),
			slog.String("reason", decision.Reason),
		)
		return retry.NonRetryable(fmt.Errorf("%w: %s (code %d)", ErrRefused, decision.Reason, code))
	}
}

// dial runs one connect attempt and returns its result code.
func (s *Session) dial(client pahomqtt.Client) (byte, error) {
	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return packets.ErrNetworkError, fmt.Errorf("%w: connect after %v", ErrTimeout, s.cfg.ConnectTimeout)
	}
	err := token.Error()
	if err == nil {
		return packets.Accepted, nil
	}
	return resultCode(token, err), err
}

// resultCode recovers the CONNACK code from a failed connect token.
func resultCode(token pahomqtt.Token, err error) byte {
	if ct, ok := token.(*pahomqtt.ConnectToken); ok && ct.ReturnCode() != packets.Accepted {
		return ct.ReturnCode()
	}
	for code, known := range packets.ConnErrors {
		if known != nil && errors.Is(err, known) {
			return code
		}
	}
	return packets.ErrNetworkError
}

func (s *Session) clientOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(s.cfg.BrokerURL())
	opts.SetClientID(s.cfg.ClientID)
	opts.SetKeepAlive(s.cfg.KeepAlive)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)

	// Initial connects are retried by Connect; paho only handles reconnects
	// after a session was established.
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(s.cfg.ReconnectDelay)

	if s.cfg.Username != "" {
		s.logger.Info("using broker credentials", slog.String("username", s.cfg.Username))
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	if s.cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetWill(s.cfg.PresenceTopic, presenceOffline, 0, true)

	opts.SetOnConnectHandler(s.handleConnect)
	opts.SetConnectionLostHandler(s.handleConnectionLost)
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		s.setState(StateConnecting)
		s.logger.Info("reconnecting to broker", slog.String("broker", s.cfg.BrokerURL()))
	})
	return opts
}

// handleConnect runs on the initial connect and on every automatic reconnect.
func (s *Session) handleConnect(client pahomqtt.Client) {
	s.presenceMu.Lock()
	defer s.presenceMu.Unlock()
	if s.closing.Load() {
		s.logger.Debug("connected while closing, presence left offline")
		return
	}
	s.setState(StateConnected)
	client.Publish(s.cfg.PresenceTopic, 0, true, presenceOnline)
	s.logger.Debug("presence published",
		slog.String("topic", s.cfg.PresenceTopic),
		slog.String("payload", presenceOnline),
	)
}

func (s *Session) handleConnectionLost(_ pahomqtt.Client, err error) {
	decision := s.cfg.DecideDisconnect(s.closing.Load())
	if decision.Action == ActionProceed {
		s.logger.Info("clean disconnect")
		return
	}

	s.setState(StateDropped)
	s.metrics.IncMQTTConnectionLost()
	s.logger.Warn("unexpected disconnection, reconnecting",
		slog.Duration("max_delay", decision.Delay),
		slog.Any("error", err),
	)
}

// Publish sends payload to topic at QoS 0 without waiting for delivery.
func (s *Session) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	body := strings.TrimSpace(string(payload))
	s.currentClient().Publish(topic, 0, false, body)
	s.logger.Debug("published", slog.String("topic", topic), slog.Int("bytes", len(body)))
	return nil
}

// Close publishes the offline presence and disconnects. Safe to call more
// than once and before Connect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.presenceMu.Lock()
		s.closing.Store(true)
		s.presenceMu.Unlock()

		client := s.currentClient()
		if client != nil {
			if client.IsConnected() {
				s.logger.Info("disconnecting from broker")
				token := client.Publish(s.cfg.PresenceTopic, 0, true, presenceOffline)
				if !token.WaitTimeout(defaultPublishTimeout) {
					s.logger.Warn("offline presence not confirmed", slog.Duration("timeout", defaultPublishTimeout))
				}
			}
			client.Disconnect(defaultDisconnectQuiesce)
		}
		s.setState(StateClosed)
	})
	return nil
}

func (s *Session) currentClient() pahomqtt.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Session) setState(state State) {
	if s.State() == StateClosed {
		return
	}
	s.state.Store(int32(state))
	s.metrics.SetMQTTConnected(state == StateConnected)
}
