package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultKeepAlive              = 30 * time.Second
	defaultConnectTimeout         = 10 * time.Second
	defaultConnectRetryDelay      = 10 * time.Second
	defaultServerUnavailableDelay = 30 * time.Second
	defaultReconnectDelay         = 5 * time.Second
	defaultPublishTimeout         = 5 * time.Second
	defaultDisconnectQuiesce      = 250 // milliseconds

	presenceOnline  = "1"
	presenceOffline = "0"
)

// Config holds connection parameters for the MQTT broker.
type Config struct {
	BrokerHost    string
	BrokerPort    int
	TLS           bool
	Username      string
	Password      string
	ClientID      string
	PresenceTopic string
	KeepAlive     time.Duration

	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration
	// ConnectRetryDelay is the wait after a failed attempt that got no CONNACK.
	ConnectRetryDelay time.Duration
	// ServerUnavailableDelay is the wait after CONNACK code 3.
	ServerUnavailableDelay time.Duration
	// ReconnectDelay caps the automatic reconnect interval after a lost connection.
	ReconnectDelay time.Duration
}

// BrokerURL returns the paho broker address, ssl:// when TLS is enabled.
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.BrokerHost, c.BrokerPort)
}

func (c *Config) normalise() {
	if c.KeepAlive == 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ConnectRetryDelay == 0 {
		c.ConnectRetryDelay = defaultConnectRetryDelay
	}
	if c.ServerUnavailableDelay == 0 {
		c.ServerUnavailableDelay = defaultServerUnavailableDelay
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BrokerHost) == "" {
		return errors.New("mqtt: broker host must be provided")
	}
	if c.BrokerPort <= 0 {
		return errors.New("mqtt: broker port must be positive")
	}
	if strings.TrimSpace(c.PresenceTopic) == "" {
		return errors.New("mqtt: presence topic must be provided")
	}
	return nil
}
