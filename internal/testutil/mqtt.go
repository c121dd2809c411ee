package testutil

import (
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublication is one message a FakeMQTTClient was asked to publish.
type MQTTPublication struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// FakeMQTTBroker hands out FakeMQTTClients and records everything they
// publish. Connect results are consumed in order; once exhausted every
// connect succeeds.
type FakeMQTTBroker struct {
	mu        sync.Mutex
	results   []error
	attempts  int
	published []MQTTPublication
	clients   []*FakeMQTTClient
	options   *pahomqtt.ClientOptions
}

// NewFakeMQTTBroker returns a broker whose connects fail with results in order.
func NewFakeMQTTBroker(results ...error) *FakeMQTTBroker {
	return &FakeMQTTBroker{results: results}
}

// Factory matches mqtt.ClientFactory.
func (b *FakeMQTTBroker) Factory(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.options = opts
	c := &FakeMQTTClient{broker: b, opts: opts}
	b.clients = append(b.clients, c)
	return c
}

func (b *FakeMQTTBroker) nextResult() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if len(b.results) == 0 {
		return nil
	}
	err := b.results[0]
	b.results = b.results[1:]
	return err
}

func (b *FakeMQTTBroker) record(p MQTTPublication) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, p)
}

// Published returns a copy of all publishes so far.
func (b *FakeMQTTBroker) Published() []MQTTPublication {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]MQTTPublication(nil), b.published...)
}

// Attempts returns the number of connect calls.
func (b *FakeMQTTBroker) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Options returns the options passed to the latest client.
func (b *FakeMQTTBroker) Options() *pahomqtt.ClientOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.options
}

// Last returns the most recently created client.
func (b *FakeMQTTBroker) Last() *FakeMQTTClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return nil
	}
	return b.clients[len(b.clients)-1]
}

type FakeMQTTClient struct {
	broker       *FakeMQTTBroker
	opts         *pahomqtt.ClientOptions
	mu           sync.Mutex
	connected    bool
	disconnected bool
}

func (c *FakeMQTTClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *FakeMQTTClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *FakeMQTTClient) Connect() pahomqtt.Token {
	err := c.broker.nextResult()
	if err == nil {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		if c.opts.OnConnect != nil {
			c.opts.OnConnect(c)
		}
	}
	return &fakeMQTTToken{err: err}
}

// DropConnection simulates the broker going away.
func (c *FakeMQTTClient) DropConnection(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	if c.opts.OnConnectionLost != nil {
		c.opts.OnConnectionLost(c, err)
	}
}

// Reconnect simulates paho's automatic reconnect succeeding.
func (c *FakeMQTTClient) Reconnect() {
	if c.opts.OnReconnecting != nil {
		c.opts.OnReconnecting(c, c.opts)
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}
}

// Disconnected reports whether Disconnect was called.
func (c *FakeMQTTClient) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *FakeMQTTClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *FakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	c.broker.record(MQTTPublication{Topic: topic, Payload: body, QoS: qos, Retained: retained})
	return &fakeMQTTToken{}
}

func (c *FakeMQTTClient) Subscribe(string, byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeMQTTToken{}
}

func (c *FakeMQTTClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeMQTTToken{}
}

func (c *FakeMQTTClient) Unsubscribe(...string) pahomqtt.Token { return &fakeMQTTToken{} }

func (c *FakeMQTTClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (c *FakeMQTTClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(c.opts)
}

type fakeMQTTToken struct {
	err error
}

func (t *fakeMQTTToken) Wait() bool                     { return true }
func (t *fakeMQTTToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeMQTTToken) Error() error                   { return t.err }

func (t *fakeMQTTToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
