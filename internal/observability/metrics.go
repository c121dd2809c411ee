package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles Prometheus metrics used across the bridge.
type Metrics struct {
	namespace string

	packetsReceived prometheus.Counter
	parseErrors     prometheus.Counter
	unclassified    prometheus.Counter
	published       *prometheus.CounterVec
	publishErrors   prometheus.Counter
	mqttConnects    *prometheus.CounterVec
	mqttLost        prometheus.Counter
	mqttConnected   prometheus.Gauge
	feedReconnects  prometheus.Counter
	feedConnected   prometheus.Gauge
	stationDistance prometheus.Histogram

	mqttUp atomic.Bool
	feedUp atomic.Bool
}

// MetricsOption customises metrics creation.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	namespace string
	registry  prometheus.Registerer
}

// WithNamespace overrides the metric namespace (default: aprs_mqtt).
func WithNamespace(ns string) MetricsOption {
	return func(cfg *metricsConfig) {
		if ns != "" {
			cfg.namespace = ns
		}
	}
}

// WithRegistry overrides the Prometheus registerer (useful for tests).
func WithRegistry(reg prometheus.Registerer) MetricsOption {
	return func(cfg *metricsConfig) {
		if reg != nil {
			cfg.registry = reg
		}
	}
}

// NewMetrics initialises and registers bridge metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{
		namespace: "aprs_mqtt",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.registry)
	return &Metrics{
		namespace: cfg.namespace,
		packetsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "packets_received_total",
			Help:      "Total number of lines received from APRS-IS, server comments excluded.",
		}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "parse_errors_total",
			Help:      "Total number of lines the APRS parser rejected.",
		}),
		unclassified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "packets_unclassified_total",
			Help:      "Total number of parsed packets with no category message.",
		}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "messages_published_total",
			Help:      "Total number of MQTT publishes, partitioned by kind.",
		}, []string{"kind"}),
		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of publishes rejected by the MQTT session.",
		}),
		mqttConnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "mqtt_connect_attempts_total",
			Help:      "Total number of broker connect attempts, partitioned by outcome.",
		}, []string{"result"}),
		mqttLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "mqtt_connection_lost_total",
			Help:      "Total number of unexpected broker disconnections.",
		}),
		mqttConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker session is connected.",
		}),
		feedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "aprs_reconnects_total",
			Help:      "Total number of APRS-IS reconnect attempts.",
		}),
		feedConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "aprs_connected",
			Help:      "1 while the APRS-IS feed is being consumed.",
		}),
		stationDistance: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "station_distance",
			Help:      "Distance of reporting stations from the reference position, in the configured unit.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
}

// IncPacketsReceived increments the received line counter.
func (m *Metrics) IncPacketsReceived() {
	if m == nil {
		return
	}
	m.packetsReceived.Inc()
}

// IncParseErrors increments the parse failure counter.
func (m *Metrics) IncParseErrors() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

// IncUnclassified notes a packet that produced only a raw publish.
func (m *Metrics) IncUnclassified() {
	if m == nil {
		return
	}
	m.unclassified.Inc()
}

// IncPublished records a publish of the given kind (raw, passthrough or a category).
func (m *Metrics) IncPublished(kind string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind).Inc()
}

// IncPublishErrors increments the publish failure counter.
func (m *Metrics) IncPublishErrors() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

// IncMQTTConnectAttempts records one connect attempt and its outcome.
func (m *Metrics) IncMQTTConnectAttempts(result string) {
	if m == nil {
		return
	}
	m.mqttConnects.WithLabelValues(result).Inc()
}

// IncMQTTConnectionLost notes an unexpected broker disconnection.
func (m *Metrics) IncMQTTConnectionLost() {
	if m == nil {
		return
	}
	m.mqttLost.Inc()
}

// SetMQTTConnected tracks the broker session state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	m.mqttUp.Store(connected)
	m.mqttConnected.Set(boolGauge(connected))
}

// IncAPRSReconnects notes a feed reconnect attempt.
func (m *Metrics) IncAPRSReconnects() {
	if m == nil {
		return
	}
	m.feedReconnects.Inc()
}

// SetFeedConnected tracks whether the feed is consuming.
func (m *Metrics) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	m.feedUp.Store(connected)
	m.feedConnected.Set(boolGauge(connected))
}

// ObserveDistance records a station distance.
func (m *Metrics) ObserveDistance(d float64) {
	if m == nil {
		return
	}
	m.stationDistance.Observe(d)
}

// Status is a snapshot of the two connections the bridge depends on.
type Status struct {
	MQTT bool
	Feed bool
}

// Healthy reports whether both connections are up.
func (s Status) Healthy() bool {
	return s.MQTT && s.Feed
}

// String renders the snapshot as "mqtt=connected feed=disconnected".
func (s Status) String() string {
	return "mqtt=" + linkState(s.MQTT) + " feed=" + linkState(s.Feed)
}

func linkState(up bool) string {
	if up {
		return "connected"
	}
	return "disconnected"
}

// Status reports the last known broker and feed state. A nil Metrics has
// nothing to track and reports both as up.
func (m *Metrics) Status() Status {
	if m == nil {
		return Status{MQTT: true, Feed: true}
	}
	return Status{MQTT: m.mqttUp.Load(), Feed: m.feedUp.Load()}
}

// Healthy reports whether both the broker session and the feed are up.
func (m *Metrics) Healthy() bool {
	return m.Status().Healthy()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
