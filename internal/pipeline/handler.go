package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aminovpavel/aprs-mqtt/internal/aprs"
	"github.com/aminovpavel/aprs-mqtt/internal/classify"
	"github.com/aminovpavel/aprs-mqtt/internal/geo"
	"github.com/aminovpavel/aprs-mqtt/internal/observability"
	"github.com/aminovpavel/aprs-mqtt/internal/topic"
)

// Publisher abstracts the MQTT session behaviour required by the handler.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// ParseFunc turns one APRS-IS line into a packet.
type ParseFunc func(line string) (aprs.Packet, error)

const (
	kindRaw         = "raw"
	kindPassthrough = "passthrough"
)

// HandlerConfig wires the per-line processing chain.
type HandlerConfig struct {
	Builder   topic.Builder
	Publisher Publisher
	// Process enables parsing and classification; when false every line is
	// published verbatim on the topic root.
	Process   bool
	Reference *geo.Reference
	// Parse defaults to aprs.Parse.
	Parse   ParseFunc
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Handler publishes a single APRS-IS line. It is shared by the live feed and
// capture replay.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler validates cfg and fills defaults.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("pipeline: publisher is nil")
	}
	if cfg.Builder.Root() == "" {
		return nil, errors.New("pipeline: topic builder is not initialised")
	}
	if cfg.Parse == nil {
		cfg.Parse = aprs.Parse
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoOpLogger()
	}
	return &Handler{cfg: cfg}, nil
}

// Handle publishes line. Parse failures and unclassified packets are not
// errors; the returned error joins any publish failures.
func (h *Handler) Handle(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	h.cfg.Metrics.IncPacketsReceived()

	if !h.cfg.Process {
		return h.publish(kindPassthrough, h.cfg.Builder.Passthrough(line))
	}

	pkt, err := h.cfg.Parse(line)
	if err != nil {
		h.cfg.Metrics.IncParseErrors()
		h.cfg.Logger.Debug("unparseable packet", slog.String("line", line), slog.Any("error", err))
		return nil
	}
	raw := pkt.Raw
	if raw == "" {
		raw = line
	}

	errs := []error{h.publish(kindRaw, h.cfg.Builder.Raw(pkt.From, raw))}
	h.observeDistance(pkt)

	msg, ok := classify.Classify(pkt)
	if !ok {
		h.cfg.Metrics.IncUnclassified()
		h.cfg.Logger.Debug("no category for packet",
			slog.String("from", pkt.From),
			slog.String("format", string(pkt.Format)),
		)
		return errors.Join(errs...)
	}

	pub, err := h.cfg.Builder.Build(msg)
	if err != nil {
		errs = append(errs, fmt.Errorf("pipeline: build %s: %w", msg.Category, err))
	} else {
		errs = append(errs, h.publish(string(msg.Category), pub))
	}
	return errors.Join(errs...)
}

func (h *Handler) publish(kind string, pub topic.Publication) error {
	if err := h.cfg.Publisher.Publish(pub.Topic, pub.Payload); err != nil {
		h.cfg.Metrics.IncPublishErrors()
		return fmt.Errorf("pipeline: publish %s to %s: %w", kind, pub.Topic, err)
	}
	h.cfg.Metrics.IncPublished(kind)
	h.cfg.Logger.Debug("published", slog.String("topic", pub.Topic), slog.String("payload", string(pub.Payload)))
	return nil
}

func (h *Handler) observeDistance(pkt aprs.Packet) {
	if !pkt.HasPosition() {
		return
	}
	d, ok := h.cfg.Reference.DistanceTo(geo.Point{Lat: *pkt.Latitude, Lon: *pkt.Longitude})
	if !ok {
		return
	}
	h.cfg.Metrics.ObserveDistance(d)
	h.cfg.Logger.Debug("station distance",
		slog.String("from", pkt.From),
		slog.Float64("distance", d),
		slog.String("unit", h.cfg.Reference.Unit()),
	)
}
