// Package topic maps classified APRS records to MQTT topics and payloads.
package topic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aminovpavel/aprs-mqtt/internal/classify"
)

// ErrInvalidFields is returned when a classified message carries fields the
// builder cannot encode.
var ErrInvalidFields = errors.New("topic: invalid message fields")

// Publication is a single MQTT publish.
type Publication struct {
	Topic   string
	Payload []byte
}

// Builder derives topics from a fixed root, raw/<hostname>/<subtopic>.
type Builder struct {
	root     string
	presence string
}

// NewBuilder validates hostname and subtopic and prepares the topic roots.
func NewBuilder(hostname, subtopic string) (Builder, error) {
	hostname = strings.Trim(strings.TrimSpace(hostname), "/")
	subtopic = strings.Trim(strings.TrimSpace(subtopic), "/")
	if hostname == "" {
		return Builder{}, errors.New("topic: hostname must be provided")
	}
	if subtopic == "" {
		return Builder{}, errors.New("topic: subtopic must be provided")
	}
	return Builder{
		root:     join("raw", hostname, subtopic),
		presence: join("clients", hostname, subtopic, "state"),
	}, nil
}

// Root is the data topic root; pass-through packets are published on it.
func (b Builder) Root() string { return b.root }

// Presence is the retained online/offline topic.
func (b Builder) Presence() string { return b.presence }

// Raw publishes the unmodified packet under the station's own subtree.
func (b Builder) Raw(stationID, raw string) Publication {
	return Publication{
		Topic:   join(b.root, stationID, string(classify.CategoryRaw)),
		Payload: payload(raw),
	}
}

// Passthrough publishes the packet on the root without classification.
func (b Builder) Passthrough(raw string) Publication {
	return Publication{Topic: b.root, Payload: payload(raw)}
}

// Build encodes a classified message as JSON on <root>/<category>. Station
// identity travels in the payload, not in the topic.
func (b Builder) Build(msg classify.Message) (Publication, error) {
	if msg.Category == classify.CategoryRaw {
		raw, ok := msg.Fields.(string)
		if !ok {
			return Publication{}, fmt.Errorf("%w: raw message without text", ErrInvalidFields)
		}
		return b.Raw(msg.StationID, raw), nil
	}

	switch msg.Fields.(type) {
	case classify.WeatherFields, classify.PositionFields, classify.MessageFields:
	default:
		return Publication{}, fmt.Errorf("%w: %T", ErrInvalidFields, msg.Fields)
	}

	data, err := json.Marshal(msg.Fields)
	if err != nil {
		return Publication{}, fmt.Errorf("topic: encode %s: %w", msg.Category, err)
	}
	return Publication{
		Topic:   join(b.root, string(msg.Category)),
		Payload: payload(string(data)),
	}, nil
}

func payload(s string) []byte {
	return []byte(strings.TrimSpace(s))
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
