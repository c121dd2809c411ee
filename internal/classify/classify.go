// Package classify turns parsed APRS packets into flat, category-specific
// records ready for publication.
package classify

import (
	"github.com/aminovpavel/aprs-mqtt/internal/aprs"
)

// Category names the kind of record and doubles as the last topic segment.
type Category string

const (
	CategoryWeather  Category = "weather"
	CategoryPosition Category = "position"
	CategoryObject   Category = "object"
	CategoryMessage  Category = "message"
	CategoryRaw      Category = "raw"
)

const (
	missingComment = "0"
	missingText    = "None"
)

// Message is the normalized output of classification. Fields is one of
// WeatherFields, PositionFields or MessageFields.
type Message struct {
	Category  Category
	StationID string
	Fields    any
}

// WeatherFields is published on the weather topic.
type WeatherFields struct {
	SSID          string  `json:"ssid"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Humidity      float64 `json:"humidity"`
	Pressure      float64 `json:"pressure"`
	Rain1h        float64 `json:"rain_1h"`
	Rain24h       float64 `json:"rain_24h"`
	Temperature   float64 `json:"temperature"`
	WindDirection float64 `json:"wind_direction"`
	WindGust      float64 `json:"wind_gust"`
	WindSpeed     float64 `json:"wind_speed"`
}

// PositionFields is published on the position and object topics.
type PositionFields struct {
	SSID    string  `json:"ssid"`
	Comment string  `json:"comment"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Course  float64 `json:"course"`
	Speed   float64 `json:"speed"`
}

// MessageFields is published on the message topic.
type MessageFields struct {
	SSID    string `json:"ssid"`
	Message string `json:"message"`
}

// Classify picks the category for pkt and extracts its fields. Weather wins
// over the format tag. ok is false for formats that have no category; the
// raw record is still published for those by the caller.
func Classify(pkt aprs.Packet) (Message, bool) {
	id := pkt.From

	if w := pkt.Weather; w != nil {
		return Message{
			Category:  CategoryWeather,
			StationID: id,
			Fields: WeatherFields{
				SSID:          id,
				Lat:           value(pkt.Latitude),
				Lon:           value(pkt.Longitude),
				Humidity:      value(w.Humidity),
				Pressure:      value(w.Pressure),
				Rain1h:        value(w.Rain1h),
				Rain24h:       value(w.Rain24h),
				Temperature:   value(w.Temperature),
				WindDirection: value(w.WindDirection),
				WindGust:      value(w.WindGust),
				WindSpeed:     value(w.WindSpeed),
			},
		}, true
	}

	switch pkt.Format {
	case aprs.FormatUncompressed, aprs.FormatCompressed, aprs.FormatMicE:
		return Message{Category: CategoryPosition, StationID: id, Fields: positionFields(pkt)}, true
	case aprs.FormatObject:
		return Message{Category: CategoryObject, StationID: id, Fields: positionFields(pkt)}, true
	case aprs.FormatMessage:
		return Message{
			Category:  CategoryMessage,
			StationID: id,
			Fields: MessageFields{
				SSID:    id,
				Message: text(pkt.MessageText, missingText),
			},
		}, true
	}
	return Message{}, false
}

func positionFields(pkt aprs.Packet) PositionFields {
	return PositionFields{
		SSID:    pkt.From,
		Comment: text(pkt.Comment, missingComment),
		Lat:     value(pkt.Latitude),
		Lon:     value(pkt.Longitude),
		Course:  value(pkt.Course),
		Speed:   value(pkt.Speed),
	}
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func text(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
