package classify_test

import (
	"testing"

	"github.com/aminovpavel/aprs-mqtt/internal/aprs"
	"github.com/aminovpavel/aprs-mqtt/internal/classify"
)

func ptr[T any](v T) *T { return &v }

func classified(t *testing.T, pkt aprs.Packet) classify.Message {
	t.Helper()
	msg, ok := classify.Classify(pkt)
	if !ok {
		t.Fatalf("expected format %q to classify", pkt.Format)
	}
	return msg
}

func TestClassifyWeatherDefaultsMissingFields(t *testing.T) {
	msg := classified(t, aprs.Packet{
		From:   "WX1ABC",
		Format: aprs.FormatWeather,
		Weather: &aprs.Weather{
			Temperature: ptr(21.5),
		},
	})

	if msg.Category != classify.CategoryWeather || msg.StationID != "WX1ABC" {
		t.Fatalf("unexpected message %s/%s", msg.Category, msg.StationID)
	}
	if want := (classify.WeatherFields{SSID: "WX1ABC", Temperature: 21.5}); msg.Fields != want {
		t.Fatalf("expected %+v, got %+v", want, msg.Fields)
	}
}

func TestClassifyWeatherWinsOverFormat(t *testing.T) {
	for _, format := range []aprs.Format{aprs.FormatUncompressed, aprs.FormatCompressed, aprs.FormatObject, aprs.FormatStatus, ""} {
		msg := classified(t, aprs.Packet{
			From:      "WX1ABC",
			Format:    format,
			Latitude:  ptr(40.0),
			Longitude: ptr(-75.0),
			Weather:   &aprs.Weather{},
		})
		if msg.Category != classify.CategoryWeather {
			t.Fatalf("format %q: expected weather, got %s", format, msg.Category)
		}

		fields, ok := msg.Fields.(classify.WeatherFields)
		if !ok {
			t.Fatalf("format %q: expected WeatherFields, got %T", format, msg.Fields)
		}
		if fields.Lat != 40.0 || fields.Lon != -75.0 {
			t.Fatalf("format %q: unexpected position %v,%v", format, fields.Lat, fields.Lon)
		}
	}
}

func TestClassifyWeatherWithDroppedValue(t *testing.T) {
	pkt, err := aprs.Parse("N0CALL>APRS:_10090556c220s004g005tNaNh50b09900")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	fields, ok := classified(t, pkt).Fields.(classify.WeatherFields)
	if !ok {
		t.Fatalf("expected WeatherFields")
	}
	if fields.Temperature != 0 || fields.Humidity != 50 || fields.Pressure != 990 {
		t.Fatalf("unexpected weather %+v", fields)
	}
}

func TestClassifyPositionFormats(t *testing.T) {
	tests := []struct {
		format aprs.Format
		want   classify.Category
	}{
		{aprs.FormatUncompressed, classify.CategoryPosition},
		{aprs.FormatCompressed, classify.CategoryPosition},
		{aprs.FormatMicE, classify.CategoryPosition},
		{aprs.FormatObject, classify.CategoryObject},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			msg := classified(t, aprs.Packet{
				From:      "N0CALL-9",
				Format:    tt.format,
				Latitude:  ptr(40.0),
				Longitude: ptr(-75.0),
				Course:    ptr(90.0),
				Speed:     ptr(5.0),
				Comment:   ptr("Test"),
			})
			if msg.Category != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, msg.Category)
			}
			want := classify.PositionFields{
				SSID:    "N0CALL-9",
				Comment: "Test",
				Lat:     40.0,
				Lon:     -75.0,
				Course:  90,
				Speed:   5,
			}
			if msg.Fields != want {
				t.Fatalf("expected %+v, got %+v", want, msg.Fields)
			}
		})
	}
}

func TestClassifyPositionDefaults(t *testing.T) {
	msg := classified(t, aprs.Packet{From: "N0CALL", Format: aprs.FormatMicE})
	if want := (classify.PositionFields{SSID: "N0CALL", Comment: "0"}); msg.Fields != want {
		t.Fatalf("expected %+v, got %+v", want, msg.Fields)
	}
}

func TestClassifyMessage(t *testing.T) {
	msg := classified(t, aprs.Packet{
		From:        "N0CALL",
		Format:      aprs.FormatMessage,
		MessageText: ptr("hello"),
	})
	if msg.Category != classify.CategoryMessage {
		t.Fatalf("expected message category, got %s", msg.Category)
	}
	if want := (classify.MessageFields{SSID: "N0CALL", Message: "hello"}); msg.Fields != want {
		t.Fatalf("expected %+v, got %+v", want, msg.Fields)
	}

	msg = classified(t, aprs.Packet{From: "N0CALL", Format: aprs.FormatMessage})
	if want := (classify.MessageFields{SSID: "N0CALL", Message: "None"}); msg.Fields != want {
		t.Fatalf("expected %+v, got %+v", want, msg.Fields)
	}
}

func TestClassifyUnsupportedFormats(t *testing.T) {
	for _, format := range []aprs.Format{aprs.FormatStatus, aprs.FormatTelemetryMessage, "beacon", ""} {
		if _, ok := classify.Classify(aprs.Packet{From: "N0CALL", Format: format}); ok {
			t.Fatalf("format %q should not classify", format)
		}
	}
}
