package aprs_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/aminovpavel/aprs-mqtt/internal/aprs"
)

func parse(t *testing.T, line string) aprs.Packet {
	t.Helper()
	pkt, err := aprs.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", line, err)
	}
	return pkt
}

func expectFloat(t *testing.T, name string, got *float64, want, delta float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("expected %s %v, got nil", name, want)
	}
	if math.Abs(*got-want) > delta {
		t.Fatalf("expected %s %v, got %v", name, want, *got)
	}
}

func expectText(t *testing.T, name string, got *string, want string) {
	t.Helper()
	if got == nil {
		t.Fatalf("expected %s %q, got nil", name, want)
	}
	if *got != want {
		t.Fatalf("expected %s %q, got %q", name, want, *got)
	}
}

func TestParseUncompressedPosition(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS,TCPIP*,qAC,T2TEST:!4903.50N/07201.75W-Test 001234\r\n")

	if pkt.From != "N0CALL" || pkt.To != "APRS" {
		t.Fatalf("unexpected header %q>%q", pkt.From, pkt.To)
	}
	if want := []string{"TCPIP*", "qAC", "T2TEST"}; !reflect.DeepEqual(pkt.Path, want) {
		t.Fatalf("expected path %v, got %v", want, pkt.Path)
	}
	if pkt.Format != aprs.FormatUncompressed {
		t.Fatalf("expected uncompressed format, got %v", pkt.Format)
	}
	if pkt.Raw != "N0CALL>APRS,TCPIP*,qAC,T2TEST:!4903.50N/07201.75W-Test 001234" {
		t.Fatalf("unexpected raw %q", pkt.Raw)
	}
	if !pkt.HasPosition() {
		t.Fatalf("expected a position")
	}
	expectFloat(t, "latitude", pkt.Latitude, 49.058333, 1e-6)
	expectFloat(t, "longitude", pkt.Longitude, -72.029167, 1e-6)
	if pkt.SymbolTable != '/' || pkt.Symbol != '-' {
		t.Fatalf("unexpected symbol %c%c", pkt.SymbolTable, pkt.Symbol)
	}
	expectText(t, "comment", pkt.Comment, "Test 001234")
	if pkt.Course != nil || pkt.Weather != nil {
		t.Fatalf("expected no course or weather, got %v %v", pkt.Course, pkt.Weather)
	}
}

func TestParseCourseAndSpeed(t *testing.T) {
	pkt := parse(t, "N0CALL-9>APRS:=4000.00N/07500.00W>090/005Test")

	if pkt.Format != aprs.FormatUncompressed {
		t.Fatalf("expected uncompressed format, got %v", pkt.Format)
	}
	expectFloat(t, "latitude", pkt.Latitude, 40.0, 1e-9)
	expectFloat(t, "longitude", pkt.Longitude, -75.0, 1e-9)
	expectFloat(t, "course", pkt.Course, 90, 0)
	expectFloat(t, "speed", pkt.Speed, 9.26, 1e-9)
	expectText(t, "comment", pkt.Comment, "Test")
}

func TestParseTimestampedPosition(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:@092345z4903.50N/07201.75W>")

	if pkt.Format != aprs.FormatUncompressed {
		t.Fatalf("expected uncompressed format, got %v", pkt.Format)
	}
	expectFloat(t, "latitude", pkt.Latitude, 49.058333, 1e-6)
	if pkt.Comment != nil {
		t.Fatalf("expected no comment, got %q", *pkt.Comment)
	}
}

func TestParseCompressedPosition(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:!/5L!!<*e7>7P[Compressed")

	if pkt.Format != aprs.FormatCompressed {
		t.Fatalf("expected compressed format, got %v", pkt.Format)
	}
	expectFloat(t, "latitude", pkt.Latitude, 49.5, 1e-6)
	expectFloat(t, "longitude", pkt.Longitude, -72.75, 1e-6)
	if pkt.Symbol != '>' {
		t.Fatalf("expected symbol '>', got %c", pkt.Symbol)
	}
	expectFloat(t, "course", pkt.Course, 88, 0)
	expectFloat(t, "speed", pkt.Speed, 67.1, 0.01)
	expectText(t, "comment", pkt.Comment, "Compressed")
}

func TestParseCompressedBytesBelowBase91(t *testing.T) {
	// A space is below the base91 range and must not wrap into a huge speed.
	for _, line := range []string{
		"N0CALL>APRS:!/5L!!<*e7>7 [Compressed",
		"N0CALL>APRS:!/5L!!<*e7> P[Compressed",
	} {
		pkt := parse(t, line)
		if pkt.Course != nil || pkt.Speed != nil {
			t.Fatalf("%q: expected no course or speed, got %v %v", line, pkt.Course, pkt.Speed)
		}
		expectFloat(t, "latitude", pkt.Latitude, 49.5, 1e-6)
		expectText(t, "comment", pkt.Comment, "Compressed")
	}
}

func TestParseMicE(t *testing.T) {
	pkt := parse(t, "N0CALL>332UVT,WIDE1-1:`(#f PO>/Mic-E test")

	if pkt.Format != aprs.FormatMicE {
		t.Fatalf("expected mic-e format, got %v", pkt.Format)
	}
	expectFloat(t, "latitude", pkt.Latitude, 33.427333, 1e-6)
	expectFloat(t, "longitude", pkt.Longitude, -112.129, 1e-6)
	expectFloat(t, "course", pkt.Course, 251, 0)
	expectFloat(t, "speed", pkt.Speed, 83.34, 1e-9)
	if pkt.SymbolTable != '/' || pkt.Symbol != '>' {
		t.Fatalf("unexpected symbol %c%c", pkt.SymbolTable, pkt.Symbol)
	}
	expectText(t, "comment", pkt.Comment, "Mic-E test")
}

func TestParseObject(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:;LEADER   *092345z4903.50N/07201.75W>088/036Object")

	if pkt.Format != aprs.FormatObject {
		t.Fatalf("expected object format, got %v", pkt.Format)
	}
	if pkt.ObjectName != "LEADER" || !pkt.ObjectAlive {
		t.Fatalf("unexpected object %q alive=%v", pkt.ObjectName, pkt.ObjectAlive)
	}
	expectFloat(t, "course", pkt.Course, 88, 0)
	expectFloat(t, "speed", pkt.Speed, 66.67, 1e-9)
	expectText(t, "comment", pkt.Comment, "Object")
}

func TestParseMessage(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS::N0CALL-1 :Hello there{001")

	if pkt.Format != aprs.FormatMessage {
		t.Fatalf("expected message format, got %v", pkt.Format)
	}
	if pkt.Addressee != "N0CALL-1" {
		t.Fatalf("expected addressee N0CALL-1, got %q", pkt.Addressee)
	}
	expectText(t, "message text", pkt.MessageText, "Hello there")
	if pkt.MessageID != "001" {
		t.Fatalf("expected message id 001, got %q", pkt.MessageID)
	}
}

func TestParseMessageAckHasNoText(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS::N0CALL-1 :ack001")

	if pkt.Format != aprs.FormatMessage {
		t.Fatalf("expected message format, got %v", pkt.Format)
	}
	if pkt.Response != "ack" || pkt.MessageID != "001" {
		t.Fatalf("expected ack 001, got %q %q", pkt.Response, pkt.MessageID)
	}
	if pkt.MessageText != nil {
		t.Fatalf("expected no message text, got %q", *pkt.MessageText)
	}
}

func TestParseMessageStartingWithResponseWord(t *testing.T) {
	tests := []struct {
		line string
		text string
		id   string
	}{
		{line: "N0CALL>APRS::N0CALL-1 :Acknowledged, see you at 8{12", text: "Acknowledged, see you at 8", id: "12"},
		{line: "N0CALL>APRS::N0CALL-1 :Rejoice{7", text: "Rejoice", id: "7"},
		{line: "N0CALL>APRS::N0CALL-1 :ack is late", text: "ack is late"},
	}

	for _, tt := range tests {
		pkt := parse(t, tt.line)
		if pkt.Response != "" {
			t.Fatalf("%q: expected no response, got %q", tt.line, pkt.Response)
		}
		expectText(t, "message text", pkt.MessageText, tt.text)
		if pkt.MessageID != tt.id {
			t.Fatalf("%q: expected message id %q, got %q", tt.line, tt.id, pkt.MessageID)
		}
	}
}

func TestParseTelemetryMessage(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS::N0CALL   :PARM.Battery,Temp")
	if pkt.Format != aprs.FormatTelemetryMessage {
		t.Fatalf("expected telemetry message format, got %v", pkt.Format)
	}
}

func TestParsePositionlessWeather(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:_10090556c220s004g005t077r000p000P000h50b09900wRSW")

	if pkt.Format != aprs.FormatWeather {
		t.Fatalf("expected weather format, got %v", pkt.Format)
	}
	w := pkt.Weather
	if w == nil {
		t.Fatalf("expected weather data")
	}
	expectFloat(t, "wind direction", w.WindDirection, 220, 0)
	expectFloat(t, "wind speed", w.WindSpeed, 1.79, 1e-9)
	expectFloat(t, "wind gust", w.WindGust, 2.24, 1e-9)
	expectFloat(t, "temperature", w.Temperature, 25, 1e-9)
	expectFloat(t, "rain 1h", w.Rain1h, 0, 0)
	expectFloat(t, "rain 24h", w.Rain24h, 0, 0)
	expectFloat(t, "humidity", w.Humidity, 50, 0)
	expectFloat(t, "pressure", w.Pressure, 990, 1e-9)
	expectText(t, "comment", pkt.Comment, "wRSW")
	if pkt.HasPosition() {
		t.Fatalf("expected no position")
	}
}

func TestParsePositionWeather(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:!4903.50N/07201.75W_220/004g005t-05h00b10132")

	if pkt.Format != aprs.FormatUncompressed {
		t.Fatalf("expected uncompressed format, got %v", pkt.Format)
	}
	w := pkt.Weather
	if w == nil {
		t.Fatalf("expected weather data")
	}
	expectFloat(t, "wind direction", w.WindDirection, 220, 0)
	expectFloat(t, "wind speed", w.WindSpeed, 1.79, 1e-9)
	expectFloat(t, "temperature", w.Temperature, -20.56, 1e-9)
	expectFloat(t, "humidity", w.Humidity, 100, 0)
	expectFloat(t, "pressure", w.Pressure, 1013.2, 1e-9)
	if w.Rain1h != nil || pkt.Course != nil {
		t.Fatalf("expected no rain or course, got %v %v", w.Rain1h, pkt.Course)
	}
}

func TestParseWeatherMissingValues(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:_10090556c...s...g...t050")

	if pkt.Weather == nil {
		t.Fatalf("expected weather data")
	}
	if pkt.Weather.WindDirection != nil || pkt.Weather.WindSpeed != nil {
		t.Fatalf("expected missing wind values to stay nil")
	}
	expectFloat(t, "temperature", pkt.Weather.Temperature, 10, 1e-9)
}

func TestParseWeatherNonNumericValues(t *testing.T) {
	for _, line := range []string{
		"N0CALL>APRS:_10090556c220s004g005tInfh50b09900",
		"N0CALL>APRS:_10090556c220s004g005tNaNh50b09900",
		"N0CALL>APRS:_10090556c220s004g005t0x1h50b09900",
	} {
		pkt := parse(t, line)
		w := pkt.Weather
		if w == nil {
			t.Fatalf("%q: expected weather data", line)
		}
		if w.Temperature != nil {
			t.Fatalf("%q: expected temperature to be dropped, got %v", line, *w.Temperature)
		}
		expectFloat(t, "humidity", w.Humidity, 50, 0)
		expectFloat(t, "pressure", w.Pressure, 990, 1e-9)
	}
}

func TestParseStatus(t *testing.T) {
	pkt := parse(t, "N0CALL>APRS:>Net tonight at 8")
	if pkt.Format != aprs.FormatStatus {
		t.Fatalf("expected status format, got %v", pkt.Format)
	}
	expectText(t, "comment", pkt.Comment, "Net tonight at 8")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{name: "no header", line: "garbage line", want: aprs.ErrMalformed},
		{name: "no source", line: ">APRS:!4903.50N/07201.75W-", want: aprs.ErrMalformed},
		{name: "empty body", line: "N0CALL>APRS:", want: aprs.ErrMalformed},
		{name: "bad position", line: "N0CALL>APRS:!49XX.50N/07201.75W-", want: aprs.ErrMalformed},
		{name: "telemetry", line: "N0CALL>APRS:T#005,199,000,255,073,123,01101001", want: aprs.ErrUnsupported},
		{name: "short mic-e", line: "N0CALL>3:`(#f", want: aprs.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := aprs.Parse(tt.line)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPasscode(t *testing.T) {
	for _, call := range []string{"N0CALL-9", "n0call"} {
		code, err := aprs.Passcode(call)
		if err != nil {
			t.Fatalf("Passcode(%q) returned error: %v", call, err)
		}
		if code != 13023 {
			t.Fatalf("Passcode(%q): expected 13023, got %d", call, code)
		}
	}

	if _, err := aprs.Passcode("TOOLONGCALL"); err == nil {
		t.Fatalf("expected error for overlong callsign")
	}
}
