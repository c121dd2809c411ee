// Package aprs parses APRS-IS text lines (TNC2 format) into structured
// packets. Units follow the usual APRS library convention: speed in km/h,
// temperature in degrees Celsius, wind in m/s, rain in mm and pressure in hPa.
package aprs

import "errors"

// Format identifies how the information field of a packet was encoded.
type Format string

const (
	FormatUncompressed     Format = "uncompressed"
	FormatCompressed       Format = "compressed"
	FormatMicE             Format = "mic-e"
	FormatObject           Format = "object"
	FormatMessage          Format = "message"
	FormatTelemetryMessage Format = "telemetry-message"
	FormatWeather          Format = "wx"
	FormatStatus           Format = "status"
)

var (
	// ErrMalformed is returned when the line is not a TNC2 packet.
	ErrMalformed = errors.New("aprs: malformed packet")
	// ErrUnsupported is returned for data types the parser does not decode.
	ErrUnsupported = errors.New("aprs: unsupported format")
)

// Weather holds the fields of a weather report. Nil means the station did not
// report the value.
type Weather struct {
	WindDirection     *float64
	WindSpeed         *float64
	WindGust          *float64
	Temperature       *float64
	Rain1h            *float64
	Rain24h           *float64
	RainSinceMidnight *float64
	Humidity          *float64
	Pressure          *float64
	Luminosity        *float64
}

// Packet is a parsed APRS packet. Optional values are pointers so callers can
// tell a missing value from a zero one.
type Packet struct {
	From   string
	To     string
	Path   []string
	Format Format
	Raw    string

	Symbol      byte
	SymbolTable byte

	Latitude  *float64
	Longitude *float64
	Course    *float64
	Speed     *float64
	Comment   *string

	ObjectName  string
	ObjectAlive bool

	Addressee   string
	MessageText *string
	MessageID   string
	Response    string

	Weather *Weather
}

// HasPosition reports whether both coordinates are present.
func (p Packet) HasPosition() bool {
	return p.Latitude != nil && p.Longitude != nil
}

func float(v float64) *float64 { return &v }

func str(v string) *string { return &v }
