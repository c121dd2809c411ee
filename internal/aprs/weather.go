package aprs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const hundredthInchToMm = 0.254

// Weather values are plain decimal digits; only temperature may be negative.
var weatherValueRegex = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

var weatherFieldWidth = map[byte]int{
	'c': 3,
	's': 3,
	'g': 3,
	't': 3,
	'r': 3,
	'p': 3,
	'P': 3,
	'h': 2,
	'b': 5,
	'L': 3,
	'l': 3,
	'#': 3,
}

// parsePositionlessWeather decodes _MMDDhhmm followed by weather data.
func parsePositionlessWeather(pkt *Packet, body string) error {
	if len(body) < 9 {
		return fmt.Errorf("%w: weather report too short", ErrMalformed)
	}
	pkt.Format = FormatWeather
	rest := parseWeatherData(ensureWeather(pkt), body[9:])
	setComment(pkt, rest)
	return nil
}

// parsePositionWeather handles the comment of a position report carrying the
// weather symbol: wind direction/speed in place of course/speed, then data.
func parsePositionWeather(pkt *Packet, comment string) string {
	w := ensureWeather(pkt)
	if m := courseSpeedRegex.FindStringSubmatch(comment); m != nil {
		if dir, err := strconv.Atoi(m[1]); err == nil {
			w.WindDirection = float(float64(dir))
		}
		if speed, err := strconv.Atoi(m[2]); err == nil {
			w.WindSpeed = float(round2(float64(speed) * mphToMs))
		}
		comment = comment[7:]
	}
	return parseWeatherData(w, comment)
}

// parseWeatherData consumes weather fields from the front of s and returns
// whatever follows them (usually the station software tag).
func parseWeatherData(w *Weather, s string) string {
	for len(s) > 0 {
		key := s[0]
		width, ok := weatherFieldWidth[key]
		if !ok || len(s) < width+1 {
			break
		}
		raw := s[1 : width+1]
		s = s[width+1:]

		if strings.Trim(raw, ". ") == "" {
			continue
		}
		v, ok := weatherValue(key, raw)
		if !ok {
			continue
		}

		switch key {
		case 'c':
			w.WindDirection = float(v)
		case 's':
			w.WindSpeed = float(round2(v * mphToMs))
		case 'g':
			w.WindGust = float(round2(v * mphToMs))
		case 't':
			w.Temperature = float(round2((v - 32) / 1.8))
		case 'r':
			w.Rain1h = float(round2(v * hundredthInchToMm))
		case 'p':
			w.Rain24h = float(round2(v * hundredthInchToMm))
		case 'P':
			w.RainSinceMidnight = float(round2(v * hundredthInchToMm))
		case 'h':
			if v == 0 {
				v = 100
			}
			w.Humidity = float(v)
		case 'b':
			w.Pressure = float(v / 10)
		case 'L':
			w.Luminosity = float(v)
		case 'l':
			w.Luminosity = float(v + 1000)
		}
	}
	return s
}

func ensureWeather(pkt *Packet) *Weather {
	if pkt.Weather == nil {
		pkt.Weather = &Weather{}
	}
	return pkt.Weather
}

// weatherValue parses raw for field key. Values that are not plain numbers are
// treated as missing.
func weatherValue(key byte, raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if !weatherValueRegex.MatchString(raw) {
		return 0, false
	}
	if key != 't' && strings.HasPrefix(raw, "-") {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
