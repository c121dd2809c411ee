package aprs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	knotsToKmh = 1.852
	knotsToMs  = 0.514444
	mphToMs    = 0.44704
)

// Groups: lat deg, lat min, lat hemisphere, symbol table, lon deg, lon min,
// lon hemisphere, symbol, comment.
var normalPosRegex = regexp.MustCompile(
	`^(\d{2})([0-9 ]{2}\.[0-9 ]{2})([NnSs])` +
		`([\/\\0-9A-Z])` +
		`(\d{3})([0-9 ]{2}\.[0-9 ]{2})([EeWw])` +
		`([\x21-\x7e])` +
		`(.*)$`,
)

var courseSpeedRegex = regexp.MustCompile(`^([0-9. ]{3})/([0-9. ]{3})`)

// parsePosition decodes an uncompressed or compressed position starting right
// after the data type identifier and optional timestamp.
func parsePosition(pkt *Packet, s string) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty position", ErrMalformed)
	}
	if s[0] >= '0' && s[0] <= '9' {
		return parseUncompressed(pkt, s)
	}
	return parseCompressed(pkt, s)
}

func parseUncompressed(pkt *Packet, s string) error {
	m := normalPosRegex.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("%w: invalid uncompressed position", ErrMalformed)
	}

	lat, err := parseCoordinate(m[1], m[2], m[3], "Ss")
	if err != nil {
		return fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseCoordinate(m[5], m[6], m[7], "Ww")
	if err != nil {
		return fmt.Errorf("longitude: %w", err)
	}
	if lat > 90 || lon > 180 || lat < -90 || lon < -180 {
		return fmt.Errorf("%w: position out of range", ErrMalformed)
	}

	if pkt.Format == "" {
		pkt.Format = FormatUncompressed
	}
	pkt.Latitude = float(round6(lat))
	pkt.Longitude = float(round6(lon))
	pkt.SymbolTable = m[4][0]
	pkt.Symbol = m[8][0]

	comment := m[9]
	if pkt.Symbol == '_' {
		comment = parsePositionWeather(pkt, comment)
	} else {
		comment = parseCourseSpeed(pkt, comment)
	}
	setComment(pkt, comment)
	return nil
}

func parseCoordinate(degStr, minStr, hemi, negative string) (float64, error) {
	// Ambiguity spaces are resolved to the middle of the hidden range.
	minStr = strings.ReplaceAll(minStr, " ", "5")

	deg, err := strconv.ParseFloat(degStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	minutes, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v := deg + minutes/60.0
	if strings.Contains(negative, hemi) {
		v = -v
	}
	return v, nil
}

func parseCourseSpeed(pkt *Packet, comment string) string {
	m := courseSpeedRegex.FindStringSubmatch(comment)
	if m == nil {
		return comment
	}
	course, cerr := strconv.Atoi(m[1])
	speed, serr := strconv.Atoi(m[2])
	if cerr != nil || serr != nil {
		// Dots or spaces mean the station left the values out.
		return comment[7:]
	}
	if course < 1 || course > 360 {
		course = 0
	}
	pkt.Course = float(float64(course))
	pkt.Speed = float(round2(float64(speed) * knotsToKmh))
	return comment[7:]
}

func parseCompressed(pkt *Packet, s string) error {
	if len(s) < 13 {
		return fmt.Errorf("%w: compressed position too short", ErrMalformed)
	}
	table := s[0]
	if !(table == '/' || table == '\\' || (table >= 'A' && table <= 'Z') || (table >= 'a' && table <= 'j')) {
		return fmt.Errorf("%w: invalid symbol table %q", ErrMalformed, table)
	}

	latV, err := base91(s[1:5])
	if err != nil {
		return err
	}
	lonV, err := base91(s[5:9])
	if err != nil {
		return err
	}

	if pkt.Format == "" {
		pkt.Format = FormatCompressed
	}
	pkt.SymbolTable = table
	pkt.Symbol = s[9]
	pkt.Latitude = float(round6(90 - float64(latV)/380926.0))
	pkt.Longitude = float(round6(-180 + float64(lonV)/190463.0))

	c, sp, t := int(s[10])-33, int(s[11])-33, int(s[12])-33
	if c >= 0 && c <= 89 && sp >= 0 && t >= 0 && (t>>3)&3 != 2 {
		course := float64(c) * 4
		knots := math.Pow(1.08, float64(sp)) - 1
		if pkt.Symbol == '_' {
			w := ensureWeather(pkt)
			w.WindDirection = float(course)
			w.WindSpeed = float(round2(knots * knotsToMs))
		} else {
			pkt.Course = float(course)
			pkt.Speed = float(round2(knots * knotsToKmh))
		}
	}

	comment := s[13:]
	if pkt.Symbol == '_' {
		comment = parseWeatherData(ensureWeather(pkt), comment)
	}
	setComment(pkt, comment)
	return nil
}

func base91(s string) (int, error) {
	v := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '!' || c > '{' {
			return 0, fmt.Errorf("%w: invalid base91 character %q", ErrMalformed, c)
		}
		v = v*91 + int(c-33)
	}
	return v, nil
}

// parseObject decodes ;NAME_____*DDHHMMzPOSITION.
func parseObject(pkt *Packet, body string) error {
	if len(body) < 18 {
		return fmt.Errorf("%w: object too short", ErrMalformed)
	}
	marker := body[10]
	if marker != '*' && marker != '_' {
		return fmt.Errorf("%w: invalid object marker %q", ErrMalformed, marker)
	}
	pkt.Format = FormatObject
	pkt.ObjectName = strings.TrimSpace(body[1:10])
	pkt.ObjectAlive = marker == '*'
	return parsePosition(pkt, body[18:])
}

func setComment(pkt *Packet, comment string) {
	comment = strings.TrimSpace(comment)
	if comment != "" {
		pkt.Comment = str(comment)
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
