package aprs

import (
	"fmt"
	"strings"
)

// parseMicE decodes a Mic-E report. Latitude and the longitude flags live in
// the destination callsign, the rest in the information field.
func parseMicE(pkt *Packet, body string) error {
	dest := pkt.To
	if i := strings.IndexByte(dest, '-'); i != -1 {
		dest = dest[:i]
	}
	if len(dest) < 6 {
		return fmt.Errorf("%w: mic-e destination %q too short", ErrMalformed, pkt.To)
	}
	if len(body) < 9 {
		return fmt.Errorf("%w: mic-e body too short", ErrMalformed)
	}

	var digits [6]int
	for i := 0; i < 6; i++ {
		d, ok := miceDigit(dest[i])
		if !ok {
			return fmt.Errorf("%w: invalid mic-e destination character %q", ErrMalformed, dest[i])
		}
		digits[i] = d
	}

	north := isMiceFlag(dest[3])
	lonOffset := isMiceFlag(dest[4])
	west := isMiceFlag(dest[5])

	lat := float64(digits[0]*10+digits[1]) +
		(float64(digits[2]*10+digits[3])+float64(digits[4]*10+digits[5])/100)/60
	if !north {
		lat = -lat
	}

	b := body[1:]
	d := int(b[0]) - 28
	if lonOffset {
		d += 100
	}
	if d >= 180 && d <= 189 {
		d -= 80
	} else if d >= 190 && d <= 199 {
		d -= 190
	}
	m := int(b[1]) - 28
	if m >= 60 {
		m -= 60
	}
	h := int(b[2]) - 28

	lon := float64(d) + (float64(m)+float64(h)/100)/60
	if west {
		lon = -lon
	}
	if lat > 90 || lat < -90 || lon > 180 || lon < -180 {
		return fmt.Errorf("%w: mic-e position out of range", ErrMalformed)
	}

	sp := int(b[3]) - 28
	dc := int(b[4]) - 28
	se := int(b[5]) - 28

	knots := sp*10 + dc/10
	if knots >= 800 {
		knots -= 800
	}
	course := (dc%10)*100 + se
	if course >= 400 {
		course -= 400
	}
	if course < 0 || course > 360 {
		course = 0
	}

	pkt.Format = FormatMicE
	pkt.Latitude = float(round6(lat))
	pkt.Longitude = float(round6(lon))
	pkt.Course = float(float64(course))
	pkt.Speed = float(round2(float64(knots) * knotsToKmh))
	pkt.Symbol = b[6]
	pkt.SymbolTable = b[7]
	setComment(pkt, b[8:])
	return nil
}

func miceDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'J':
		return int(c - 'A'), true
	case c >= 'P' && c <= 'Y':
		return int(c - 'P'), true
	case c == 'K' || c == 'L' || c == 'Z':
		// Position ambiguity.
		return 0, true
	}
	return 0, false
}

func isMiceFlag(c byte) bool {
	return c >= 'P' && c <= 'Z'
}
