package aprs

import (
	"fmt"
	"strings"
)

// Parse decodes a single APRS-IS line of the form FROM>TO,PATH:information.
func Parse(line string) (Packet, error) {
	line = strings.TrimRight(line, "\r\n")
	from, to, path, body, err := splitHeader(line)
	if err != nil {
		return Packet{}, err
	}

	pkt := Packet{
		From: from,
		To:   to,
		Path: path,
		Raw:  line,
	}

	if len(body) == 0 {
		return Packet{}, fmt.Errorf("%w: empty information field", ErrMalformed)
	}

	switch dataType := body[0]; dataType {
	case '!', '=':
		err = parsePosition(&pkt, body[1:])
	case '/', '@':
		if len(body) < 8 {
			return Packet{}, fmt.Errorf("%w: timestamped position too short", ErrMalformed)
		}
		err = parsePosition(&pkt, body[8:])
	case ';':
		err = parseObject(&pkt, body)
	case ':':
		err = parseMessage(&pkt, body)
	case '`', '\'':
		err = parseMicE(&pkt, body)
	case '_':
		err = parsePositionlessWeather(&pkt, body)
	case '>':
		pkt.Format = FormatStatus
		pkt.Comment = str(strings.TrimSpace(body[1:]))
	default:
		// Some stations put free text before the '!' of a position report.
		idx := strings.IndexByte(body, '!')
		if idx > 0 && idx < 40 {
			err = parsePosition(&pkt, body[idx+1:])
		} else {
			return Packet{}, fmt.Errorf("%w: data type %q", ErrUnsupported, dataType)
		}
	}
	if err != nil {
		return Packet{}, err
	}
	return pkt, nil
}

func splitHeader(line string) (from, to string, path []string, body string, err error) {
	sep := strings.IndexByte(line, ':')
	if sep == -1 {
		return "", "", nil, "", fmt.Errorf("%w: no header separator", ErrMalformed)
	}
	header := line[:sep]
	body = line[sep+1:]

	gt := strings.IndexByte(header, '>')
	if gt <= 0 {
		return "", "", nil, "", fmt.Errorf("%w: no source callsign in %q", ErrMalformed, header)
	}
	from = header[:gt]
	if len(from) > 9 {
		return "", "", nil, "", fmt.Errorf("%w: source callsign %q too long", ErrMalformed, from)
	}

	parts := strings.Split(header[gt+1:], ",")
	to = parts[0]
	if to == "" {
		return "", "", nil, "", fmt.Errorf("%w: no destination in %q", ErrMalformed, header)
	}
	if len(parts) > 1 {
		path = parts[1:]
	}
	return from, to, path, body, nil
}
