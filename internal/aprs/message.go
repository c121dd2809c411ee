package aprs

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	telemetryKeywords = []string{"PARM.", "UNIT.", "EQNS.", "BITS."}

	// Responses are exactly ackNNNNN or rejNNNNN; anything else is text.
	responseRegex = regexp.MustCompile(`^(ack|rej)([A-Za-z0-9]{1,5})$`)
)

// parseMessage decodes :ADDRESSEE:text{id. Acknowledgements and rejections
// carry no text.
func parseMessage(pkt *Packet, body string) error {
	s := body[1:]
	if len(s) < 10 || s[9] != ':' {
		return fmt.Errorf("%w: invalid message addressee", ErrMalformed)
	}

	pkt.Addressee = strings.TrimSpace(s[:9])
	if pkt.Addressee == "" {
		return fmt.Errorf("%w: message addressee is blank", ErrMalformed)
	}
	text := s[10:]

	for _, kw := range telemetryKeywords {
		if strings.HasPrefix(text, kw) {
			pkt.Format = FormatTelemetryMessage
			pkt.MessageText = str(strings.TrimSpace(text))
			return nil
		}
	}

	pkt.Format = FormatMessage

	if m := responseRegex.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		pkt.Response = m[1]
		pkt.MessageID = m[2]
		return nil
	}

	if idx := strings.LastIndexByte(text, '{'); idx > 0 {
		pkt.MessageID = strings.TrimSpace(text[idx+1:])
		text = text[:idx]
	}
	pkt.MessageText = str(strings.TrimSpace(text))
	return nil
}
