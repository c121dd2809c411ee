package aprs

import (
	"fmt"
	"strings"
)

// Passcode computes the APRS-IS passcode for a callsign. The SSID is ignored.
func Passcode(callsign string) (int, error) {
	call := strings.ToUpper(strings.SplitN(callsign, "-", 2)[0])
	if len(call) < 1 || len(call) > 6 {
		return 0, fmt.Errorf("aprs: invalid callsign for passcode: %q", callsign)
	}

	hash := 0x73e2
	high := true
	for _, c := range call {
		if high {
			hash ^= int(c) << 8
		} else {
			hash ^= int(c)
		}
		high = !high
	}
	return hash & 0x7fff, nil
}
