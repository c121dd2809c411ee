package testutil

// Sample APRS-IS lines shared by feed, replay and smoke tests.
const (
	PositionLine   = "N0CALL-9>APRS,TCPIP*,qAC,T2TEST:=4000.00N/07500.00W>090/005Test"
	WeatherLine    = "N0CALL-13>APRS,TCPIP*:_10090556c220s004g005t077r000p000P000h50b09900wRSW"
	MessageLine    = "N0CALL>APRS,TCPIP*::N0CALL-1 :Hello there{001"
	ObjectLine     = "N0CALL>APRS:;LEADER   *092345z4903.50N/07201.75W>088/036Object"
	MicELine       = "N0CALL>332UVT,WIDE1-1:`(#f PO>/Mic-E test"
	StatusLine     = "N0CALL>APRS:>Net tonight at 8"
	TelemetryLine  = "N0CALL>APRS:T#005,199,000,255,073,123,01101001"
	MalformedLine  = "not an aprs packet"
	KeepaliveLine  = "# aprsc 2.1.14-g5e22b37 19 Oct 2026 12:00:00 GMT T2TEST 127.0.0.1:14580"
	ServerBanner   = "# aprsc 2.1.14-g5e22b37"
	DefaultServer  = "T2TEST"
	VerifiedStatus = "verified"
)
