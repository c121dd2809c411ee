// Package aprsis speaks the APRS-IS line protocol: a TCP connection, a login
// line answered by "# logresp", then a stream of TNC2 packets and server
// comments.
package aprsis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aminovpavel/aprs-mqtt/internal/aprs"
)

const (
	defaultDialTimeout  = 15 * time.Second
	defaultLoginTimeout = 10 * time.Second
	// Servers send a keepalive comment about every 20s.
	defaultReadTimeout = 60 * time.Second
	defaultSoftware    = "aprs-mqtt"
	defaultVersion     = "1.0"
)

var (
	// ErrConnectionDrop is returned by ReadLine when the server closes the
	// stream or stops sending, keepalives included, for longer than ReadTimeout.
	ErrConnectionDrop = errors.New("aprsis: connection dropped")

	// ErrConnection wraps dial, write and read failures.
	ErrConnection = errors.New("aprsis: connection error")

	// ErrLoginFailed is returned when the server rejects or never confirms the login.
	ErrLoginFailed = errors.New("aprsis: login failed")
)

// Config describes an APRS-IS endpoint and the login identity.
type Config struct {
	Host     string
	Port     int
	Callsign string
	// Passcode is sent verbatim; "-1" logs in receive-only.
	Passcode string
	// Filter is sent as part of the login line when set.
	Filter   string
	Software string
	Version  string

	DialTimeout  time.Duration
	LoginTimeout time.Duration
	// ReadTimeout bounds the silence between two lines once logged in.
	ReadTimeout time.Duration
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoginLine renders the login command without the trailing CRLF.
func (c Config) LoginLine() string {
	pass := strings.TrimSpace(c.Passcode)
	if pass == "" {
		pass = "-1"
	}
	line := fmt.Sprintf("user %s pass %s vers %s %s", c.Callsign, pass, c.Software, c.Version)
	if f := strings.TrimSpace(c.Filter); f != "" {
		line += " filter " + f
	}
	return line
}

func (c *Config) normalise() {
	if c.Software == "" {
		c.Software = defaultSoftware
	}
	if c.Version == "" {
		c.Version = defaultVersion
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.LoginTimeout == 0 {
		c.LoginTimeout = defaultLoginTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("aprsis: host must be provided")
	}
	if c.Port <= 0 {
		return errors.New("aprsis: port must be positive")
	}
	if strings.TrimSpace(c.Callsign) == "" {
		return errors.New("aprsis: callsign must be provided")
	}
	return nil
}

// Line is one packet line and the time it arrived.
type Line struct {
	Text     string
	Received time.Time
}

// IsComment reports whether the line is a server comment such as a keepalive.
func (l Line) IsComment() bool {
	return strings.HasPrefix(l.Text, "#")
}

// Client is a logged-in APRS-IS connection.
type Client struct {
	cfg    Config
	logger *slog.Logger

	conn   net.Conn
	reader *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once

	// Verified is true when the server accepted the passcode.
	Verified bool
	// Server is the server id from the login response, if any.
	Server string
}

// Dial connects to the server and logs in. It returns once "# logresp" has
// been received.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalise()
	if logger == nil {
		logger = slog.Default()
	}

	checkPasscode(cfg, logger)

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, cfg.Address(), err)
	}
	logger.Info("connected to aprs-is", slog.String("server", conn.RemoteAddr().String()))

	c := &Client{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	err = c.login()
	stop()
	if err != nil {
		_ = c.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return c, nil
}

// checkPasscode warns when the configured passcode does not belong to the
// callsign; the server would silently treat the session as unverified.
func checkPasscode(cfg Config, logger *slog.Logger) {
	pass, err := strconv.Atoi(strings.TrimSpace(cfg.Passcode))
	if err != nil || pass < 0 {
		logger.Info("aprs-is login is receive-only", slog.String("callsign", cfg.Callsign))
		return
	}
	expected, err := aprs.Passcode(cfg.Callsign)
	if err != nil {
		logger.Warn("cannot compute passcode", slog.String("callsign", cfg.Callsign), slog.Any("error", err))
		return
	}
	if expected != pass {
		logger.Warn("aprs-is passcode does not match callsign", slog.String("callsign", cfg.Callsign))
	}
}

func (c *Client) login() error {
	c.logger.Debug("sending login",
		slog.String("callsign", c.cfg.Callsign),
		slog.String("filter", c.cfg.Filter),
	)
	if err := c.writeLine(c.cfg.LoginLine()); err != nil {
		return err
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.LoginTimeout))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		raw, err := c.reader.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w: no login response within %v", ErrLoginFailed, c.cfg.LoginTimeout)
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: connection closed during login", ErrLoginFailed)
			}
			return fmt.Errorf("%w: read login response: %v", ErrConnection, err)
		}
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "# logresp ") {
			c.logger.Debug("aprs-is server", slog.String("line", line))
			continue
		}
		return c.handleLogresp(line)
	}
}

// handleLogresp parses "# logresp CALL verified|unverified, server ID".
func (c *Client) handleLogresp(line string) error {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) < 4 {
		return fmt.Errorf("%w: malformed response %q", ErrLoginFailed, line)
	}
	if !strings.EqualFold(fields[2], c.cfg.Callsign) {
		return fmt.Errorf("%w: response for %s, expected %s", ErrLoginFailed, fields[2], c.cfg.Callsign)
	}
	c.Verified = fields[3] == "verified"
	for i := 4; i+1 < len(fields); i++ {
		if fields[i] == "server" {
			c.Server = fields[i+1]
		}
	}
	c.logger.Info("aprs-is login complete",
		slog.String("callsign", c.cfg.Callsign),
		slog.Bool("verified", c.Verified),
		slog.String("server", c.Server),
	)
	return nil
}

// SetFilter sends a server-side filter command.
func (c *Client) SetFilter(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	c.logger.Info("setting aprs-is filter", slog.String("filter", expr))
	return c.writeLine("#filter " + expr)
}

// ReadLine blocks until the next line arrives. Comments are returned too;
// callers skip them with Line.IsComment.
func (c *Client) ReadLine() (Line, error) {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		raw, err := c.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Line{}, ErrConnectionDrop
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return Line{}, fmt.Errorf("%w: no data for %v", ErrConnectionDrop, c.cfg.ReadTimeout)
			}
			if errors.Is(err, net.ErrClosed) {
				return Line{}, fmt.Errorf("%w: %v", ErrConnectionDrop, err)
			}
			return Line{}, fmt.Errorf("%w: read: %v", ErrConnection, err)
		}
		text := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		return Line{Text: text, Received: time.Now()}, nil
	}
}

// Close shuts the connection down; later calls are no-ops.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.logger.Info("closing aprs-is connection")
		err = c.conn.Close()
	})
	return err
}

func (c *Client) writeLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.conn, line+"\r\n"); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	return nil
}
