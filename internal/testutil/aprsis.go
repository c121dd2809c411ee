package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// APRSServer is an in-process APRS-IS server. Every accepted connection is
// logged in and handed to the test through Next.
type APRSServer struct {
	t  testing.TB
	ln net.Listener

	loginStatus string

	sessions chan *APRSSession
	mu       sync.Mutex
	all      []*APRSSession
	accepted int
}

// APRSSession is one logged-in client connection.
type APRSSession struct {
	Login string

	conn     net.Conn
	commands chan string
}

// NewAPRSServer listens on a loopback port and stops with the test.
func NewAPRSServer(t testing.TB) *APRSServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &APRSServer{
		t:           t,
		ln:          ln,
		loginStatus: VerifiedStatus,
		sessions:    make(chan *APRSSession, 16),
	}
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Host returns the listener host.
func (s *APRSServer) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listener port.
func (s *APRSServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// SetLoginStatus changes the status reported in later logresp lines.
func (s *APRSServer) SetLoginStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
}

// Accepted returns the number of connections accepted so far.
func (s *APRSServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Next waits for the next logged-in session.
func (s *APRSServer) Next(timeout time.Duration) *APRSSession {
	s.t.Helper()
	select {
	case sess := <-s.sessions:
		return sess
	case <-time.After(timeout):
		s.t.Fatalf("no aprs-is client logged in within %v", timeout)
		return nil
	}
}

// Close stops accepting and closes every session.
func (s *APRSServer) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.all {
		_ = sess.conn.Close()
	}
}

func (s *APRSServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accepted++
		status := s.loginStatus
		s.mu.Unlock()
		go s.handle(conn, status)
	}
}

func (s *APRSServer) handle(conn net.Conn, status string) {
	reader := bufio.NewReader(conn)
	if _, err := fmt.Fprintf(conn, "%s\r\n", ServerBanner); err != nil {
		_ = conn.Close()
		return
	}
	login, err := reader.ReadString('\n')
	if err != nil {
		_ = conn.Close()
		return
	}
	login = strings.TrimSpace(login)

	callsign := ""
	if fields := strings.Fields(login); len(fields) > 1 && fields[0] == "user" {
		callsign = fields[1]
	}
	if _, err := fmt.Fprintf(conn, "# logresp %s %s, server %s\r\n", callsign, status, DefaultServer); err != nil {
		_ = conn.Close()
		return
	}

	sess := &APRSSession{Login: login, conn: conn, commands: make(chan string, 16)}
	s.mu.Lock()
	s.all = append(s.all, sess)
	s.mu.Unlock()
	s.sessions <- sess

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			close(sess.commands)
			return
		}
		sess.commands <- strings.TrimSpace(line)
	}
}

// Send writes lines to the client, CRLF terminated.
func (sess *APRSSession) Send(t testing.TB, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if _, err := fmt.Fprintf(sess.conn, "%s\r\n", line); err != nil {
			t.Fatalf("send %q: %v", line, err)
		}
	}
}

// Drop closes the connection from the server side.
func (sess *APRSSession) Drop() {
	_ = sess.conn.Close()
}

// Command waits for the next line the client sent after login.
func (sess *APRSSession) Command(t testing.TB, timeout time.Duration) string {
	t.Helper()
	select {
	case cmd, ok := <-sess.commands:
		if !ok {
			t.Fatalf("connection closed before a command arrived")
		}
		return cmd
	case <-time.After(timeout):
		t.Fatalf("no command within %v", timeout)
		return ""
	}
}
