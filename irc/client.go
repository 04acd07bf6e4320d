package irc

import (
	"bufio"
	"crypto/tls"
	"io"
	"log"
	"net"
	"time"
)

// Conn is the connection interface a Driver consumes (spec.md §6): "a
// connection that yields bytes and accepts bytes". Any io.ReadWriteCloser
// satisfies it, including net.Conn and *tls.Conn, so the TLS transport
// remains an external collaborator per spec.md §1 rather than a core
// concern.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a Conn to a host:port, optionally over TLS. The default,
// netDialer, is provided for convenience; callers that need custom trust
// roots (spec.md §6: "a trusted-CA file and directory are resolved from
// config or a platform default list") supply their own.
type Dialer interface {
	Dial(addr string, useTLS bool) (Conn, error)
}

// netDialer is the default Dialer, using the standard library's net and
// crypto/tls packages directly, mirroring the teacher's Dial/DialSSL
// functions (irc/client.go) generalized to the injected-interface shape.
type netDialer struct {
	TLSConfig *tls.Config
}

func (d netDialer) Dial(addr string, useTLS bool) (Conn, error) {
	if useTLS {
		cfg := d.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		return tls.Dial("tcp", addr, cfg)
	}
	return net.Dial("tcp", addr)
}

// NewDialer returns the default Dialer.
func NewDialer(tlsConfig *tls.Config) Dialer { return netDialer{TLSConfig: tlsConfig} }

// Logger is the ambient logging collaborator (SPEC_FULL.md AMBIENT
// STACK): satisfied by *log.Logger, generalizing the teacher's package-
// level log.Println/log.Printf calls into a struct field per spec.md
// §9's "process-wide mutable state becomes a struct field" design note.
type Logger interface {
	Printf(format string, args ...any)
}

// Driver owns a Server's socket, reads bytes into a line-splitting
// buffer, drives registration, ping/timeout, and reconnect with capped
// exponential backoff (spec.md §4.9 "Connection driver"). Per spec.md
// §5, dispatch of a single complete message always runs to completion
// synchronously; only a reader goroutine exists to turn blocking Read
// calls into channel sends.
type Driver struct {
	Server *Server
	Addr   string
	UseTLS bool
	Dialer Dialer
	Log    Logger

	conn Conn

	inLines  chan string
	inErrs   chan error
	outDone  chan struct{}
}

// NewDriver returns a Driver for addr ("host:port"), using dialer to
// connect and logger for diagnostics.
func NewDriver(server *Server, addr string, useTLS bool, dialer Dialer, logger Logger) *Driver {
	if dialer == nil {
		dialer = NewDialer(nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{Server: server, Addr: addr, UseTLS: useTLS, Dialer: dialer, Log: logger}
}

// Connect dials the server and begins the registration handshake
// (spec.md §4.5). It does not block for registration to complete; that
// happens as RPL_WELCOME arrives through Run.
func (d *Driver) Connect() error {
	conn, err := d.Dialer.Dial(d.Addr, d.UseTLS)
	if err != nil {
		return err
	}
	d.conn = conn
	d.inLines = make(chan string)
	d.inErrs = make(chan error, 1)
	d.outDone = make(chan struct{})

	go d.readLines()
	go d.writeLoop()

	d.Server.BeginRegistration()
	return nil
}

// readLines splits the connection's byte stream on \r\n (tolerating bare
// \n, per spec.md §6), sending each non-empty line on inLines, per
// spec.md §4.1: "Empty lines are silently ignored." It exits, closing
// inLines and reporting the terminal error, when Read fails.
func (d *Driver) readLines() {
	r := bufio.NewReader(d.conn)
	for {
		line, err := r.ReadString('\n')
		line = trimCRLF(line)
		if line != "" {
			select {
			case d.inLines <- line:
			case <-d.outDone:
				close(d.inLines)
				return
			}
		}
		if err != nil {
			d.inErrs <- err
			close(d.inLines)
			return
		}
	}
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// writeLoop drains the server's outbound queue, formatting and writing
// each message, until the connection closes or the driver shuts down
// (spec.md §4.8, §5).
func (d *Driver) writeLoop() {
	for {
		msg, ok := d.Server.Out().Recv(d.outDone)
		if !ok {
			return
		}
		line, err := FormatLine(msg)
		if err != nil {
			d.Log.Printf("irc: dropping oversized line: %v", err)
			continue
		}
		if _, err := io.WriteString(d.conn, line); err != nil {
			d.Log.Printf("irc: write error: %v", err)
			return
		}
	}
}

// Run is the top-level event loop (spec.md §5): it multiplexes inbound
// lines, the 1-second timer's ping/backoff bookkeeping, and the terminal
// error channel, until the connection ends. Terminal-input and socket
// write-ready are handled by the caller's UI loop and writeLoop/OutQueue
// respectively; Run owns only the read side and the timer.
func (d *Driver) Run() error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer close(d.outDone)

	for {
		select {
		case line, ok := <-d.inLines:
			if !ok {
				continue
			}
			d.Server.ResetPing()
			msg, err := Parse(line)
			if err != nil {
				d.Server.emit(d.Server.Channels.Server(), LineError, "", err.Error())
				continue
			}
			if err := Dispatch(d.Server, msg); err != nil {
				d.Log.Printf("irc: dispatch: %v", err)
				if !d.Server.Registered && isFatalAuthError(err) {
					d.conn.Close()
					return err
				}
			}

		case err := <-d.inErrs:
			d.conn.Close()
			return err

		case <-ticker.C:
			if d.Server.Tick() {
				d.conn.Close()
				return errPingTimeout
			}
		}
	}
}

// errPingTimeout is returned by Run when IO_PING_MAX is exceeded without
// any bytes received (spec.md §4.5).
var errPingTimeout = &ProtocolError{Op: "ping", Reason: "connection timed out"}

// isFatalAuthError reports whether err is a CAP/AUTHENTICATE/SASL
// failure that must disconnect the connection when it occurs before
// registration completes (spec.md §4.6: "Before registered = true, any
// fatal CAP/AUTHENTICATE error disconnects"; §4.7; §7's "Auth error"
// taxonomy entry).
func isFatalAuthError(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}

// Quit performs a user-initiated quit (spec.md §5): sets Quitting, sends
// QUIT with reason, waits at most one timer tick for the server's
// "ERROR :closing link" reply, then closes the socket.
func (d *Driver) Quit(reason string) {
	d.Server.Quitting = true
	if reason == "" {
		reason = d.Server.Config.QuitMessage
	}
	d.Server.send(Message{Command: "QUIT", Trailing: reason, HasTrailing: true})

	select {
	case line, ok := <-d.inLines:
		if ok {
			if msg, err := Parse(line); err == nil {
				Dispatch(d.Server, msg)
			}
		}
	case <-time.After(time.Second):
	}
	if d.conn != nil {
		d.conn.Close()
	}
}

// Close releases the socket unconditionally, for forced-disconnect paths
// (spec.md §5: "Scoped acquisition: sockets ... are released on every
// exit path of the driver").
func (d *Driver) Close() {
	if d.conn != nil {
		d.conn.Close()
	}
}
