package irc

import (
	"math/rand"
	"time"
)

// Rand is the injected collaborator used for default-nick generation
// (spec.md §1, §9: "Random nick fallback should use a process-local
// PRNG; the value need not be cryptographically random").
type Rand interface {
	Intn(n int) int
}

// Sink is the UI sink a Server pushes buffer lines and redraw hints to
// (spec.md §6). A presentation layer implements this; the core never
// imports a rendering package.
type Sink interface {
	Line(channel *Channel, typ LineType, from, text string, ts time.Time)
	Hint(kind HintKind)
}

// HintKind is a redraw/bell hint delivered to the UI sink (spec.md §6).
type HintKind int

const (
	HintRedrawAll HintKind = iota
	HintRedrawStatus
	HintRedrawNav
	HintBell
)

// pingState tracks the keepalive/timeout bookkeeping described in
// spec.md §4.5.
type pingState struct {
	secondsSinceRecv int
	pinged           bool
	lastRefresh      int
}

// backoffState tracks exponential reconnect backoff (spec.md §4.5, §8
// testable property 7).
type backoffState struct {
	attempt int
}

// Server is a single IRC connection's logical state: advertised
// parameters, channel list, nick rotation, ping state, registration
// flag, and IRCv3 capability set (spec.md §3). The global application
// owns a list of Servers; a Server exclusively owns its ChannelList,
// UserLists (via their Channels), ignore list, and ISupport/CapSet.
type Server struct {
	Config Config
	Sink   Sink
	Rand   Rand

	CurrentNick string
	nicksNext   int

	CaseMapping CaseMapping
	ISupport    *ISupport
	UserModes   ModeVector

	Ignore []string

	Channels *ChannelList
	Caps     *CapSet

	Registered bool
	Quitting   bool

	ping    pingState
	backoff backoffState

	out *OutQueue
}

// NewServer returns a Server in its pre-connection state: an un-joined
// server channel as the ChannelList head, RFC defaults for case mapping
// and mode config, and a fresh (unreset) CapSet (spec.md §3's Server
// lifecycle: "created on connect").
func NewServer(cfg Config, sink Sink) *Server {
	s := &Server{
		Config:      cfg,
		Sink:        sink,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		CaseMapping: CaseMappingRFC1459,
		ISupport:    NewISupport(),
		Caps:        NewCapSet(cfg.RequestedCaps, cfg.SASL),
		out:         NewOutQueue(2, 4),
	}
	serverChan := NewChannel(s, cfg.Host, ChannelTypeServer, cfg.BufferLines)
	s.Channels = NewChannelList(s.CaseMapping, serverChan)
	return s
}

// Out returns the server's bounded outbound queue.
func (s *Server) Out() *OutQueue { return s.out }

// send enqueues a message, surfacing backpressure to the UI sink rather
// than blocking or growing the queue (spec.md §4.8).
func (s *Server) send(msg Message) {
	if err := s.out.Send(msg); err != nil {
		s.emit(s.Channels.Server(), LineError, "", err.Error())
	}
}

// emit appends a buffer line to ch's ring and forwards it to the sink.
func (s *Server) emit(ch *Channel, typ LineType, from, text string) {
	line := BufferLine{Timestamp: time.Now(), Type: typ, From: from, Text: text}
	ch.Lines.Push(line)
	if s.Sink != nil {
		s.Sink.Line(ch, typ, from, text, line.Timestamp)
	}
}

// hint forwards a redraw/bell hint to the sink.
func (s *Server) hint(k HintKind) {
	if s.Sink != nil {
		s.Sink.Hint(k)
	}
}

// IsIgnored reports whether nick is on the server's ignore list, under
// the active case mapping (spec.md §3: "the Server exclusively owns ...
// its ignore list"; §6's "/ignore <nick>"/"/unignore <nick>" CLI surface
// mutates it).
func (s *Server) IsIgnored(nick string) bool {
	for _, n := range s.Ignore {
		if s.CaseMapping.Equal(n, nick) {
			return true
		}
	}
	return false
}

// NextNick advances to the next nick candidate, falling back to a random
// "rirc"+5-hex-digit nick once the candidate list is exhausted (spec.md
// §4.5).
func (s *Server) NextNick() string {
	if s.nicksNext < len(s.Config.Nicks) {
		nick := s.Config.Nicks[s.nicksNext]
		s.nicksNext++
		s.CurrentNick = nick
		return nick
	}
	const hex = "0123456789ABCDEF"
	b := []byte("rirc*****")
	for i, c := range b {
		if c == '*' {
			b[i] = hex[s.Rand.Intn(len(hex))]
		}
	}
	s.CurrentNick = string(b)
	return s.CurrentNick
}

// BeginRegistration sends the connection-established handshake: optional
// CAP LS 302, optional PASS, NICK <first candidate>, USER ... (spec.md
// §4.5).
func (s *Server) BeginRegistration() {
	for _, m := range s.Caps.Begin() {
		s.send(m)
	}
	if s.Config.Pass != "" {
		s.send(Message{Command: "PASS", Params: []string{s.Config.Pass}})
	}
	nick := s.NextNick()
	s.send(Message{Command: "NICK", Params: []string{nick}})
	username := s.Config.Username
	if username == "" {
		username = nick
	}
	s.send(Message{Command: "USER", Params: []string{username, "0", "*"}, Trailing: s.Config.Realname, HasTrailing: true})
}

// CompleteRegistration marks the server registered on RPL_WELCOME, sends
// the configured user-mode string (if any), and re-joins every
// channel-type channel that is not explicitly parted (spec.md §4.5).
func (s *Server) CompleteRegistration() {
	s.Registered = true
	s.backoff.attempt = 0
	if s.Config.UserMode != "" {
		s.send(Message{Command: "MODE", Params: []string{s.CurrentNick, "+" + s.Config.UserMode}})
	}
	for _, ch := range s.Channels.All() {
		if ch.Type == ChannelTypeChannel && !ch.Parted {
			s.send(Message{Command: "JOIN", Params: []string{ch.Name}})
		}
	}
}

// Tick advances the 1-second timer's bookkeeping: ping/timeout detection
// while connected (spec.md §4.5, §5). It should be called once per
// second by the connection driver. It returns true if the connection
// should be considered dead (IO_PING_MAX exceeded).
func (s *Server) Tick() (dead bool) {
	if s.Config.PingMax <= 0 {
		return false
	}
	s.ping.secondsSinceRecv++
	secs := s.ping.secondsSinceRecv
	pingMin := int(s.Config.PingMin / time.Second)
	pingMax := int(s.Config.PingMax / time.Second)
	pingRefresh := int(s.Config.PingRefresh / time.Second)

	if pingMin > 0 && secs >= pingMin {
		if !s.ping.pinged || (pingRefresh > 0 && secs-s.ping.lastRefresh >= pingRefresh) {
			s.ping.pinged = true
			s.ping.lastRefresh = secs
			s.hint(HintRedrawStatus)
		}
	}
	if pingMax > 0 && secs >= pingMax {
		return true
	}
	return false
}

// ResetPing resets the ping counter; called on every received byte
// (spec.md §4.5).
func (s *Server) ResetPing() {
	s.ping.secondsSinceRecv = 0
	s.ping.pinged = false
}

// NextBackoff returns the next reconnect delay and advances the attempt
// counter (spec.md §4.5, §8 testable property 7): min(BASE *
// FACTOR^attempt, MAX), non-decreasing until clipped, reset to 0 on
// successful registration (see CompleteRegistration).
func (s *Server) NextBackoff() time.Duration {
	base := s.Config.ReconnectBase
	factor := s.Config.ReconnectFactor
	if factor <= 0 {
		factor = 1
	}
	d := float64(base)
	for i := 0; i < s.backoff.attempt; i++ {
		d *= factor
	}
	s.backoff.attempt++
	delay := time.Duration(d)
	if s.Config.ReconnectMax > 0 && delay > s.Config.ReconnectMax {
		delay = s.Config.ReconnectMax
	}
	return delay
}

// Reset clears per-connection state (ping, CAP/SASL, registration flag)
// ahead of a reconnect attempt, per spec.md §3: "ircv3 cap set ... reset
// on reconnect". The channel list, ignore list, and nick rotation
// position are preserved so rejoining and nick candidates resume
// correctly.
func (s *Server) Reset() {
	s.Registered = false
	s.ping = pingState{}
	s.Caps = NewCapSet(s.Config.RequestedCaps, s.Config.SASL)
	s.ISupport = NewISupport()
}
