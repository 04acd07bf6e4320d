package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchTestServer() (*Server, *fakeSink) {
	sink := &fakeSink{}
	cfg := DefaultConfig()
	cfg.Host = "irc.example.org"
	cfg.Nicks = []string{"alice"}
	s := NewServer(cfg, sink)
	s.Rand = &fakeRand{}
	s.CurrentNick = "alice"
	return s, sink
}

// S1: registration happy path — PING is answered immediately, and
// RPL_WELCOME completes registration.
func TestDispatchRegistrationHappyPath(t *testing.T) {
	s, _ := newDispatchTestServer()

	require.NoError(t, Dispatch(s, Message{Command: "PING", Trailing: "abc", HasTrailing: true}))
	pong, ok := s.Out().Recv(nil)
	require.True(t, ok)
	assert.Equal(t, "PONG", pong.Command)
	assert.Equal(t, "abc", pong.Trailing)

	require.NoError(t, Dispatch(s, Message{Command: RPL_WELCOME, Params: []string{"alice"}, Trailing: "Welcome", HasTrailing: true}))
	assert.True(t, s.Registered)
}

// S2: RPL_NAMREPLY parses prefixed nicks and records channel visibility.
func TestDispatchNamReplyParsesPrefixesAndVisibility(t *testing.T) {
	s, _ := newDispatchTestServer()
	ch := NewChannel(s, "#chat", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))

	msg := Message{Command: RPL_NAMREPLY, Params: []string{"alice", "=", "#chat"}, Trailing: "@op +voice plain", HasTrailing: true}
	require.NoError(t, Dispatch(s, msg))

	assert.Equal(t, byte('='), ch.Visibility)
	op := ch.Users.Get("op")
	require.NotNil(t, op)
	assert.True(t, op.Modes.Test('o'))
	voice := ch.Users.Get("voice")
	require.NotNil(t, voice)
	assert.True(t, voice.Modes.Test('v'))
	require.NotNil(t, ch.Users.Get("plain"))
}

func TestDispatchNamReplyRejectsUnknownSymbol(t *testing.T) {
	s, _ := newDispatchTestServer()
	ch := NewChannel(s, "#chat", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))

	err := Dispatch(s, Message{Command: RPL_NAMREPLY, Params: []string{"alice", "%", "#chat"}, Trailing: "someone", HasTrailing: true})
	assert.Error(t, err)
}

// S3: a two-flag MODE change emits one info line per flag.
func TestDispatchChannelModeEmitsOneLinePerFlag(t *testing.T) {
	s, sink := newDispatchTestServer()
	ch := NewChannel(s, "#c", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))
	ch.Users.Add("bob")

	msg := Message{Command: "MODE", From: "alice", Params: []string{"#c", "+nt"}}
	require.NoError(t, Dispatch(s, msg))

	var infoLines []BufferLine
	for _, l := range sink.lines {
		if l.Type == LineInfo {
			infoLines = append(infoLines, l)
		}
	}
	require.Len(t, infoLines, 2)
	assert.Equal(t, "+n", infoLines[0].Text)
	assert.Equal(t, "+t", infoLines[1].Text)
	assert.True(t, ch.Modes.Test('n'))
	assert.True(t, ch.Modes.Test('t'))
}

func TestDispatchChannelModeWithPrefixParamEmitsThreeLines(t *testing.T) {
	s, sink := newDispatchTestServer()
	s.ISupport.Modes.SetPREFIX("(ov)@+") // realistic: 005 PREFIX arrives before any MODE
	ch := NewChannel(s, "#c", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))
	ch.Users.Add("bob")

	msg := Message{Command: "MODE", From: "alice", Params: []string{"#c", "+nto", "bob"}}
	require.NoError(t, Dispatch(s, msg))

	var infoLines []BufferLine
	for _, l := range sink.lines {
		if l.Type == LineInfo {
			infoLines = append(infoLines, l)
		}
	}
	require.Len(t, infoLines, 3)
	assert.Equal(t, "+n", infoLines[0].Text)
	assert.Equal(t, "+t", infoLines[1].Text)
	assert.Equal(t, "+o bob", infoLines[2].Text)
	bob := ch.Users.Get("bob")
	require.NotNil(t, bob)
	assert.True(t, bob.Modes.Test('o'))
}

// S4: nick collision before registration retries with the next candidate.
func TestDispatchNickCollisionRetries(t *testing.T) {
	s, _ := newDispatchTestServer()
	s.Config.Nicks = []string{"alice", "alice_"}
	s.NextNick() // as BeginRegistration does: "alice" is sent, "alice_" is next

	require.NoError(t, Dispatch(s, Message{Command: ERR_NICKNAMEINUSE, Params: []string{"*", "alice"}, Trailing: "Nickname is already in use", HasTrailing: true}))

	nick, ok := s.Out().Recv(nil)
	require.True(t, ok)
	assert.Equal(t, "NICK", nick.Command)
	assert.Equal(t, []string{"alice_"}, nick.Params)
}

func TestDispatchNickCollisionIgnoredAfterRegistration(t *testing.T) {
	s, _ := newDispatchTestServer()
	s.Registered = true
	require.NoError(t, Dispatch(s, Message{Command: ERR_NICKNAMEINUSE, Params: []string{"alice", "alice"}, Trailing: "in use", HasTrailing: true}))

	_, ok := s.Out().Recv(closedDone())
	assert.False(t, ok, "should not retry nick after registration")
}

func closedDone() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestDispatchJoinSelfCreatesChannelAndRequestsModes(t *testing.T) {
	s, sink := newDispatchTestServer()
	require.NoError(t, Dispatch(s, Message{Command: "JOIN", From: "alice", Params: []string{"#new"}}))

	ch := s.Channels.Get("#new")
	require.NotNil(t, ch)
	assert.True(t, ch.Joined)
	assert.Equal(t, LineJoin, sink.lines[0].Type)

	mode, ok := s.Out().Recv(nil)
	require.True(t, ok)
	assert.Equal(t, "MODE", mode.Command)
	assert.Equal(t, []string{"#new"}, mode.Params)
}

func TestDispatchJoinOtherAddsUser(t *testing.T) {
	s, _ := newDispatchTestServer()
	ch := NewChannel(s, "#c", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))

	require.NoError(t, Dispatch(s, Message{Command: "JOIN", From: "bob", Params: []string{"#c"}}))
	require.NotNil(t, ch.Users.Get("bob"))
}

func TestDispatchQuitRemovesUserFromAllChannels(t *testing.T) {
	s, sink := newDispatchTestServer()
	a := NewChannel(s, "#a", ChannelTypeChannel, 8)
	b := NewChannel(s, "#b", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(a))
	require.NoError(t, s.Channels.Add(b))
	a.Users.Add("bob")
	b.Users.Add("bob")

	require.NoError(t, Dispatch(s, Message{Command: "QUIT", From: "bob", Trailing: "gone", HasTrailing: true}))
	assert.Nil(t, a.Users.Get("bob"))
	assert.Nil(t, b.Users.Get("bob"))

	var quitLines int
	for _, l := range sink.lines {
		if l.Type == LineQuit {
			quitLines++
		}
	}
	assert.Equal(t, 2, quitLines)
}

func TestDispatchPrivmsgMarksPingActivity(t *testing.T) {
	s, sink := newDispatchTestServer()
	ch := NewChannel(s, "#c", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))

	require.NoError(t, Dispatch(s, Message{Command: "PRIVMSG", From: "bob", Params: []string{"#c"}, Trailing: "hey alice, look", HasTrailing: true}))
	assert.Equal(t, ActivityPinged, ch.Activity)
	assert.Equal(t, LinePinged, sink.lines[len(sink.lines)-1].Type)
	require.NotEmpty(t, sink.hints)
	assert.Equal(t, HintBell, sink.hints[0])
}

func TestDispatchPrivmsgCTCPActionEmitsActionLine(t *testing.T) {
	s, sink := newDispatchTestServer()
	require.NoError(t, Dispatch(s, Message{Command: "PRIVMSG", From: "bob", Params: []string{"alice"}, Trailing: EncodeACTION("waves"), HasTrailing: true}))

	ch := s.Channels.Get("bob")
	require.NotNil(t, ch)
	require.NotEmpty(t, sink.lines)
	last := sink.lines[len(sink.lines)-1]
	assert.Equal(t, LineAction, last.Type)
	assert.Equal(t, "bob waves", last.Text)
}

func TestDispatchJoinFilteredByThreshold(t *testing.T) {
	s, sink := newDispatchTestServer()
	s.Config.FilterThresholdJoin = 2
	ch := NewChannel(s, "#c", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))
	ch.Users.Add("existing1")

	require.NoError(t, Dispatch(s, Message{Command: "JOIN", From: "bob", Params: []string{"#c"}}))
	for _, l := range sink.lines {
		assert.NotEqual(t, LineJoin, l.Type, "join line should be suppressed once threshold reached")
	}
}

// TestDispatchIgnoresPrivmsgFromIgnoredNick exercises the Server's
// ignore list (spec.md §3, §6's "/ignore <nick>"): a PRIVMSG from an
// ignored nick must not be emitted or open a new privmsg channel.
func TestDispatchIgnoresPrivmsgFromIgnoredNick(t *testing.T) {
	s, sink := newDispatchTestServer()
	s.Ignore = append(s.Ignore, "BOB")

	require.NoError(t, Dispatch(s, Message{Command: "PRIVMSG", From: "bob", Params: []string{"alice"}, Trailing: "hi", HasTrailing: true}))
	assert.Empty(t, sink.lines)
	assert.Nil(t, s.Channels.Get("bob"))
}

// TestDispatchIgnoresJoinPartQuitFromIgnoredNick exercises spec.md §3's
// ignore list wired into the JOIN/PART/QUIT per-sender emit paths: the
// user-list state still updates, but no line is emitted for the ignored
// nick.
func TestDispatchIgnoresJoinPartQuitFromIgnoredNick(t *testing.T) {
	s, sink := newDispatchTestServer()
	s.Ignore = append(s.Ignore, "bob")
	ch := NewChannel(s, "#c", ChannelTypeChannel, 8)
	require.NoError(t, s.Channels.Add(ch))

	require.NoError(t, Dispatch(s, Message{Command: "JOIN", From: "bob", Params: []string{"#c"}}))
	require.NotNil(t, ch.Users.Get("bob"), "user list should still be updated for an ignored nick")
	for _, l := range sink.lines {
		assert.NotEqual(t, LineJoin, l.Type, "join line from an ignored nick should be suppressed")
	}

	sink.lines = nil
	require.NoError(t, Dispatch(s, Message{Command: "PART", From: "bob", Params: []string{"#c"}}))
	assert.Nil(t, ch.Users.Get("bob"))
	for _, l := range sink.lines {
		assert.NotEqual(t, LinePart, l.Type, "part line from an ignored nick should be suppressed")
	}

	ch.Users.Add("bob")
	sink.lines = nil
	require.NoError(t, Dispatch(s, Message{Command: "QUIT", From: "bob", Trailing: "done", HasTrailing: true}))
	assert.Nil(t, ch.Users.Get("bob"))
	for _, l := range sink.lines {
		assert.NotEqual(t, LineQuit, l.Type, "quit line from an ignored nick should be suppressed")
	}
}
