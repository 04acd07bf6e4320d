package irc

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapSetNegotiatesWithoutSASL(t *testing.T) {
	cs := NewCapSet([]string{"multi-prefix", "away-notify"}, nil)
	out := cs.Begin()
	require.Len(t, out, 1)
	assert.Equal(t, "CAP", out[0].Command)
	assert.False(t, cs.Done)

	ls := Message{Command: "CAP", Params: []string{"*", "LS", "multi-prefix away-notify sasl=PLAIN,EXTERNAL"}}
	out, err := cs.Handle(ls)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "REQ", out[0].Params[0])
	assert.ElementsMatch(t, []string{"multi-prefix", "away-notify"}, strings.Fields(out[0].Last()))

	ack := Message{Command: "CAP", Params: []string{"*", "ACK"}, Trailing: "multi-prefix away-notify", HasTrailing: true}
	out, err = cs.Handle(ack)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "END", out[0].Params[1])
	assert.True(t, cs.Done)
	assert.True(t, cs.Acked("multi-prefix"))
}

func TestCapSetEndsImmediatelyWhenNothingSupported(t *testing.T) {
	cs := NewCapSet([]string{"multi-prefix"}, nil)
	cs.Begin()
	ls := Message{Command: "CAP", Params: []string{"*", "LS"}, Trailing: "some-other-cap", HasTrailing: true}
	out, err := cs.Handle(ls)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "END", out[0].Params[0])
}

func TestCapSetLSContinuationAccumulates(t *testing.T) {
	cs := NewCapSet([]string{"sasl"}, nil)
	cs.Begin()

	first := Message{Command: "CAP", Params: []string{"*", "LS", "*"}, Trailing: "multi-prefix", HasTrailing: true}
	out, err := cs.Handle(first)
	require.NoError(t, err)
	assert.Nil(t, out, "continuation line should not trigger REQ yet")

	second := Message{Command: "CAP", Params: []string{"*", "LS"}, Trailing: "sasl", HasTrailing: true}
	out, err = cs.Handle(second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "REQ", out[0].Params[1])
	assert.Equal(t, "sasl", out[0].Last())
}

func TestCapSetSASLPlainFlow(t *testing.T) {
	cs := NewCapSet([]string{"sasl"}, &SASLConfig{Mechanism: "PLAIN", Authcid: "alice", Password: "hunter2"})
	cs.Begin()
	ls := Message{Command: "CAP", Params: []string{"*", "LS"}, Trailing: "sasl=PLAIN", HasTrailing: true}
	_, err := cs.Handle(ls)
	require.NoError(t, err)

	ack := Message{Command: "CAP", Params: []string{"*", "ACK"}, Trailing: "sasl", HasTrailing: true}
	out, err := cs.Handle(ack)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "AUTHENTICATE", out[0].Command)
	assert.Equal(t, "PLAIN", out[0].Params[0])

	challenge := Message{Command: "AUTHENTICATE", Params: []string{"+"}}
	out, err = cs.Handle(challenge)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "AUTHENTICATE", out[0].Command)
	decoded, err := base64.StdEncoding.DecodeString(out[0].Params[0])
	require.NoError(t, err)
	assert.Equal(t, "\x00alice\x00hunter2", string(decoded))

	success := Message{Command: RPL_SASLSUCCESS, Params: []string{"*"}, Trailing: "SASL authentication successful", HasTrailing: true}
	out, err = cs.Handle(success)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "END", out[0].Params[0])
}

func TestCapSetSASLFailureSurfacesAuthError(t *testing.T) {
	cs := NewCapSet([]string{"sasl"}, &SASLConfig{Mechanism: "PLAIN", Authcid: "alice", Password: "wrong"})
	cs.Begin()
	cs.Handle(Message{Command: "CAP", Params: []string{"*", "LS"}, Trailing: "sasl", HasTrailing: true})
	cs.Handle(Message{Command: "CAP", Params: []string{"*", "ACK"}, Trailing: "sasl", HasTrailing: true})

	fail := Message{Command: ERR_SASLFAIL, Params: []string{"*"}, Trailing: "SASL auth failed", HasTrailing: true}
	out, err := cs.Handle(fail)
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Len(t, out, 1, "CAP END should still be sent so registration can proceed")
}

func TestChunkAuthenticateSplitsOn400Bytes(t *testing.T) {
	payload := make([]byte, 310) // base64 encodes to > 400 chars
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	out := chunkAuthenticate(payload)
	require.Len(t, out, 2)
	assert.LessOrEqual(t, len(out[0].Params[0]), 400)
	assert.NotEqual(t, "+", out[0].Params[0])
}

func TestChunkAuthenticateEmptyPayloadSendsPlus(t *testing.T) {
	out := chunkAuthenticate(nil)
	require.Len(t, out, 1)
	assert.Equal(t, "+", out[0].Params[0])
}

func TestChunkAuthenticateExactBoundaryAddsTerminator(t *testing.T) {
	// 300 raw bytes base64-encode to exactly 400 chars.
	payload := make([]byte, 300)
	out := chunkAuthenticate(payload)
	require.Len(t, out, 2)
	assert.Equal(t, "+", out[1].Params[0])
}
