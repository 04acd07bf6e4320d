package irc

import (
	"encoding/base64"
	"strings"

	"github.com/emersion/go-sasl"
)

// capState is the negotiator's position in the state machine described
// by spec.md §4.6:
//
//	idle -> lsSent -> (LS lines...) -> reqSent -> (ACK|NAK) -> [sasl] -> endSent -> idle
type capState int

const (
	capIdle capState = iota
	capLSSent
	capReqSent
	capSASLSent
	capEndSent
)

// saslChunkSize is the AUTHENTICATE payload chunk size (spec.md §4.6.2).
const saslChunkSize = 400

// Capability is one IRCv3 capability's negotiation status (spec.md §3).
type Capability struct {
	Name       string
	Supported  bool
	Requested  bool
	Acked      bool
	Rejected   bool
	Disabling  bool
}

// CapSet is the per-server IRCv3 capability negotiator and SASL
// sub-state-machine (spec.md §4.6). It is reset on reconnect.
type CapSet struct {
	state capState
	caps  map[string]*Capability

	lsBuf []string // accumulated CAP LS tokens across continuation lines

	requested []string // capabilities this client wants, from Config
	sasl      *SASLConfig
	saslClient sasl.Client
	saslMechanism string
	saslInitial []byte // the mechanism's initial response from Start
	saslPending bool   // saslInitial not yet sent to the server

	// Done reports whether negotiation has sent CAP END (or never
	// started) and registration may proceed.
	Done bool
}

// NewCapSet returns a CapSet that will request wanted and, if sasl is
// configured and "sasl" is acknowledged, authenticate with it.
func NewCapSet(wanted []string, saslCfg *SASLConfig) *CapSet {
	return &CapSet{
		caps:      make(map[string]*Capability),
		requested: wanted,
		sasl:      saslCfg,
		Done:      true, // becomes false once LS is sent
	}
}

// capOf returns (creating if necessary) the Capability record for name.
func (cs *CapSet) capOf(name string) *Capability {
	c, ok := cs.caps[name]
	if !ok {
		c = &Capability{Name: name}
		cs.caps[name] = c
	}
	return c
}

// Acked reports whether name has been acknowledged by the server.
func (cs *CapSet) Acked(name string) bool {
	c, ok := cs.caps[name]
	return ok && c.Acked
}

// Begin returns the messages to start negotiation: "CAP LS 302".
func (cs *CapSet) Begin() []Message {
	cs.state = capLSSent
	cs.Done = false
	return []Message{{Command: "CAP", Params: []string{"LS", "302"}}}
}

// Handle processes one CAP/AUTHENTICATE/SASL-numeric message, returning
// outbound messages to send and an error if negotiation failed fatally
// (caller disconnects pre-registration, per spec.md §4.6 / §7).
func (cs *CapSet) Handle(msg Message) ([]Message, error) {
	switch msg.Command {
	case "CAP":
		return cs.handleCAP(msg)
	case "AUTHENTICATE":
		return cs.handleAuthenticate(msg)
	}
	if isSASLNumeric(msg.Command) {
		return cs.handleSASLNumeric(msg)
	}
	return nil, nil
}

func isSASLNumeric(cmd string) bool {
	switch cmd {
	case RPL_LOGGEDIN, RPL_LOGGEDOUT, ERR_NICKLOCKED, RPL_SASLSUCCESS,
		ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLABORTED, ERR_SASLALREADY, RPL_SASLMECHS:
		return true
	}
	return false
}

func (cs *CapSet) handleCAP(msg Message) ([]Message, error) {
	if len(msg.Params) < 2 {
		return nil, nil
	}
	sub := strings.ToUpper(msg.Params[1])
	switch sub {
	case "LS":
		return cs.handleLS(msg)
	case "ACK":
		return cs.handleACK(msg)
	case "NAK":
		cs.handleNAK(msg)
		return nil, nil
	case "NEW":
		return cs.handleLS(msg)
	case "DEL":
		cs.handleDEL(msg)
		return nil, nil
	}
	return nil, nil
}

// handleLS accumulates a (possibly multi-line) "CAP * LS [*] :<tokens>"
// response, per spec.md §4.6: "The list is accumulated until a line
// without the * continuation."
func (cs *CapSet) handleLS(msg Message) ([]Message, error) {
	continued := len(msg.Params) >= 3 && msg.Params[2] == "*"
	tokenField := msg.Last()
	for _, tok := range strings.Fields(tokenField) {
		name := tok
		if i := strings.IndexByte(tok, '='); i >= 0 {
			name = tok[:i]
		}
		cs.capOf(name).Supported = true
		cs.lsBuf = append(cs.lsBuf, name)
	}
	if continued {
		return nil, nil
	}
	return cs.requestWanted(), nil
}

// requestWanted sends CAP REQ for every wanted capability the server
// supports, or CAP END immediately if none are supported/wanted.
func (cs *CapSet) requestWanted() []Message {
	var want []string
	for _, name := range cs.requested {
		if c, ok := cs.caps[name]; ok && c.Supported {
			c.Requested = true
			want = append(want, name)
		}
	}
	if len(want) == 0 {
		return cs.end()
	}
	cs.state = capReqSent
	return []Message{{Command: "CAP", Params: []string{"REQ"}, Trailing: strings.Join(want, " "), HasTrailing: true}}
}

func (cs *CapSet) handleACK(msg Message) ([]Message, error) {
	for _, name := range strings.Fields(msg.Last()) {
		name = strings.TrimPrefix(name, "-")
		c := cs.capOf(name)
		c.Acked = true
		c.Rejected = false
	}
	if cs.Acked("sasl") && cs.sasl != nil {
		return cs.startSASL()
	}
	return cs.end(), nil
}

func (cs *CapSet) handleNAK(msg Message) {
	for _, name := range strings.Fields(msg.Last()) {
		c := cs.capOf(name)
		c.Rejected = true
	}
}

func (cs *CapSet) handleDEL(msg Message) {
	for _, name := range strings.Fields(msg.Last()) {
		delete(cs.caps, name)
	}
}

// end sends CAP END, completing negotiation (spec.md §4.6: "After SASL
// resolution (or if no SASL), send CAP END").
func (cs *CapSet) end() []Message {
	cs.state = capEndSent
	cs.Done = true
	return []Message{{Command: "CAP", Params: []string{"END"}}}
}

func (cs *CapSet) startSASL() ([]Message, error) {
	var client sasl.Client
	switch strings.ToUpper(cs.sasl.Mechanism) {
	case "EXTERNAL":
		client = sasl.NewExternalClient(cs.sasl.Authzid)
	default:
		client = sasl.NewPlainClient(cs.sasl.Authzid, cs.sasl.Authcid, cs.sasl.Password)
	}
	mech, ir, err := client.Start()
	if err != nil {
		return nil, &AuthError{Reason: err.Error()}
	}
	cs.saslClient = client
	cs.saslMechanism = mech
	cs.saslInitial = ir
	cs.saslPending = true
	cs.state = capSASLSent
	return []Message{{Command: "AUTHENTICATE", Params: []string{mech}}}, nil
}

// handleAuthenticate processes one AUTHENTICATE challenge line from the
// server ("+" or a base64 payload), responding with the next SASL step,
// chunked per spec.md §4.6.2.
func (cs *CapSet) handleAuthenticate(msg Message) ([]Message, error) {
	if cs.saslClient == nil {
		return nil, nil
	}
	payload := msg.Param(0)
	if cs.saslPending && payload == "+" {
		// The server's first, empty challenge is answered with the
		// mechanism's initial response (the PLAIN credentials).
		cs.saslPending = false
		return chunkAuthenticate(cs.saslInitial), nil
	}
	var challenge []byte
	if payload != "+" {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, &AuthError{Reason: "malformed AUTHENTICATE payload"}
		}
		challenge = decoded
	}
	resp, err := cs.saslClient.Next(challenge)
	if err != nil {
		return nil, &AuthError{Reason: err.Error()}
	}
	return chunkAuthenticate(resp), nil
}

// chunkAuthenticate base64-encodes resp and splits it into 400-byte
// AUTHENTICATE lines, terminating with an empty "AUTHENTICATE +" if the
// final chunk was exactly 400 bytes (spec.md §4.6.2).
func chunkAuthenticate(resp []byte) []Message {
	encoded := base64.StdEncoding.EncodeToString(resp)
	if encoded == "" {
		return []Message{{Command: "AUTHENTICATE", Params: []string{"+"}}}
	}
	var out []Message
	lastLen := 0
	for len(encoded) > 0 {
		n := saslChunkSize
		if n > len(encoded) {
			n = len(encoded)
		}
		chunk := encoded[:n]
		encoded = encoded[n:]
		out = append(out, Message{Command: "AUTHENTICATE", Params: []string{chunk}})
		lastLen = len(chunk)
	}
	if lastLen == saslChunkSize {
		out = append(out, Message{Command: "AUTHENTICATE", Params: []string{"+"}})
	}
	return out
}

// handleSASLNumeric resolves the SASL exchange on success/failure
// numerics (spec.md §4.6: "900/903 -> success; 902/904/905/906/907/908 ->
// failure surfaced to error sink").
func (cs *CapSet) handleSASLNumeric(msg Message) ([]Message, error) {
	switch msg.Command {
	case RPL_LOGGEDIN, RPL_SASLSUCCESS:
		return cs.end(), nil
	case ERR_NICKLOCKED, ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLABORTED, ERR_SASLALREADY, RPL_SASLMECHS:
		err := &AuthError{Numeric: msg.Command, Reason: msg.Last()}
		return cs.end(), err
	}
	return nil, nil
}
