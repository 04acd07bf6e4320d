package irc

import "strings"

// ctcpDelim is the byte (\x01) that frames a CTCP request/response inside
// a PRIVMSG or NOTICE (spec.md GLOSSARY, §4.7).
const ctcpDelim = '\x01'

// CTCPHandler is the injected collaborator that interprets CTCP-framed
// messages; the core only recognises *that* a message is CTCP-framed and
// routes it here (spec.md §1, §4.7, GLOSSARY: "specified by a
// collaborator, not the core").
type CTCPHandler interface {
	// Request handles an incoming CTCP request (from a PRIVMSG) and
	// returns the CTCP reply text to send back via NOTICE, or ("", false)
	// to send nothing.
	Request(from, command, params string) (reply string, ok bool)

	// Response handles an incoming CTCP reply (from a NOTICE); there is
	// nothing to send back.
	Response(from, command, params string)
}

// isCTCP reports whether text is CTCP-framed, and returns the command
// word and parameters with the \x01 delimiters stripped.
func isCTCP(text string) (command, params string, ok bool) {
	if len(text) < 2 || text[0] != ctcpDelim || text[len(text)-1] != ctcpDelim {
		return "", "", false
	}
	inner := text[1 : len(text)-1]
	command, params = inner, ""
	if i := strings.IndexByte(inner, ' '); i >= 0 {
		command, params = inner[:i], inner[i+1:]
	}
	return strings.ToUpper(command), params, true
}

// encodeCTCP frames command/params as a CTCP message body.
func encodeCTCP(command, params string) string {
	if params == "" {
		return string(ctcpDelim) + command + string(ctcpDelim)
	}
	return string(ctcpDelim) + command + " " + params + string(ctcpDelim)
}

// EncodeACTION frames text as a CTCP ACTION for PRIVMSG, implementing the
// "/me" CLI surface (spec.md §6, SPEC_FULL.md supplemented features).
func EncodeACTION(text string) string {
	return encodeCTCP("ACTION", text)
}

// defaultCTCPHandler is the minimal built-in CTCPHandler used when
// Config.CTCP is nil: it answers VERSION and PING and recognises ACTION (so the
// dispatcher has something to exercise), per SPEC_FULL.md's supplemented
// CTCP dispatch hookup.
type defaultCTCPHandler struct {
	version string
}

func (h defaultCTCPHandler) Request(from, command, params string) (string, bool) {
	switch command {
	case "VERSION":
		v := h.version
		if v == "" {
			v = "rirc"
		}
		return v, true
	case "PING":
		return params, true
	case "ACTION":
		return "", false
	}
	return "", false
}

func (h defaultCTCPHandler) Response(from, command, params string) {
	// No action taken for replies by default; a caller wanting to surface
	// VERSION/PING replies supplies its own CTCPHandler.
}
