package irc

import "strings"

// ISupport holds the server-advertised parameter set accumulated from
// numeric 004 (RPL_MYINFO) and numeric 005 (RPL_ISUPPORT), and the
// ModeConfig/CaseMapping it feeds, per spec.md §4.2-§4.3, §4.7.
//
// Grounded on the token grammar in the original's parse_005
// (src/components/server.c): "token = *1(\"-\") parameter *1(\"=\"
// value)" — a token is a bare key, a negated "-key" (revoking a
// previously advertised feature), or a "key=value" pair.
type ISupport struct {
	ServerName string
	Version    string
	Usermodes  string
	Chanmodes  string // legacy 004 chanmodes field, distinct from the 005 CHANMODES token
	Chantypes  string

	CaseMapping CaseMapping
	Modes       *ModeConfig

	// Extra holds every other recognised-but-unhandled key/value pair,
	// for callers that want raw access (e.g. NICKLEN, TOPICLEN).
	Extra map[string]string
}

// NewISupport returns an ISupport seeded with RFC defaults, matching
// server()'s initialisation in the original before any 004/005 has
// arrived.
func NewISupport() *ISupport {
	return &ISupport{
		Chantypes:   "#&",
		CaseMapping: CaseMappingRFC1459,
		Modes:       NewModeConfig(),
		Extra:       make(map[string]string),
	}
}

// ApplyMyInfo parses numeric 004's parameters: <client> <server>
// <version> <usermodes> <chanmodes> [chanmodes-with-param]. The client
// parameter is the responsibility of the caller (dispatch.go); params
// here starts at <server>.
func (is *ISupport) ApplyMyInfo(params []string) {
	if len(params) > 0 {
		is.ServerName = params[0]
	}
	if len(params) > 1 {
		is.Version = params[1]
	}
	if len(params) > 2 {
		is.Usermodes = params[2]
		is.Modes.SetUsermodes(params[2])
	}
	if len(params) > 3 {
		is.Chanmodes = params[3]
	}
}

// ApplyISupport parses one numeric 005 line's parameters (excluding the
// trailing "are supported by this server" comment, which callers should
// strip via Message.Params, leaving only the tokens).
func (is *ISupport) ApplyISupport(params []string) {
	for _, tok := range params {
		is.applyToken(tok)
	}
}

func (is *ISupport) applyToken(tok string) {
	if tok == "" {
		return
	}
	if tok[0] == '-' {
		// A negated token revokes a previously advertised feature; this
		// module has no per-key "unset" representation distinct from
		// defaults, so negation is accepted but otherwise a no-op beyond
		// removing it from Extra.
		delete(is.Extra, strings.ToUpper(tok[1:]))
		return
	}

	key, value := tok, ""
	if i := strings.IndexByte(tok, '='); i >= 0 {
		key, value = tok[:i], tok[i+1:]
	}
	key = strings.ToUpper(key)

	switch key {
	case "CASEMAPPING":
		is.CaseMapping = ParseCaseMapping(value)
	case "CHANMODES":
		is.Modes.SetCHANMODES(value)
	case "PREFIX":
		is.Modes.SetPREFIX(value)
	case "MODES":
		is.Modes.SetMODES(value)
	case "CHANTYPES":
		is.Chantypes = value
	default:
		is.Extra[key] = value
	}
}

// IsChannel reports whether name begins with one of the advertised
// channel-type prefix characters.
func (is *ISupport) IsChannel(name string) bool {
	return name != "" && strings.IndexByte(is.Chantypes, name[0]) >= 0
}
