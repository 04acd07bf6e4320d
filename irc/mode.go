package irc

import "strings"

// ModeClass categorises a channel-mode flag by its argument-consumption
// rule, per the CHANMODES token's four comma-separated groups (spec.md
// §4.2).
type ModeClass int

const (
	// ModeUnknown is returned for a flag not present in any configured
	// class.
	ModeUnknown ModeClass = iota
	// ModeList modes always take a parameter and accumulate a per-channel
	// list (e.g. bans).
	ModeList
	// ModeSetUnset modes always take a parameter, on both set and unset.
	ModeSetUnset
	// ModeSetOnly modes take a parameter only when being set.
	ModeSetOnly
	// ModeFlag modes never take a parameter.
	ModeFlag
	// ModePrefix modes always take a parameter (a nick within the
	// channel) and apply to that user's prefix vector, not the channel.
	ModePrefix
)

// ModeConfig holds the server-advertised mode configuration: the
// CHANMODES subtype buckets, the PREFIX mode/char pairing, the MODES
// parameter limit, and the known user-mode set from numeric 004. It is
// seeded with RFC-default values and overwritten piecewise as
// RPL_ISUPPORT/004 tokens arrive (spec.md §4.2, §4.7).
type ModeConfig struct {
	// chanmodes[flag] = subtype class, for each of the four CHANMODES
	// groups.
	chanmodes map[byte]ModeClass

	// prefixModes[i] and prefixChars[i] are parallel; order is rank,
	// index 0 is highest.
	prefixModes []byte
	prefixChars []byte

	// usermodes is the set of valid user-mode flags, from numeric 004.
	usermodes map[byte]bool

	// modesLimit is the maximum number of modes-with-parameters allowed
	// in a single MODE command, from the ISUPPORT MODES token.
	modesLimit int
}

// NewModeConfig returns a ModeConfig seeded with RFC 2812 defaults: PREFIX
// (ov)@+ and CHANMODES b,k,l,imnpst, matching server_set_004 defaults in
// the original's src/components/server.c before any ISUPPORT has been
// received.
func NewModeConfig() *ModeConfig {
	c := &ModeConfig{
		chanmodes:   make(map[byte]ModeClass),
		usermodes:   make(map[byte]bool),
		prefixModes: []byte{'o', 'v'},
		prefixChars: []byte{'@', '+'},
		modesLimit:  3,
	}
	c.setChanmodes("b,k,l,imnpst")
	for _, m := range c.prefixModes {
		c.chanmodes[m] = ModePrefix
	}
	return c
}

// SetCHANMODES applies a CHANMODES=A,B,C,D token value.
func (c *ModeConfig) SetCHANMODES(value string) {
	c.setChanmodes(value)
}

func (c *ModeConfig) setChanmodes(value string) {
	groups := strings.Split(value, ",")
	classes := []ModeClass{ModeList, ModeSetUnset, ModeSetOnly, ModeFlag}
	for i, group := range groups {
		if i >= len(classes) {
			break
		}
		for j := 0; j < len(group); j++ {
			c.chanmodes[group[j]] = classes[i]
		}
	}
}

// SetPREFIX applies a PREFIX=(modes)chars token value. Malformed values
// (mismatched lengths, missing parens) are ignored, leaving the previous
// configuration intact.
func (c *ModeConfig) SetPREFIX(value string) {
	if len(value) < 2 || value[0] != '(' {
		return
	}
	close := strings.IndexByte(value, ')')
	if close < 0 {
		return
	}
	modes := value[1:close]
	chars := value[close+1:]
	if len(modes) != len(chars) {
		return
	}
	c.prefixModes = []byte(modes)
	c.prefixChars = []byte(chars)
	for _, m := range c.prefixModes {
		c.chanmodes[m] = ModePrefix
	}
}

// SetMODES applies a MODES=<n> token value.
func (c *ModeConfig) SetMODES(value string) {
	n := 0
	for i := 0; i < len(value); i++ {
		if !isDigit(value[i]) {
			return
		}
		n = n*10 + int(value[i]-'0')
	}
	c.modesLimit = n
}

// SetUsermodes records the valid user-mode flags from numeric 004's
// <usermodes> field.
func (c *ModeConfig) SetUsermodes(value string) {
	for i := 0; i < len(value); i++ {
		c.usermodes[value[i]] = true
	}
}

// ModesLimit returns the MODES parameter limit.
func (c *ModeConfig) ModesLimit() int { return c.modesLimit }

// Class reports the argument-consumption class of a channel-mode flag.
func (c *ModeConfig) Class(flag byte) ModeClass {
	if cl, ok := c.chanmodes[flag]; ok {
		return cl
	}
	return ModeUnknown
}

// TakesParam reports whether flag consumes a parameter when set with the
// given sign ('+' or '-').
func (c *ModeConfig) TakesParam(flag byte, sign byte) bool {
	switch c.Class(flag) {
	case ModeList, ModeSetUnset, ModePrefix:
		return true
	case ModeSetOnly:
		return sign == '+'
	default:
		return false
	}
}

// PrefixChar returns the status character for a PREFIX mode flag, and
// whether flag is a PREFIX mode at all.
func (c *ModeConfig) PrefixChar(flag byte) (byte, bool) {
	for i, m := range c.prefixModes {
		if m == flag {
			return c.prefixChars[i], true
		}
	}
	return 0, false
}

// PrefixMode returns the mode flag for a PREFIX status character (e.g.
// '@' -> 'o'), and whether char is a recognised prefix character.
func (c *ModeConfig) PrefixMode(char byte) (byte, bool) {
	for i, pc := range c.prefixChars {
		if pc == char {
			return c.prefixModes[i], true
		}
	}
	return 0, false
}

// PrefixRank returns the rank of a PREFIX mode flag (0 = highest), and -1
// if flag is not a PREFIX mode. Used to rank-sort users within a channel
// (spec.md §4.4).
func (c *ModeConfig) PrefixRank(flag byte) int {
	for i, m := range c.prefixModes {
		if m == flag {
			return i
		}
	}
	return -1
}

// ModeVector is a bitset over 'a'-'z' and 'A'-'Z', used for both
// channel-mode and user-mode (prefix) vectors (spec.md §3, §4.2).
type ModeVector struct {
	lower uint32
	upper uint32
}

func bitFor(flag byte) (isUpper bool, bit uint32, ok bool) {
	switch {
	case flag >= 'a' && flag <= 'z':
		return false, 1 << uint(flag-'a'), true
	case flag >= 'A' && flag <= 'Z':
		return true, 1 << uint(flag-'A'), true
	default:
		return false, 0, false
	}
}

// Set sets flag in the vector.
func (v *ModeVector) Set(flag byte) {
	if isUpper, bit, ok := bitFor(flag); ok {
		if isUpper {
			v.upper |= bit
		} else {
			v.lower |= bit
		}
	}
}

// Clear clears flag in the vector.
func (v *ModeVector) Clear(flag byte) {
	if isUpper, bit, ok := bitFor(flag); ok {
		if isUpper {
			v.upper &^= bit
		} else {
			v.lower &^= bit
		}
	}
}

// Test reports whether flag is set in the vector.
func (v ModeVector) Test(flag byte) bool {
	isUpper, bit, ok := bitFor(flag)
	if !ok {
		return false
	}
	if isUpper {
		return v.upper&bit != 0
	}
	return v.lower&bit != 0
}

// IsZero reports whether no flags are set.
func (v ModeVector) IsZero() bool {
	return v.lower == 0 && v.upper == 0
}

// String renders the vector's set flags in alphabetical order with a
// leading '+' if non-empty, or "" if empty.
func (v ModeVector) String() string {
	if v.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteByte('+')
	for c := byte('a'); c <= 'z'; c++ {
		if v.Test(c) {
			b.WriteByte(c)
		}
	}
	for c := byte('A'); c <= 'Z'; c++ {
		if v.Test(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// PrefixString renders a user's prefix-mode vector in PREFIX rank order
// (highest rank first), as status characters, using cfg's PREFIX
// configuration — e.g. "@" for a vector with only 'o' set.
func (v ModeVector) PrefixString(cfg *ModeConfig) string {
	var b strings.Builder
	for i, m := range cfg.prefixModes {
		if v.Test(m) {
			b.WriteByte(cfg.prefixChars[i])
		}
	}
	return b.String()
}

// ModeError reports an unrecognised mode flag encountered while parsing a
// modestring. It does not abort parsing of the remaining flags (spec.md
// §4.2: "Unknown flags are reported as errors but do not abort the
// message").
type ModeError struct {
	Flag byte
	Sign byte
}

func (e *ModeError) Error() string {
	return "unknown mode flag: " + string(e.Sign) + string(e.Flag)
}

// ModeChange is a single signed flag, with its parameter if the flag
// class consumes one, produced by walking a MODE modestring.
type ModeChange struct {
	Sign  byte // '+' or '-'
	Flag  byte
	Param string // "" if the flag takes no parameter
	Class ModeClass
}

// ParseModeString walks a MODE command's modestring left to right,
// tracking the current sign and consuming parameters per cfg's
// configured classes, per spec.md §4.2. params holds the arguments
// following the modestring in command order. Unknown flags produce a
// *ModeError in errs but parsing continues with the remaining flags; a
// modestring with no leading sign is itself reported as a *ModeError,
// mirroring the original's recv_mode_chanmodes/recv_mode_usermodes.
func ParseModeString(cfg *ModeConfig, modestring string, params []string) (changes []ModeChange, errs []error) {
	sign := byte(0)
	pi := 0
	nextParam := func() string {
		if pi < len(params) {
			p := params[pi]
			pi++
			return p
		}
		return ""
	}

	for i := 0; i < len(modestring); i++ {
		c := modestring[i]
		switch c {
		case '+', '-':
			sign = c
			continue
		}
		if sign == 0 {
			errs = append(errs, &ModeError{Flag: c, Sign: '+'})
			sign = '+'
		}
		class := cfg.Class(c)
		var param string
		if cfg.TakesParam(c, sign) {
			param = nextParam()
		}
		if class == ModeUnknown {
			errs = append(errs, &ModeError{Flag: c, Sign: sign})
		}
		changes = append(changes, ModeChange{Sign: sign, Flag: c, Param: param, Class: class})
	}
	return changes, errs
}
