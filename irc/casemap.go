package irc

import "strings"

// A CaseMapping folds a byte for the purpose of nick/channel comparison, as
// advertised by the server's RPL_ISUPPORT CASEMAPPING token.
type CaseMapping int

const (
	// CaseMappingRFC1459 is the default case mapping in the absence of any
	// RPL_ISUPPORT advertisement, per spec.md §4.3/§4.5.
	CaseMappingRFC1459 CaseMapping = iota
	CaseMappingASCII
	CaseMappingStrictRFC1459
)

// ParseCaseMapping maps an RPL_ISUPPORT CASEMAPPING value to a CaseMapping,
// defaulting to RFC1459 for unrecognised values (the original falls back to
// its default rather than rejecting the line; see server_set_CASEMAPPING in
// the original's src/components/server.c).
func ParseCaseMapping(s string) CaseMapping {
	switch strings.ToLower(s) {
	case "ascii":
		return CaseMappingASCII
	case "strict-rfc1459":
		return CaseMappingStrictRFC1459
	default:
		return CaseMappingRFC1459
	}
}

func (c CaseMapping) String() string {
	switch c {
	case CaseMappingASCII:
		return "ascii"
	case CaseMappingStrictRFC1459:
		return "strict-rfc1459"
	default:
		return "rfc1459"
	}
}

// Fold lowercases s according to the mapping, applied byte by byte.
func (c CaseMapping) Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b.WriteByte(c.foldByte(s[i]))
	}
	return b.String()
}

func (c CaseMapping) foldByte(ch byte) byte {
	if ch >= 'A' && ch <= 'Z' {
		return ch + ('a' - 'A')
	}
	if c == CaseMappingASCII {
		return ch
	}
	switch ch {
	case '[':
		return '{'
	case ']':
		return '}'
	case '\\':
		return '|'
	case '~':
		if c == CaseMappingRFC1459 {
			return '^'
		}
	}
	return ch
}

// Equal reports whether a and b fold to the same string under c.
func (c CaseMapping) Equal(a, b string) bool {
	return c.Fold(a) == c.Fold(b)
}
