package irc

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Message
	}{
		{
			"PING :tungsten.libera.chat",
			Message{Command: "PING", Trailing: "tungsten.libera.chat", HasTrailing: true},
		},
		{
			":dan!d@example.com PRIVMSG #rirc :hello, world",
			Message{
				From: "dan", User: "d", Host: "example.com",
				Command: "PRIVMSG", Params: []string{"#rirc"},
				Trailing: "hello, world", HasTrailing: true,
			},
		},
		{
			":tungsten.libera.chat 001 rirc :Welcome to the network",
			Message{
				From: "tungsten.libera.chat", Command: "001",
				Params: []string{"rirc"}, Trailing: "Welcome to the network", HasTrailing: true,
			},
		},
		{
			"JOIN #rirc",
			Message{Command: "JOIN", Params: []string{"#rirc"}},
		},
		{
			":nick!user@host MODE #rirc +o other",
			Message{
				From: "nick", User: "user", Host: "host",
				Command: "MODE", Params: []string{"#rirc", "+o", "other"},
			},
		},
		{
			"PART #rirc :",
			Message{Command: "PART", Params: []string{"#rirc"}, Trailing: "", HasTrailing: true},
		},
		{
			"CMD " + fourteenParams() + " :trailing text",
			Message{
				Command: "CMD",
				Params:  fourteenParamsSlice(),
				Trailing: "trailing text", HasTrailing: true,
			},
		},
	}

	for _, tt := range tests {
		got, err := Parse(tt.line)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.line, err)
			continue
		}
		got.Raw = ""
		tt.want.Raw = ""
		if !messagesEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		":onlyaprefix",
		"1x2 foo",
		"PRIVMSG " + manyParams(),
	}

	for _, line := range tests {
		if _, err := Parse(line); err == nil {
			t.Errorf("Parse(%q): expected error, got none", line)
		}
	}
}

func manyParams() string {
	s := ""
	for i := 0; i < 20; i++ {
		s += "x "
	}
	return s
}

// fourteenParamsSlice returns the 14 middle parameters fourteenParams
// renders as wire text, exercising spec.md §4.1's "up to 14 middle
// parameters, a 15th starting with ':' is the trailing" boundary.
func fourteenParamsSlice() []string {
	params := make([]string, 14)
	for i := range params {
		params[i] = "p"
	}
	return params
}

func fourteenParams() string {
	s := ""
	for i := 0; i < 14; i++ {
		s += "p "
	}
	return s[:len(s)-1]
}

func TestMessageString(t *testing.T) {
	m := Message{
		From: "nick", User: "user", Host: "host",
		Command: "PRIVMSG", Params: []string{"#rirc"},
		Trailing: "hi there", HasTrailing: true,
	}
	want := ":nick!user@host PRIVMSG #rirc :hi there"
	if got := m.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMessageLast(t *testing.T) {
	m := Message{Params: []string{"a", "b"}}
	if got := m.Last(); got != "b" {
		t.Errorf("Last() = %q, want %q", got, "b")
	}

	m = Message{Params: []string{"a"}, Trailing: "c", HasTrailing: true}
	if got := m.Last(); got != "c" {
		t.Errorf("Last() = %q, want %q", got, "c")
	}

	m = Message{}
	if got := m.Last(); got != "" {
		t.Errorf("Last() = %q, want empty", got)
	}
}

func TestIsNumeric(t *testing.T) {
	if !(Message{Command: "001"}).IsNumeric() {
		t.Error("001 should be numeric")
	}
	if (Message{Command: "PING"}).IsNumeric() {
		t.Error("PING should not be numeric")
	}
}

func messagesEqual(a, b Message) bool {
	if a.From != b.From || a.User != b.User || a.Host != b.Host {
		return false
	}
	if a.Command != b.Command || a.Trailing != b.Trailing || a.HasTrailing != b.HasTrailing {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}
