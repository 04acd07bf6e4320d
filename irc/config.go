package irc

import "time"

// Config is the immutable configuration passed to NewServer, replacing
// the original's process-wide mutable `struct config` global (spec.md §9
// design note: "process-wide mutable state ... becomes an immutable
// configuration struct passed to the server at construction"). Defaults
// are taken from the original's config.def.h.
type Config struct {
	Host string
	Port string
	Pass string

	// Nicks is the comma-separated-in-source, already-split candidate
	// list tried in order on connect and on ERR_NICKNAMEINUSE (spec.md
	// §4.5). If empty, NextNick goes straight to the random "rirc"+hex
	// fallback nick (main.go fills it with the user name when -n is not
	// given).
	Nicks []string

	Username string
	Realname string

	// UserMode, if non-empty, is sent as "MODE <self> +<UserMode>" once
	// registration completes (spec.md §4.5).
	UserMode string

	QuitMessage string
	PartMessage string

	// FilterThreshold* gates whether JOIN/PART/QUIT/ACCOUNT/AWAY/CHGHOST
	// lines are emitted: a channel's line is suppressed once its user
	// count reaches the threshold. 0 disables filtering. NICK has no
	// threshold in the original (spec.md §4.7, SPEC_FULL.md supplemented
	// features).
	FilterThresholdJoin    int
	FilterThresholdPart    int
	FilterThresholdQuit    int
	FilterThresholdAccount int
	FilterThresholdAway    int
	FilterThresholdChghost int

	// BufferLines is the per-channel scrollback ring capacity; must be a
	// power of two (spec.md §4.10).
	BufferLines int

	// InputCapacity and HistorySize size the input line's gap buffer and
	// scrollback ring (spec.md §4.9); HistorySize must be a power of two.
	InputCapacity int
	HistorySize   int

	// PingMin/PingRefresh/PingMax drive the ping-timeout state machine
	// (spec.md §4.5). Zero disables the corresponding behavior; a zero
	// PingMax disables all ping bookkeeping, PingMin included.
	PingMin     time.Duration
	PingRefresh time.Duration
	PingMax     time.Duration

	// ReconnectBase/Factor/Max parameterise the exponential reconnect
	// backoff (spec.md §4.5, §8 testable property 7).
	ReconnectBase   time.Duration
	ReconnectFactor float64
	ReconnectMax    time.Duration

	// RequestedCaps are the IRCv3 capabilities requested during CAP
	// negotiation (spec.md §4.6).
	RequestedCaps []string

	// SASL, if non-nil, configures SASL authentication once the "sasl"
	// capability is acknowledged.
	SASL *SASLConfig

	// CTCP handles CTCP-framed PRIVMSG/NOTICE payloads (spec.md §4.7,
	// §1: "delegated to the CTCP collaborator"). If nil, a minimal
	// built-in handler (ACTION/VERSION/PING) is used.
	CTCP CTCPHandler
}

// SASLConfig selects a SASL mechanism and its credentials (spec.md §4.6).
type SASLConfig struct {
	Mechanism string // "PLAIN" or "EXTERNAL"
	Authzid   string
	Authcid   string
	Password  string
}

// DefaultRequestedCaps is the set of IRCv3 capabilities this module
// requests, per spec.md §4.6.
var DefaultRequestedCaps = []string{
	"sasl", "multi-prefix", "extended-join", "account-notify",
	"away-notify", "chghost", "invite-notify", "userhost-in-names",
}

// DefaultConfig returns a Config seeded with the original's
// config.def.h defaults.
func DefaultConfig() Config {
	return Config{
		QuitMessage:     "rirc",
		PartMessage:     "rirc",
		BufferLines:     1 << 10,
		InputCapacity:   InputCapacity,
		HistorySize:     HistorySize,
		PingMin:         150 * time.Second,
		PingRefresh:     5 * time.Second,
		PingMax:         300 * time.Second,
		ReconnectBase:   4 * time.Second,
		ReconnectFactor: 2,
		ReconnectMax:    86400 * time.Second,
		RequestedCaps:   append([]string(nil), DefaultRequestedCaps...),
	}
}
