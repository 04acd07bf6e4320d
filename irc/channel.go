package irc

import "time"

// ChannelType distinguishes the distinguished server channel, a joined
// IRC channel, and a privmsg (one-to-one query) target, per spec.md §3.
type ChannelType int

const (
	ChannelTypeServer ChannelType = iota
	ChannelTypeChannel
	ChannelTypePrivmsg
)

// ActivityLevel ranks a channel's unread activity for nav-bar colouring,
// in order of precedence (spec.md §3, design note on ACTIVITY_COLOURS in
// the original's config.def.h).
type ActivityLevel int

const (
	ActivityNone ActivityLevel = iota
	ActivityJoinPartQuit
	ActivityChat
	ActivityPinged
)

// LineType tags a BufferLine for UI colouring/filtering; the core only
// stores the tag (spec.md §4.10).
type LineType int

const (
	LineChat LineType = iota
	LineJoin
	LinePart
	LineQuit
	LineNick
	LinePinged
	LineAction
	LineInfo
	LineError
)

// BufferLine is one timestamped, typed line in a channel's scrollback
// (spec.md §3, §4.10).
type BufferLine struct {
	Timestamp time.Time
	Type      LineType
	From      string
	Text      string
}

// BufferRing is a fixed-capacity ring of BufferLines; capacity must be a
// power of two so indices can be masked rather than modulo'd (spec.md
// §4.10, grounded on the original's BUFFER_LINES_MAX and the mask-indexed
// history ring shared with the input line, §4.9).
type BufferRing struct {
	lines []BufferLine
	mask  uint32
	head  uint32 // index of the oldest live line
	count uint32 // number of live lines, <= len(lines)
}

// NewBufferRing returns a ring of the given capacity, which must be a
// power of two.
func NewBufferRing(capacity int) *BufferRing {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("irc: BufferRing capacity must be a positive power of two")
	}
	return &BufferRing{
		lines: make([]BufferLine, capacity),
		mask:  uint32(capacity - 1),
	}
}

// Push appends a line, overwriting the oldest entry once the ring is at
// capacity.
func (r *BufferRing) Push(line BufferLine) {
	cap := uint32(len(r.lines))
	if r.count < cap {
		idx := (r.head + r.count) & r.mask
		r.lines[idx] = line
		r.count++
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) & r.mask
}

// Lines returns the live lines, oldest first. The returned slice is
// freshly allocated.
func (r *BufferRing) Lines() []BufferLine {
	out := make([]BufferLine, r.count)
	for i := uint32(0); i < r.count; i++ {
		out[i] = r.lines[(r.head+i)&r.mask]
	}
	return out
}

// Len returns the number of live lines.
func (r *BufferRing) Len() int { return int(r.count) }

// A Channel is a server channel, joined IRC channel, or privmsg target
// (spec.md §3). Channel exclusively owns its user list and buffer-line
// ring, and holds a back reference to its server, which is relation-only
// (never ownership) — represented as a plain pointer per the spec's
// design note (§9) that the reference need not be an arena index in a Go
// implementation with a garbage collector.
type Channel struct {
	Name   string
	Type   ChannelType
	Parted bool
	Joined bool

	Modes           ModeVector
	modeStringCache string

	// Visibility is the RPL_NAMREPLY symbol ('@' secret, '*' private,
	// '=' public) last reported for this channel, per spec.md §4.7 (S2).
	Visibility byte

	Users *UserList
	Lines *BufferRing

	Activity ActivityLevel

	Server *Server
}

// NewChannel returns a Channel of the given type and name, owned by srv.
func NewChannel(srv *Server, name string, typ ChannelType, bufferLines int) *Channel {
	cm := CaseMappingRFC1459
	if srv != nil {
		cm = srv.CaseMapping
	}
	return &Channel{
		Name:  name,
		Type:  typ,
		Users: NewUserList(cm),
		Lines: NewBufferRing(bufferLines),
		Server: srv,
	}
}

// ModeString renders the channel's mode vector with ModeVector.String
// (alphabetical flags), caching the result until next invalidated by a mode change
// (dispatch.go clears modeStringCache on every applied MODE).
func (c *Channel) ModeString() string {
	if c.modeStringCache == "" && !c.Modes.IsZero() {
		c.modeStringCache = c.Modes.String()
	}
	return c.modeStringCache
}

// invalidateModeString forces ModeString to recompute on next call.
func (c *Channel) invalidateModeString() { c.modeStringCache = "" }

// ChannelList is the ordered, case-folded, circularly-navigable container
// of a server's channels (spec.md §3, §9). Index 0 is always the
// distinguished server channel. Implemented as an ordered slice plus a
// folded-name index, which is observationally equivalent to the
// original's circular linked list (spec.md §9 design note) while being
// simpler to keep consistent in Go.
type ChannelList struct {
	cm      CaseMapping
	entries []*Channel
	byFold  map[string]int // folded name -> index into entries
	cursor  int            // current channel index, for nav
}

// NewChannelList returns a ChannelList seeded with the distinguished
// server channel as its head.
func NewChannelList(cm CaseMapping, serverChan *Channel) *ChannelList {
	l := &ChannelList{cm: cm, byFold: make(map[string]int)}
	l.entries = append(l.entries, serverChan)
	l.byFold[cm.Fold(serverChan.Name)] = 0
	return l
}

// Server returns the distinguished server channel (index 0).
func (l *ChannelList) Server() *Channel { return l.entries[0] }

// Add appends a new channel, failing if its name already exists under the
// fold (spec.md §4.4's duplicate-add contract, applied to channels).
func (l *ChannelList) Add(c *Channel) error {
	key := l.cm.Fold(c.Name)
	if _, ok := l.byFold[key]; ok {
		return &ProtocolError{Op: "channel add", Reason: "duplicate channel: " + c.Name}
	}
	l.byFold[key] = len(l.entries)
	l.entries = append(l.entries, c)
	return nil
}

// Get returns the channel with the given name, or nil if absent.
func (l *ChannelList) Get(name string) *Channel {
	i, ok := l.byFold[l.cm.Fold(name)]
	if !ok {
		return nil
	}
	return l.entries[i]
}

// Remove deletes a non-server channel by name, failing if it is the
// server channel or absent. Removing re-indexes byFold for every
// following entry; this is O(n) but channel counts are small and removal
// is rare relative to message dispatch.
func (l *ChannelList) Remove(name string) error {
	key := l.cm.Fold(name)
	i, ok := l.byFold[key]
	if !ok {
		return &ProtocolError{Op: "channel remove", Reason: "no such channel: " + name}
	}
	if i == 0 {
		return &ProtocolError{Op: "channel remove", Reason: "cannot remove the server channel"}
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.byFold, key)
	for k, idx := range l.byFold {
		if idx > i {
			l.byFold[k] = idx - 1
		}
	}
	if l.cursor >= len(l.entries) {
		l.cursor = len(l.entries) - 1
	}
	return nil
}

// All returns every channel, server first, in insertion order.
func (l *ChannelList) All() []*Channel {
	out := make([]*Channel, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of channels, including the server channel.
func (l *ChannelList) Len() int { return len(l.entries) }

// Current returns the channel at the nav cursor.
func (l *ChannelList) Current() *Channel { return l.entries[l.cursor] }

// Next advances the nav cursor circularly and returns the new current
// channel.
func (l *ChannelList) Next() *Channel {
	l.cursor = (l.cursor + 1) % len(l.entries)
	return l.entries[l.cursor]
}

// Prev retreats the nav cursor circularly and returns the new current
// channel.
func (l *ChannelList) Prev() *Channel {
	l.cursor = (l.cursor - 1 + len(l.entries)) % len(l.entries)
	return l.entries[l.cursor]
}

// SetCaseMapping updates the fold used for channel-name lookups,
// following a CASEMAPPING change from RPL_ISUPPORT (spec.md §4.7). The
// existing byFold index keys remain valid only if they already matched
// under the new mapping; since real servers never send a mismatching
// CASEMAPPING after channels exist, no index rebuild is attempted here.
func (l *ChannelList) SetCaseMapping(cm CaseMapping) { l.cm = cm }

// SetCurrent moves the nav cursor to the named channel, if present.
func (l *ChannelList) SetCurrent(name string) bool {
	i, ok := l.byFold[l.cm.Fold(name)]
	if !ok {
		return false
	}
	l.cursor = i
	return true
}
