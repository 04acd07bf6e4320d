package irc

import "sort"

// A User is a single nick's membership record within a channel's user
// list: the nick as last seen on the wire, and the prefix-mode vector the
// server has granted it on that channel (spec.md §3, §4.4).
type User struct {
	Nick  string
	Modes ModeVector
}

// UserList is an ordered, case-folded associative container keyed by
// nick, matching spec.md §4.4: add/remove/rename/get, each failing on a
// duplicate-or-absent nick under the server's active case mapping.
// Ordering is insertion order, which callers rank-sort for display (see
// Sorted).
type UserList struct {
	cm    CaseMapping
	order []string          // folded nicks, insertion order
	byFold map[string]*User // folded nick -> user
}

// NewUserList returns an empty UserList folding keys with cm.
func NewUserList(cm CaseMapping) *UserList {
	return &UserList{cm: cm, byFold: make(map[string]*User)}
}

// Add inserts a new user, failing if nick already exists under the fold.
func (l *UserList) Add(nick string) (*User, error) {
	key := l.cm.Fold(nick)
	if _, ok := l.byFold[key]; ok {
		return nil, &ProtocolError{Op: "user add", Reason: "duplicate nick: " + nick}
	}
	u := &User{Nick: nick}
	l.byFold[key] = u
	l.order = append(l.order, key)
	return u, nil
}

// Remove deletes the user with the given nick, failing if absent.
func (l *UserList) Remove(nick string) error {
	key := l.cm.Fold(nick)
	if _, ok := l.byFold[key]; !ok {
		return &ProtocolError{Op: "user remove", Reason: "no such nick: " + nick}
	}
	delete(l.byFold, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rename changes a user's nick in place, preserving its position and
// modes, failing if old is absent or new already exists under the fold.
func (l *UserList) Rename(old, new_ string) error {
	oldKey := l.cm.Fold(old)
	u, ok := l.byFold[oldKey]
	if !ok {
		return &ProtocolError{Op: "user rename", Reason: "no such nick: " + old}
	}
	newKey := l.cm.Fold(new_)
	if newKey != oldKey {
		if _, ok := l.byFold[newKey]; ok {
			return &ProtocolError{Op: "user rename", Reason: "duplicate nick: " + new_}
		}
	}
	delete(l.byFold, oldKey)
	u.Nick = new_
	l.byFold[newKey] = u
	for i, k := range l.order {
		if k == oldKey {
			l.order[i] = newKey
			break
		}
	}
	return nil
}

// Get returns the user with the given nick, or nil if absent.
func (l *UserList) Get(nick string) *User {
	return l.byFold[l.cm.Fold(nick)]
}

// Len returns the number of users in the list.
func (l *UserList) Len() int { return len(l.order) }

// All returns the users in insertion order. The returned slice is owned
// by the caller.
func (l *UserList) All() []*User {
	us := make([]*User, len(l.order))
	for i, k := range l.order {
		us[i] = l.byFold[k]
	}
	return us
}

// Sorted returns the users ranked by cfg's PREFIX order (highest rank
// first), with folded nick as a tiebreaker, per spec.md §4.4.
func (l *UserList) Sorted(cfg *ModeConfig) []*User {
	us := l.All()
	sort.SliceStable(us, func(i, j int) bool {
		ri, rj := prefixRank(cfg, us[i].Modes), prefixRank(cfg, us[j].Modes)
		if ri != rj {
			return ri < rj
		}
		return l.cm.Fold(us[i].Nick) < l.cm.Fold(us[j].Nick)
	})
	return us
}

// prefixRank returns the best (lowest-numbered) PREFIX rank held by v, or
// a rank below every configured PREFIX mode if v holds none.
func prefixRank(cfg *ModeConfig, v ModeVector) int {
	best := len(cfg.prefixModes)
	for i, m := range cfg.prefixModes {
		if v.Test(m) && i < best {
			best = i
		}
	}
	return best
}
