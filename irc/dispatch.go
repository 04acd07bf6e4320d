package irc

import (
	"strconv"
	"strings"
	"time"
)

// Dispatch routes one parsed Message to its numeric or command-word
// handler, mutating s and emitting buffer lines via s.Sink (spec.md
// §4.7). It never panics across this boundary; handler failures are
// returned as a non-nil error (typically *ProtocolError or *ParseError)
// while the connection survives, per spec.md §7.
func Dispatch(s *Server, msg Message) error {
	if msg.Command == "PING" {
		// Answered synchronously, before any other handling, per spec.md
		// §4.5/§8 testable property 8.
		s.send(Message{Command: "PONG", Params: msg.Params, Trailing: msg.Trailing, HasTrailing: msg.HasTrailing})
		return nil
	}

	if msg.IsNumeric() {
		return dispatchNumeric(s, msg)
	}
	return dispatchCommand(s, msg)
}

func dispatchNumeric(s *Server, msg Message) error {
	target := msg.Param(0)
	if target != s.CurrentNick && target != "*" && s.CurrentNick != "" {
		s.emit(s.Channels.Server(), LineError, "", "numeric "+msg.Command+" targets "+target+", not us")
	}

	switch msg.Command {
	case RPL_WELCOME:
		return numWelcome(s, msg)
	case RPL_MYINFO:
		return numMyInfo(s, msg)
	case RPL_ISUPPORT:
		return numISupport(s, msg)
	case RPL_UMODEIS:
		s.emit(s.Channels.Server(), LineInfo, "", "user modes: "+msg.Last())
		return nil
	case RPL_CHANNELMODEIS:
		return numChannelModeIs(s, msg)
	case RPL_CHANNELURL:
		return numChannelURL(s, msg)
	case RPL_CREATIONTIME:
		return numCreationTime(s, msg)
	case RPL_TOPICWHOTIME:
		return numTopicWhoTime(s, msg)
	case RPL_NOTOPIC:
		ch := channelArg(s, msg, 1)
		if ch != nil {
			s.emit(ch, LineInfo, "", "no topic set")
		}
		return nil
	case RPL_TOPIC:
		return numTopic(s, msg)
	case RPL_NAMREPLY:
		return numNamReply(s, msg)
	case ERR_NOSUCHNICK:
		s.emit(s.Channels.Server(), LineError, "", "no such nick: "+msg.Param(1))
		return nil
	case ERR_NOSUCHCHANNEL:
		s.emit(s.Channels.Server(), LineError, "", "no such channel: "+msg.Param(1))
		return nil
	case ERR_NICKNAMEINUSE:
		return numNickInUse(s, msg)
	}

	if isSASLNumeric(msg.Command) {
		return handleCapOutcome(s, msg)
	}

	switch genericNumerics[msg.Command] {
	case bucketInfo:
		s.emit(s.Channels.Server(), LineInfo, "", msg.Last())
	case bucketError:
		s.emit(s.Channels.Server(), LineError, "", msg.Last())
	case bucketIgnore:
		// dropped, per the original's irc_generic_ignore table
	default:
		s.emit(s.Channels.Server(), LineInfo, "", "("+msg.Command+") "+msg.Last())
	}
	return nil
}

func numWelcome(s *Server, msg Message) error {
	s.CompleteRegistration()
	s.emit(s.Channels.Server(), LineInfo, "", msg.Last())
	s.emit(s.Channels.Server(), LineInfo, "", "You are known as "+s.CurrentNick)
	return nil
}

// numMyInfo parses numeric 004: <client> <server> <version> <usermodes>
// <chanmodes> (spec.md §4.7).
func numMyInfo(s *Server, msg Message) error {
	if len(msg.Params) < 1 {
		return &ParseError{Line: msg.Raw, Reason: "004 missing client param"}
	}
	s.ISupport.ApplyMyInfo(msg.Params[1:])
	return nil
}

// numISupport parses numeric 005's tokens, tolerating \xHH-escaped
// tokens without aborting the line (spec.md §9 open question: this
// escape sequence is left unimplemented, but the line must not abort).
func numISupport(s *Server, msg Message) error {
	// msg.Params[1:] is the token list; the trailing "are supported by
	// this server" comment is carried as Message.Trailing and ignored.
	s.ISupport.ApplyISupport(msg.Params[1:])
	s.CaseMapping = s.ISupport.CaseMapping
	s.Channels.SetCaseMapping(s.CaseMapping)
	return nil
}

// numChannelModeIs handles numeric 324: <chan> <modestring> [params...].
func numChannelModeIs(s *Server, msg Message) error {
	if len(msg.Params) < 3 {
		return &ParseError{Line: msg.Raw, Reason: "324 missing params"}
	}
	ch := s.Channels.Get(msg.Params[1])
	if ch == nil {
		return &ProtocolError{Op: "324", Reason: "unknown channel: " + msg.Params[1]}
	}
	applyChannelModes(s, ch, "", msg.Params[2], msg.Params[3:])
	return nil
}

func numChannelURL(s *Server, msg Message) error {
	ch := channelArg(s, msg, 1)
	if ch == nil {
		return nil
	}
	s.emit(ch, LineInfo, "", "channel url: "+msg.Last())
	return nil
}

func numCreationTime(s *Server, msg Message) error {
	ch := channelArg(s, msg, 1)
	if ch == nil {
		return nil
	}
	s.emit(ch, LineInfo, "", "created: "+formatUnixUTC(msg.Param(2)))
	return nil
}

func numTopicWhoTime(s *Server, msg Message) error {
	ch := channelArg(s, msg, 1)
	if ch == nil {
		return nil
	}
	who := msg.Param(2)
	s.emit(ch, LineInfo, "", "topic set by "+who+" at "+formatUnixUTC(msg.Param(3)))
	return nil
}

func numTopic(s *Server, msg Message) error {
	ch := channelArg(s, msg, 1)
	if ch == nil {
		return nil
	}
	s.emit(ch, LineInfo, "", "topic: "+msg.Last())
	return nil
}

// numNamReply parses numeric 353: <nick> <sym> <chan> :<names...>
// (spec.md §4.7, S2). The channel-type symbol ('@' secret, '*' private,
// '=' public) is the open question's accepted-set; any other symbol is
// reported as an error per spec.md §9. Multi-prefix NAMES is parsed even
// without the multi-prefix CAP, matching the original (same §9 note).
func numNamReply(s *Server, msg Message) error {
	if len(msg.Params) < 3 {
		return &ParseError{Line: msg.Raw, Reason: "353 missing params"}
	}
	sym := msg.Params[1]
	chanName := msg.Params[2]
	ch := s.Channels.Get(chanName)
	if ch == nil {
		ch = NewChannel(s, chanName, ChannelTypeChannel, s.Config.BufferLines)
		if err := s.Channels.Add(ch); err != nil {
			return err
		}
	}
	switch sym {
	case "@", "*", "=":
		ch.Visibility = sym[0]
	default:
		return &ProtocolError{Op: "353", Reason: "unrecognised channel-type symbol: " + sym}
	}

	for _, tok := range strings.Fields(msg.Last()) {
		nick := tok
		var modes ModeVector
		for len(nick) > 0 {
			flag, ok := s.ISupport.Modes.PrefixMode(nick[0])
			if !ok {
				break
			}
			modes.Set(flag)
			nick = nick[1:]
		}
		if u := ch.Users.Get(nick); u != nil {
			u.Modes = modes
			continue
		}
		u, err := ch.Users.Add(nick)
		if err != nil {
			s.emit(ch, LineError, "", err.Error())
			continue
		}
		u.Modes = modes
	}
	return nil
}

func numNickInUse(s *Server, msg Message) error {
	colliding := msg.Param(1)
	s.emit(s.Channels.Server(), LineError, "", "nick in use: "+colliding)
	if s.Registered {
		return nil
	}
	if colliding == s.CurrentNick || s.CurrentNick == "" {
		nick := s.NextNick()
		s.send(Message{Command: "NICK", Params: []string{nick}})
		s.emit(s.Channels.Server(), LineError, "", "trying "+nick)
	}
	return nil
}

// channelArg looks up the channel named in msg.Params[i], emitting a
// protocol error to the server buffer (rather than returning a hard
// error) if it is unknown, since these are all informational numerics.
func channelArg(s *Server, msg Message, i int) *Channel {
	name := msg.Param(i)
	ch := s.Channels.Get(name)
	if ch == nil {
		s.emit(s.Channels.Server(), LineError, "", "numeric for unknown channel: "+name)
	}
	return ch
}

// formatUnixUTC renders a unix-seconds string as "YYYY-MM-DDTHH:MM:SS"
// UTC (spec.md §4.7: numerics 329/333 "render as UTC
// YYYY-MM-DDTHH:MM:SS").
func formatUnixUTC(s string) string {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return time.Unix(n, 0).UTC().Format("2006-01-02T15:04:05")
}

// applyChannelModes walks a MODE modestring (spec.md §4.2) and applies
// each change to ch.Modes or, for PREFIX-class flags, to the named
// user's prefix vector within ch, emitting one info line per applied
// flag (spec.md §8 scenario S3) plus one error line per unknown flag.
func applyChannelModes(s *Server, ch *Channel, from, modestring string, params []string) {
	changes, errs := ParseModeString(s.ISupport.Modes, modestring, params)
	for _, e := range errs {
		s.emit(ch, LineError, from, e.Error())
	}
	for _, c := range changes {
		text := string(c.Sign) + string(c.Flag)
		if c.Param != "" {
			text += " " + c.Param
		}

		if c.Class == ModePrefix {
			u := ch.Users.Get(c.Param)
			if u == nil {
				s.emit(ch, LineError, from, "mode for unknown user: "+c.Param)
				continue
			}
			if c.Sign == '+' {
				u.Modes.Set(c.Flag)
			} else {
				u.Modes.Clear(c.Flag)
			}
			s.emit(ch, LineInfo, from, text)
			continue
		}
		if c.Sign == '+' {
			ch.Modes.Set(c.Flag)
		} else {
			ch.Modes.Clear(c.Flag)
		}
		ch.invalidateModeString()
		s.emit(ch, LineInfo, from, text)
	}
}

func dispatchCommand(s *Server, msg Message) error {
	switch msg.Command {
	case "JOIN":
		return cmdJoin(s, msg)
	case "PART":
		return cmdPart(s, msg)
	case "QUIT":
		return cmdQuit(s, msg)
	case "KICK":
		return cmdKick(s, msg)
	case "NICK":
		return cmdNick(s, msg)
	case "MODE":
		return cmdMode(s, msg)
	case "NOTICE":
		return cmdNotice(s, msg)
	case "PRIVMSG":
		return cmdPrivmsg(s, msg)
	case "PONG":
		return nil
	case "ERROR":
		return cmdError(s, msg)
	case "INVITE":
		return cmdInvite(s, msg)
	case "ACCOUNT":
		return cmdAccount(s, msg)
	case "AWAY":
		return cmdAway(s, msg)
	case "CHGHOST":
		return cmdChghost(s, msg)
	case "TOPIC":
		return cmdTopic(s, msg)
	case "CAP", "AUTHENTICATE":
		return handleCapOutcome(s, msg)
	}
	s.emit(s.Channels.Server(), LineInfo, "", "("+msg.Command+") "+msg.Raw)
	return nil
}

// handleCapOutcome routes a CAP/AUTHENTICATE/SASL-numeric message to the
// CapSet sub-machine, sending whatever it returns and disconnecting
// pre-registration on fatal failure (spec.md §4.6, §7).
func handleCapOutcome(s *Server, msg Message) error {
	outs, err := s.Caps.Handle(msg)
	for _, m := range outs {
		s.send(m)
	}
	if err != nil {
		s.emit(s.Channels.Server(), LineError, "", err.Error())
		if !s.Registered {
			// Fatal pre-registration CAP/AUTHENTICATE failure: the caller
			// (Driver.Run) closes the connection on this error, per
			// spec.md §4.6/§4.7 ("pre-registration failure triggers
			// disconnect").
			return err
		}
	}
	return nil
}

func cmdJoin(s *Server, msg Message) error {
	chanName := msg.Param(0)
	if chanName == "" {
		chanName = msg.Last()
	}
	if msg.From == s.CurrentNick {
		ch := s.Channels.Get(chanName)
		if ch == nil {
			ch = NewChannel(s, chanName, ChannelTypeChannel, s.Config.BufferLines)
			if err := s.Channels.Add(ch); err != nil {
				return err
			}
		}
		ch.Parted = false
		ch.Joined = true
		s.emit(ch, LineJoin, msg.From, "Joined "+chanName)
		s.send(Message{Command: "MODE", Params: []string{chanName}})
		return nil
	}

	ch := s.Channels.Get(chanName)
	if ch == nil {
		return &ProtocolError{Op: "JOIN", Reason: "unknown channel: " + chanName}
	}
	if _, err := ch.Users.Add(msg.From); err != nil {
		s.emit(ch, LineError, msg.From, err.Error())
		return err
	}
	if s.emitAllowed(ch, s.Config.FilterThresholdJoin, msg.From) {
		text := "has joined " + chanName
		if s.Caps.Acked("extended-join") && len(msg.Params) >= 2 {
			text += " (" + msg.Param(1) + ", " + msg.Last() + ")"
		}
		s.emit(ch, LineJoin, msg.From, text)
	}
	return nil
}

func cmdPart(s *Server, msg Message) error {
	chanName := msg.Param(0)
	ch := s.Channels.Get(chanName)
	if ch == nil {
		return &ProtocolError{Op: "PART", Reason: "unknown channel: " + chanName}
	}
	if msg.From == s.CurrentNick {
		ch.Parted = true
		ch.Joined = false
		s.emit(ch, LinePart, msg.From, "you have parted "+chanName)
		return nil
	}
	if s.emitAllowed(ch, s.Config.FilterThresholdPart, msg.From) {
		s.emit(ch, LinePart, msg.From, "has left "+chanName)
	}
	if err := ch.Users.Remove(msg.From); err != nil {
		return err
	}
	return nil
}

func cmdQuit(s *Server, msg Message) error {
	reason := msg.Last()
	for _, ch := range s.Channels.All() {
		if ch.Type != ChannelTypeChannel {
			continue
		}
		if ch.Users.Get(msg.From) == nil {
			continue
		}
		if s.emitAllowed(ch, s.Config.FilterThresholdQuit, msg.From) {
			text := "has quit"
			if reason != "" {
				text += ": " + reason
			}
			s.emit(ch, LineQuit, msg.From, text)
		}
		ch.Users.Remove(msg.From)
	}
	return nil
}

func cmdKick(s *Server, msg Message) error {
	if len(msg.Params) < 2 {
		return &ParseError{Line: msg.Raw, Reason: "KICK missing params"}
	}
	chanName, target := msg.Params[0], msg.Params[1]
	ch := s.Channels.Get(chanName)
	if ch == nil {
		return &ProtocolError{Op: "KICK", Reason: "unknown channel: " + chanName}
	}
	reason := msg.Last()
	if reason == msg.From {
		reason = ""
	}
	text := target + " was kicked by " + msg.From
	if reason != "" {
		text += " (" + reason + ")"
	}
	s.emit(ch, LinePart, msg.From, text)

	if target == s.CurrentNick {
		ch.Parted = true
		ch.Joined = false
		return nil
	}
	return ch.Users.Remove(target)
}

func cmdNick(s *Server, msg Message) error {
	newNick := msg.Param(0)
	if newNick == "" {
		newNick = msg.Last()
	}
	if msg.From == s.CurrentNick {
		s.CurrentNick = newNick
	}
	for _, ch := range s.Channels.All() {
		if ch.Users.Get(msg.From) == nil {
			continue
		}
		if err := ch.Users.Rename(msg.From, newNick); err != nil {
			s.emit(ch, LineError, msg.From, err.Error())
			continue
		}
		s.emit(ch, LineNick, msg.From, msg.From+" is now known as "+newNick)
	}
	return nil
}

func cmdMode(s *Server, msg Message) error {
	if len(msg.Params) < 1 {
		return &ParseError{Line: msg.Raw, Reason: "MODE missing target"}
	}
	target := msg.Params[0]
	if target == s.CurrentNick {
		if len(msg.Params) >= 2 {
			for _, c := range msg.Params[1] {
				if c == '+' || c == '-' {
					continue
				}
				s.UserModes.Set(byte(c))
			}
		}
		s.emit(s.Channels.Server(), LineInfo, msg.From, "user mode: "+strings.Join(msg.Params[1:], " "))
		return nil
	}
	ch := s.Channels.Get(target)
	if ch == nil {
		return &ProtocolError{Op: "MODE", Reason: "unknown target: " + target}
	}
	if len(msg.Params) < 2 {
		return &ParseError{Line: msg.Raw, Reason: "MODE missing modestring"}
	}
	applyChannelModes(s, ch, msg.From, msg.Params[1], msg.Params[2:])
	return nil
}

func cmdNotice(s *Server, msg Message) error {
	return routePrivmsgLike(s, msg, false)
}

func cmdPrivmsg(s *Server, msg Message) error {
	return routePrivmsgLike(s, msg, true)
}

func routePrivmsgLike(s *Server, msg Message, isPrivmsg bool) error {
	if len(msg.Params) < 1 {
		return &ParseError{Line: msg.Raw, Reason: "PRIVMSG/NOTICE missing target"}
	}
	if s.IsIgnored(msg.From) {
		return nil
	}

	target := msg.Params[0]
	text := msg.Last()

	if cmd, params, ok := isCTCP(text); ok {
		return dispatchCTCP(s, msg, target, cmd, params, isPrivmsg)
	}

	dest := target
	if target == s.CurrentNick {
		dest = msg.From
	}
	ch := s.Channels.Get(dest)
	if ch == nil {
		ch = NewChannel(s, dest, ChannelTypePrivmsg, s.Config.BufferLines)
		if err := s.Channels.Add(ch); err != nil {
			return err
		}
	}

	typ := LineChat
	if isPrivmsg && s.CurrentNick != "" && containsWord(text, s.CurrentNick, s.CaseMapping) {
		typ = LinePinged
		ch.Activity = ActivityPinged
		s.hint(HintBell)
	} else if ch.Activity < ActivityChat {
		ch.Activity = ActivityChat
	}
	s.emit(ch, typ, msg.From, text)
	return nil
}

func dispatchCTCP(s *Server, msg Message, target, cmd, params string, isRequest bool) error {
	handler := s.Config.CTCP
	if handler == nil {
		handler = defaultCTCPHandler{}
	}
	if !isRequest {
		handler.Response(msg.From, cmd, params)
		return nil
	}
	if cmd == "ACTION" {
		dest := target
		if target == s.CurrentNick {
			dest = msg.From
		}
		ch := s.Channels.Get(dest)
		if ch == nil {
			ch = NewChannel(s, dest, ChannelTypePrivmsg, s.Config.BufferLines)
			if err := s.Channels.Add(ch); err != nil {
				return err
			}
		}
		s.emit(ch, LineAction, msg.From, msg.From+" "+params)
		return nil
	}
	if reply, ok := handler.Request(msg.From, cmd, params); ok {
		s.send(Message{Command: "NOTICE", Params: []string{msg.From}, Trailing: encodeCTCP(cmd, reply), HasTrailing: true})
	}
	return nil
}

// containsWord reports whether text contains word as a space-delimited
// token, compared under cm's fold (spec.md §4.7: "a message is a 'ping'
// for the user if it contains the current nick as a word boundary under
// the active case-fold").
func containsWord(text, word string, cm CaseMapping) bool {
	folded := cm.Fold(word)
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, ":,;")
		if cm.Fold(f) == folded {
			return true
		}
	}
	return false
}

func cmdError(s *Server, msg Message) error {
	if s.Quitting {
		s.emit(s.Channels.Server(), LineInfo, "", msg.Last())
	} else {
		s.emit(s.Channels.Server(), LineError, "", msg.Last())
	}
	return nil
}

func cmdInvite(s *Server, msg Message) error {
	target := msg.Param(0)
	chanName := msg.Last()
	if target == s.CurrentNick {
		s.emit(s.Channels.Server(), LineInfo, msg.From, msg.From+" invites you to "+chanName)
		return nil
	}
	ch := s.Channels.Get(chanName)
	if ch != nil {
		s.emit(ch, LineInfo, msg.From, msg.From+" invites "+target)
	}
	return nil
}

func cmdAccount(s *Server, msg Message) error {
	return emitPerMembership(s, msg, s.Config.FilterThresholdAccount, msg.From+" is now authenticated as "+msg.Last())
}

func cmdAway(s *Server, msg Message) error {
	text := msg.From + " is now away"
	if msg.Last() != "" {
		text = msg.From + " is back"
	}
	return emitPerMembership(s, msg, s.Config.FilterThresholdAway, text)
}

func cmdChghost(s *Server, msg Message) error {
	return emitPerMembership(s, msg, s.Config.FilterThresholdChghost,
		msg.From+" changed host to "+msg.Param(0)+"@"+msg.Param(1))
}

// emitPerMembership emits an informative line on every channel the
// sender is a member of, gated by threshold (spec.md §4.7: ACCOUNT/AWAY/
// CHGHOST "iterate channels that contain the sender"). Channel
// identifiers are snapshotted before iterating, per spec.md §9's design
// note on mutation-during-iteration, even though these handlers do not
// themselves add/remove channels.
func emitPerMembership(s *Server, msg Message, threshold int, text string) error {
	for _, ch := range s.Channels.All() {
		if ch.Type != ChannelTypeChannel {
			continue
		}
		if ch.Users.Get(msg.From) == nil {
			continue
		}
		if s.emitAllowed(ch, threshold, msg.From) {
			s.emit(ch, LineInfo, msg.From, text)
		}
	}
	return nil
}

func cmdTopic(s *Server, msg Message) error {
	ch := s.Channels.Get(msg.Param(0))
	if ch == nil {
		return &ProtocolError{Op: "TOPIC", Reason: "unknown channel: " + msg.Param(0)}
	}
	s.emit(ch, LineInfo, msg.From, msg.From+" changed topic to: "+msg.Last())
	return nil
}

// thresholdAllows reports whether a JOIN/PART/QUIT/ACCOUNT/AWAY/CHGHOST
// line should be emitted: 0 disables filtering; otherwise emit only if
// the channel's user count is below threshold (spec.md §4.7).
func thresholdAllows(ch *Channel, threshold int) bool {
	return threshold == 0 || ch.Users.Len() < threshold
}

// emitAllowed combines thresholdAllows with the server's ignore list: a
// JOIN/PART/QUIT/ACCOUNT/AWAY/CHGHOST line from an ignored nick is always
// suppressed, regardless of threshold (spec.md §3: "the Server
// exclusively owns ... its ignore list").
func (s *Server) emitAllowed(ch *Channel, threshold int, from string) bool {
	return !s.IsIgnored(from) && thresholdAllows(ch, threshold)
}
