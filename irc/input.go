package irc

import "strings"

// InputCapacity is the default capacity of an Input's gap buffer, in
// bytes. Compile-time constant per spec.md §4.9; HistorySize below is the
// paired default for the scrollback ring.
const InputCapacity = 512

// HistorySize is the default number of completed lines an Input retains
// in its scrollback ring. Must be a power of two (spec.md §4.9).
const HistorySize = 32

// CompletionFunc looks up a completion candidate for word, the token
// surrounding the cursor delimited by spaces. firstInLine reports whether
// word is the first token on the line (callers use this to distinguish
// command names from arguments/nicks). A zero-value (ok == false) return
// leaves the input buffer unchanged.
type CompletionFunc func(word string, firstInLine bool) (replacement string, ok bool)

// Input is a fixed-capacity gap buffer with cursor, bounded history ring,
// viewport framing, and word-boundary tab completion (spec.md §4.9).
// Bytes [0, head) are before the cursor, [tail, cap) are after; the gap
// [head, tail) is unused capacity.
type Input struct {
	buf  []byte
	head int
	tail int

	history     []string
	historyMask int
	historyLen  int  // number of live entries, <= len(history)
	historyHead int  // index of the oldest live entry
	scrollback  int  // 0 == live working buffer; >0 == that many entries back from newest
	saved       []byte // working buffer contents saved while scrolling back

	frameOff int // viewport start offset, in bytes of the live text
}

// NewInput returns an Input with the given buffer capacity and history
// ring size; historySize must be a power of two.
func NewInput(capacity, historySize int) *Input {
	if historySize <= 0 || historySize&(historySize-1) != 0 {
		panic("irc: Input history size must be a positive power of two")
	}
	return &Input{
		buf:         make([]byte, capacity),
		tail:        capacity,
		history:     make([]string, historySize),
		historyMask: historySize - 1,
	}
}

// cap_ returns the buffer's total capacity (named to avoid shadowing the
// builtin in methods that also range over slices).
func (in *Input) cap_() int { return len(in.buf) }

// Len returns the number of live bytes in the working buffer.
func (in *Input) Len() int { return in.head + (in.cap_() - in.tail) }

// Text returns the working buffer's live contents.
func (in *Input) Text() string {
	if in.head == 0 {
		return string(in.buf[in.tail:])
	}
	b := make([]byte, 0, in.Len())
	b = append(b, in.buf[:in.head]...)
	b = append(b, in.buf[in.tail:]...)
	return string(b)
}

// Insert appends bytes at the cursor, failing (returning false) if there
// is insufficient room in the gap.
func (in *Input) Insert(s []byte) bool {
	if in.tail-in.head < len(s) {
		return false
	}
	copy(in.buf[in.head:], s)
	in.head += len(s)
	return true
}

// CursorBack moves the cursor back one character, failing at the start of
// the buffer.
func (in *Input) CursorBack() bool {
	if in.head == 0 {
		return false
	}
	in.head--
	in.tail--
	in.buf[in.tail] = in.buf[in.head]
	return true
}

// CursorForw moves the cursor forward one character, failing at the end
// of the buffer.
func (in *Input) CursorForw() bool {
	if in.tail == in.cap_() {
		return false
	}
	in.buf[in.head] = in.buf[in.tail]
	in.head++
	in.tail++
	return true
}

// DeleteBack deletes the character before the cursor, failing at the
// start of the buffer.
func (in *Input) DeleteBack() bool {
	if in.head == 0 {
		return false
	}
	in.head--
	return true
}

// DeleteForw deletes the character after the cursor, failing at the end
// of the buffer.
func (in *Input) DeleteForw() bool {
	if in.tail == in.cap_() {
		return false
	}
	in.tail++
	return true
}

// Reset clears the working buffer, reporting whether it held any text.
func (in *Input) Reset() bool {
	was := in.Len() > 0
	in.head = 0
	in.tail = in.cap_()
	in.frameOff = 0
	return was
}

// HistoryPush appends the working buffer to the history ring (if
// non-empty), resets the working buffer and scrollback index, and
// reports whether anything was pushed (spec.md §4.9, testable property 6:
// idempotent on an empty buffer).
func (in *Input) HistoryPush() bool {
	if in.Len() == 0 {
		return false
	}
	text := in.Text()
	size := len(in.history)
	if in.historyLen == size {
		in.historyHead = (in.historyHead + 1) & in.historyMask
	} else {
		in.historyLen++
	}
	idx := (in.historyHead + in.historyLen - 1) & in.historyMask
	in.history[idx] = text
	in.scrollback = 0
	in.saved = nil
	in.Reset()
	return true
}

// entryAt returns the n'th most recent history entry (n=1 is newest).
func (in *Input) entryAt(n int) string {
	idx := (in.historyHead + in.historyLen - n) & in.historyMask
	return in.history[idx]
}

// HistoryBack navigates one entry further into scrollback, copying it
// into the working buffer. Fails without changing state once the oldest
// entry has been reached.
func (in *Input) HistoryBack() bool {
	if in.scrollback >= in.historyLen {
		return false
	}
	if in.scrollback == 0 {
		saved := in.Text()
		in.saved = []byte(saved)
	}
	in.scrollback++
	in.loadEntry(in.entryAt(in.scrollback))
	return true
}

// HistoryForw navigates one entry back toward the live working buffer.
// Fails without changing state once already at the live buffer.
func (in *Input) HistoryForw() bool {
	if in.scrollback == 0 {
		return false
	}
	in.scrollback--
	if in.scrollback == 0 {
		in.loadEntry(string(in.saved))
		in.saved = nil
		return true
	}
	in.loadEntry(in.entryAt(in.scrollback))
	return true
}

func (in *Input) loadEntry(text string) {
	in.head = 0
	in.tail = in.cap_()
	in.Insert([]byte(text))
}

// Frame returns the slice of the working buffer visible in a window of
// the given width, and the cursor's column within that slice, per
// spec.md §4.9. The viewport slides by multiples of width/2 as the
// cursor leaves it.
func (in *Input) Frame(width int) (slice string, cursorCol int) {
	if width <= 0 {
		return "", 0
	}
	half := width / 2
	if half == 0 {
		half = 1
	}
	for in.head < in.frameOff {
		in.frameOff -= half
		if in.frameOff < 0 {
			in.frameOff = 0
		}
	}
	for in.head-in.frameOff >= width {
		in.frameOff += half
	}
	text := in.Text()
	end := in.frameOff + width
	if end > len(text) {
		end = len(text)
	}
	if in.frameOff > len(text) {
		in.frameOff = len(text)
	}
	return text[in.frameOff:end], in.head - in.frameOff
}

// Complete locates the space-delimited word surrounding the cursor and
// calls cb with it. If cb reports a match, the word is replaced in place
// (truncated to fit the buffer's capacity if necessary) and the cursor is
// re-anchored at the end of the replacement; Complete returns whether a
// replacement was made.
func (in *Input) Complete(cb CompletionFunc) bool {
	text := in.Text()
	cursor := in.head
	start := strings.LastIndexByte(text[:cursor], ' ') + 1
	end := cursor + strings.IndexByte(text[cursor:], ' ')
	if strings.IndexByte(text[cursor:], ' ') < 0 {
		end = len(text)
	}
	word := text[start:end]
	firstInLine := start == 0

	repl, ok := cb(word, firstInLine)
	if !ok {
		return false
	}

	room := in.cap_() - (len(text) - len(word))
	if len(repl) > room {
		repl = repl[:room]
	}

	newText := text[:start] + repl + text[end:]
	cursor = start + len(repl)
	in.head = cursor
	in.tail = in.cap_() - (len(newText) - cursor)
	copy(in.buf[:cursor], newText[:cursor])
	copy(in.buf[in.tail:], newText[cursor:])
	return true
}
