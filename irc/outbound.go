package irc

import (
	"time"

	"golang.org/x/time/rate"
)

// outQueueSize is the bounded outbound queue's capacity (spec.md §4.8:
// "an unbounded growth policy is forbidden").
const outQueueSize = 256

// OutQueue builds well-formed IRC lines and holds them in a bounded,
// rate-limited queue ahead of the connection driver's write side
// (spec.md §4.8). Grounded on the rate.Limiter-gated send pattern used
// for outbound throttling in the retrieved pack (e.g. the senpai-derived
// irc-session.go typing indicator's token bucket), applied here to the
// general send path in place of the teacher's unbuffered, ungated
// `Out chan<- Msg`.
type OutQueue struct {
	ch      chan Message
	limiter *rate.Limiter
}

// NewOutQueue returns an OutQueue that allows at most rps lines per
// second, bursting up to burst lines.
func NewOutQueue(rps float64, burst int) *OutQueue {
	return &OutQueue{
		ch:      make(chan Message, outQueueSize),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Send enqueues msg for the writer goroutine. It never blocks: if the
// bounded queue is full, it returns a *BackpressureError instead of
// growing the queue (spec.md §4.8).
func (q *OutQueue) Send(msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return &BackpressureError{Command: msg.Command}
	}
}

// Recv blocks until a message is ready to write, pacing writes to the
// configured rate via the token-bucket limiter, or until ctx-like
// cancellation via the done channel.
func (q *OutQueue) Recv(done <-chan struct{}) (Message, bool) {
	select {
	case msg := <-q.ch:
		reservation := q.limiter.Reserve()
		if d := reservation.Delay(); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-done:
				t.Stop()
				return Message{}, false
			}
		}
		return msg, true
	case <-done:
		return Message{}, false
	}
}

// Close closes the underlying channel; callers must stop sending after
// calling Close.
func (q *OutQueue) Close() { close(q.ch) }

// FormatLine renders msg to wire form with the terminating CRLF, failing
// if the result would exceed MaxLine bytes (spec.md §4.8). Pre-split text
// (PRIVMSG splitting on UTF-8 boundaries) is the caller's responsibility,
// per spec.md §4.8: "core receives pre-split text".
func FormatLine(msg Message) (string, error) {
	line := msg.String() + "\r\n"
	if len(line) > MaxLine {
		return "", &ProtocolError{Op: "format", Reason: "line exceeds 512 bytes"}
	}
	return line, nil
}
