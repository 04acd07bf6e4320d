package irc

import "fmt"

// ProtocolError reports a handler-detected invariant violation (e.g. JOIN
// on an unknown channel, MODE on an unknown target) per spec.md §7's
// "Protocol error" taxonomy entry: logged, dispatch returns a non-zero
// indicator, the connection survives.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// BackpressureError is returned by the outbound queue when it is full
// (spec.md §4.8). It is recoverable: the caller may retry or drop the
// send, but must not grow the queue unboundedly.
type BackpressureError struct {
	Command string
}

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("send queue full, dropping %s", e.Command)
}

// AuthError reports a SASL/CAP authentication failure (spec.md §4.6,
// §7). Pre-registration, the caller disconnects; post-registration, it
// is only logged.
type AuthError struct {
	Numeric string
	Reason  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Numeric, e.Reason)
}
