package transport

import (
	"errors"
	"fmt"
)

// RecipientError reports a single envelope recipient refused by the
// remote side while the session itself completed.
type RecipientError struct {
	Recipient string
	Err       error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient %s rejected: %v", e.Recipient, e.Err)
}

func (e *RecipientError) Unwrap() error { return e.Err }

// RejectError reports a partial failure: the transport session completed
// but one or more recipients were refused. It never escalates to a
// session failure.
type RejectError struct {
	Recipients []*RecipientError
}

func (e *RejectError) Error() string {
	if len(e.Recipients) == 1 {
		return e.Recipients[0].Error()
	}
	return fmt.Sprintf("%d recipients rejected", len(e.Recipients))
}

// SessionError reports a session-level delivery failure: connection,
// protocol, or authentication. Rendering prefers the innermost cause so
// the original failure text survives wrapping; the full chain stays
// reachable through Unwrap.
type SessionError struct {
	// Op names the failed stage, e.g. "dial" or "send".
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	msg := rootMessage(e.Err)
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *SessionError) Unwrap() error { return e.Err }

// rootMessage walks the wrap chain and returns the innermost error's text.
func rootMessage(err error) string {
	if err == nil {
		return "unknown transport failure"
	}
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}
