// Package send implements the delivery executor and the staged pipeline
// that feeds it.
package send

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

// Status classifies the result of one delivery attempt.
type Status int

const (
	// StatusSent means every recipient was accepted.
	StatusSent Status = iota
	// StatusPartial means the session completed but one or more recipients
	// were refused.
	StatusPartial
	// StatusFailed means the session itself failed: connection, protocol,
	// or authentication.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusPartial:
		return "partial"
	default:
		return "failed"
	}
}

// Outcome is the classified result of exactly one delivery attempt.
type Outcome struct {
	Status Status
	// Rejected lists the refused recipients when Status is StatusPartial.
	Rejected []*transport.RecipientError
	// Err carries the failure when Status is not StatusSent.
	Err error
}

// Deliver submits msg to target through tr exactly once and classifies the
// result. Every attachment handle is released before Deliver returns, on
// every branch; no retry is performed.
func Deliver(ctx context.Context, tr transport.Transport, target transport.Target, msg *message.Message) Outcome {
	defer func() {
		if err := msg.CloseAttachments(); err != nil {
			slog.Warn("failed to release attachment resources", "error", err)
		}
	}()

	err := tr.Deliver(ctx, target, msg)
	if err == nil {
		return Outcome{Status: StatusSent}
	}

	var reject *transport.RejectError
	if errors.As(err, &reject) {
		return Outcome{Status: StatusPartial, Rejected: reject.Recipients, Err: reject}
	}
	return Outcome{Status: StatusFailed, Err: err}
}
