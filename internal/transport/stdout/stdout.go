// Package stdout implements a Transport that prints messages to standard
// output instead of delivering them. It backs the dry-run mode.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

// Transport prints the message in a human-readable format. Delivery always
// succeeds.
type Transport struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a Transport that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}

// Deliver prints the message and the target it would have been sent to.
func (t *Transport) Deliver(_ context.Context, target transport.Target, msg *message.Message) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Target: %s", target.Host)
	if target.Port > 0 {
		fmt.Fprintf(&b, ":%d", target.Port)
	}
	if target.UseTLS {
		b.WriteString(" (TLS)")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(address.Strings(msg.To), ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(address.Strings(msg.Cc), ", "))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", strings.Join(address.Strings(msg.Bcc), ", "))
	}
	if len(msg.ReplyTo) > 0 {
		fmt.Fprintf(&b, "Reply-To: %s\n", strings.Join(address.Strings(msg.ReplyTo), ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.Priority != message.PriorityNormal {
		fmt.Fprintf(&b, "Priority: %s\n", msg.Priority.Urgency())
	}

	b.WriteString("Body:\n")
	b.WriteString(msg.Body + "\n")

	if len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, fmt.Sprintf("%s (%s)", att.Name, attachmentSize(att)))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}

	b.WriteString("========================================\n")

	_, _ = fmt.Fprint(t.writer, b.String())
	return nil
}

// attachmentSize reports the bound file's size in human-readable form.
func attachmentSize(att *message.Attachment) string {
	if att.File == nil {
		return "closed"
	}
	info, err := att.File.Stat()
	if err != nil {
		return "unknown"
	}
	return formatSize(info.Size())
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
