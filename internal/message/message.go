// Package message defines the outgoing message model and the assembler
// that populates it from validated inputs.
package message

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/shineum/smtp-send-lite/internal/address"
)

// Attachment is a resolved file bound to the message. The handle is opened
// at resolution time and stays open until Close so the transport can
// stream the content at send time.
type Attachment struct {
	// Path is the absolute path the binding resolved to.
	Path string
	// Name is the file name presented to the recipient.
	Name string
	// File is the open handle. It is nil once the binding is closed.
	File *os.File
}

// Close releases the underlying file handle. Only the first call closes
// the file; later calls are no-ops.
func (a *Attachment) Close() error {
	if a.File == nil {
		return nil
	}
	f := a.File
	a.File = nil
	return f.Close()
}

// Message is one outgoing email. It is populated by the assembler and the
// attachment resolver, then consumed read-only by the delivery executor.
type Message struct {
	// ID is a correlation identifier stamped at assembly time. It doubles
	// as the Message-ID value where the transport supports it.
	ID string

	From    address.Address
	To      []address.Address
	Cc      []address.Address
	Bcc     []address.Address
	ReplyTo []address.Address

	Subject string
	// Body is carried verbatim; HTML selects whether it is sent as
	// text/html instead of text/plain.
	Body string
	HTML bool
	// Charset applies to both the subject and the body.
	Charset string

	Priority Priority
	Notify   Notify

	Attachments []*Attachment
}

// Recipients returns every envelope recipient literal (To, then Cc, then
// Bcc) in order.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, address.Literals(m.To)...)
	out = append(out, address.Literals(m.Cc)...)
	out = append(out, address.Literals(m.Bcc)...)
	return out
}

// CloseAttachments releases every attachment handle. Each handle is closed
// at most once regardless of how many times this is called.
func (m *Message) CloseAttachments() error {
	var errs []error
	for _, att := range m.Attachments {
		if err := att.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", att.Path, err))
		}
	}
	return errors.Join(errs...)
}

// Input carries the validated fields the assembler combines into a Message.
type Input struct {
	From    address.Address
	To      []address.Address
	Cc      []address.Address
	Bcc     []address.Address
	ReplyTo []address.Address

	Subject  string
	Body     string
	HTML     bool
	Charset  string
	Priority Priority
	Notify   Notify
}

// Assemble validates the message invariants and produces a populated
// Message with a fresh correlation ID. The body string is used verbatim;
// no content transformation happens here.
func Assemble(in Input) (*Message, error) {
	if in.From.Address == "" {
		return nil, errors.New("message requires a sender address")
	}
	if len(in.To) == 0 {
		return nil, errors.New("message requires at least one valid To recipient")
	}
	if in.Subject == "" {
		return nil, errors.New("message requires a subject")
	}

	charset := in.Charset
	if charset == "" {
		charset = CharsetUTF8
	}

	return &Message{
		ID:       uuid.NewString(),
		From:     in.From,
		To:       in.To,
		Cc:       in.Cc,
		Bcc:      in.Bcc,
		ReplyTo:  in.ReplyTo,
		Subject:  in.Subject,
		Body:     in.Body,
		HTML:     in.HTML,
		Charset:  charset,
		Priority: in.Priority,
		Notify:   in.Notify,
	}, nil
}
