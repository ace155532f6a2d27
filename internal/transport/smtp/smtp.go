// Package smtp implements the default Transport: one SMTP client session
// per delivery, built on go-mail.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"github.com/wneessen/go-mail"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

// Transport submits messages over SMTP. Each Deliver call opens one
// session against the target and closes it before returning.
type Transport struct {
	tlsConfig *tls.Config
	helo      string
}

// Option configures the Transport.
type Option func(*Transport)

// WithTLSConfig overrides the TLS configuration used for secured sessions.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *Transport) {
		t.tlsConfig = cfg
	}
}

// WithHELO sets the HELO/EHLO hostname presented to the server.
func WithHELO(name string) Option {
	return func(t *Transport) {
		t.helo = name
	}
}

// New creates a new SMTP Transport.
func New(opts ...Option) *Transport {
	t := &Transport{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

// Deliver opens one SMTP session to target and submits msg. Recipient
// refusals and session failures are translated into the transport error
// taxonomy; no retry is attempted.
func (t *Transport) Deliver(ctx context.Context, target transport.Target, msg *message.Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return &transport.SessionError{Op: "build message", Err: err}
	}

	client, err := t.newClient(target, msg.Notify)
	if err != nil {
		return &transport.SessionError{Op: "configure client", Err: err}
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return classify(err, msg)
	}
	return nil
}

// buildMsg renders the outgoing message into a go-mail Msg. Attachment
// handles are rewound and handed to the Msg as readers; ownership of the
// handles stays with the caller.
func buildMsg(msg *message.Message) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithCharset(mail.Charset(msg.Charset)))

	if err := m.FromFormat(msg.From.Name, msg.From.Address); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.SetAddrHeader(mail.HeaderTo, address.Strings(msg.To)...); err != nil {
		return nil, fmt.Errorf("to addresses: %w", err)
	}
	if len(msg.Cc) > 0 {
		if err := m.SetAddrHeader(mail.HeaderCc, address.Strings(msg.Cc)...); err != nil {
			return nil, fmt.Errorf("cc addresses: %w", err)
		}
	}
	if len(msg.Bcc) > 0 {
		if err := m.SetAddrHeader(mail.HeaderBcc, address.Strings(msg.Bcc)...); err != nil {
			return nil, fmt.Errorf("bcc addresses: %w", err)
		}
	}
	if len(msg.ReplyTo) > 0 {
		if err := m.SetAddrHeader(mail.HeaderReplyTo, address.Strings(msg.ReplyTo)...); err != nil {
			return nil, fmt.Errorf("reply-to addresses: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetMessageIDWithValue(msg.ID)
	m.SetImportance(importanceFor(msg.Priority.Urgency()))

	contentType := mail.TypeTextPlain
	if msg.HTML {
		contentType = mail.TypeTextHTML
	}
	m.SetBodyString(contentType, msg.Body)

	for _, att := range msg.Attachments {
		if att.File == nil {
			return nil, fmt.Errorf("attachment %s has no open handle", att.Path)
		}
		if _, err := att.File.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("attachment %s: %w", att.Path, err)
		}
		m.AttachReadSeeker(att.Name, att.File)
	}

	return m, nil
}

// newClient assembles the go-mail client for the resolved target. Port 0
// is left to the client's protocol default. An explicit credential forces
// SMTP AUTH; ambient identity maps to no AUTH since the client has no
// OS-integrated identity to offer.
func (t *Transport) newClient(target transport.Target, notify message.Notify) (*mail.Client, error) {
	opts := make([]mail.Option, 0, 8)

	if target.Port > 0 {
		opts = append(opts, mail.WithPort(target.Port))
	}
	if target.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if t.tlsConfig != nil {
		tlsCfg := t.tlsConfig.Clone()
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = target.Host
		}
		opts = append(opts, mail.WithTLSConfig(tlsCfg))
	}
	if t.helo != "" {
		opts = append(opts, mail.WithHELO(t.helo))
	}
	if cred := target.Credential; cred != nil {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cred.Username),
			mail.WithPassword(cred.Password),
		)
	}
	if dsn := dsnOptions(notify); len(dsn) > 0 {
		opts = append(opts, mail.WithDSNRcptNotifyType(dsn...))
	}

	return mail.NewClient(target.Host, opts...)
}

// importanceFor translates the transport-level urgency into the client's
// importance header set.
func importanceFor(u message.Urgency) mail.Importance {
	switch u {
	case message.UrgencyNonUrgent:
		return mail.ImportanceNonUrgent
	case message.UrgencyUrgent:
		return mail.ImportanceUrgent
	default:
		return mail.ImportanceNormal
	}
}

// dsnOptions translates notification flags into DSN RCPT NOTIFY options.
func dsnOptions(n message.Notify) []mail.DSNRcptNotifyOption {
	if n == message.NotifyNone {
		return nil
	}
	if n.Has(message.NotifyNever) {
		return []mail.DSNRcptNotifyOption{mail.DSNRcptNotifyNever}
	}

	var out []mail.DSNRcptNotifyOption
	if n.Has(message.NotifyOnSuccess) {
		out = append(out, mail.DSNRcptNotifySuccess)
	}
	if n.Has(message.NotifyOnFailure) {
		out = append(out, mail.DSNRcptNotifyFailure)
	}
	if n.Has(message.NotifyDelay) {
		out = append(out, mail.DSNRcptNotifyDelay)
	}
	return out
}

// classify translates a go-mail send error into the transport taxonomy. A
// refusal during RCPT TO with an otherwise healthy session is a partial
// failure; the client abandons the message once any recipient is refused,
// so every envelope recipient is reported undelivered with the refusal as
// the cause. Everything else, including authentication failures during
// negotiation, is a session failure.
func classify(err error, msg *message.Message) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && sendErr.Reason == mail.ErrSMTPRcptTo {
		rcpts := msg.Recipients()
		rejected := make([]*transport.RecipientError, 0, len(rcpts))
		for _, r := range rcpts {
			rejected = append(rejected, &transport.RecipientError{Recipient: r, Err: sendErr})
		}
		return &transport.RejectError{Recipients: rejected}
	}
	return &transport.SessionError{Op: "send", Err: err}
}
