package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/attach"
	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

// Config carries everything the pipeline's setup phase needs: the explicit
// transport parameters, a snapshot of the process-wide default server, the
// transport implementation, and the declarative message fields.
type Config struct {
	Transport   transport.Transport
	Options     transport.Options
	DefaultHost string

	From    string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo []string

	Subject  string
	Body     string
	HTML     bool
	Charset  string
	Priority message.Priority
	Notify   message.Notify
}

// Pipeline drives one logical send through its setup, attachment binding,
// and completion phases. Non-terminating diagnostics accumulate across
// phases and stay readable at any point; fatal setup conditions abort
// construction before any send is attempted.
type Pipeline struct {
	transport transport.Transport
	target    transport.Target
	msg       *message.Message
	resolver  *attach.Resolver
	addrErrs  []*address.FormatError
	done      bool
}

// New runs the setup phase: target resolution, address validation, and
// message assembly. An unresolvable host or an invalid sender is fatal and
// returns an error with no partial state; per-recipient address failures
// are recorded as diagnostics and setup continues without them.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Transport == nil {
		return nil, errors.New("pipeline requires a transport")
	}

	target, err := transport.Resolve(cfg.Options, cfg.DefaultHost)
	if err != nil {
		return nil, err
	}

	from, err := address.ParseSender(cfg.From)
	if err != nil {
		return nil, err
	}

	builder := address.NewBuilder()
	to := builder.Add(address.RoleTo, cfg.To)
	cc := builder.Add(address.RoleCc, cfg.Cc)
	bcc := builder.Add(address.RoleBcc, cfg.Bcc)
	replyTo := builder.Add(address.RoleReplyTo, cfg.ReplyTo)

	for _, e := range builder.Errors() {
		slog.Warn("skipping invalid address",
			"role", e.Role.String(),
			"address", e.Raw,
			"error", e.Err,
		)
	}

	msg, err := message.Assemble(message.Input{
		From:     from,
		To:       to,
		Cc:       cc,
		Bcc:      bcc,
		ReplyTo:  replyTo,
		Subject:  cfg.Subject,
		Body:     cfg.Body,
		HTML:     cfg.HTML,
		Charset:  cfg.Charset,
		Priority: cfg.Priority,
		Notify:   cfg.Notify,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot assemble message: %w", err)
	}

	return &Pipeline{
		transport: cfg.Transport,
		target:    target,
		msg:       msg,
		resolver:  attach.NewResolver(),
		addrErrs:  builder.Errors(),
	}, nil
}

// AddAttachments resolves the paths and binds them to the message. It may
// be called any number of times before Complete; a path that fails to
// resolve is recorded and skipped without stopping the remaining paths.
func (p *Pipeline) AddAttachments(paths []string) {
	before := len(p.resolver.Errors())
	p.resolver.Bind(p.msg, paths)
	for _, e := range p.resolver.Errors()[before:] {
		slog.Warn("skipping attachment",
			"path", e.Path,
			"error", e.Err,
		)
	}
}

// Complete performs the single delivery attempt and releases every bound
// resource regardless of the outcome. It must be called exactly once.
func (p *Pipeline) Complete(ctx context.Context) Outcome {
	if p.done {
		return Outcome{
			Status: StatusFailed,
			Err:    errors.New("pipeline already completed"),
		}
	}
	p.done = true

	slog.Info("delivering message",
		"message_id", p.msg.ID,
		"transport", p.transport.Name(),
		"host", p.target.Host,
		"recipients", len(p.msg.Recipients()),
		"attachments", len(p.msg.Attachments),
	)

	return Deliver(ctx, p.transport, p.target, p.msg)
}

// Diagnostics returns every non-terminating error recorded so far, in
// recording order: address failures first, then attachment failures.
func (p *Pipeline) Diagnostics() []error {
	out := make([]error, 0, len(p.addrErrs)+len(p.resolver.Errors()))
	for _, e := range p.addrErrs {
		out = append(out, e)
	}
	for _, e := range p.resolver.Errors() {
		out = append(out, e)
	}
	return out
}

// Message exposes the assembled message, e.g. for inspection in dry runs.
func (p *Pipeline) Message() *message.Message {
	return p.msg
}

// Target returns the resolved delivery target.
func (p *Pipeline) Target() transport.Target {
	return p.target
}
