// Package ses implements a Transport that submits messages through the
// AWS SES v2 API instead of a direct SMTP session.
package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

// maxRetries is the maximum number of retry attempts for transient API
// failures within one delivery. The delivery itself is still a single
// logical attempt.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Config holds the configuration for creating a Transport.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Transport sends messages via the AWS SES v2 API. The SMTP host and port
// of the resolved target do not apply to it.
type Transport struct {
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SES Transport with the given configuration.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Transport{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *Transport {
	return &Transport{client: client}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "ses"
}

// Deliver submits the message via the SES v2 API. Messages with
// attachments or a non-normal priority need full header control and are
// sent as raw MIME; everything else uses the simple email format.
func (t *Transport) Deliver(ctx context.Context, _ transport.Target, msg *message.Message) error {
	var input *sesv2.SendEmailInput

	if len(msg.Attachments) > 0 || msg.Priority.Urgency() != message.UrgencyNormal {
		raw, err := buildRawMessage(msg)
		if err != nil {
			return &transport.SessionError{Op: "build message", Err: err}
		}
		input = &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(msg.From.String()),
			Destination: &types.Destination{
				ToAddresses:  address.Literals(msg.To),
				CcAddresses:  address.Literals(msg.Cc),
				BccAddresses: address.Literals(msg.Bcc),
			},
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}
	} else {
		input = buildSimpleInput(msg)
	}

	if msg.Notify != message.NotifyNone {
		slog.Debug("delivery notifications are not forwarded by the ses transport",
			"notify", msg.Notify,
		)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			if err := sleepWithContext(ctx, backoffDelay(attempt)); err != nil {
				return &transport.SessionError{Op: "retry wait", Err: err}
			}
		}

		_, err := t.client.SendEmail(ctx, input)
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn("SES API error",
			"attempt", attempt,
			"error", err,
		)
	}

	return &transport.SessionError{
		Op:  "ses send",
		Err: fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr),
	}
}

// buildSimpleInput creates a SendEmailInput for messages without
// attachments or priority headers.
func buildSimpleInput(msg *message.Message) *sesv2.SendEmailInput {
	body := &types.Body{}
	content := &types.Content{
		Data:    aws.String(msg.Body),
		Charset: aws.String(msg.Charset),
	}
	if msg.HTML {
		body.Html = content
	} else {
		body.Text = content
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From.String()),
		ReplyToAddresses: address.Literals(msg.ReplyTo),
		Destination: &types.Destination{
			ToAddresses:  address.Literals(msg.To),
			CcAddresses:  address.Literals(msg.Cc),
			BccAddresses: address.Literals(msg.Bcc),
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String(msg.Charset),
				},
				Body: body,
			},
		},
	}
}

// buildRawMessage constructs a raw MIME message carrying attachments and
// priority headers. Attachment content is read from the open bindings.
func buildRawMessage(msg *message.Message) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(address.Strings(msg.To), ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(address.Strings(msg.Cc), ", "))
	}
	if len(msg.ReplyTo) > 0 {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", strings.Join(address.Strings(msg.ReplyTo), ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode(msg.Charset, msg.Subject))
	if msg.ID != "" {
		fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", msg.ID)
	}
	writePriorityHeaders(&buf, msg.Priority.Urgency())
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := make(textproto.MIMEHeader)
	mediaType := "text/plain"
	if msg.HTML {
		mediaType = "text/html"
	}
	bodyHeader.Set("Content-Type", fmt.Sprintf("%s; charset=%s", mediaType, msg.Charset))
	part, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	part.Write([]byte(msg.Body))

	for _, att := range msg.Attachments {
		content, err := readAttachment(att)
		if err != nil {
			return nil, err
		}

		attHeader := make(textproto.MIMEHeader)
		attHeader.Set("Content-Type", contentTypeFor(att.Name))
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s", mime.QEncoding.Encode("UTF-8", att.Name)))

		part, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		part.Write([]byte(encodeBase64WithLineBreaks(content)))
	}

	writer.Close()
	return buf.Bytes(), nil
}

// readAttachment rewinds the binding and reads its full content.
func readAttachment(att *message.Attachment) ([]byte, error) {
	if att.File == nil {
		return nil, fmt.Errorf("attachment %s has no open handle", att.Path)
	}
	if _, err := att.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("attachment %s: %w", att.Path, err)
	}
	content, err := io.ReadAll(att.File)
	if err != nil {
		return nil, fmt.Errorf("attachment %s: %w", att.Path, err)
	}
	return content, nil
}

// writePriorityHeaders emits the conventional priority header set for a
// non-normal urgency.
func writePriorityHeaders(buf *bytes.Buffer, u message.Urgency) {
	switch u {
	case message.UrgencyNonUrgent:
		fmt.Fprintf(buf, "Priority: non-urgent\r\nX-Priority: 5\r\nImportance: low\r\n")
	case message.UrgencyUrgent:
		fmt.Fprintf(buf, "Priority: urgent\r\nX-Priority: 1\r\nImportance: high\r\n")
	}
}

// contentTypeFor guesses the MIME type from the file extension, falling
// back to application/octet-stream.
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
