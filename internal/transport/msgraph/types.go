// Package msgraph implements a Transport that sends messages via the
// Microsoft Graph API.
package msgraph

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/message"
)

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message sendMailMessage `json:"message"`
}

// sendMailMessage represents the message portion of a sendMail request.
type sendMailMessage struct {
	Subject       string            `json:"subject"`
	Body          messageBody       `json:"body"`
	Importance    string            `json:"importance,omitempty"`
	ToRecipients  []recipient       `json:"toRecipients"`
	CcRecipients  []recipient       `json:"ccRecipients,omitempty"`
	BccRecipients []recipient       `json:"bccRecipients,omitempty"`
	ReplyTo       []recipient       `json:"replyTo,omitempty"`
	Attachments   []graphAttachment `json:"attachments,omitempty"`
}

// messageBody represents the body of an email message.
type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// recipient represents an email recipient.
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// emailAddress represents an email address in a Graph API request.
type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// graphAttachment represents a file attachment in a Graph API request.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentBytes string `json:"contentBytes"`
}

// tokenResponse represents the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

// graphError represents the error detail in a Graph API error response.
type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// buildSendMailRequest converts an outgoing message into a Graph API
// sendMail request body. Attachment content is read from the open
// bindings.
func buildSendMailRequest(msg *message.Message) (*sendMailRequest, error) {
	body := messageBody{
		ContentType: "text",
		Content:     msg.Body,
	}
	if msg.HTML {
		body.ContentType = "html"
	}

	attachments := make([]graphAttachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
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
		attachments = append(attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Name,
			ContentBytes: base64.StdEncoding.EncodeToString(content),
		})
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject:       msg.Subject,
			Body:          body,
			Importance:    importanceFor(msg.Priority.Urgency()),
			ToRecipients:  recipients(msg.To),
			CcRecipients:  recipients(msg.Cc),
			BccRecipients: recipients(msg.Bcc),
			ReplyTo:       recipients(msg.ReplyTo),
			Attachments:   attachments,
		},
	}, nil
}

// recipients converts validated addresses into Graph recipients.
func recipients(addrs []address.Address) []recipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, recipient{
			EmailAddress: emailAddress{Address: a.Address, Name: a.Name},
		})
	}
	return out
}

// importanceFor maps the transport-level urgency to the Graph importance
// value. Graph has no non-urgent level, so it maps to low.
func importanceFor(u message.Urgency) string {
	switch u {
	case message.UrgencyNonUrgent:
		return "low"
	case message.UrgencyUrgent:
		return "high"
	default:
		return ""
	}
}
