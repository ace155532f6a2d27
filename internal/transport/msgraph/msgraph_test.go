package msgraph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/attach"
	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

func assemble(t *testing.T, in message.Input) *message.Message {
	t.Helper()

	msg, err := message.Assemble(in)
	if err != nil {
		t.Fatalf("failed to assemble message: %v", err)
	}
	t.Cleanup(func() {
		_ = msg.CloseAttachments()
	})
	return msg
}

// newTokenServer serves a static OAuth2 token response.
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "test-token",
			ExpiresIn:   3600,
			TokenType:   "Bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildSendMailRequest(t *testing.T) {
	t.Parallel()

	msg := assemble(t, message.Input{
		From:     address.Address{Address: "sender@example.com"},
		To:       []address.Address{{Name: "To", Address: "to@example.com"}},
		Cc:       []address.Address{{Address: "cc@example.com"}},
		Bcc:      []address.Address{{Address: "bcc@example.com"}},
		ReplyTo:  []address.Address{{Address: "reply@example.com"}},
		Subject:  "Subject",
		Body:     "<p>Body</p>",
		HTML:     true,
		Priority: message.PriorityHigh,
	})

	req, err := buildSendMailRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := req.Message
	if got, want := m.Subject, "Subject"; got != want {
		t.Errorf("subject: got %q, want %q", got, want)
	}
	if got, want := m.Body.ContentType, "html"; got != want {
		t.Errorf("content type: got %q, want %q", got, want)
	}
	if got, want := m.Importance, "high"; got != want {
		t.Errorf("importance: got %q, want %q", got, want)
	}
	if len(m.ToRecipients) != 1 || m.ToRecipients[0].EmailAddress.Address != "to@example.com" {
		t.Errorf("to recipients: got %v", m.ToRecipients)
	}
	if got, want := m.ToRecipients[0].EmailAddress.Name, "To"; got != want {
		t.Errorf("to recipient name: got %q, want %q", got, want)
	}
	if len(m.CcRecipients) != 1 || len(m.BccRecipients) != 1 || len(m.ReplyTo) != 1 {
		t.Errorf("recipient groups: cc=%d bcc=%d replyTo=%d",
			len(m.CcRecipients), len(m.BccRecipients), len(m.ReplyTo))
	}
	if len(m.Attachments) != 0 {
		t.Errorf("attachments: got %d, want 0", len(m.Attachments))
	}
}

func TestBuildSendMailRequest_EncodesAttachments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	msg := assemble(t, message.Input{
		From:    address.Address{Address: "sender@example.com"},
		To:      []address.Address{{Address: "to@example.com"}},
		Subject: "Subject",
	})
	r := attach.NewResolver()
	r.Bind(msg, []string{path})
	if errs := r.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected resolution errors: %v", errs)
	}

	req, err := buildSendMailRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	atts := req.Message.Attachments
	if len(atts) != 1 {
		t.Fatalf("attachments: got %d, want 1", len(atts))
	}
	if got, want := atts[0].ODataType, "#microsoft.graph.fileAttachment"; got != want {
		t.Errorf("odata type: got %q, want %q", got, want)
	}
	if got, want := atts[0].Name, "report.txt"; got != want {
		t.Errorf("name: got %q, want %q", got, want)
	}
	if got, want := atts[0].ContentBytes, base64.StdEncoding.EncodeToString([]byte("payload")); got != want {
		t.Errorf("content: got %q, want %q", got, want)
	}
}

func TestBuildSendMailRequest_RejectsClosedAttachment(t *testing.T) {
	t.Parallel()

	msg := assemble(t, message.Input{
		From:    address.Address{Address: "sender@example.com"},
		To:      []address.Address{{Address: "to@example.com"}},
		Subject: "Subject",
	})
	msg.Attachments = append(msg.Attachments, &message.Attachment{
		Path: "/tmp/gone.txt", Name: "gone.txt", File: nil,
	})

	if _, err := buildSendMailRequest(msg); err == nil {
		t.Error("expected an error for a released attachment handle")
	}
}

func TestImportanceFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		urgency message.Urgency
		want    string
	}{
		{message.UrgencyNonUrgent, "low"},
		{message.UrgencyNormal, ""},
		{message.UrgencyUrgent, "high"},
	}
	for _, tt := range tests {
		if got := importanceFor(tt.urgency); got != tt.want {
			t.Errorf("importanceFor(%v): got %q, want %q", tt.urgency, got, tt.want)
		}
	}
}

func TestDeliver_SendsToSenderMailbox(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth atomic.Value
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(graph.Close)
	token := newTokenServer(t)

	tr := newWithOverrides(
		Config{TenantID: "tenant", ClientID: "client", ClientSecret: "secret"},
		graph.URL, token.URL, &http.Client{Timeout: 5 * time.Second},
	)

	msg := assemble(t, message.Input{
		From:    address.Address{Address: "sender@example.com"},
		To:      []address.Address{{Address: "to@example.com"}},
		Subject: "Subject",
	})

	if err := tr.Deliver(context.Background(), transport.Target{}, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := gotPath.Load(), "/users/sender@example.com/sendMail"; got != want {
		t.Errorf("request path: got %q, want %q", got, want)
	}
	if got, want := gotAuth.Load(), "Bearer test-token"; got != want {
		t.Errorf("authorization: got %q, want %q", got, want)
	}
}

func TestDeliver_RefreshesTokenOn401(t *testing.T) {
	t.Parallel()

	var tokenCalls, sendCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "test-token", ExpiresIn: 3600})
	}))
	t.Cleanup(tokenSrv.Close)

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sendCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(graph.Close)

	tr := newWithOverrides(
		Config{TenantID: "tenant", ClientID: "client", ClientSecret: "secret"},
		graph.URL, tokenSrv.URL, &http.Client{Timeout: 5 * time.Second},
	)

	msg := assemble(t, message.Input{
		From:    address.Address{Address: "sender@example.com"},
		To:      []address.Address{{Address: "to@example.com"}},
		Subject: "Subject",
	})

	if err := tr.Deliver(context.Background(), transport.Target{}, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sendCalls.Load(); got != 2 {
		t.Errorf("send calls: got %d, want 2", got)
	}
	if got := tokenCalls.Load(); got != 2 {
		t.Errorf("token calls: got %d, want 2", got)
	}
}

func TestDeliver_PermanentFailureIsSessionError(t *testing.T) {
	t.Parallel()

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(graphErrorResponse{
			Error: graphError{Code: "ErrorInvalidRecipients", Message: "invalid recipients"},
		})
	}))
	t.Cleanup(graph.Close)
	token := newTokenServer(t)

	tr := newWithOverrides(
		Config{TenantID: "tenant", ClientID: "client", ClientSecret: "secret"},
		graph.URL, token.URL, &http.Client{Timeout: 5 * time.Second},
	)

	msg := assemble(t, message.Input{
		From:    address.Address{Address: "sender@example.com"},
		To:      []address.Address{{Address: "to@example.com"}},
		Subject: "Subject",
	})

	err := tr.Deliver(context.Background(), transport.Target{}, msg)
	var session *transport.SessionError
	if !errors.As(err, &session) {
		t.Fatalf("error type: got %T, want SessionError", err)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status        int
		wantPermanent bool
		wantTransient bool
	}{
		{http.StatusBadRequest, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusForbidden, true, false},
		{http.StatusNotFound, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, true},
		{http.StatusServiceUnavailable, false, true},
	}
	for _, tt := range tests {
		got := classifyError(tt.status, "boom", "")
		if got.permanent != tt.wantPermanent || got.transient != tt.wantTransient {
			t.Errorf("classifyError(%d): permanent=%v transient=%v, want permanent=%v transient=%v",
				tt.status, got.permanent, got.transient, tt.wantPermanent, tt.wantTransient)
		}
	}
}

func TestRetryAfterDelay(t *testing.T) {
	t.Parallel()

	tr := &Transport{}
	tests := []struct {
		retryAfter string
		attempt    int
		want       time.Duration
	}{
		{"10", 0, 10 * time.Second},
		{"", 1, 2 * time.Second},
		{"soon", 2, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := tr.retryAfterDelay(tt.retryAfter, tt.attempt); got != tt.want {
			t.Errorf("retryAfterDelay(%q, %d): got %v, want %v", tt.retryAfter, tt.attempt, got, tt.want)
		}
	}
}
