package attach

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shineum/smtp-send-lite/internal/address"
	"github.com/shineum/smtp-send-lite/internal/message"
)

func newMessage(t *testing.T) *message.Message {
	t.Helper()

	msg, err := message.Assemble(message.Input{
		From:    address.Address{Address: "sender@example.com"},
		To:      []address.Address{{Address: "to@example.com"}},
		Subject: "Subject",
	})
	if err != nil {
		t.Fatalf("failed to assemble message: %v", err)
	}
	t.Cleanup(func() {
		_ = msg.CloseAttachments()
	})
	return msg
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestBind_ResolvesExistingSkipsMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exists := writeFile(t, dir, "exists.txt")
	missing := filepath.Join(dir, "missing.txt")

	msg := newMessage(t)
	r := NewResolver()
	r.Bind(msg, []string{exists, missing})

	if len(msg.Attachments) != 1 {
		t.Fatalf("bindings: got %d, want 1", len(msg.Attachments))
	}
	if got := msg.Attachments[0].Name; got != "exists.txt" {
		t.Errorf("binding name: got %q, want %q", got, "exists.txt")
	}
	if msg.Attachments[0].File == nil {
		t.Error("expected an open handle")
	}
	if !filepath.IsAbs(msg.Attachments[0].Path) {
		t.Errorf("binding path not absolute: %q", msg.Attachments[0].Path)
	}

	errs := r.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors: got %d, want 1", len(errs))
	}
	if errs[0].Path != missing {
		t.Errorf("error path: got %q, want %q", errs[0].Path, missing)
	}
}

func TestBind_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt")
	second := writeFile(t, dir, "second.txt")

	msg := newMessage(t)
	r := NewResolver()
	r.Bind(msg, []string{first, second})

	if len(msg.Attachments) != 2 {
		t.Fatalf("bindings: got %d, want 2", len(msg.Attachments))
	}
	if msg.Attachments[0].Name != "first.txt" || msg.Attachments[1].Name != "second.txt" {
		t.Errorf("order: got %q, %q", msg.Attachments[0].Name, msg.Attachments[1].Name)
	}
}

func TestBind_AccumulatesAcrossInvocations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt")
	second := writeFile(t, dir, "second.txt")

	msg := newMessage(t)
	r := NewResolver()
	r.Bind(msg, []string{first})
	r.Bind(msg, []string{filepath.Join(dir, "nope.txt")})
	r.Bind(msg, []string{second})

	if len(msg.Attachments) != 2 {
		t.Fatalf("bindings: got %d, want 2", len(msg.Attachments))
	}
	if msg.Attachments[0].Name != "first.txt" || msg.Attachments[1].Name != "second.txt" {
		t.Errorf("order: got %q, %q", msg.Attachments[0].Name, msg.Attachments[1].Name)
	}
	if len(r.Errors()) != 1 {
		t.Errorf("errors: got %d, want 1", len(r.Errors()))
	}
}

func TestBind_RejectsDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	msg := newMessage(t)
	r := NewResolver()
	r.Bind(msg, []string{dir})

	if len(msg.Attachments) != 0 {
		t.Errorf("bindings: got %d, want 0", len(msg.Attachments))
	}
	if len(r.Errors()) != 1 {
		t.Fatalf("errors: got %d, want 1", len(r.Errors()))
	}
}

func TestBind_EmptyPathsIsNoop(t *testing.T) {
	t.Parallel()

	msg := newMessage(t)
	r := NewResolver()
	r.Bind(msg, nil)

	if len(msg.Attachments) != 0 {
		t.Errorf("bindings: got %d, want 0", len(msg.Attachments))
	}
	if len(r.Errors()) != 0 {
		t.Errorf("errors: got %d, want 0", len(r.Errors()))
	}
}
