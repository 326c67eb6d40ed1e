package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"

	"github.com/nao1215/catalogcrawler/internal/config"
)

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		Host:       "smtp.example.com",
		Port:       465,
		Username:   "bot@example.com",
		Password:   "secret",
		Recipients: []string{"ops@example.com", "dev@example.com"},
	}
}

// TestNew tests notifier selection.
func TestNew(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, ok := New(config.MailConfig{}, logger).(*Nop); !ok {
		t.Error("expected Nop without a host")
	}
	if _, ok := New(testMailConfig(), logger).(*Mailer); !ok {
		t.Error("expected Mailer with a host")
	}
}

// TestNop tests that the no-op notifier only logs.
func TestNop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewNop(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.Notify(context.Background(), "https://example/catalog", []string{"a.xml"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "skipping notification") {
		t.Errorf("log = %s", buf.String())
	}
}

// TestMailerNotify tests the composed message.
func TestMailerNotify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tires := filepath.Join(dir, "t1_tires.xml")
	disks := filepath.Join(dir, "t1_disks.xml")
	for _, p := range []string{tires, disks} {
		if err := os.WriteFile(p, []byte("<products></products>"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	var sent *mail.Msg
	m := NewMailer(testMailConfig(), WithSendFunc(func(_ context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	}))

	if err := m.Notify(context.Background(), "https://example/catalog", []string{tires, disks}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if sent == nil {
		t.Fatal("no message sent")
	}

	got := sent.GetGenHeader(mail.HeaderSubject)
	if len(got) != 1 {
		t.Fatalf("subject = %v", got)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(got[0])
	if err != nil {
		t.Fatalf("DecodeHeader(%q) error = %v", got[0], err)
	}
	if decoded != subject {
		t.Errorf("subject = %q, expected %q", decoded, subject)
	}
	rcpts, err := sent.GetRecipients()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(rcpts, ",") != "ops@example.com,dev@example.com" {
		t.Errorf("recipients = %v", rcpts)
	}
	atts := sent.GetAttachments()
	if len(atts) != 2 || atts[0].Name != "t1_tires.xml" || atts[1].Name != "t1_disks.xml" {
		t.Errorf("attachments = %v", atts)
	}

	var raw bytes.Buffer
	if _, err := sent.WriteTo(&raw); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(raw.String(), `"Parser" <bot@example.com>`) {
		t.Errorf("From header missing in:\n%s", raw.String())
	}
}

// TestMailerErrors tests invalid addresses and delivery failures.
func TestMailerErrors(t *testing.T) {
	t.Parallel()

	t.Run("bad recipient", func(t *testing.T) {
		t.Parallel()

		cfg := testMailConfig()
		cfg.Recipients = []string{"not an address"}
		err := NewMailer(cfg, WithSendFunc(func(context.Context, *mail.Msg) error { return nil })).
			Notify(context.Background(), "u", nil)
		if !errors.Is(err, ErrNotify) {
			t.Errorf("expected ErrNotify, got %v", err)
		}
	})

	t.Run("delivery failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection reset")
		err := NewMailer(testMailConfig(), WithSendFunc(func(context.Context, *mail.Msg) error { return boom })).
			Notify(context.Background(), "u", nil)
		if !errors.Is(err, ErrNotify) || !errors.Is(err, boom) {
			t.Errorf("expected wrapped delivery error, got %v", err)
		}
	})
}
