package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nao1215/catalogcrawler/internal/config"
)

// Message texts.
const (
	subject      = "Информация о работе парсера."
	bodyTemplate = "Парсер успешно отработал по ссылке %s"
	senderName   = "Parser"
)

// sendTimeout bounds one SMTP conversation.
const sendTimeout = time.Minute

// ErrNotify is returned when the notification cannot be built or delivered.
var ErrNotify = errors.New("notification failed")

// Notifier reports a finished catalog crawl.
type Notifier interface {
	Notify(ctx context.Context, catalogURL string, attachments []string) error
}

// New returns a Mailer when mail is configured and a no-op otherwise.
func New(cfg config.MailConfig, logger *slog.Logger) Notifier {
	if !cfg.Enabled() {
		return NewNop(logger)
	}
	return NewMailer(cfg, WithLogger(logger))
}

// Nop only logs what would have been sent.
type Nop struct {
	logger *slog.Logger
}

// NewNop creates a Nop notifier.
func NewNop(logger *slog.Logger) *Nop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Nop{logger: logger}
}

// Notify logs the notification.
func (n *Nop) Notify(_ context.Context, catalogURL string, attachments []string) error {
	n.logger.Info("mail disabled, skipping notification", "url", catalogURL, "files", attachments)
	return nil
}

// Mailer sends notifications over SMTPS with PLAIN authentication.
type Mailer struct {
	cfg    config.MailConfig
	send   func(ctx context.Context, msg *mail.Msg) error
	logger *slog.Logger
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MailerOption {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSendFunc replaces delivery, e.g. to capture messages in tests.
func WithSendFunc(fn func(ctx context.Context, msg *mail.Msg) error) MailerOption {
	return func(m *Mailer) {
		m.send = fn
	}
}

// NewMailer creates a Mailer for cfg.
func NewMailer(cfg config.MailConfig, opts ...MailerOption) *Mailer {
	m := &Mailer{
		cfg:    cfg,
		logger: slog.Default(),
	}
	m.send = m.dialAndSend
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notify sends the success message with every attachment.
func (m *Mailer) Notify(ctx context.Context, catalogURL string, attachments []string) error {
	msg, err := m.Message(catalogURL, attachments)
	if err != nil {
		return err
	}
	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrNotify, err)
	}
	m.logger.Info("notification sent", "url", catalogURL, "recipients", len(m.cfg.Recipients))
	return nil
}

// Message builds the notification.
func (m *Mailer) Message(catalogURL string, attachments []string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(senderName, m.cfg.Username); err != nil {
		return nil, fmt.Errorf("%w: sender: %w", ErrNotify, err)
	}
	if err := msg.To(m.cfg.Recipients...); err != nil {
		return nil, fmt.Errorf("%w: recipients: %w", ErrNotify, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(bodyTemplate, catalogURL))
	for _, path := range attachments {
		msg.AttachFile(path)
	}
	return msg, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(sendTimeout),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
