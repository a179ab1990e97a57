package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/dgnsrekt/music-release-notifier/internal/digest"
)

const smtpTimeout = 30 * time.Second

// Mailer delivers rendered digests.
type Mailer interface {
	// Verify checks the relay accepts a connection and the credentials.
	Verify(ctx context.Context) error
	Send(ctx context.Context, d *digest.Digest) error
}

// SMTPMailer submits each digest as its own message, addressed to its one
// recipient.
type SMTPMailer struct {
	config *SMTPConfig
	logger *zap.Logger
}

func NewSMTPMailer(cfg *SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		config: cfg,
		logger: logger.With(zap.String("component", "smtp")),
	}
}

func (m *SMTPMailer) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.config.Username),
		mail.WithPassword(m.config.Password),
		mail.WithTimeout(smtpTimeout),
	}
	if m.config.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	c, err := mail.NewClient(m.config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return c, nil
}

func (m *SMTPMailer) Verify(ctx context.Context) error {
	c, err := m.newClient()
	if err != nil {
		return err
	}

	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", m.config.Host, m.config.Port, err)
	}
	if err := c.Close(); err != nil {
		m.logger.Debug("closing verification connection", zap.Error(err))
	}

	m.logger.Debug("smtp relay verified", zap.String("host", m.config.Host), zap.Int("port", m.config.Port))
	return nil
}

func (m *SMTPMailer) Send(ctx context.Context, d *digest.Digest) error {
	msg, err := m.message(d)
	if err != nil {
		return err
	}

	c, err := m.newClient()
	if err != nil {
		return err
	}

	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending digest to %s: %w", d.To, err)
	}

	m.logger.Info("digest sent",
		zap.String("to", d.To),
		zap.Int("artists", d.Artists),
		zap.Int("albums", d.Albums))
	return nil
}

func (m *SMTPMailer) message(d *digest.Digest) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.config.FromName, m.config.Username); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(d.To); err != nil {
		return nil, fmt.Errorf("setting recipient %s: %w", d.To, err)
	}
	msg.Subject(d.Subject)
	msg.SetBodyString(mail.TypeTextHTML, d.HTML)
	return msg, nil
}

// LogMailer logs digests instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(zap.String("component", "dry-run"))}
}

func (m *LogMailer) Verify(_ context.Context) error {
	return nil
}

func (m *LogMailer) Send(_ context.Context, d *digest.Digest) error {
	m.logger.Info("digest not sent (dry run)",
		zap.String("to", d.To),
		zap.String("subject", d.Subject),
		zap.Int("artists", d.Artists),
		zap.Int("albums", d.Albums))
	m.logger.Debug("digest body", zap.String("to", d.To), zap.String("html", d.HTML))
	return nil
}
