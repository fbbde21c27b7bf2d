package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/libraryapi/library-server/internal/ratelimit"
)

const throttleKey = "smtp"

// SMTPConfig describes the relay used for outbound mail.
type SMTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	From           string
	SendsPerMinute int
	Timeout        time.Duration
}

// SMTPDispatcher sends each batch as a single message addressed to the sender with every
// recipient in Bcc, so customers never see each other's addresses.
type SMTPDispatcher struct {
	cfg      SMTPConfig
	client   *gomail.Client
	throttle *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
}

// NewSMTPDispatcher builds the SMTP client. No connection is opened until Send.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) (*SMTPDispatcher, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	d := &SMTPDispatcher{cfg: cfg, client: client, logger: logger}
	if cfg.SendsPerMinute > 0 {
		d.throttle = ratelimit.New(ratelimit.PerMinute(cfg.SendsPerMinute), 1)
	}
	return d, nil
}

// Send implements Dispatcher. An empty recipient list sends nothing.
func (d *SMTPDispatcher) Send(ctx context.Context, subject, message string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	msg, err := d.buildMessage(subject, message, recipients)
	if err != nil {
		return err
	}

	if d.throttle != nil {
		if err := d.throttle.Wait(ctx, throttleKey); err != nil {
			return fmt.Errorf("wait for smtp quota: %w", err)
		}
	}

	if err := d.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s:%d: %w", d.cfg.Host, d.cfg.Port, err)
	}

	d.logger.Info("mail sent", "subject", subject, "recipients", len(recipients))
	return nil
}

// Close stops the send throttle.
func (d *SMTPDispatcher) Close() {
	if d.throttle != nil {
		d.throttle.Stop()
	}
}

func (d *SMTPDispatcher) buildMessage(subject, message string, recipients []string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(d.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", d.cfg.From, err)
	}
	if err := msg.To(d.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", d.cfg.From, err)
	}
	if err := msg.Bcc(recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, message)
	return msg, nil
}
