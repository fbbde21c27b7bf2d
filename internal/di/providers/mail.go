package providers

import (
	"github.com/samber/do/v2"

	"github.com/libraryapi/library-server/internal/config"
	"github.com/libraryapi/library-server/internal/logger"
	"github.com/libraryapi/library-server/internal/mail"
)

// MailDispatcherHandle wraps the mail dispatcher with shutdown capability.
type MailDispatcherHandle struct {
	mail.Dispatcher
	smtp *mail.SMTPDispatcher
}

// Shutdown implements do.Shutdownable.
func (h *MailDispatcherHandle) Shutdown() error {
	if h.smtp != nil {
		h.smtp.Close()
	}
	return nil
}

// ProvideMailDispatcher provides SMTP delivery when SMTP_HOST is set and a
// log-only dispatcher otherwise.
func ProvideMailDispatcher(i do.Injector) (*MailDispatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	mailLog := log.Component("mail")

	if cfg.Mail.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, overdue reminders will only be logged")
		return &MailDispatcherHandle{Dispatcher: mail.NewLogDispatcher(mailLog)}, nil
	}

	smtp, err := mail.NewSMTPDispatcher(mail.SMTPConfig{
		Host:           cfg.Mail.SMTPHost,
		Port:           cfg.Mail.SMTPPort,
		Username:       cfg.Mail.Username,
		Password:       cfg.Mail.Password,
		From:           cfg.Mail.From,
		SendsPerMinute: cfg.Mail.SendsPerMinute,
	}, mailLog)
	if err != nil {
		return nil, err
	}

	log.Info("SMTP dispatcher configured", "host", cfg.Mail.SMTPHost, "port", cfg.Mail.SMTPPort)

	return &MailDispatcherHandle{Dispatcher: smtp, smtp: smtp}, nil
}
