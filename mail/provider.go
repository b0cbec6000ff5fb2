package mail

import "strings"

// ProviderConfig selects and configures a Sender.
type ProviderConfig struct {
	// Provider is one of "log", "memory", "smtp", "mailgun" or "sendgrid".
	Provider string         `mapstructure:"provider"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Mailgun  MailgunConfig  `mapstructure:"mailgun"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
}

// NewSender builds the Sender named by cfg.Provider. An empty provider
// falls back to the log sender.
func NewSender(cfg ProviderConfig, logger Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "log", "console":
		return NewLogSender(logger), nil
	case "memory":
		return NewMemorySender(), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTP)
	case "mailgun":
		return NewMailgunSender(cfg.Mailgun, logger)
	case "sendgrid":
		return NewSendGridSender(cfg.SendGrid, logger)
	default:
		return nil, mailError(CodeConfig).
			With("provider", cfg.Provider).
			Wrap(ErrUnknownProvider)
	}
}
