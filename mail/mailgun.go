package mail

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig holds the configuration for Mailgun
type MailgunConfig struct {
	Key    string `mapstructure:"key"`
	Domain string `mapstructure:"domain"`
	// APIBase overrides the API endpoint, e.g. mailgun.APIBaseEU.
	APIBase string `mapstructure:"api_base"`
}

// MailgunSender delivers messages through the Mailgun API.
type MailgunSender struct {
	mg     *mailgun.MailgunImpl
	logger Logger
}

func NewMailgunSender(cfg MailgunConfig, logger Logger) (*MailgunSender, error) {
	if cfg.Key == "" || cfg.Domain == "" {
		return nil, mailError(CodeConfig).Errorf("invalid mailgun configuration: key and domain are required")
	}

	mg := mailgun.NewMailgun(cfg.Domain, cfg.Key)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}

	return &MailgunSender{mg: mg, logger: normalizeLogger(logger)}, nil
}

func (s *MailgunSender) Send(ctx context.Context, msg *Message) error {
	message := s.mg.NewMessage(msg.From, msg.Subject, msg.Text, msg.To...)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		return mailError(CodeSendFailed).
			With("provider", "mailgun").
			Wrapf(err, "failed to send email")
	}

	s.logger.Debug("mailgun queued message %s", id)
	return nil
}
