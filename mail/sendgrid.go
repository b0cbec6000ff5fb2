package mail

import (
	"context"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridConfig holds the configuration for SendGrid
type SendGridConfig struct {
	Key string `mapstructure:"key"`
}

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	logger Logger
}

func NewSendGridSender(cfg SendGridConfig, logger Logger) (*SendGridSender, error) {
	if cfg.Key == "" {
		return nil, mailError(CodeConfig).Errorf("invalid sendgrid configuration: key is required")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.Key),
		logger: normalizeLogger(logger),
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg *Message) error {
	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail("", msg.From))
	message.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	message.AddPersonalizations(p)

	if msg.Text != "" {
		message.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		message.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return mailError(CodeSendFailed).
			With("provider", "sendgrid").
			Wrapf(err, "failed to send email")
	}

	if response.StatusCode >= http.StatusBadRequest {
		return mailError(CodeSendFailed).
			With("provider", "sendgrid", "status", response.StatusCode).
			Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	s.logger.Debug("sendgrid accepted message, status code: %d", response.StatusCode)
	return nil
}
