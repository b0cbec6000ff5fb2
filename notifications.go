package accounts

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-accounts/mail"
)

// Mail template names, see data/templates/mail.
const (
	VerificationTemplate  = "verification"
	PasswordResetTemplate = "password_reset"
)

// Notifier sends the emails of the account flows.
type Notifier interface {
	SendVerification(ctx context.Context, user *User, link string) error
	SendPasswordReset(ctx context.Context, user *User, link string) error
}

// MailQueue accepts messages for delivery. *mail.Dispatcher implements it.
type MailQueue interface {
	Enqueue(ctx context.Context, msg *mail.Message) error
}

// MailNotifier renders account emails and queues them for delivery.
type MailNotifier struct {
	queue    MailQueue
	renderer *mail.TemplateRenderer
	from     string
	siteName string
	tokens   LinkTokens
	logger   Logger
}

var _ Notifier = (*MailNotifier)(nil)

// NewMailNotifier renders the embedded mail templates. cfg provides the
// sender address and the site name shown in the emails.
func NewMailNotifier(queue MailQueue, cfg Config) *MailNotifier {
	return &MailNotifier{
		queue:    queue,
		renderer: mail.NewTemplateRenderer(GetMailTemplatesFS()),
		from:     cfg.GetDefaultFromEmail(),
		siteName: cfg.GetSiteName(),
		logger:   defLogger{},
	}
}

func (n *MailNotifier) WithLogger(logger Logger) *MailNotifier {
	n.logger = normalizeLogger(logger)
	return n
}

// WithTemplates renders emails from fsys instead of the embedded templates.
func (n *MailNotifier) WithTemplates(fsys fs.FS) *MailNotifier {
	n.renderer = mail.NewTemplateRenderer(fsys)
	return n
}

// WithLinkTokens lets templates tell users how long links stay valid.
func (n *MailNotifier) WithLinkTokens(tokens LinkTokens) *MailNotifier {
	n.tokens = tokens
	return n
}

func (n *MailNotifier) SendVerification(ctx context.Context, user *User, link string) error {
	return n.send(ctx, VerificationTemplate, user, link, PurposeVerifyEmail)
}

func (n *MailNotifier) SendPasswordReset(ctx context.Context, user *User, link string) error {
	return n.send(ctx, PasswordResetTemplate, user, link, PurposeResetPassword)
}

func (n *MailNotifier) send(ctx context.Context, template string, user *User, link string, purpose TokenPurpose) error {
	data := map[string]any{
		"user":      user,
		"link":      link,
		"site_name": n.siteName,
	}

	if n.tokens != nil {
		data["valid_hours"] = int(n.tokens.TTL(purpose).Hours())
	}

	content, err := n.renderer.Render(template, data)
	if err != nil {
		return internalError(err, "failed to render "+template+" email")
	}

	msg := &mail.Message{
		From:    n.from,
		To:      []string{user.Email},
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
	}

	if err := n.queue.Enqueue(ctx, msg); err != nil {
		return internalError(err, "failed to queue "+template+" email")
	}

	n.logger.Debug("queued %s email for %s", template, user.Email)
	return nil
}
