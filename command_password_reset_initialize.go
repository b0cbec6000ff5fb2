package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string                                      `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// Validate will run validation rules
func (p InitializePasswordResetMessage) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
	if err != nil {
		return accountsError(CodeValidationFailed).Wrap(err)
	}
	return nil
}

// InitializePasswordResetResponse reports whether an email went out. Callers
// facing end users must not reveal Sent, it tells registered emails apart.
type InitializePasswordResetResponse struct {
	Reset *PasswordReset
	Sent  bool
}

// InitializePasswordResetHandler records a reset request for an active user
// and emails a reset link. Unknown or inactive accounts succeed silently.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   LinkTokens
	links    *LinkBuilder
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens LinkTokens, links *LinkBuilder, notifier Notifier) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		links:    links,
		notifier: notifier,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx.Err(), "password reset initialization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	resp := &InitializePasswordResetResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}

		if !found.Active {
			return nil
		}
		user = found

		cutoff := time.Now().Add(-h.tokens.TTL(PurposeResetPassword))
		if _, err := h.repo.PasswordResets().ExpireStaleTx(ctx, tx, cutoff); err != nil {
			return err
		}

		resp.Reset, err = h.repo.PasswordResets().CreateTx(ctx, tx, &PasswordReset{
			UserID: user.ID,
			Email:  user.Email,
			Status: ResetRequestedStatus,
		})
		return err
	})

	if err != nil {
		return internalError(err, "failed to initialize password reset")
	}

	if user == nil {
		h.logger.Info("password reset requested for unknown or inactive account")
		return h.respond(event, resp)
	}

	token, err := h.tokens.MakeToken(user, PurposeResetPassword)
	if err != nil {
		return err
	}

	if err := h.notifier.SendPasswordReset(ctx, user, h.links.PasswordResetLink(user, token)); err != nil {
		return internalError(err, "failed to send password reset email")
	}
	resp.Sent = true

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"password_reset_id": resp.Reset.ID.String(),
		},
	})

	return h.respond(event, resp)
}

func (h *InitializePasswordResetHandler) respond(event InitializePasswordResetMessage, resp *InitializePasswordResetResponse) error {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}
