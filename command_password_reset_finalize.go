package accounts

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	UIDB64   string `json:"uidb64"`
	Token    string `json:"token"`
	Password string `json:"-"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// Validate will run validation rules
func (e FinalizePasswordResetMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
	)
	if err != nil {
		return accountsError(CodeValidationFailed).Wrap(err)
	}
	return nil
}

// FinalizePasswordResetHandler sets a new password from a reset link. The
// link is checked again, the password stored and every open reset request of
// the user closed. Changing the password invalidates the link.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   LinkTokens
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens LinkTokens) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx.Err(), "password reset finalization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	closed := 0

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = resolveLinkUser(ctx, tx, h.repo.Users(), h.tokens, PurposeResetPassword, event.UIDB64, event.Token)
		if err != nil {
			return err
		}

		if err := h.repo.Users().SetPasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return err
		}
		user.PasswordHash = passwordHash

		closed, err = h.repo.PasswordResets().MarkChangedTx(ctx, tx, user.ID)
		return err
	})

	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return err
		}
		return internalError(err, "failed to finalize password reset")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"closed_requests": closed,
		},
	})

	return nil
}
