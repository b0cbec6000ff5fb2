package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type ConfirmPasswordResetMessage struct {
	UIDB64     string
	Token      string
	OnResponse func(resp *ConfirmPasswordResetResponse)
}

func (e ConfirmPasswordResetMessage) Type() string { return "user.password_reset.confirm" }

type ConfirmPasswordResetResponse struct {
	User  *User `json:"user,omitempty"`
	Valid bool  `json:"valid"`
}

// ConfirmPasswordResetHandler checks a reset link before the new password
// form is shown. An invalid link is a normal outcome and is reported through
// the response, not as an error.
type ConfirmPasswordResetHandler struct {
	repo   RepositoryManager
	tokens LinkTokens
	logger Logger
}

func NewConfirmPasswordResetHandler(repo RepositoryManager, tokens LinkTokens) *ConfirmPasswordResetHandler {
	return &ConfirmPasswordResetHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (h *ConfirmPasswordResetHandler) WithLogger(logger Logger) *ConfirmPasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *ConfirmPasswordResetHandler) Execute(ctx context.Context, event ConfirmPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx.Err(), "password reset confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmPasswordResetHandler) execute(ctx context.Context, event ConfirmPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &ConfirmPasswordResetResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := resolveLinkUser(ctx, tx, h.repo.Users(), h.tokens, PurposeResetPassword, event.UIDB64, event.Token)
		if err != nil {
			return err
		}
		resp.User = user
		resp.Valid = true
		return nil
	})

	if err != nil && !errors.Is(err, ErrInvalidToken) {
		return internalError(err, "failed to check password reset link")
	}

	if err != nil {
		h.logger.Debug("invalid password reset link: %v", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
