package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SendVerificationMessage struct {
	UserID     uuid.UUID
	OnResponse func(resp *SendVerificationResponse)
}

func (e SendVerificationMessage) Type() string { return "user.verification.send" }

type SendVerificationResponse struct {
	User            *User `json:"user"`
	Sent            bool  `json:"sent"`
	AlreadyVerified bool  `json:"already_verified"`
}

// SendVerificationHandler emails a verification link to a user. Resends are
// rate limited per user by the configured Throttle.
type SendVerificationHandler struct {
	repo     RepositoryManager
	tokens   LinkTokens
	links    *LinkBuilder
	notifier Notifier
	throttle Throttle
	activity ActivitySink
	logger   Logger
}

func NewSendVerificationHandler(repo RepositoryManager, tokens LinkTokens, links *LinkBuilder, notifier Notifier) *SendVerificationHandler {
	return &SendVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		links:    links,
		notifier: notifier,
		throttle: unlimited{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *SendVerificationHandler) WithThrottle(throttle Throttle) *SendVerificationHandler {
	if throttle == nil {
		throttle = unlimited{}
	}
	h.throttle = throttle
	return h
}

func (h *SendVerificationHandler) WithActivitySink(sink ActivitySink) *SendVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *SendVerificationHandler) WithLogger(logger Logger) *SendVerificationHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *SendVerificationHandler) Execute(ctx context.Context, event SendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx.Err(), "verification email")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SendVerificationHandler) execute(ctx context.Context, event SendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &SendVerificationResponse{}

	user, err := h.repo.Users().GetByID(ctx, event.UserID)
	if err != nil {
		return err
	}
	resp.User = user

	if user.Verified {
		resp.AlreadyVerified = true
		return h.respond(event, resp)
	}

	allowed, retryAfter, err := h.throttle.Allow(ctx, "verification:"+user.ID.String())
	if err != nil {
		return internalError(err, "failed to check verification throttle")
	}

	if !allowed {
		return accountsError(CodeResendThrottled).
			With("user_id", user.ID.String(), "retry_after", retryAfter.String()).
			Wrap(ErrResendThrottled)
	}

	token, err := h.tokens.MakeToken(user, PurposeVerifyEmail)
	if err != nil {
		return err
	}

	if err := h.notifier.SendVerification(ctx, user, h.links.VerificationLink(user, token)); err != nil {
		return internalError(err, "failed to send verification email")
	}
	resp.Sent = true

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationSent,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
	})

	return h.respond(event, resp)
}

func (h *SendVerificationHandler) respond(event SendVerificationMessage, resp *SendVerificationResponse) error {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}

type VerifyAccountMessage struct {
	UIDB64     string
	Token      string
	OnResponse func(user *User)
}

func (e VerifyAccountMessage) Type() string { return "user.verify" }

// VerifyAccountHandler marks a user verified from an emailed link. Links that
// do not resolve to a user or whose token does not check fail with a
// NOT_FOUND error.
type VerifyAccountHandler struct {
	repo     RepositoryManager
	tokens   LinkTokens
	activity ActivitySink
	logger   Logger
}

func NewVerifyAccountHandler(repo RepositoryManager, tokens LinkTokens) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx.Err(), "account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = resolveLinkUser(ctx, tx, h.repo.Users(), h.tokens, PurposeVerifyEmail, event.UIDB64, event.Token)
		if err != nil {
			return err
		}

		if err := h.repo.Users().SetVerifiedTx(ctx, tx, user.ID, true); err != nil {
			return err
		}
		user.Verified = true
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			h.logger.Info("rejected verification link: %v", err)
			return err
		}
		return internalError(err, "failed to verify account")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountVerified,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
