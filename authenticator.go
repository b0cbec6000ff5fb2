package accounts

import (
	"context"
	"reflect"
	"time"
)

type Auther struct {
	provider     IdentityProvider
	tokenService TokenService
	tokenTTL     time.Duration
	extendedTTL  time.Duration
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenTTL := 24 * time.Hour
	if opts.GetTokenExpiration() > 0 {
		tokenTTL = time.Duration(opts.GetTokenExpiration()) * time.Hour
	}

	extendedTTL := tokenTTL
	if opts.GetExtendedTokenDuration() > 0 {
		extendedTTL = time.Duration(opts.GetExtendedTokenDuration()) * time.Hour
	}

	return &Auther{
		provider: provider,
		tokenService: NewTokenService(
			[]byte(opts.GetSigningKey()),
			opts.GetIssuer(),
			opts.GetAudience(),
			defLogger{},
		),
		tokenTTL:     tokenTTL,
		extendedTTL:  extendedTTL,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	if ts, ok := s.tokenService.(*TokenServiceImpl); ok {
		ts.logger = s.logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and returns a session token.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	return s.login(ctx, identifier, password, s.tokenTTL)
}

// LoginExtended is Login with the "remember me" session lifetime.
func (s *Auther) LoginExtended(ctx context.Context, identifier, password string) (string, error) {
	return s.login(ctx, identifier, password, s.extendedTTL)
}

func (s *Auther) login(ctx context.Context, identifier, password string, ttl time.Duration) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Info("login rejected for %q: %v", identifier, err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrorCode(err),
		})
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      CodeNotFound,
		})
		return "", accountsError(CodeNotFound).Wrap(ErrIdentityNotFound)
	}

	token, err := s.tokenService.Generate(identity, ttl)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      ErrorCode(err),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Debug("identity from session %s: %v", session.GetUserID(), err)
		return nil, err
	}

	return identity, nil
}

func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Debug("session from token: %v", err)
		return nil, err
	}

	session, err := sessionFromClaims(claims)
	if err != nil {
		s.logger.Error("session from token: failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}
