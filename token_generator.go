package accounts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a link token to a single flow.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
)

const (
	DefaultVerificationTokenTTL  = 72 * time.Hour
	DefaultPasswordResetTokenTTL = 24 * time.Hour
)

// LinkTokens mints and checks the tokens embedded in account emails.
type LinkTokens interface {
	TTL(purpose TokenPurpose) time.Duration
	MakeToken(user *User, purpose TokenPurpose) (string, error)
	CheckToken(user *User, purpose TokenPurpose, token string) error
}

type linkClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"pur"`
	State   string `json:"st"`
}

// StateTokenGenerator issues one-shot link tokens. Each token is signed with
// a key derived from the signing key and the purpose, and carries a
// fingerprint of the user state it was minted for.
type StateTokenGenerator struct {
	signingKey []byte
	ttl        map[TokenPurpose]time.Duration
	now        func() time.Time
}

// TokenGeneratorOption configures a StateTokenGenerator.
type TokenGeneratorOption func(*StateTokenGenerator)

// WithTokenTTL overrides the lifetime of tokens minted for purpose.
func WithTokenTTL(purpose TokenPurpose, ttl time.Duration) TokenGeneratorOption {
	return func(g *StateTokenGenerator) {
		if ttl > 0 {
			g.ttl[purpose] = ttl
		}
	}
}

// WithTokenClock replaces time.Now, mostly for tests.
func WithTokenClock(now func() time.Time) TokenGeneratorOption {
	return func(g *StateTokenGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewStateTokenGenerator returns a generator signing with signingKey.
func NewStateTokenGenerator(signingKey string, opts ...TokenGeneratorOption) *StateTokenGenerator {
	g := &StateTokenGenerator{
		signingKey: []byte(signingKey),
		ttl: map[TokenPurpose]time.Duration{
			PurposeVerifyEmail:   DefaultVerificationTokenTTL,
			PurposeResetPassword: DefaultPasswordResetTokenTTL,
		},
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// NewStateTokenGeneratorFromConfig applies the configured TTLs.
func NewStateTokenGeneratorFromConfig(cfg Config) *StateTokenGenerator {
	return NewStateTokenGenerator(
		cfg.GetSigningKey(),
		WithTokenTTL(PurposeVerifyEmail, cfg.GetVerificationTokenTTL()),
		WithTokenTTL(PurposeResetPassword, cfg.GetPasswordResetTokenTTL()),
	)
}

// TTL returns the lifetime of tokens minted for purpose.
func (g *StateTokenGenerator) TTL(purpose TokenPurpose) time.Duration {
	if ttl, ok := g.ttl[purpose]; ok {
		return ttl
	}
	return DefaultPasswordResetTokenTTL
}

// MakeToken mints a token for user scoped to purpose.
func (g *StateTokenGenerator) MakeToken(user *User, purpose TokenPurpose) (string, error) {
	if user == nil {
		return "", accountsError(CodeInternal).Wrap(ErrIdentityNotFound)
	}

	now := g.now()
	claims := &linkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.TTL(purpose))),
		},
		Purpose: string(purpose),
		State:   userStateFingerprint(user),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.keyFor(purpose))
	if err != nil {
		return "", accountsError(CodeInternal).Wrapf(err, "failed to sign link token")
	}

	return signed, nil
}

// CheckToken validates token for user and purpose. It fails once the user
// state the token was minted for changed, or once the token expired.
func (g *StateTokenGenerator) CheckToken(user *User, purpose TokenPurpose, token string) error {
	if user == nil || token == "" {
		return accountsError(CodeInvalidToken).Wrap(ErrInvalidToken)
	}

	claims := &linkClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return g.keyFor(purpose), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(user.ID.String()),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return accountsError(CodeTokenExpired).
				With("purpose", purpose).
				Wrap(ErrInvalidToken)
		}
		return accountsError(CodeInvalidToken).
			With("purpose", purpose).
			Wrapf(ErrInvalidToken, "%v", err)
	}

	if claims.Purpose != string(purpose) {
		return accountsError(CodeInvalidToken).
			With("purpose", purpose).
			Wrapf(ErrInvalidToken, "token minted for %q", claims.Purpose)
	}

	if !hmac.Equal([]byte(claims.State), []byte(userStateFingerprint(user))) {
		return accountsError(CodeInvalidToken).
			With("purpose", purpose).
			Wrapf(ErrInvalidToken, "user state changed")
	}

	return nil
}

func (g *StateTokenGenerator) keyFor(purpose TokenPurpose) []byte {
	mac := hmac.New(sha256.New, g.signingKey)
	mac.Write([]byte("accounts.link-token." + string(purpose)))
	return mac.Sum(nil)
}

func userStateFingerprint(user *User) string {
	lastLogin := ""
	if user.LastLogin != nil {
		lastLogin = strconv.FormatInt(user.LastLogin.Unix(), 10)
	}

	state := strings.Join([]string{
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		strconv.FormatBool(user.Verified),
		strconv.FormatBool(user.Active),
		lastLogin,
	}, "|")

	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:16])
}
