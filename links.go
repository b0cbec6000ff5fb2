package accounts

import (
	"context"
	"net/url"
	"strings"

	"github.com/uptrace/bun"
)

// DefaultMountPath is where RegisterRoutes mounts the account pages.
const DefaultMountPath = "/users"

// LinkBuilder renders the absolute links sent in account emails.
type LinkBuilder struct {
	siteURL   string
	mountPath string
}

func NewLinkBuilder(siteURL string) *LinkBuilder {
	return &LinkBuilder{
		siteURL:   strings.TrimRight(siteURL, "/"),
		mountPath: DefaultMountPath,
	}
}

// WithMountPath changes the path the account routes are mounted on.
func (b *LinkBuilder) WithMountPath(path string) *LinkBuilder {
	b.mountPath = ""
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		b.mountPath = "/" + trimmed
	}
	return b
}

// MountPath returns the path prefix of the account routes.
func (b *LinkBuilder) MountPath() string {
	return b.mountPath
}

// VerificationLink is /users/verify/<uidb64>/<token>.
func (b *LinkBuilder) VerificationLink(user *User, token string) string {
	return b.build("verify", EncodeUID(user.ID), token)
}

// PasswordResetLink is /users/password-reset/confirm/<uidb64>/<token>.
func (b *LinkBuilder) PasswordResetLink(user *User, token string) string {
	return b.build("password-reset", "confirm", EncodeUID(user.ID), token)
}

func (b *LinkBuilder) build(elem ...string) string {
	segments := make([]string, 0, len(elem))
	for _, e := range elem {
		segments = append(segments, url.PathEscape(e))
	}
	return b.siteURL + b.mountPath + "/" + strings.Join(segments, "/")
}

// resolveLinkUser loads the user a uidb64/token pair points to. Any failure
// to decode, find or check reports ErrInvalidToken with a NOT_FOUND code.
func resolveLinkUser(ctx context.Context, tx bun.IDB, users Users, tokens LinkTokens, purpose TokenPurpose, uidb64, token string) (*User, error) {
	id, err := DecodeUID(uidb64)
	if err != nil {
		return nil, invalidLinkError(purpose, "malformed uid")
	}

	user, err := users.GetByIDTx(ctx, tx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, invalidLinkError(purpose, "unknown user")
		}
		return nil, err
	}

	if err := tokens.CheckToken(user, purpose, token); err != nil {
		reason := "token did not check"
		if IsTokenExpiredError(err) {
			reason = "token expired"
		}
		return nil, invalidLinkError(purpose, reason)
	}

	return user, nil
}

func invalidLinkError(purpose TokenPurpose, reason string) error {
	return accountsError(CodeNotFound).
		With("purpose", purpose, "reason", reason).
		Wrap(ErrInvalidToken)
}
