package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserOption customizes a user created through CreateUser.
type UserOption func(*User)

// WithFullName sets the user's full name.
func WithFullName(name string) UserOption {
	return func(u *User) {
		u.FullName = strings.TrimSpace(name)
	}
}

// WithPhone sets the user's phone number.
func WithPhone(phone string) UserOption {
	return func(u *User) {
		u.Phone = phone
	}
}

// WithRole sets the user's role.
func WithRole(role UserRole) UserOption {
	return func(u *User) {
		u.Role = role
	}
}

// WithVerified marks the email address as verified.
func WithVerified(verified bool) UserOption {
	return func(u *User) {
		u.Verified = verified
	}
}

// WithUserID uses id instead of a random one.
func WithUserID(id uuid.UUID) UserOption {
	return func(u *User) {
		u.ID = id
	}
}

// NewUser builds an active, unverified member with a hashed password. An
// empty password leaves the account with an unusable one.
func NewUser(email, password string, opts ...UserOption) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, accountsError(CodeValidationFailed).
			With("field", "email").
			Wrapf(ErrNoEmptyString, "users must have an email address")
	}

	hash := RandomPasswordHash()
	if password != "" {
		var err error
		if hash, err = HashPassword(password); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	user := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleMember,
		Active:       true,
		LastLogin:    &now,
		DateJoined:   &now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(user)
		}
	}

	if !user.Role.IsValid() {
		return nil, accountsError(CodeValidationFailed).
			With("role", user.Role).
			Errorf("unknown role %q", user.Role)
	}

	return user, nil
}

// CreateUser stores a new active, unverified member.
func CreateUser(ctx context.Context, users Users, email, password string, opts ...UserOption) (*User, error) {
	user, err := NewUser(email, password, opts...)
	if err != nil {
		return nil, err
	}
	return users.Create(ctx, user)
}

// CreateSuperuser stores a verified owner.
func CreateSuperuser(ctx context.Context, users Users, email, password string, opts ...UserOption) (*User, error) {
	opts = append(opts, WithRole(RoleOwner), WithVerified(true))
	return CreateUser(ctx, users, email, password, opts...)
}
