package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxFullNameLength is the longest full name a user may register with.
const MaxFullNameLength = 30

// User is the user model. Users log in with their email address.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	FullName       string     `bun:"full_name,notnull" json:"full_name"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	Phone          string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Verified       bool       `bun:"is_verified,notnull" json:"is_verified"`
	Active         bool       `bun:"is_active,notnull" json:"is_active"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LastLogin      *time.Time `bun:"last_login" json:"last_login,omitempty"`
	DateJoined     *time.Time `bun:"date_joined,nullzero,default:current_timestamp" json:"date_joined,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

func (u *User) String() string {
	return u.Email
}

// ShortName is the first word of the user's full name.
func (u *User) ShortName() string {
	name, _, _ := strings.Cut(u.FullName, " ")
	return name
}

func (u *User) GetFullName() string {
	return u.FullName
}

// IsStaff reports whether the user may use the admin pages.
func (u *User) IsStaff() bool {
	return u.Role.IsAtLeast(RoleAdmin)
}

// IsSuperuser reports whether the user holds every permission.
func (u *User) IsSuperuser() bool {
	return u.Role == RoleOwner
}

// NormalizeEmail lowercases the domain part of an email address and trims
// surrounding whitespace. The local part is left untouched.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

const (
	// ResetRequestedStatus is the requested status
	ResetRequestedStatus = "requested"
	// ResetExpiredStatus is the expired status
	ResetExpiredStatus = "expired"
	// ResetChangedStatus is the changed status
	ResetChangedStatus = "changed"
)

// PasswordReset records a password reset request sent to a user.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
