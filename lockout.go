package accounts

import "time"

// Defaults of the login lockout.
const (
	MaxLoginAttempts = 5
	DefaultCoolDown  = 24 * time.Hour
)

// LockoutPolicy locks an account once it collects MaxAttempts failed
// logins. Failures older than CoolDown, measured from the latest one, no
// longer count.
type LockoutPolicy struct {
	MaxAttempts int
	CoolDown    time.Duration
}

// DefaultLockoutPolicy allows MaxLoginAttempts failures per DefaultCoolDown.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: MaxLoginAttempts,
		CoolDown:    DefaultCoolDown,
	}
}

// Attempts returns the failed logins of user still counting at now.
func (p LockoutPolicy) Attempts(user *User, now time.Time) int {
	if user.LoginAttemptAt == nil {
		return user.LoginAttempts
	}

	if !user.LoginAttemptAt.After(now.Add(-p.CoolDown)) {
		return 0
	}

	return user.LoginAttempts
}

// Locked reports whether user must wait for the cool down to end. A policy
// with MaxAttempts <= 0 never locks.
func (p LockoutPolicy) Locked(user *User, now time.Time) bool {
	return p.MaxAttempts > 0 && p.Attempts(user, now) >= p.MaxAttempts
}
