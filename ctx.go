package accounts

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var userCtxKey = &contextKey{"user"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// localsUserKey is the fiber Locals key holding the authenticated *User.
const localsUserKey = "accounts.user"

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext extracts the Session from the context
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok && raw != nil
}

// CurrentUser returns the user LoadSession attached to the request.
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	raw, ok := c.Locals(localsUserKey).(*User)
	return raw, ok && raw != nil
}

func setCurrentUser(c *fiber.Ctx, user *User, session Session) {
	c.Locals(localsUserKey, user)
	ctx := WithContext(c.UserContext(), user)
	c.SetUserContext(WithSessionContext(ctx, session))
}
