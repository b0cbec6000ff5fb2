package accounts

import (
	"context"

	"github.com/goliatone/go-accounts/paginator"
)

// UserPageSource pages through users ordered by email.
type UserPageSource struct {
	users Users
}

var _ paginator.PageSource[*User] = UserPageSource{}

func NewUserPageSource(users Users) UserPageSource {
	return UserPageSource{users: users}
}

func (s UserPageSource) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s UserPageSource) Slice(ctx context.Context, offset, limit int) ([]*User, error) {
	return s.users.List(ctx, offset, limit)
}
