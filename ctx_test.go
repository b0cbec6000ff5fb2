package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestUserContext(t *testing.T) {
	ctx := context.Background()

	_, ok := accounts.FromContext(ctx)
	assert.False(t, ok)

	_, ok = accounts.FromContext(accounts.WithContext(ctx, nil))
	assert.False(t, ok)

	user := &accounts.User{Email: "ada@example.com"}
	got, ok := accounts.FromContext(accounts.WithContext(ctx, user))
	require.True(t, ok)
	assert.Same(t, user, got)
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()

	_, ok := accounts.SessionFromContext(ctx)
	assert.False(t, ok)

	session := &accounts.SessionObject{UserID: uuid.NewString()}
	got, ok := accounts.SessionFromContext(accounts.WithSessionContext(ctx, session))
	require.True(t, ok)
	assert.Equal(t, session.UserID, got.GetUserID())
}

func TestSessionObject(t *testing.T) {
	id := uuid.New()
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	session := &accounts.SessionObject{
		UserID:   id.String(),
		Audience: []string{"accounts"},
		Issuer:   "accounts-test",
		IssuedAt: &issued,
		Data:     map[string]any{"role": "admin"},
	}

	uid, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, id, uid)
	assert.Equal(t, []string{"accounts"}, session.GetAudience())
	assert.Equal(t, "accounts-test", session.GetIssuer())
	assert.Equal(t, &issued, session.GetIssuedAt())
	assert.Contains(t, session.String(), "user="+id.String())

	tests := []struct {
		name string
		data map[string]any
		want accounts.UserRole
	}{
		{name: "valid role", data: map[string]any{"role": "admin"}, want: accounts.RoleAdmin},
		{name: "unknown role", data: map[string]any{"role": "wizard"}, want: accounts.RoleGuest},
		{name: "wrong type", data: map[string]any{"role": 3}, want: accounts.RoleGuest},
		{name: "no data", data: nil, want: accounts.RoleGuest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &accounts.SessionObject{Data: tt.data}
			assert.Equal(t, tt.want, s.Role())
		})
	}

	_, err = (&accounts.SessionObject{UserID: "not-a-uuid"}).GetUserUUID()
	assert.Error(t, err)
}
