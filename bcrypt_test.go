package accounts_test

import (
	"errors"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := accounts.HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery", hash)

	_, err = accounts.HashPassword("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, accounts.ErrNoEmptyString))
	assert.Equal(t, accounts.CodeInvalidPassword, accounts.ErrorCode(err))
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := accounts.HashPassword("correct horse battery")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  error
	}{
		{name: "matching password", password: "correct horse battery", hash: hash},
		{name: "wrong password", password: "incorrect", hash: hash, wantErr: accounts.ErrMismatchedHashAndPassword},
		{name: "invalid hash", password: "correct horse battery", hash: "not-a-hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounts.ComparePasswordAndHash(tt.password, tt.hash)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.hash == hash:
				assert.NoError(t, err)
			default:
				assert.Error(t, err)
			}
		})
	}
}

func TestRandomPasswordHash(t *testing.T) {
	first := accounts.RandomPasswordHash()
	second := accounts.RandomPasswordHash()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
