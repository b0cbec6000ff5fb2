package accounts

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// EncodeUID renders a user id as the uidb64 segment of account links.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID parses a uidb64 segment. Padded input is accepted.
func DecodeUID(uidb64 string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(uidb64, "="))
	if err != nil {
		return uuid.Nil, accountsError(CodeNotFound).
			With("uidb64", uidb64).
			Wrapf(ErrNotFound, "malformed uid: %v", err)
	}

	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, accountsError(CodeNotFound).
			With("uidb64", uidb64).
			Wrapf(ErrNotFound, "malformed uid: %v", err)
	}

	return id, nil
}
