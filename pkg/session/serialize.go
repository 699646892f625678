package session

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	// TokenKey is the storage key holding the raw bearer token.
	TokenKey = "token"

	// UserKey is the storage key holding the JSON-encoded User.
	UserKey = "user"
)

// EncodeUser serializes a user for the UserKey storage entry.
// Fields that are not valid UTF-8 are rejected with ErrInvalidUser.
func EncodeUser(u *User) (string, error) {
	if u == nil {
		return "", fmt.Errorf("session: encode nil user")
	}
	for _, field := range []struct{ name, value string }{
		{"email", u.Email},
		{"firstName", u.FirstName},
		{"lastName", u.LastName},
		{"role", u.Role},
		{"phone", u.Phone},
	} {
		if !utf8.ValidString(field.value) {
			return "", fmt.Errorf("%w: %s", ErrInvalidUser, field.name)
		}
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUser parses a UserKey storage entry.
// Anything that is not a JSON object decodes to ErrCorruptUser.
func DecodeUser(raw string) (*User, error) {
	var u *User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptUser, err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: null user entry", ErrCorruptUser)
	}
	return u, nil
}
