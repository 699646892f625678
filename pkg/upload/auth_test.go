package upload

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func requestWithAuth(header string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/upload/image", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return r
}

func TestJWTAuthorizer_RoundTrip(t *testing.T) {
	auth := NewJWTAuthorizer("secret")

	token, err := auth.Issue(42, "user", time.Hour)
	require.NoError(t, err)

	userID, err := auth.Authorize(requestWithAuth("Bearer " + token))
	require.NoError(t, err)
	require.Equal(t, "42", userID)

	userID, err = auth.Authorize(requestWithAuth("bearer  " + token))
	require.NoError(t, err, "scheme is case-insensitive")
	require.Equal(t, "42", userID)

	claims, err := auth.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user", claims.Role)
}

func TestJWTAuthorizer_Rejects(t *testing.T) {
	auth := NewJWTAuthorizer("secret")

	expired, err := auth.Issue(1, "user", -time.Hour)
	require.NoError(t, err)

	foreign, err := NewJWTAuthorizer("other").Issue(1, "user", time.Hour)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID:           1,
		Role:             "user",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1, Role: "user"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"Missing", ""},
		{"WrongScheme", "Basic dXNlcjpwYXNz"},
		{"EmptyToken", "Bearer "},
		{"Garbage", "Bearer not-a-jwt"},
		{"Expired", "Bearer " + expired},
		{"ForeignSecret", "Bearer " + foreign},
		{"OtherAlgorithm", "Bearer " + hs512},
		{"NoExpiry", "Bearer " + noExpiry},
		{"NoRole", "Bearer " + noRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authorize(requestWithAuth(tt.header))
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestJWTAuthorizer_IssueNeedsIdentity(t *testing.T) {
	auth := NewJWTAuthorizer("secret")
	_, err := auth.Issue(0, "user", time.Hour)
	require.Error(t, err)
	_, err = auth.Issue(1, "", time.Hour)
	require.Error(t, err)
}
