package upload

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authorizer decides who is uploading. It runs before the request body is
// read; any error rejects the request with 401.
type Authorizer interface {
	Authorize(r *http.Request) (userID string, err error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request) (string, error)

// Authorize calls f(r).
func (f AuthorizerFunc) Authorize(r *http.Request) (string, error) {
	return f(r)
}

// Claims are the bearer token claims shared with the catalog backend.
type Claims struct {
	UserID uint   `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthorizer accepts HS256 bearer tokens signed with a shared secret.
type JWTAuthorizer struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthorizer creates an authorizer for tokens signed with secret.
func NewJWTAuthorizer(secret string) *JWTAuthorizer {
	return &JWTAuthorizer{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// Authorize validates the bearer token of r and returns its user ID.
func (a *JWTAuthorizer) Authorize(r *http.Request) (string, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	claims, err := a.Parse(raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(claims.UserID), nil
}

// Parse validates a raw token and returns its claims.
func (a *JWTAuthorizer) Parse(raw string) (*Claims, error) {
	token, err := a.parser.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.UserID == 0 || claims.Role == "" {
		return nil, fmt.Errorf("%w: invalid claims", ErrUnauthorized)
	}
	return claims, nil
}

// Issue signs a token for userID with the given role, valid for ttl.
func (a *JWTAuthorizer) Issue(userID uint, role string, ttl time.Duration) (string, error) {
	if userID == 0 || role == "" {
		return "", errors.New("upload: token needs a user ID and role")
	}
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
