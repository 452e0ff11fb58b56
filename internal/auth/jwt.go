// Package auth issues and verifies the bearer tokens that guard the API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleSuperuser sees every user's data.
const RoleSuperuser = "SUPERUSER"

var (
	ErrMissingAuthHeader  = errors.New("Missing or invalid Authorization header")
	ErrTokenExpired       = errors.New("Token expired")
	ErrTokenInvalid       = errors.New("Invalid token")
	ErrTokenPayload       = errors.New("Invalid token payload")
	ErrInvalidCredentials = errors.New("Invalid email or password")
)

// Claims is the token payload. The "id" key is what older clients read.
type Claims struct {
	UserID uint64 `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID uint64
	Email  string
	Role   string
}

// ScopeUserID returns the user id queries should filter by; 0 means all users.
func (i Identity) ScopeUserID() uint64 {
	if i.Role == RoleSuperuser {
		return 0
	}
	return i.UserID
}

// CanGrant reports whether the caller may create an account with role.
// Only a superuser can create another superuser.
func (i Identity) CanGrant(role string) bool {
	if strings.EqualFold(strings.TrimSpace(role), RoleSuperuser) {
		return i.Role == RoleSuperuser
	}
	return true
}

// TokenManager signs and parses HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenManager returns a manager. A zero ttl issues tokens without expiry.
func NewTokenManager(secret string, ttl time.Duration, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for the given identity.
func (m *TokenManager) Issue(id Identity) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatUint(id.UserID, 10),
			Issuer:   m.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token and returns the identity it carries.
// Errors are ErrTokenExpired, ErrTokenInvalid or ErrTokenPayload.
func (m *TokenManager) Parse(token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrTokenExpired
	case err != nil:
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.UserID == 0:
		return Identity{}, ErrTokenPayload
	}
	return Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}
