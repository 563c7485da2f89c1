package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the access level granted by a token.
type Role string

// Roles, lowest first.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
)

// ValidRoles lists every accepted role.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// Token errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrEmptySecret  = errors.New("jwt secret is empty")
)

// defaultTTL applies when IssueToken is called with a non-positive TTL.
const defaultTTL = 24 * time.Hour

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// CanControl reports whether the role may change device state.
func (r Role) CanControl() bool {
	return r == RoleOperator
}

// CustomClaims extends JWT standard claims with the bridge role.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// IssueToken creates a signed HS256 token for subject with the given role.
//
// Parameters:
//   - secret: Signing secret; must not be empty
//   - subject: Token subject (client name)
//   - role: Access level
//   - ttl: Lifetime; non-positive means 24h
//
// Returns:
//   - string: The signed token
//   - error: ErrEmptySecret, ErrInvalidRole, or a signing failure
func IssueToken(secret, subject string, role Role, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if !role.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a token, returning its claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: bad role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
