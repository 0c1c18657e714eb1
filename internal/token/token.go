// Package token issues and validates the HS256 access tokens used by the
// HTTP layer to resolve caller identity. Session management, refresh and
// two-factor flows live outside this service.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cdobey/legitify/internal/platform/middleware"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

const defaultTTL = 15 * time.Minute

// Manager signs and validates access tokens.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

// NewManager creates a token manager with the given HS256 signing key.
func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey), ttl: defaultTTL}
}

type accessClaims struct {
	Role  string `json:"role"`
	OrgID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Issue creates a signed access token for the given caller identity.
func (m *Manager) Issue(userID, role, orgID string, now time.Time) (string, error) {
	claims := accessClaims{
		Role:  role,
		OrgID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses and verifies an access token, returning middleware claims.
func (m *Manager) ValidateToken(tokenString string) (*middleware.Claims, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return m.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid access token")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing subject")
	}
	return &middleware.Claims{
		UserID: claims.Subject,
		Role:   claims.Role,
		OrgID:  claims.OrgID,
	}, nil
}
