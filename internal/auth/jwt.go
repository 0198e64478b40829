package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "smc-signal-engine"

// JWTManager signs and validates HS256 tokens. Refresh tokens are JWTs as
// well, distinguished by a use claim, which keeps the service stateless.
type JWTManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type claims struct {
	Use string `json:"use"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// NewJWTManager creates a manager. TTLs of zero fall back to 15 minutes and
// 7 days.
func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue creates a fresh access/refresh pair for the subject.
func (m *JWTManager) Issue(subject string) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(m.accessTTL)

	access, err := m.sign(subject, "access", now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.sign(subject, "refresh", now, now.Add(m.refreshTTL))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (m *JWTManager) sign(subject, use string, now, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Use: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	return token.SignedString(m.secret)
}

// ValidateAccess validates an access token and returns its subject.
func (m *JWTManager) ValidateAccess(tokenString string) (string, error) {
	return m.validate(tokenString, "access")
}

// ValidateRefresh validates a refresh token and returns its subject.
func (m *JWTManager) ValidateRefresh(tokenString string) (string, error) {
	return m.validate(tokenString, "refresh")
}

func (m *JWTManager) validate(tokenString, use string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Use != use || c.Issuer != tokenIssuer {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
