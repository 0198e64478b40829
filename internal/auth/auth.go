// Package auth secures the HTTP API with a single operator account: bcrypt
// for the password, short-lived JWT access tokens for requests.
package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

const bcryptCost = 12

// Service authenticates the operator and issues tokens.
type Service struct {
	username     string
	passwordHash []byte
	jwt          *JWTManager
}

// NewService hashes the bootstrap password and prepares the token manager.
func NewService(username, password, jwtSecret string, accessTTL, refreshTTL time.Duration) (*Service, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}
	return &Service{
		username:     username,
		passwordHash: hash,
		jwt:          NewJWTManager(jwtSecret, accessTTL, refreshTTL),
	}, nil
}

// TokenPair is the login response payload.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Login checks credentials and issues a token pair.
func (s *Service) Login(username, password string) (*TokenPair, error) {
	if username != s.username {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.jwt.Issue(username)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	username, err := s.jwt.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.jwt.Issue(username)
}

// Validate checks an access token and returns the subject.
func (s *Service) Validate(accessToken string) (string, error) {
	return s.jwt.ValidateAccess(accessToken)
}
