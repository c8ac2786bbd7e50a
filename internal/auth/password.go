package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingPasswordHash = errors.New("credentials: password hash required")
	ErrInvalidPasswordHash = errors.New("credentials: password hash is not a bcrypt hash")
	ErrInvalidCredentials  = errors.New("credentials: invalid username or password")
)

// HashPassword returns a bcrypt hash suitable for auth.admin_password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidCredentials
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CredentialsConfig describes the single administrator account.
type CredentialsConfig struct {
	Username     string
	PasswordHash string
}

// Credentials verifies administrator logins.
type Credentials struct {
	username     string
	passwordHash []byte
}

// NewCredentials validates the configured hash up front.
func NewCredentials(cfg CredentialsConfig) (*Credentials, error) {
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash == "" {
		return nil, ErrMissingPasswordHash
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, ErrInvalidPasswordHash
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = defaultAdminUsername
	}
	return &Credentials{username: username, passwordHash: []byte(hash)}, nil
}

// Username returns the administrator account name.
func (c *Credentials) Username() string {
	return c.username
}

// Verify checks a login attempt and returns ErrInvalidCredentials on mismatch.
func (c *Credentials) Verify(username, password string) error {
	userMatches := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(c.username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !userMatches || passwordErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
