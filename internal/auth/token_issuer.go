package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultSessionTTL    = 12 * time.Hour
	defaultNonceTTL      = 24 * time.Hour
	defaultSessionIssuer = "linkinbio"
	defaultAdminUsername = "admin"

	sessionAudience = "linkinbio-admin"
	nonceAudience   = "linkinbio-nonce"
)

// Nonce actions accepted by the admin API.
const (
	ActionPreview = "link_in_bio_preview"
	ActionSave    = "link_in_bio_save"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
	errMissingSessionID     = errors.New("session id must be provided")
	errMissingAction        = errors.New("nonce action must be provided")
)

// SessionClaims is the payload of an administrator session cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// NonceClaims binds an anti-forgery token to one session and one action.
type NonceClaims struct {
	Action    string `json:"action"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures session and nonce signing.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	SessionTTL    time.Duration
	NonceTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer signs HS256 session cookies and nonces.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	sessionTTL    time.Duration
	nonceTTL      time.Duration
	clock         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	nonceTTL := cfg.NonceTTL
	if nonceTTL <= 0 {
		nonceTTL = defaultNonceTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		sessionTTL:    sessionTTL,
		nonceTTL:      nonceTTL,
		clock:         clock,
	}, nil
}

// IssueSession produces a signed session token and its expiry.
func (i *TokenIssuer) IssueSession(subject string) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errMissingSubjectClaim
	}
	sessionID, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, err
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.sessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			Subject:   subject,
			Issuer:    i.issuer,
			Audience:  []string{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueNonce produces an anti-forgery token for one action of a session.
func (i *TokenIssuer) IssueNonce(session SessionClaims, action string) (string, error) {
	if strings.TrimSpace(session.Subject) == "" {
		return "", errMissingSubjectClaim
	}
	if strings.TrimSpace(session.ID) == "" {
		return "", errMissingSessionID
	}
	if strings.TrimSpace(action) == "" {
		return "", errMissingAction
	}

	now := i.clock().UTC()
	claims := NonceClaims{
		Action:    action,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Subject,
			Issuer:    i.issuer,
			Audience:  []string{nonceAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.nonceTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingSecret)
}
