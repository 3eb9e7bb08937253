// Package jwt mints and validates the signed access and refresh tokens
// issued by authkit. Access and refresh tokens are signed with distinct
// keys so that compromise of one key cannot forge the other token class.
package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TypeAccess is the claim value carried by access tokens.
	TypeAccess = "access"
	// TypeRefresh is the claim value carried by refresh tokens.
	TypeRefresh = "refresh"
)

var (
	// ErrExpired is returned when a token's signature is valid but its
	// expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrWrongType is returned when a structurally valid token carries the
	// wrong type claim for the verification path it was presented on.
	ErrWrongType = errors.New("wrong token type")
	// ErrMissingJTI is returned when a refresh token has no session id.
	ErrMissingJTI = errors.New("refresh token missing jti")
	// ErrMalformed is returned for tokens that fail signature or structural
	// validation.
	ErrMalformed = errors.New("malformed token")
)

// Config holds signing keys and lifetimes for both token classes.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	AccessKey  []byte
	RefreshKey []byte
	Issuer     string
	Leeway     time.Duration
}

// Manager signs and parses access and refresh tokens.
type Manager struct {
	config Config
}

// AccessClaims is the stateless claim set carried by access tokens.
// Validity is purely cryptographic plus the expiry check; nothing is
// stored server-side for this token class.
type AccessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by refresh tokens. The session id
// travels in the registered ID ("jti") claim and must match a live session
// record for the token to be usable.
type RefreshClaims struct {
	Email     string `json:"email"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager. The access and refresh
// keys must both be present and must differ.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.AccessKey) == 0 || len(cfg.RefreshKey) == 0 {
		return nil, errors.New("access and refresh signing keys required")
	}
	if bytes.Equal(cfg.AccessKey, cfg.RefreshKey) {
		return nil, errors.New("access and refresh signing keys must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// IssueAccess signs a short-lived access token for email/role.
func (m *Manager) IssueAccess(email, role string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Email:     email,
		Role:      role,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.AccessKey)
}

// IssueRefresh signs a long-lived refresh token bound to the session id
// jti. The token is only usable while a live session record exists for
// that jti.
func (m *Manager) IssueRefresh(email, jti string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		Email:     email,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.RefreshKey)
}

// RefreshTTL exposes the configured refresh lifetime so the session
// registry can mirror it exactly.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

// VerifyAccess checks signature, expiry, and token type.
func (m *Manager) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.config.AccessKey); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry, token type, and jti presence.
// A valid result still needs a live session record before it may be
// honored; that check belongs to the session registry.
func (m *Manager) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.config.RefreshKey); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrWrongType
	}
	if claims.ID == "" {
		return nil, ErrMissingJTI
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, key []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid {
		return ErrMalformed
	}
	return nil
}
