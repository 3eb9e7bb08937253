// Package otp manages the ephemeral state of the signup verification
// flow: the one-time code challenge, the staged password hash that keeps
// unverified accounts out of the permanent store, and the opaque context
// token that lets a client resume verification without re-sending the
// email address.
//
// Context-token lookup is deliberately non-consuming: a token can be
// checked repeatedly until its TTL expires. Delete exists so callers can
// make it single-use later.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readshelf/authkit/internal"
)

// ErrRedisUnavailable wraps infrastructure failures from the ephemeral
// store. Callers must never conflate it with a missing or mismatched
// code.
var ErrRedisUnavailable = errors.New("otp redis unavailable")

// Config holds TTLs and code shape for the challenge store.
type Config struct {
	CodeTTL         time.Duration
	ContextTokenTTL time.Duration
	Digits          int
	RedisPrefix     string
}

// Store keeps OTP challenges, staged credentials, and context tokens in
// Redis. All state is built from set-with-TTL, get, and delete; explicit
// deletes are an optimization, expiry is the correctness mechanism.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// NewStore creates a Store.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "av"
	}
	return &Store{redis: client, config: cfg}
}

func (s *Store) codeKey(email string) string {
	return s.config.RedisPrefix + ":otp:" + email
}

func (s *Store) credentialKey(email string) string {
	return s.config.RedisPrefix + ":pwd:" + email
}

func (s *Store) contextKey(token string) string {
	return s.config.RedisPrefix + ":ctx:" + token
}

// Issue generates a fresh numeric code for email and stores it with the
// configured TTL, overwriting any outstanding code. Last write wins: once
// overwritten, an earlier code can never verify again.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := internal.NewOTP(s.config.Digits)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.codeKey(email), code, s.config.CodeTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return code, nil
}

// Verify reports whether a non-expired code exists for email and exactly
// matches. A mismatch does not consume the stored code; the caller may
// retry until expiry. Absence yields false, never an error.
func (s *Store) Verify(ctx context.Context, email, code string) (bool, error) {
	stored, err := s.redis.Get(ctx, s.codeKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1, nil
}

// StagePassword stores the password hash for email under the code TTL so
// the account is not materialized until verification succeeds. Re-staging
// overwrites, mirroring Issue.
func (s *Store) StagePassword(ctx context.Context, email, hash string) error {
	if err := s.redis.Set(ctx, s.credentialKey(email), hash, s.config.CodeTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// StagedPassword returns the staged hash for email. ok is false when the
// credential expired or was never staged.
func (s *Store) StagedPassword(ctx context.Context, email string) (hash string, ok bool, err error) {
	stored, err := s.redis.Get(ctx, s.credentialKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return stored, true, nil
}

// Delete removes the outstanding code and staged credential for email.
// Deleting absent entries is not an error.
func (s *Store) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.codeKey(email), s.credentialKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IssueContextToken mints an opaque token resolving to email for the
// context-token TTL.
func (s *Store) IssueContextToken(ctx context.Context, email string) (string, error) {
	token, err := internal.NewContextToken()
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.contextKey(token), email, s.config.ContextTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, nil
}

// ResolveContextToken returns the email a token was issued for. The
// lookup does not consume the token.
func (s *Store) ResolveContextToken(ctx context.Context, token string) (email string, ok bool, err error) {
	stored, err := s.redis.Get(ctx, s.contextKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return stored, true, nil
}

// DeleteContextToken removes a context token ahead of its TTL.
func (s *Store) DeleteContextToken(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.contextKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
