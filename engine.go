package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/readshelf/authkit/jwt"
	"github.com/readshelf/authkit/otp"
	"github.com/readshelf/authkit/password"
	"github.com/readshelf/authkit/session"
)

// Engine is the auth orchestrator. All methods are safe for concurrent
// use; every request is an independent unit of work and the only shared
// mutable state lives in the external stores.
type Engine struct {
	config    Config
	logger    *slog.Logger
	users     UserStore
	hasher    *password.Hasher
	tokens    *jwt.Manager
	sessions  *session.Store
	otp       *otp.Store
	mail      *mailDispatcher
	verifiers map[Provider]IdentityVerifier
	metrics   *Metrics
}

// Close flushes and stops the background mail dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mail.Close()
}

// MetricsSnapshot returns a copy of the engine's event counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// MailDropped reports how many OTP deliveries were dropped due to
// dispatcher backpressure.
func (e *Engine) MailDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.mail.Dropped()
}

// Authenticate validates an access token presented on an ordinary
// request. It consults nothing server-side: validity is the signature,
// the expiry, and the type claim.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := e.tokens.VerifyAccess(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return &Claims{Email: claims.Email, Role: Role(claims.Role)}, nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// storeCtx bounds a single external-store operation.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Store.OpTimeout)
}

// storeErr maps any backing-store failure to the retryable
// ErrStoreUnavailable kind, preserving the cause in the message only.
func (e *Engine) storeErr(err error) error {
	e.metricInc(MetricStoreUnavailable)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// findUser looks up a user by email with a single transparent retry on
// infrastructure failure. Reads are idempotent; write paths never retry.
func (e *Engine) findUser(ctx context.Context, email string) (*User, error) {
	user, err := e.findUserOnce(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		user, err = e.findUserOnce(ctx, email)
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, e.storeErr(err)
	}
	return user, nil
}

func (e *Engine) findUserOnce(ctx context.Context, email string) (*User, error) {
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.users.FindByEmail(opCtx, email)
}

// validateSession checks a jti/email pair with a single retry on
// infrastructure failure.
func (e *Engine) validateSession(ctx context.Context, jti, email string) (bool, error) {
	ok, err := e.validateSessionOnce(ctx, jti, email)
	if err != nil {
		ok, err = e.validateSessionOnce(ctx, jti, email)
	}
	if err != nil {
		return false, e.storeErr(err)
	}
	return ok, nil
}

func (e *Engine) validateSessionOnce(ctx context.Context, jti, email string) (bool, error) {
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.sessions.Validate(opCtx, jti, email)
}

// establishSession creates a session record and mints the token pair
// bound to it.
func (e *Engine) establishSession(ctx context.Context, user *User) (*AuthResult, error) {
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	jti, err := e.sessions.Create(opCtx, user.Email, string(user.Role))
	if err != nil {
		return nil, e.storeErr(err)
	}
	e.metricInc(MetricSessionCreated)

	access, err := e.tokens.IssueAccess(user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(user.Email, jti)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:   user,
		Tokens: TokenPair{Access: access, Refresh: refresh},
		JTI:    jti,
	}, nil
}

// maskEmail hides most of the local part for display,
// "jonathan@example.com" becoming "jonat***@example.com".
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 5 {
		local = local[:5]
	}
	return local + "***@" + domain
}
