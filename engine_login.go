package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Login authenticates a local password account and establishes a fresh
// session. Unknown accounts and wrong passwords are indistinguishable to
// the caller; only infrastructure failures surface as a different kind.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" || plainPassword == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := e.findUser(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Federated accounts have no local credential. Rejecting here keeps
	// the response identical to a wrong password.
	if user.Provider != ProviderLocal || user.PasswordHash == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	if !e.hasher.Verify(plainPassword, user.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	e.metricInc(MetricLoginSuccess)

	return e.establishSession(ctx, user)
}

// Logout revokes the session bound to the presented refresh token. It is
// deliberately quiet: an invalid, expired, or already-revoked token still
// results in a logged-out client, so nothing is reported back. Store
// failures are logged; the orphaned record expires with its TTL.
func (e *Engine) Logout(ctx context.Context, refreshToken string) {
	if e == nil || refreshToken == "" {
		return
	}
	e.metricInc(MetricLogout)

	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return
	}

	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	revoked, err := e.sessions.Revoke(opCtx, claims.ID)
	if err != nil {
		e.logger.Warn("session revoke failed during logout", "error", err)
		return
	}
	if revoked {
		e.metricInc(MetricSessionRevoked)
	}
}
