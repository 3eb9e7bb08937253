package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/readshelf/authkit/session"
)

// Refresh exchanges a valid refresh token for a new access/refresh pair.
// The old session record is consumed and replaced atomically, so a given
// refresh token can be redeemed at most once. A structurally valid token
// whose record has already been taken is the replay signal: it means two
// parties held the same token and the other one got there first.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrMissingToken
	}

	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	// Pre-check before the destructive rotation: a token whose record
	// belongs to a different email never burns a live session.
	ok, err := e.validateSession(ctx, claims.ID, claims.Email)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if !ok {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrSessionRevoked
	}

	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	jti, record, err := e.sessions.Rotate(opCtx, claims.ID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, session.ErrSessionNotFound) {
			// The record vanished between validation and rotation:
			// another holder of the same token redeemed it first.
			e.metricInc(MetricRefreshReplayDetected)
			return nil, ErrSessionMissing
		}
		return nil, e.storeErr(err)
	}
	e.metricInc(MetricSessionCreated)

	access, err := e.tokens.IssueAccess(record.Email, record.Role)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(record.Email, jti)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)

	user, err := e.findUser(ctx, record.Email)
	if err != nil {
		// Token state is already rotated; surface the tokens with a
		// claims-only user rather than fail the exchange.
		user = &User{Email: record.Email, Role: Role(record.Role)}
	}

	return &AuthResult{
		User:   user,
		Tokens: TokenPair{Access: access, Refresh: refresh},
		JTI:    jti,
	}, nil
}
