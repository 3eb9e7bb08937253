package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Signup starts OTP-gated account creation. No user record is written:
// the password hash is staged in the ephemeral store next to the OTP
// challenge, and both expire together if verification never happens.
// Delivery of the code is fire-and-forget; a mail failure is logged and
// does not fail the call.
func (e *Engine) Signup(ctx context.Context, email, plainPassword string) (*SignupResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	e.metricInc(MetricSignupRequested)

	email = strings.TrimSpace(email)
	if email == "" || plainPassword == "" {
		e.metricInc(MetricSignupRejected)
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		e.metricInc(MetricSignupRejected)
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	_, err := e.findUser(ctx, email)
	switch {
	case err == nil:
		e.metricInc(MetricSignupRejected)
		return nil, ErrAccountExists
	case errors.Is(err, ErrUserNotFound):
		// expected; continue
	default:
		return nil, err
	}

	hash, err := e.hasher.Hash(plainPassword)
	if err != nil {
		e.metricInc(MetricSignupRejected)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Writes are not retried: a duplicate issue would send two mails and
	// orphan the first code.
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	code, err := e.otp.Issue(opCtx, email)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if err := e.otp.StagePassword(opCtx, email, hash); err != nil {
		return nil, e.storeErr(err)
	}
	contextToken, err := e.otp.IssueContextToken(opCtx, email)
	if err != nil {
		return nil, e.storeErr(err)
	}

	e.mail.Enqueue(ctx, email, code)

	return &SignupResult{
		MaskedEmail:  maskEmail(email),
		ContextToken: contextToken,
	}, nil
}

// VerifyOTP completes signup. On success the user is materialized in the
// permanent store, the ephemeral entries are cleaned up best-effort, and
// a fresh session with an access/refresh pair is returned.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and otp are required", ErrValidation)
	}

	ok, err := e.verifyOTPRead(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricOTPRejected)
		return nil, ErrInvalidOTP
	}

	hash, staged, err := e.stagedPasswordRead(ctx, email)
	if err != nil {
		return nil, err
	}
	if !staged {
		// Legitimate when the flow is replayed after expiry or the OTP
		// and credential TTLs diverge.
		return nil, ErrCredentialExpired
	}
	e.metricInc(MetricOTPVerified)

	user := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleStudent,
		Provider:     ProviderLocal,
		CreatedAt:    time.Now().UTC(),
	}

	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	id, err := e.users.Insert(opCtx, user)
	if err != nil {
		return nil, e.storeErr(err)
	}
	user.ID = id
	e.metricInc(MetricUserCreated)

	// Cleanup is an optimization; TTL expiry is the correctness
	// mechanism. The context token is lookup-only and expires on its own.
	if err := e.otp.Delete(opCtx, email); err != nil {
		e.logger.Warn("otp cleanup failed", "error", err)
	}

	return e.establishSession(ctx, user)
}

// ResolveSignupContext maps an OTP context token back to the email that
// started the flow, so a client can resume verification without carrying
// the address in the URL. The token is not consumed.
func (e *Engine) ResolveSignupContext(ctx context.Context, token string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if token == "" {
		return "", ErrMissingToken
	}

	email, ok, err := e.resolveContextRead(ctx, token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: unknown or expired context token", ErrValidation)
	}
	return email, nil
}

func (e *Engine) verifyOTPRead(ctx context.Context, email, code string) (bool, error) {
	ok, err := e.verifyOTPOnce(ctx, email, code)
	if err != nil {
		ok, err = e.verifyOTPOnce(ctx, email, code)
	}
	if err != nil {
		return false, e.storeErr(err)
	}
	return ok, nil
}

func (e *Engine) verifyOTPOnce(ctx context.Context, email, code string) (bool, error) {
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.otp.Verify(opCtx, email, code)
}

func (e *Engine) stagedPasswordRead(ctx context.Context, email string) (string, bool, error) {
	hash, ok, err := e.stagedPasswordOnce(ctx, email)
	if err != nil {
		hash, ok, err = e.stagedPasswordOnce(ctx, email)
	}
	if err != nil {
		return "", false, e.storeErr(err)
	}
	return hash, ok, nil
}

func (e *Engine) stagedPasswordOnce(ctx context.Context, email string) (string, bool, error) {
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.otp.StagedPassword(opCtx, email)
}

func (e *Engine) resolveContextRead(ctx context.Context, token string) (string, bool, error) {
	email, ok, err := e.resolveContextOnce(ctx, token)
	if err != nil {
		email, ok, err = e.resolveContextOnce(ctx, token)
	}
	if err != nil {
		return "", false, e.storeErr(err)
	}
	return email, ok, nil
}

func (e *Engine) resolveContextOnce(ctx context.Context, token string) (string, bool, error) {
	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.otp.ResolveContextToken(opCtx, token)
}
