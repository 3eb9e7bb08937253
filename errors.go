package authkit

import "errors"

var (
	// ErrValidation reports missing or malformed caller input.
	ErrValidation = errors.New("missing or malformed input")
	// ErrAccountExists is returned by Signup when a verified user already
	// owns the email.
	ErrAccountExists = errors.New("account already exists")
	// ErrUserNotFound is returned when no user record exists for an email.
	// UserStore implementations return it from FindByEmail/FindByID; any
	// other error from the store is treated as infrastructure failure.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on password mismatch. The message
	// never reveals which of email or password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOTP is returned when the presented code does not match the
	// last-issued, non-expired code for the email.
	ErrInvalidOTP = errors.New("invalid or expired otp")
	// ErrCredentialExpired is returned by VerifyOTP when the staged
	// password is gone even though the OTP matched.
	ErrCredentialExpired = errors.New("staged credential expired or missing")
	// ErrProviderConflict is returned when an email is already bound to a
	// different sign-in method.
	ErrProviderConflict = errors.New("email already linked to another sign-in method")
	// ErrEmailUnavailable is returned when a federated provider yields no
	// verified primary email.
	ErrEmailUnavailable = errors.New("verified email unavailable from provider")
	// ErrMissingToken is returned when a flow requires a token the caller
	// did not supply.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenInvalid covers bad signature, expiry, wrong type, and
	// missing jti on presented tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionRevoked is returned on refresh when the token verifies
	// cryptographically but no live session record backs its jti. This is
	// the server-side revocation check stateless JWTs cannot provide.
	ErrSessionRevoked = errors.New("session revoked or invalid")
	// ErrSessionMissing is returned when a rotation target disappeared
	// between validation and rotation; on the refresh path this signals
	// refresh-token replay.
	ErrSessionMissing = errors.New("session not found")
	// ErrStoreUnavailable reports an infrastructure failure from one of
	// the backing stores. Retryable; never conflated with not-found or
	// invalid.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when the engine was not built through
	// the Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
