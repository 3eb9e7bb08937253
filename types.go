package authkit

import (
	"context"
	"time"

	internalmetrics "github.com/readshelf/authkit/internal/metrics"
)

// Role is the authorization role carried in access-token claims.
type Role string

const (
	// RoleStudent is the default role for every self-registered and
	// federated account.
	RoleStudent Role = "student"
	// RoleAdmin is assigned out of band; the engine never creates admins.
	RoleAdmin Role = "admin"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	// ProviderLocal marks password accounts.
	ProviderLocal Provider = "local"
	// ProviderGoogle marks accounts created through Google sign-in.
	ProviderGoogle Provider = "google"
	// ProviderGitHub marks accounts created through GitHub sign-in.
	ProviderGitHub Provider = "github"
)

// User is the permanent identity record. Exactly one of {password hash
// present, provider != local} holds: a federated user has no local
// password and a local user always has a hash. Provider is immutable once
// set; an email bound to one provider never silently switches.
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	Role            Role
	Provider        Provider
	ProviderSubject string
	CreatedAt       time.Time
}

// UserStore is the permanent user store contract. Uniqueness on email is
// enforced by the store. FindByEmail and FindByID return ErrUserNotFound
// when no record exists; any other error is treated as an infrastructure
// failure and surfaced as ErrStoreUnavailable.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Insert(ctx context.Context, user *User) (string, error)
}

// MailSender delivers an OTP code to an address. It is invoked
// asynchronously; failures are logged by the engine and never propagate
// to the caller of Signup.
type MailSender interface {
	Send(ctx context.Context, to, code string) error
}

// Identity is the verified result of a federated token/code exchange.
// Verifiers must validate the upstream assertion before returning one; a
// forged or unvalidated identity must never reach the engine.
type Identity struct {
	Provider      Provider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityVerifier exchanges a provider authorization code for a verified
// Identity.
type IdentityVerifier interface {
	Exchange(ctx context.Context, code string) (Identity, error)
}

// TokenPair carries a freshly minted access and refresh token.
type TokenPair struct {
	Access  string
	Refresh string
}

// AuthResult is returned by every flow that establishes a session.
type AuthResult struct {
	User   *User
	Tokens TokenPair
	JTI    string
}

// SignupResult is returned by Signup. The user record does not exist yet;
// only the OTP challenge and staged credential do.
type SignupResult struct {
	// MaskedEmail is a display hint for where the code was sent,
	// e.g. "jonat***@example.com".
	MaskedEmail string
	// ContextToken lets the client resume verification without
	// re-transmitting the email address. Lookup-only, short TTL.
	ContextToken string
}

// Claims is the authenticated caller identity extracted from a valid
// access token.
type Claims struct {
	Email string
	Role  Role
}

// MetricID identifies one of the engine's event counters.
type MetricID = internalmetrics.MetricID

// Metrics holds the engine's atomic event counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricSignupRequested       = internalmetrics.MetricSignupRequested
	MetricSignupRejected        = internalmetrics.MetricSignupRejected
	MetricOTPVerified           = internalmetrics.MetricOTPVerified
	MetricOTPRejected           = internalmetrics.MetricOTPRejected
	MetricUserCreated           = internalmetrics.MetricUserCreated
	MetricLoginSuccess          = internalmetrics.MetricLoginSuccess
	MetricLoginFailure          = internalmetrics.MetricLoginFailure
	MetricRefreshSuccess        = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure        = internalmetrics.MetricRefreshFailure
	MetricRefreshReplayDetected = internalmetrics.MetricRefreshReplayDetected
	MetricLogout                = internalmetrics.MetricLogout
	MetricSessionCreated        = internalmetrics.MetricSessionCreated
	MetricSessionRevoked        = internalmetrics.MetricSessionRevoked
	MetricFederatedLogin        = internalmetrics.MetricFederatedLogin
	MetricProviderConflict      = internalmetrics.MetricProviderConflict
	MetricStoreUnavailable      = internalmetrics.MetricStoreUnavailable
	MetricMailEnqueued          = internalmetrics.MetricMailEnqueued
	MetricMailFailed            = internalmetrics.MetricMailFailed
)
