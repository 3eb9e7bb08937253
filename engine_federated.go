package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FederatedLogin exchanges a provider authorization code for a verified
// identity and establishes a session. A first-time identity creates a
// federated user; a returning identity logs into the existing account.
// An email already bound to a different provider, or to a local password
// account, is never silently re-bound.
func (e *Engine) FederatedLogin(ctx context.Context, provider Provider, code string) (*AuthResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ErrValidation)
	}

	verifier, ok := e.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: no verifier registered for provider %q", ErrValidation, provider)
	}

	identity, err := verifier.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, ErrEmailUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("%w: provider returned no subject", ErrTokenInvalid)
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", ErrEmailUnavailable)
	}
	if !identity.EmailVerified {
		// An unverified upstream email could hijack a local account that
		// shares the address.
		return nil, fmt.Errorf("%w: provider email not verified", ErrEmailUnavailable)
	}

	user, err := e.resolveFederatedUser(ctx, provider, identity)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricFederatedLogin)

	return e.establishSession(ctx, user)
}

func (e *Engine) resolveFederatedUser(ctx context.Context, provider Provider, identity Identity) (*User, error) {
	user, err := e.findUser(ctx, identity.Email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return e.createFederatedUser(ctx, provider, identity)
	case err != nil:
		return nil, err
	}

	// Existing account. Provider bindings are immutable: the same email
	// arriving through a different provider, or through any provider when
	// the account is password-based, is a conflict.
	if user.Provider != provider {
		e.metricInc(MetricProviderConflict)
		if user.Provider == ProviderLocal {
			return nil, fmt.Errorf("%w: account uses password sign-in", ErrProviderConflict)
		}
		return nil, fmt.Errorf("%w: account is bound to %s", ErrProviderConflict, user.Provider)
	}
	if user.ProviderSubject != identity.Subject {
		// Same provider, different upstream subject. The address changed
		// hands upstream; refusing protects the original owner.
		e.metricInc(MetricProviderConflict)
		return nil, fmt.Errorf("%w: provider subject mismatch", ErrProviderConflict)
	}
	return user, nil
}

func (e *Engine) createFederatedUser(ctx context.Context, provider Provider, identity Identity) (*User, error) {
	user := &User{
		Email:           identity.Email,
		Name:            identity.Name,
		Role:            RoleStudent,
		Provider:        provider,
		ProviderSubject: identity.Subject,
		CreatedAt:       time.Now().UTC(),
	}

	opCtx, cancel := e.storeCtx(ctx)
	defer cancel()
	id, err := e.users.Insert(opCtx, user)
	if err != nil {
		return nil, e.storeErr(err)
	}
	user.ID = id
	e.metricInc(MetricUserCreated)
	return user, nil
}
