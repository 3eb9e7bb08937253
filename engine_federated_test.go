package authkit

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func googleIdentity() Identity {
	return Identity{
		Provider:      ProviderGoogle,
		Subject:       "g-123",
		Email:         "fed@b.com",
		EmailVerified: true,
		Name:          "Fed User",
	}
}

func TestFederatedLoginCreatesUser(t *testing.T) {
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: googleIdentity()})
	})
	ctx := context.Background()

	res, err := f.engine.FederatedLogin(ctx, ProviderGoogle, "auth-code")
	if err != nil {
		t.Fatalf("FederatedLogin failed: %v", err)
	}
	if res.User.Provider != ProviderGoogle || res.User.ProviderSubject != "g-123" {
		t.Fatalf("unexpected user %+v", res.User)
	}
	if res.User.Role != RoleStudent {
		t.Fatalf("expected student role, got %s", res.User.Role)
	}
	if res.User.PasswordHash != "" {
		t.Fatal("federated user must not carry a password hash")
	}
	if res.Tokens.Access == "" || res.Tokens.Refresh == "" {
		t.Fatal("expected a full session")
	}
}

func TestFederatedLoginReturningUser(t *testing.T) {
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: googleIdentity()})
	})
	ctx := context.Background()

	first, err := f.engine.FederatedLogin(ctx, ProviderGoogle, "auth-code")
	if err != nil {
		t.Fatalf("first FederatedLogin failed: %v", err)
	}
	second, err := f.engine.FederatedLogin(ctx, ProviderGoogle, "auth-code")
	if err != nil {
		t.Fatalf("second FederatedLogin failed: %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Fatal("returning identity must map to the same account")
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricUserCreated]; got != 1 {
		t.Fatalf("expected 1 user creation, got %d", got)
	}
}

func TestFederatedLoginConflictsWithLocalAccount(t *testing.T) {
	identity := googleIdentity()
	identity.Email = "a@b.com"
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: identity})
	})
	ctx := context.Background()

	signupAndVerify(t, f, "a@b.com", "password123")

	if _, err := f.engine.FederatedLogin(ctx, ProviderGoogle, "auth-code"); !errors.Is(err, ErrProviderConflict) {
		t.Fatalf("expected ErrProviderConflict against local account, got %v", err)
	}

	// The local account still works.
	if _, err := f.engine.Login(ctx, "a@b.com", "password123"); err != nil {
		t.Fatalf("local login broken after conflict: %v", err)
	}
}

func TestFederatedLoginCrossProviderConflict(t *testing.T) {
	githubIdentity := Identity{
		Provider:      ProviderGitHub,
		Subject:       "gh-9",
		Email:         "fed@b.com",
		EmailVerified: true,
	}
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: googleIdentity()})
		b.WithVerifier(ProviderGitHub, &stubVerifier{identity: githubIdentity})
	})
	ctx := context.Background()

	if _, err := f.engine.FederatedLogin(ctx, ProviderGoogle, "auth-code"); err != nil {
		t.Fatalf("google login failed: %v", err)
	}
	if _, err := f.engine.FederatedLogin(ctx, ProviderGitHub, "auth-code"); !errors.Is(err, ErrProviderConflict) {
		t.Fatalf("expected cross-provider conflict, got %v", err)
	}
}

func TestFederatedLoginSubjectMismatch(t *testing.T) {
	hijack := googleIdentity()
	hijack.Subject = "g-other"
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: googleIdentity()})
	})
	ctx := context.Background()

	if _, err := f.engine.FederatedLogin(ctx, ProviderGoogle, "auth-code"); err != nil {
		t.Fatalf("initial login failed: %v", err)
	}

	f2 := f.engine
	f2.verifiers[ProviderGoogle] = &stubVerifier{identity: hijack}

	if _, err := f2.FederatedLogin(ctx, ProviderGoogle, "auth-code"); !errors.Is(err, ErrProviderConflict) {
		t.Fatalf("expected subject mismatch conflict, got %v", err)
	}
}

func TestFederatedLoginMissingEmailRejected(t *testing.T) {
	identity := googleIdentity()
	identity.Email = ""
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: identity})
	})

	if _, err := f.engine.FederatedLogin(context.Background(), ProviderGoogle, "auth-code"); !errors.Is(err, ErrEmailUnavailable) {
		t.Fatalf("expected ErrEmailUnavailable for missing email, got %v", err)
	}
}

func TestFederatedLoginVerifierEmailUnavailablePassthrough(t *testing.T) {
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGitHub, &stubVerifier{
			err: fmt.Errorf("%w: no primary email on github profile", ErrEmailUnavailable),
		})
	})

	_, err := f.engine.FederatedLogin(context.Background(), ProviderGitHub, "auth-code")
	if !errors.Is(err, ErrEmailUnavailable) {
		t.Fatalf("expected ErrEmailUnavailable from verifier to pass through, got %v", err)
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Fatal("missing email must not be reported as an invalid token")
	}
}

func TestFederatedLoginUnverifiedEmailRejected(t *testing.T) {
	identity := googleIdentity()
	identity.EmailVerified = false
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{identity: identity})
	})

	if _, err := f.engine.FederatedLogin(context.Background(), ProviderGoogle, "auth-code"); !errors.Is(err, ErrEmailUnavailable) {
		t.Fatalf("expected ErrEmailUnavailable, got %v", err)
	}
}

func TestFederatedLoginUnknownProvider(t *testing.T) {
	f := newTestEngine(t, nil)

	if _, err := f.engine.FederatedLogin(context.Background(), ProviderGoogle, "auth-code"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without a verifier, got %v", err)
	}
}

func TestFederatedLoginExchangeFailure(t *testing.T) {
	f := newTestEngine(t, func(b *Builder) {
		b.WithVerifier(ProviderGoogle, &stubVerifier{err: errors.New("upstream said no")})
	})

	if _, err := f.engine.FederatedLogin(context.Background(), ProviderGoogle, "bad-code"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on exchange failure, got %v", err)
	}
}
