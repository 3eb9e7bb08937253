package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	signupAndVerify(t, f, "a@b.com", "password123")

	res, err := f.engine.Login(ctx, "a@b.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.User.Email != "a@b.com" {
		t.Fatalf("unexpected user %+v", res.User)
	}

	claims, err := f.engine.Authenticate(ctx, res.Tokens.Access)
	if err != nil {
		t.Fatalf("Authenticate on fresh access token failed: %v", err)
	}
	if claims.Email != "a@b.com" || claims.Role != RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginWrongPasswordAndUnknownUserIndistinguishable(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	signupAndVerify(t, f, "a@b.com", "password123")

	_, errWrong := f.engine.Login(ctx, "a@b.com", "not-the-password")
	_, errUnknown := f.engine.Login(ctx, "nobody@b.com", "password123")

	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", errWrong)
	}
	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("error texts differ: %q vs %q", errWrong, errUnknown)
	}
}

func TestLoginFederatedAccountRejected(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	f.users.put(&User{
		Email:           "fed@b.com",
		Role:            RoleStudent,
		Provider:        ProviderGoogle,
		ProviderSubject: "g-123",
		CreatedAt:       time.Now().UTC(),
	})

	if _, err := f.engine.Login(ctx, "fed@b.com", "whatever-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for federated account, got %v", err)
	}
}

func TestLoginStoreUnavailable(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	f.users.failAll = true

	if _, err := f.engine.Login(ctx, "a@b.com", "password123"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	res := signupAndVerify(t, f, "a@b.com", "password123")

	f.engine.Logout(ctx, res.Tokens.Refresh)

	if _, err := f.engine.Refresh(ctx, res.Tokens.Refresh); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after logout, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	res := signupAndVerify(t, f, "a@b.com", "password123")

	// Repeated, garbage, and empty logouts are all quiet no-ops.
	f.engine.Logout(ctx, res.Tokens.Refresh)
	f.engine.Logout(ctx, res.Tokens.Refresh)
	f.engine.Logout(ctx, "garbage")
	f.engine.Logout(ctx, "")

	if got := f.engine.MetricsSnapshot().Counters[MetricSessionRevoked]; got != 1 {
		t.Fatalf("expected exactly 1 revocation, got %d", got)
	}
}

func TestLogoutDoesNotAffectAccessToken(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	res := signupAndVerify(t, f, "a@b.com", "password123")
	f.engine.Logout(ctx, res.Tokens.Refresh)

	// Access tokens are stateless; they remain valid until expiry.
	if _, err := f.engine.Authenticate(ctx, res.Tokens.Access); err != nil {
		t.Fatalf("access token should survive logout, got %v", err)
	}
}
