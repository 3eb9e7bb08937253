package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewStore(client, "refresh", ttl)
}

func TestCreateAndValidate(t *testing.T) {
	mr, store := newTestStore(t, 30*24*time.Hour)
	ctx := context.Background()

	jti, err := store.Create(ctx, "a@b.com", "student")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if jti == "" {
		t.Fatal("expected non-empty jti")
	}

	ok, err := store.Validate(ctx, jti, "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !ok {
		t.Fatal("expected session to validate")
	}

	// Stored email must match.
	ok, err = store.Validate(ctx, jti, "other@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched email to fail validation")
	}

	if mr.TTL("refresh:"+jti) != 30*24*time.Hour {
		t.Fatalf("unexpected record TTL %v", mr.TTL("refresh:"+jti))
	}
}

func TestValidateAbsent(t *testing.T) {
	_, store := newTestStore(t, time.Hour)

	ok, err := store.Validate(context.Background(), "no-such-jti", "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatal("expected absent session to fail validation")
	}
}

func TestRotateInvariant(t *testing.T) {
	_, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	oldJti, err := store.Create(ctx, "a@b.com", "admin")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newJti, record, err := store.Rotate(ctx, oldJti)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if newJti == oldJti {
		t.Fatal("rotation must produce a fresh jti")
	}
	if record.Email != "a@b.com" || record.Role != "admin" {
		t.Fatalf("rotated record lost metadata: %+v", record)
	}

	ok, err := store.Validate(ctx, oldJti, "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatal("rotated-away jti must never validate again")
	}

	ok, err = store.Validate(ctx, newJti, "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !ok {
		t.Fatal("new jti must validate")
	}
}

func TestRotateAbsentSession(t *testing.T) {
	_, store := newTestStore(t, time.Hour)

	if _, _, err := store.Rotate(context.Background(), "gone"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRotateReplayLosesRace(t *testing.T) {
	_, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	jti, err := store.Create(ctx, "a@b.com", "student")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, _, err := store.Rotate(ctx, jti); err != nil {
		t.Fatalf("first Rotate failed: %v", err)
	}
	// Second rotation of the same jti models a replayed refresh token.
	if _, _, err := store.Rotate(ctx, jti); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on replay, got %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	_, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	jti, err := store.Create(ctx, "a@b.com", "student")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	revoked, err := store.Revoke(ctx, jti)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected first Revoke to remove the record")
	}
	revoked, err = store.Revoke(ctx, jti)
	if err != nil {
		t.Fatalf("second Revoke must not error: %v", err)
	}
	if revoked {
		t.Fatal("second Revoke must report no record")
	}

	ok, err := store.Validate(ctx, jti, "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatal("revoked session must not validate")
	}
}

func TestExpiryByTTL(t *testing.T) {
	mr, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	jti, err := store.Create(ctx, "a@b.com", "student")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	ok, err := store.Validate(ctx, jti, "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatal("expired session must not validate")
	}
	if _, _, err := store.Rotate(ctx, jti); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after expiry, got %v", err)
	}
}

func TestCorruptRecordTreatedAsDead(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	mr.Set("refresh:bad", "{not json")

	ok, err := store.Validate(ctx, "bad", "a@b.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatal("corrupt record must not validate")
	}
	if _, _, err := store.Rotate(ctx, "bad"); !errors.Is(err, ErrRecordCorrupt) {
		t.Fatalf("expected ErrRecordCorrupt, got %v", err)
	}
}

func TestStoreUnavailableSurfaced(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	jti, err := store.Create(ctx, "a@b.com", "student")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mr.Close()

	// Infrastructure failure must never read as "session invalid".
	if _, err := store.Get(ctx, jti); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Validate(ctx, jti, "a@b.com"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, _, err := store.Rotate(ctx, jti); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
