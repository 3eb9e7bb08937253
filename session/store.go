// Package session implements the server-side session registry that makes
// refresh tokens revocable. Each refresh token in circulation maps to
// exactly one live record keyed by its jti; rotating a session deletes the
// old record and creates a new jti, so a rotated-away jti can never
// validate again even inside its original TTL window.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned by Rotate when no record exists for
	// the target jti. On the refresh path this is the replay/theft
	// detection signal, not an infrastructure failure.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRecordCorrupt is returned when a stored session blob fails to
	// decode. The record is unusable and treated as dead.
	ErrRecordCorrupt = errors.New("session record corrupt")
	// ErrRedisUnavailable wraps infrastructure failures from the
	// ephemeral store. Callers must never conflate it with a missing or
	// invalid session.
	ErrRedisUnavailable = errors.New("session redis unavailable")
)

// takeSessionScript atomically reads and deletes a session record so that
// two concurrent rotations of the same jti cannot both succeed. Exactly
// one caller receives the record; the other observes absence.
const takeSessionScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return false
end
redis.call("DEL", KEYS[1])
return data
`

var takeSessionLua = redis.NewScript(takeSessionScript)

// Record is the session metadata stored per jti. Fields are all required;
// a blob missing any of them is rejected at the decode boundary.
type Record struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is a Redis-backed session registry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a Store. prefix sets the Redis key namespace; ttl is
// the record lifetime and must equal the refresh-token lifetime so the
// record never dies before the token it gates.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "refresh"
	}
	return &Store{redis: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":" + jti
}

// TTL reports the configured record lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create generates a fresh session id, stores a record for it, and
// returns the new jti.
func (s *Store) Create(ctx context.Context, email, role string) (string, error) {
	jti := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		Email:     email,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.save(ctx, jti, record); err != nil {
		return "", err
	}
	return jti, nil
}

func (s *Store) save(ctx context.Context, jti string, record Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if err := s.redis.Set(ctx, s.key(jti), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the live record for jti, ErrSessionNotFound when absent or
// expired, or ErrRedisUnavailable on infrastructure failure.
func (s *Store) Get(ctx context.Context, jti string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeRecord(data)
}

// Validate reports whether a live record exists for jti whose stored
// email matches. Absence, mismatch, and corruption all yield false; only
// infrastructure failures surface as errors.
func (s *Store) Validate(ctx context.Context, jti, email string) (bool, error) {
	record, err := s.Get(ctx, jti)
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrRecordCorrupt):
		return false, nil
	case err != nil:
		return false, err
	}
	return record.Email == email, nil
}

// Rotate atomically takes the record for oldJti and re-creates it under a
// fresh jti. When the old record is already gone the rotation fails with
// ErrSessionNotFound; on the refresh path that failure is the intended
// detection signal for refresh-token replay.
func (s *Store) Rotate(ctx context.Context, oldJti string) (string, *Record, error) {
	result, err := takeSessionLua.Run(ctx, s.redis, []string{s.key(oldJti)}).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrSessionNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	data, ok := result.(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: unexpected lua result type", ErrRedisUnavailable)
	}
	old, err := decodeRecord([]byte(data))
	if err != nil {
		return "", nil, err
	}

	jti, err := s.Create(ctx, old.Email, old.Role)
	if err != nil {
		return "", nil, err
	}
	record, err := s.Get(ctx, jti)
	if err != nil {
		return "", nil, err
	}
	return jti, record, nil
}

// Revoke deletes the record for jti and reports whether one existed.
// Revoking an absent jti is not an error; logout must be idempotent.
func (s *Store) Revoke(ctx context.Context, jti string) (bool, error) {
	deleted, err := s.redis.Del(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return deleted > 0, nil
}

func decodeRecord(data []byte) (*Record, error) {
	record := &Record{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if record.Email == "" || record.Role == "" || record.CreatedAt.IsZero() || record.ExpiresAt.IsZero() {
		return nil, ErrRecordCorrupt
	}
	return record, nil
}
