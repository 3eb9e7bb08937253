package authkit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// memUserStore is an in-memory UserStore for tests.
type memUserStore struct {
	mu      sync.Mutex
	byEmail map[string]*User
	byID    map[string]*User
	failAll bool
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byEmail: map[string]*User{},
		byID:    map[string]*User{},
	}
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, context.DeadlineExceeded
	}
	user, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, context.DeadlineExceeded
	}
	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) Insert(_ context.Context, user *User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", context.DeadlineExceeded
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return "", ErrAccountExists
	}
	clone := *user
	clone.ID = uuid.NewString()
	s.byEmail[clone.Email] = &clone
	s.byID[clone.ID] = &clone
	return clone.ID, nil
}

func (s *memUserStore) get(email string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail[email]
}

func (s *memUserStore) put(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
}

// captureSender records sent mail synchronously.
type captureSender struct {
	mu    sync.Mutex
	sent  []mailJob
	fail  bool
	seenC chan struct{}
}

func newCaptureSender() *captureSender {
	return &captureSender{seenC: make(chan struct{}, 64)}
}

func (s *captureSender) Send(_ context.Context, to, code string) error {
	s.mu.Lock()
	s.sent = append(s.sent, mailJob{to: to, code: code})
	fail := s.fail
	s.mu.Unlock()
	s.seenC <- struct{}{}
	if fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (s *captureSender) last(t *testing.T) mailJob {
	t.Helper()
	<-s.seenC
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("no mail captured")
	}
	return s.sent[len(s.sent)-1]
}

// stubVerifier returns a fixed identity for any code.
type stubVerifier struct {
	identity Identity
	err      error
}

func (v *stubVerifier) Exchange(context.Context, string) (Identity, error) {
	if v.err != nil {
		return Identity{}, v.err
	}
	return v.identity, nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessKey = []byte("test-access-key")
	cfg.JWT.RefreshKey = []byte("test-refresh-key")
	cfg.Metrics.Enabled = true
	return cfg
}

type engineFixture struct {
	engine *Engine
	mr     *miniredis.Miniredis
	users  *memUserStore
	sender *captureSender
}

func newTestEngine(t *testing.T, mutate func(*Builder)) *engineFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	users := newMemUserStore()
	sender := newCaptureSender()

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailSender(sender).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if mutate != nil {
		mutate(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, mr: mr, users: users, sender: sender}
}

// signupAndVerify drives the full signup flow and returns the session.
func signupAndVerify(t *testing.T, f *engineFixture, email, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()

	if _, err := f.engine.Signup(ctx, email, password); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	code := f.sender.last(t).code

	res, err := f.engine.VerifyOTP(ctx, email, code)
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	return res
}
