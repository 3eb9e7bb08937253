package authkit

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	internalmetrics "github.com/readshelf/authkit/internal/metrics"
	"github.com/readshelf/authkit/jwt"
	"github.com/readshelf/authkit/otp"
	"github.com/readshelf/authkit/password"
	"github.com/readshelf/authkit/session"
)

// Builder assembles an Engine from its collaborators. A Builder is
// single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	mail      MailSender
	verifiers map[Provider]IdentityVerifier
	logger    *slog.Logger

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config:    defaultConfig(),
		verifiers: make(map[Provider]IdentityVerifier),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the ephemeral key-value store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the permanent user store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithMailSender sets the OTP delivery collaborator. Without one, signup
// still succeeds but codes are only observable through the store.
func (b *Builder) WithMailSender(sender MailSender) *Builder {
	b.mail = sender
	return b
}

// WithVerifier registers a federated identity verifier for provider.
func (b *Builder) WithVerifier(provider Provider, verifier IdentityVerifier) *Builder {
	b.verifiers[provider] = verifier
	return b
}

// WithLogger sets the structured logger used for warnings and
// fire-and-forget failure reporting.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process event counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires every component, and returns
// the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := password.NewHasher(password.Config{Cost: cfg.Password.BcryptCost})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		AccessKey:  cfg.JWT.AccessKey,
		RefreshKey: cfg.JWT.RefreshKey,
		Issuer:     cfg.JWT.Issuer,
		Leeway:     cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		users:     b.users,
		hasher:    hasher,
		tokens:    tokens,
		verifiers: b.verifiers,
		// Session record TTL mirrors the refresh lifetime so a live
		// token can never outlast its record.
		sessions: session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.JWT.RefreshTTL),
		otp: otp.NewStore(b.redis, otp.Config{
			CodeTTL:         cfg.OTP.TTL,
			ContextTokenTTL: cfg.OTP.ContextTokenTTL,
			Digits:          cfg.OTP.Digits,
			RedisPrefix:     cfg.OTP.RedisPrefix,
		}),
		metrics: internalmetrics.New(cfg.Metrics.Enabled),
	}
	engine.mail = newMailDispatcher(cfg.Mail, b.mail, logger, engine.metrics)

	b.built = true
	return engine, nil
}
