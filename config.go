package authkit

import (
	"bytes"
	"errors"
	"net/http"
	"time"
)

// Config is the explicit configuration tree injected at construction.
// There are no hidden singletons and the library never reads the
// environment; every knob lives here.
//
// Config instances are intended to be configured during initialization
// and then treated as immutable.
type Config struct {
	JWT      JWTConfig
	OTP      OTPConfig
	Session  SessionConfig
	Password PasswordConfig
	Cookie   CookieConfig
	Mail     MailConfig
	Store    StoreConfig
	Metrics  MetricsConfig
}

// JWTConfig configures the token issuer. AccessKey and RefreshKey must
// differ: compromise of one key must not forge the other token class.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	AccessKey  []byte
	RefreshKey []byte
	Issuer     string
	Leeway     time.Duration
}

// OTPConfig configures the signup challenge store.
type OTPConfig struct {
	TTL             time.Duration
	ContextTokenTTL time.Duration
	Digits          int
	RedisPrefix     string
}

// SessionConfig configures the session registry. The record TTL is taken
// from JWTConfig.RefreshTTL so record and token lifetimes cannot drift.
type SessionConfig struct {
	RedisPrefix string
}

// PasswordConfig configures the credential hasher.
type PasswordConfig struct {
	BcryptCost int
}

// CookieConfig controls the cookies emitted by the cookie helpers.
// RelaxFederated drops Secure and strict SameSite only on the federated
// redirect flow, for cross-origin development setups; production keeps
// it false.
type CookieConfig struct {
	AccessName     string
	RefreshName    string
	Path           string
	Domain         string
	Secure         bool
	SameSite       http.SameSite
	RelaxFederated bool
}

// MailConfig configures the async OTP delivery dispatcher.
type MailConfig struct {
	BufferSize  int
	DropIfFull  bool
	SendTimeout time.Duration
}

// StoreConfig bounds every external-store call.
type StoreConfig struct {
	OpTimeout time.Duration
}

// MetricsConfig enables the in-process event counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the Builder starts from.
// Callers override what they need and pass the result to WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			TTL:             5 * time.Minute,
			ContextTokenTTL: 3 * time.Minute,
			Digits:          6,
			RedisPrefix:     "av",
		},
		Session: SessionConfig{
			RedisPrefix: "refresh",
		},
		Password: PasswordConfig{},
		Cookie: CookieConfig{
			AccessName:  "access_token",
			RefreshName: "refresh_token",
			Path:        "/",
			Secure:      true,
			SameSite:    http.SameSiteStrictMode,
		},
		Mail: MailConfig{
			BufferSize:  64,
			SendTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			OpTimeout: 5 * time.Second,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT TTLs must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if len(c.JWT.AccessKey) == 0 || len(c.JWT.RefreshKey) == 0 {
		return errors.New("JWT access and refresh keys required")
	}
	if bytes.Equal(c.JWT.AccessKey, c.JWT.RefreshKey) {
		return errors.New("JWT access and refresh keys must differ")
	}
	if c.OTP.TTL <= 0 || c.OTP.ContextTokenTTL <= 0 {
		return errors.New("OTP TTLs must be positive")
	}
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP digits must be between 6 and 10")
	}
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		return errors.New("cookie names required")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("cookie names must differ")
	}
	if c.Store.OpTimeout <= 0 {
		return errors.New("store operation timeout must be positive")
	}
	if c.Mail.SendTimeout <= 0 {
		return errors.New("mail send timeout must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
