// Package password provides one-way credential hashing for authkit.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinCost is the lowest bcrypt cost the hasher accepts. Costs below
	// this are too fast to resist offline guessing.
	MinCost = bcrypt.MinCost
	// DefaultCost is used when Config.Cost is zero.
	DefaultCost = bcrypt.DefaultCost
)

// ErrPasswordTooLong is returned by Hash when the password exceeds the
// 72-byte bcrypt input limit.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Config holds bcrypt parameters.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Cost int
}

// Hasher wraps bcrypt hashing and verification. Equal inputs never produce
// equal outputs; verification cost tracks the cost embedded in the stored
// hash, not the configured one.
type Hasher struct {
	cost int
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("invalid bcrypt cost")
	}
	return &Hasher{cost: cost}, nil
}

// Hash derives a salted bcrypt hash from password. The plaintext is never
// retained or logged.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches encodedHash. A malformed stored
// hash yields false, never an error; callers must not be able to
// distinguish a corrupt record from a wrong password.
func (h *Hasher) Verify(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
