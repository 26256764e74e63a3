// Package idempotency produces keys that let the gateway collapse retries of
// one logical operation into a single mutation.
package idempotency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix tags generated payment intent keys.
const DefaultPrefix = "pi"

// MaxLength is the longest idempotency key the gateway accepts.
const MaxLength = 255

// suffixLength is the number of random characters appended after the timestamp.
const suffixLength = 12

var (
	ErrEmptyKey   = errors.New("idempotency: key is empty")
	ErrKeyTooLong = fmt.Errorf("idempotency: key exceeds %d characters", MaxLength)
)

// Generator builds keys of the form <prefix>_<unix nanos>_<random>.
type Generator struct {
	prefix string
	now    func() time.Time
	random func() string
}

// NewGenerator returns a Generator using the wall clock and UUIDv4 randomness.
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{
		prefix: prefix,
		now:    time.Now,
		random: randomSuffix,
	}
}

// Generate returns a fresh key. The timestamp alone is not unique under
// concurrency, so a random suffix is always appended.
func (g *Generator) Generate() string {
	return fmt.Sprintf("%s_%d_%s", g.prefix, g.now().UnixNano(), g.random())
}

// Resolve returns supplied unchanged unless it is blank, otherwise a generated key.
func (g *Generator) Resolve(supplied string) string {
	if strings.TrimSpace(supplied) != "" {
		return supplied
	}
	return g.Generate()
}

// Valid reports whether key can be sent to the gateway as-is.
func Valid(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if len(key) > MaxLength {
		return ErrKeyTooLong
	}
	return nil
}

// randomSuffix draws lowercase hex characters from a v4 UUID.
func randomSuffix() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[:suffixLength]
}
