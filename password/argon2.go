package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMaxInputBytes bounds the work an attacker can force per call.
	DefaultMaxInputBytes = 1024
)

var (
	// ErrInputTooShort is returned by Hash when the input is below MinInputBytes.
	ErrInputTooShort = errors.New("password: input shorter than configured minimum")
	// ErrInputTooLong is returned when the input exceeds MaxInputBytes.
	ErrInputTooLong = errors.New("password: input longer than configured maximum")
	// ErrMalformedHash is returned by Verify for anything that is not an argon2id PHC string.
	ErrMalformedHash = errors.New("password: malformed PHC hash")
)

// Config holds the Argon2id cost parameters and input bounds.
//
// MinInputBytes is 10 for user passwords. Backup codes are short, so the
// hasher that stores them is built with a lower minimum.
type Config struct {
	Memory        uint32
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MinInputBytes int
	MaxInputBytes int
}

// DefaultConfig returns the cost parameters used for user passwords.
func DefaultConfig() Config {
	return Config{
		Memory:        64 * 1024,
		Time:          3,
		Parallelism:   2,
		SaltLength:    16,
		KeyLength:     32,
		MinInputBytes: 10,
		MaxInputBytes: DefaultMaxInputBytes,
	}
}

// Argon2 hashes and verifies secrets in PHC format.
//
// Argon2 is immutable after construction and safe for concurrent use.
type Argon2 struct {
	config Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxInputBytes == 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash returns the PHC encoding of secret with a fresh random salt.
//
// Input bytes are used exactly as provided (no Unicode normalization).
func (a *Argon2) Hash(secret string) (string, error) {
	if len(secret) < a.config.MinInputBytes {
		return "", ErrInputTooShort
	}
	if len(secret) > a.config.MaxInputBytes {
		return "", ErrInputTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	var b strings.Builder
	b.Grow(96)
	b.WriteString("$" + algorithmID)
	b.WriteString("$v=" + strconv.Itoa(argon2.Version))
	fmt.Fprintf(&b, "$m=%d,t=%d,p=%d", a.config.Memory, a.config.Time, a.config.Parallelism)
	b.WriteString("$" + base64.RawStdEncoding.EncodeToString(salt))
	b.WriteString("$" + base64.RawStdEncoding.EncodeToString(key))

	return b.String(), nil
}

// Verify reports whether secret matches encoded. A mismatch is (false, nil);
// an error means encoded could not be parsed.
func (a *Argon2) Verify(secret string, encoded string) (bool, error) {
	if len(secret) > a.config.MaxInputBytes {
		return false, ErrInputTooLong
	}

	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))

	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

func decodePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrMalformedHash
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}

	var (
		out         phc
		parallelism uint32
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &out.memory, &out.time, &parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters", ErrMalformedHash)
	}
	if out.memory < minMemoryKB || out.time < minTimeCost || parallelism < uint32(minParallelism) || parallelism > 255 {
		return nil, fmt.Errorf("%w: parameters out of range", ErrMalformedHash)
	}
	out.parallelism = uint8(parallelism)

	salt, err := decodeSegment(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := decodeSegment(parts[5])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	out.salt = salt
	out.key = key

	return &out, nil
}

// decodeSegment accepts both padded and unpadded base64.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case cfg.MinInputBytes < 1:
		return errors.New("password minimum input length must be >= 1")
	case cfg.MaxInputBytes < cfg.MinInputBytes:
		return errors.New("password maximum input length must be >= minimum")
	}

	return nil
}
