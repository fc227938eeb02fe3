// Package backupcodes generates MFA recovery codes and matches candidates
// against the stored set.
//
// Stored entries are either Argon2id hashes or plaintext, depending on
// configuration. The vault never mutates storage: Match returns the stored
// entry that matched and the caller removes exactly that entry inside its
// own store transaction.
package backupcodes

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goMFA/internal"
)

// Hasher is the slow hash used in hashed mode. *password.Argon2 satisfies it.
type Hasher interface {
	Hash(code string) (string, error)
	Verify(code, encoded string) (bool, error)
}

// Config controls generation and storage.
type Config struct {
	Quantity int
	Length   int
	Alphabet string
	Hashed   bool
}

var ErrNoHasher = errors.New("backupcodes: hashed mode requires a hasher")

// Vault is immutable and safe for concurrent use.
type Vault struct {
	cfg    Config
	hasher Hasher
}

// New validates cfg. hasher may be nil only when cfg.Hashed is false.
func New(cfg Config, hasher Hasher) (*Vault, error) {
	if cfg.Quantity < 1 {
		return nil, fmt.Errorf("backupcodes: quantity must be >= 1, got %d", cfg.Quantity)
	}
	if cfg.Length < 1 {
		return nil, fmt.Errorf("backupcodes: length must be >= 1, got %d", cfg.Length)
	}
	if cfg.Alphabet == "" {
		return nil, errors.New("backupcodes: empty alphabet")
	}
	if cfg.Hashed && hasher == nil {
		return nil, ErrNoHasher
	}

	return &Vault{cfg: cfg, hasher: hasher}, nil
}

// Hashed reports whether stored entries are hashes.
func (v *Vault) Hashed() bool {
	return v.cfg.Hashed
}

// Generate returns a fresh batch. plain is shown to the user once; stored
// is what gets persisted. Both slices have the same order.
func (v *Vault) Generate() (plain []string, stored []string, err error) {
	plain = make([]string, 0, v.cfg.Quantity)
	seen := make(map[string]struct{}, v.cfg.Quantity)
	for len(plain) < v.cfg.Quantity {
		code, err := internal.RandomString(v.cfg.Length, v.cfg.Alphabet)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		plain = append(plain, code)
	}

	if !v.cfg.Hashed {
		return plain, append([]string(nil), plain...), nil
	}

	stored = make([]string, len(plain))
	for i, code := range plain {
		h, err := v.hasher.Hash(code)
		if err != nil {
			return nil, nil, fmt.Errorf("backupcodes: hash: %w", err)
		}
		stored[i] = h
	}

	return plain, stored, nil
}

// Match compares candidate with every stored entry and returns the entry that
// matched. No match is ("", false). Every entry is checked even after a hit.
func (v *Vault) Match(candidate string, stored []string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(stored) == 0 {
		return "", false
	}

	matched := -1
	for i, entry := range stored {
		var ok bool
		if v.cfg.Hashed {
			// Unparseable entries count as a miss.
			ok, _ = v.hasher.Verify(candidate, entry)
		} else {
			ok = subtle.ConstantTimeCompare([]byte(candidate), []byte(entry)) == 1
		}
		if ok && matched < 0 {
			matched = i
		}
	}

	if matched < 0 {
		return "", false
	}
	return stored[matched], true
}
