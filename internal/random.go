package internal

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"math/big"
	"strings"
)

var (
	errEmptyAlphabet = errors.New("random: empty alphabet")
	errBadLength     = errors.New("random: length must be positive")
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// RandomString returns length characters drawn uniformly from alphabet using
// crypto/rand.
func RandomString(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", errBadLength
	}
	runes := []rune(alphabet)
	if len(runes) == 0 {
		return "", errEmptyAlphabet
	}

	limit := big.NewInt(int64(len(runes)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteRune(runes[n.Int64()])
	}

	return b.String(), nil
}

// NewBase32Secret returns an unpadded base32 secret of exactly length
// characters. Callers keep length a multiple of 8 so the secret decodes
// without padding ambiguity.
func NewBase32Secret(length int) (string, error) {
	if length <= 0 {
		return "", errBadLength
	}

	raw := make([]byte, (length*5+7)/8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return secretEncoding.EncodeToString(raw)[:length], nil
}
