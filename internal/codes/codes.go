// Package codes computes and verifies one-time codes.
//
// Two schemes are supported. TOTP derives the moving factor from the clock
// and accepts a sliding window of steps around the current one. HOTP takes an
// explicit counter owned by the caller and accepts exactly one counter value,
// bounded in wall-clock time by the moment the code was generated.
//
// Functions here are pure: persistence of counters and generation stamps is
// the caller's concern. A code that does not match is reported as false and
// never as an error.
package codes

import (
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/internal"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// Scheme selects how a method derives its moving factor.
type Scheme string

const (
	SchemeTOTP Scheme = "totp"
	SchemeHOTP Scheme = "hotp"
)

// Valid reports whether s is a known scheme.
func (s Scheme) Valid() bool {
	return s == SchemeTOTP || s == SchemeHOTP
}

var (
	ErrInvalidInterval = errors.New("codes: interval must be a positive whole number of seconds")
	ErrEmptySecret     = errors.New("codes: empty secret")
)

// Engine generates and verifies codes with fixed digits and algorithm.
type Engine struct {
	digits    otp.Digits
	algorithm otp.Algorithm
}

// New returns an Engine producing 6-digit SHA1 codes, the parameters
// authenticator apps assume when a provisioning URI omits them.
func New() *Engine {
	return &Engine{digits: otp.DigitsSix, algorithm: otp.AlgorithmSHA1}
}

// NewSecret returns a random base32 secret of length characters.
func NewSecret(length int) (string, error) {
	return internal.NewBase32Secret(length)
}

// TOTP returns the code for the step containing at.
func (e *Engine) TOTP(secret string, at time.Time, interval time.Duration) (string, error) {
	period, err := periodSeconds(interval)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", ErrEmptySecret
	}

	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    period,
		Digits:    e.digits,
		Algorithm: e.algorithm,
	})
}

// VerifyTOTP reports whether code matches any step within
// ±floor(validity/interval) steps of at.
func (e *Engine) VerifyTOTP(secret, code string, at time.Time, interval, validity time.Duration) bool {
	period, err := periodSeconds(interval)
	if err != nil || secret == "" || !e.wellFormed(code) {
		return false
	}

	skew := uint(0)
	if validity > 0 {
		skew = uint(validity / interval)
	}

	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, at, totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    e.digits,
		Algorithm: e.algorithm,
	})
	return err == nil && ok
}

// HOTP returns the code for counter.
func (e *Engine) HOTP(secret string, counter uint64) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    e.digits,
		Algorithm: e.algorithm,
	})
}

// VerifyHOTP reports whether code matches counter and was generated no more
// than validity before now. A zero generatedAt means no code is outstanding.
func (e *Engine) VerifyHOTP(secret, code string, counter uint64, generatedAt, now time.Time, validity time.Duration) bool {
	if secret == "" || generatedAt.IsZero() || !e.wellFormed(code) {
		return false
	}
	if age := now.Sub(generatedAt); age < 0 || age > validity {
		return false
	}

	ok, err := hotp.ValidateCustom(strings.TrimSpace(code), counter, secret, hotp.ValidateOpts{
		Digits:    e.digits,
		Algorithm: e.algorithm,
	})
	return err == nil && ok
}

// ProvisioningURI returns the otpauth:// URI an authenticator app scans to
// enroll secret.
func (e *Engine) ProvisioningURI(secret, account, issuer string, interval time.Duration) (string, error) {
	period, err := periodSeconds(interval)
	if err != nil {
		return "", err
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      period,
		Secret:      raw,
		Digits:      e.digits,
		Algorithm:   e.algorithm,
	})
	if err != nil {
		return "", err
	}

	return key.URL(), nil
}

func (e *Engine) wellFormed(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != e.digits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func periodSeconds(interval time.Duration) (uint, error) {
	if interval < time.Second || interval%time.Second != 0 {
		return 0, ErrInvalidInterval
	}
	return uint(interval / time.Second), nil
}
