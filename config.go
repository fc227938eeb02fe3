package goMFA

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/internal/codes"
	"github.com/MrEthical07/goMFA/internal/ephemeral"
	"github.com/MrEthical07/goMFA/method"
)

// Config is the complete engine configuration. It is copied into the
// Engine by Build and never read again afterwards.
type Config struct {
	// Methods maps a method name ("email", "app", ...) to its configuration.
	Methods map[string]MethodConfig

	BackupCodes BackupCodesConfig

	// SecretLength is the length in base32 characters of new method secrets.
	SecretLength int
	// DefaultValidityPeriod applies to methods that leave ValidityPeriod zero.
	DefaultValidityPeriod time.Duration

	ConfirmDisableWithCode       bool
	ConfirmBackupRegenWithCode   bool
	AllowBackupCodesRegeneration bool

	// IssuerName labels the account in authenticator apps.
	IssuerName string

	EphemeralToken EphemeralTokenConfig
	Credential     CredentialConfig
	Password       PasswordConfig
	Store          StoreConfig
	Metrics        MetricsConfig
}

/*
====================================
SECTION CONFIGS
====================================
*/

// BackupCodesConfig controls recovery code generation and storage.
type BackupCodesConfig struct {
	Quantity int
	Length   int
	Alphabet string
	// Hashed stores Argon2id hashes instead of the codes themselves.
	Hashed bool
}

// EphemeralTokenConfig configures the token bridging the two login steps.
type EphemeralTokenConfig struct {
	// Secret keys the token HMAC. At least 32 bytes.
	Secret []byte
	TTL    time.Duration
}

// CredentialConfig configures the final credential.
type CredentialConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

// PasswordConfig holds the Argon2id parameters used for user passwords and
// hashed backup codes.
type PasswordConfig struct {
	Memory      uint32 `toml:"memory"` // in KB
	Time        uint32 `toml:"time"`
	Parallelism uint8  `toml:"parallelism"`
	SaltLength  uint32 `toml:"salt_length"`
	KeyLength   uint32 `toml:"key_length"`
}

// StoreConfig configures the built-in Redis method store.
type StoreConfig struct {
	RedisPrefix string
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultBackupCodeAlphabet is ASCII letters and digits.
const DefaultBackupCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultConfig returns a configuration with every built-in method enabled.
// Secrets and signing keys are left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Methods: DefaultMethods(),
		BackupCodes: BackupCodesConfig{
			Quantity: 5,
			Length:   12,
			Alphabet: DefaultBackupCodeAlphabet,
			Hashed:   true,
		},
		SecretLength:                 32,
		DefaultValidityPeriod:        30 * time.Second,
		ConfirmDisableWithCode:       false,
		ConfirmBackupRegenWithCode:   true,
		AllowBackupCodesRegeneration: true,
		IssuerName:                   "MyApplication",
		EphemeralToken: EphemeralTokenConfig{
			TTL: ephemeral.DefaultTTL,
		},
		Credential: CredentialConfig{
			TTL:           15 * time.Minute,
			SigningMethod: "ed25519",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Store: StoreConfig{
			RedisPrefix: method.DefaultRedisPrefix,
		},
	}
}

// DefaultMethods returns the built-in method blocks keyed by method name.
func DefaultMethods() map[string]MethodConfig {
	return map[string]MethodConfig{
		"sms_twilio": {VerboseName: "sms_twilio", Handler: backend.HandlerTwilio, SourceAttribute: "phone_number"},
		"sms_api":    {VerboseName: "sms_api", Handler: backend.HandlerSMSAPI, SourceAttribute: "phone_number"},
		"sms_aws":    {VerboseName: "sms_aws", Handler: backend.HandlerSNS, SourceAttribute: "phone_number"},
		"email": {
			VerboseName:     "email",
			Handler:         backend.HandlerEmail,
			SourceAttribute: "email",
			Email:           backend.EmailSettings{Subject: backend.DefaultEmailSubject},
		},
		"app":  {VerboseName: "app", Handler: backend.HandlerApp},
		"yubi": {VerboseName: "yubi", Handler: backend.HandlerYubi},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Methods = make(map[string]MethodConfig, len(cfg.Methods))
	for name, m := range cfg.Methods {
		out.Methods[name] = m
	}
	out.EphemeralToken.Secret = cloneBytes(cfg.EphemeralToken.Secret)
	out.Credential.PrivateKey = cloneBytes(cfg.Credential.PrivateKey)
	out.Credential.PublicKey = cloneBytes(cfg.Credential.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// resolvedMethods fills the per-method defaults: scheme by handler, interval
// by scheme and the global validity period.
func (c *Config) resolvedMethods() map[string]MethodConfig {
	out := make(map[string]MethodConfig, len(c.Methods))
	for name, m := range c.Methods {
		if m.VerboseName == "" {
			m.VerboseName = name
		}
		if m.ValidityPeriod == 0 {
			m.ValidityPeriod = c.DefaultValidityPeriod
		}
		if m.Handler != backend.HandlerYubi {
			if m.Scheme == "" {
				m.Scheme = codes.SchemeHOTP
				if m.Handler == backend.HandlerApp {
					m.Scheme = codes.SchemeTOTP
				}
			}
			if m.Interval == 0 {
				m.Interval = time.Second
				if m.Handler == backend.HandlerApp {
					m.Interval = 30 * time.Second
				}
			}
		}
		out[name] = m
	}
	return out
}

// methodNames returns the configured names, sorted.
func (c *Config) methodNames() []string {
	names := make([]string, 0, len(c.Methods))
	for n := range c.Methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. Zero values that have a
// documented default are accepted.
func (c *Config) Validate() error {
	// Methods
	if len(c.Methods) == 0 {
		return errors.New("at least one MFA method must be configured")
	}
	if c.DefaultValidityPeriod < time.Second {
		return errors.New("DefaultValidityPeriod must be >= 1s")
	}
	methods := c.resolvedMethods()
	for _, name := range c.methodNames() {
		m := methods[name]
		if strings.TrimSpace(name) == "" {
			return errors.New("MFA method name must not be empty")
		}
		if m.Handler == "" || !backend.KnownHandler(m.Handler) {
			return fmt.Errorf("%w: method %q references %q", ErrMethodHandlerMissing, name, m.Handler)
		}
		if m.ValidityPeriod < time.Second {
			return fmt.Errorf("method %q: ValidityPeriod must be >= 1s", name)
		}
		if m.Handler == backend.HandlerYubi {
			continue
		}
		if !m.Scheme.Valid() {
			return fmt.Errorf("method %q: unknown scheme %q", name, m.Scheme)
		}
		if m.Interval < time.Second || m.Interval%time.Second != 0 {
			return fmt.Errorf("method %q: Interval must be a whole number of seconds", name)
		}
		if m.Scheme == codes.SchemeTOTP && m.ValidityPeriod < m.Interval {
			return fmt.Errorf("method %q: ValidityPeriod must be >= Interval", name)
		}
		if m.Handler == backend.HandlerApp && m.Scheme != codes.SchemeTOTP {
			return fmt.Errorf("method %q: authenticator apps require the totp scheme", name)
		}
		if m.Handler != backend.HandlerApp && m.Source == nil && m.SourceAttribute == "" {
			return fmt.Errorf("method %q: Source or SourceAttribute is required", name)
		}
	}

	// Backup codes
	if c.BackupCodes.Quantity < 1 {
		return errors.New("BackupCodes Quantity must be >= 1")
	}
	if c.BackupCodes.Length < 6 {
		return errors.New("BackupCodes Length must be >= 6")
	}
	if len(c.BackupCodes.Alphabet) < 2 {
		return errors.New("BackupCodes Alphabet must contain at least 2 characters")
	}
	if strings.ContainsRune(c.BackupCodes.Alphabet, method.BackupCodeDelimiter) {
		return fmt.Errorf("%w: %q", ErrRestrictedCharInBackupCode, method.BackupCodeDelimiter)
	}
	if strings.ContainsAny(c.BackupCodes.Alphabet, " \t\r\n") {
		return fmt.Errorf("%w: whitespace", ErrRestrictedCharInBackupCode)
	}

	// Secrets
	if c.SecretLength < 16 || c.SecretLength%8 != 0 {
		return errors.New("SecretLength must be >= 16 and a multiple of 8")
	}

	// Ephemeral token
	if len(c.EphemeralToken.Secret) < 32 {
		return errors.New("EphemeralToken Secret must be at least 32 bytes")
	}
	if c.EphemeralToken.TTL < time.Second {
		return errors.New("EphemeralToken TTL must be >= 1s")
	}

	// Credential
	if c.Credential.TTL <= 0 {
		return errors.New("Credential TTL must be > 0")
	}
	switch c.Credential.SigningMethod {
	case "ed25519":
		if len(c.Credential.PrivateKey) == 0 || len(c.Credential.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.Credential.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported Credential signing method")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	return nil
}
