package goMFA

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/internal/codes"
)

// LoadConfigFile reads a TOML configuration file and overlays it on
// [DefaultConfig]. Durations are strings such as "30s" or "15m". Unknown
// keys are an error. The result still needs Validate, which Build runs.
//
// Key files named by private_key_file and public_key_file are resolved
// relative to the directory of path.
//
//	secret_length = 32
//	enabled_methods = ["email", "app"]
//
//	[ephemeral_token]
//	secret = "..."
//	ttl = "15m"
//
//	[methods.email]
//	source_field = "email"
//	validity_period = "60s"
//
//	[methods.email.smtp]
//	host = "smtp.example.com"
//	port = 587
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := DecodeConfig(string(data), filepath.Dir(path))
	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig parses TOML text as LoadConfigFile does. Relative key file
// paths are resolved against baseDir.
func DecodeConfig(data, baseDir string) (Config, error) {
	def := DefaultConfig()
	fc := fileConfigFrom(def)

	md, err := toml.Decode(data, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	return fc.toConfig(def, baseDir)
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

/*
====================================
FILE SCHEMA
====================================
*/

type fileConfig struct {
	SecretLength                 int      `toml:"secret_length"`
	DefaultValidityPeriod        duration `toml:"default_validity_period"`
	ConfirmDisableWithCode       bool     `toml:"confirm_disable_with_code"`
	ConfirmBackupRegenWithCode   bool     `toml:"confirm_backup_codes_regeneration_with_code"`
	AllowBackupCodesRegeneration bool     `toml:"allow_backup_codes_regeneration"`
	IssuerName                   string   `toml:"application_issuer_name"`
	EnabledMethods               []string `toml:"enabled_methods"`

	BackupCodes    fileBackupCodes       `toml:"backup_codes"`
	EphemeralToken fileEphemeralToken    `toml:"ephemeral_token"`
	Credential     fileCredential        `toml:"credential"`
	Password       PasswordConfig        `toml:"password"`
	Store          fileStore             `toml:"store"`
	Metrics        fileMetrics           `toml:"metrics"`
	Methods        map[string]fileMethod `toml:"methods"`
}

type fileBackupCodes struct {
	Quantity  int    `toml:"quantity"`
	Length    int    `toml:"length"`
	Alphabet  string `toml:"characters"`
	Encrypted bool   `toml:"encrypt"`
}

type fileEphemeralToken struct {
	Secret string   `toml:"secret"`
	TTL    duration `toml:"ttl"`
}

type fileCredential struct {
	TTL            duration `toml:"ttl"`
	SigningMethod  string   `toml:"signing_method"`
	Secret         string   `toml:"secret"`
	PrivateKeyFile string   `toml:"private_key_file"`
	PublicKeyFile  string   `toml:"public_key_file"`
	Issuer         string   `toml:"issuer"`
	Audience       string   `toml:"audience"`
}

type fileStore struct {
	RedisPrefix string `toml:"redis_prefix"`
}

type fileMetrics struct {
	Enabled                 bool `toml:"enabled"`
	EnableLatencyHistograms bool `toml:"latency_histograms"`
}

type fileMethod struct {
	VerboseName    string   `toml:"verbose_name"`
	Handler        string   `toml:"handler"`
	Scheme         string   `toml:"scheme"`
	ValidityPeriod duration `toml:"validity_period"`
	Interval       duration `toml:"interval"`
	SourceField    string   `toml:"source_field"`
	Timeout        duration `toml:"timeout"`

	EmailSubject      string `toml:"email_subject"`
	EmailBodyTemplate string `toml:"email_body_template"`

	SMTP   *backend.SMTPSettings   `toml:"smtp"`
	Twilio *backend.TwilioSettings `toml:"twilio"`
	SMSAPI *backend.SMSAPISettings `toml:"smsapi"`
	SNS    *backend.SNSSettings    `toml:"sns"`
	Yubico *backend.YubicoSettings `toml:"yubico"`
}

func fileConfigFrom(c Config) fileConfig {
	return fileConfig{
		SecretLength:                 c.SecretLength,
		DefaultValidityPeriod:        duration{c.DefaultValidityPeriod},
		ConfirmDisableWithCode:       c.ConfirmDisableWithCode,
		ConfirmBackupRegenWithCode:   c.ConfirmBackupRegenWithCode,
		AllowBackupCodesRegeneration: c.AllowBackupCodesRegeneration,
		IssuerName:                   c.IssuerName,
		BackupCodes: fileBackupCodes{
			Quantity:  c.BackupCodes.Quantity,
			Length:    c.BackupCodes.Length,
			Alphabet:  c.BackupCodes.Alphabet,
			Encrypted: c.BackupCodes.Hashed,
		},
		EphemeralToken: fileEphemeralToken{TTL: duration{c.EphemeralToken.TTL}},
		Credential: fileCredential{
			TTL:           duration{c.Credential.TTL},
			SigningMethod: c.Credential.SigningMethod,
		},
		Password: c.Password,
		Store:    fileStore{RedisPrefix: c.Store.RedisPrefix},
		Metrics: fileMetrics{
			Enabled:                 c.Metrics.Enabled,
			EnableLatencyHistograms: c.Metrics.EnableLatencyHistograms,
		},
	}
}

func (fc fileConfig) toConfig(def Config, baseDir string) (Config, error) {
	cfg := def
	cfg.SecretLength = fc.SecretLength
	cfg.DefaultValidityPeriod = fc.DefaultValidityPeriod.Duration
	cfg.ConfirmDisableWithCode = fc.ConfirmDisableWithCode
	cfg.ConfirmBackupRegenWithCode = fc.ConfirmBackupRegenWithCode
	cfg.AllowBackupCodesRegeneration = fc.AllowBackupCodesRegeneration
	cfg.IssuerName = fc.IssuerName
	cfg.BackupCodes = BackupCodesConfig{
		Quantity: fc.BackupCodes.Quantity,
		Length:   fc.BackupCodes.Length,
		Alphabet: fc.BackupCodes.Alphabet,
		Hashed:   fc.BackupCodes.Encrypted,
	}
	cfg.EphemeralToken = EphemeralTokenConfig{
		Secret: []byte(fc.EphemeralToken.Secret),
		TTL:    fc.EphemeralToken.TTL.Duration,
	}
	cfg.Password = fc.Password
	cfg.Store.RedisPrefix = fc.Store.RedisPrefix
	cfg.Metrics = MetricsConfig{
		Enabled:                 fc.Metrics.Enabled,
		EnableLatencyHistograms: fc.Metrics.EnableLatencyHistograms,
	}

	cred, err := fc.Credential.toConfig(baseDir)
	if err != nil {
		return Config{}, err
	}
	cfg.Credential = cred

	methods := DefaultMethods()
	for name, fm := range fc.Methods {
		methods[name] = fm.overlay(methods[name])
	}
	if len(fc.EnabledMethods) > 0 {
		enabled := make(map[string]MethodConfig, len(fc.EnabledMethods))
		for _, name := range fc.EnabledMethods {
			m, ok := methods[name]
			if !ok {
				return Config{}, fmt.Errorf("%w: enabled method %q has no configuration", ErrMethodHandlerMissing, name)
			}
			enabled[name] = m
		}
		methods = enabled
	}
	cfg.Methods = methods

	return cfg, nil
}

func (fc fileCredential) toConfig(baseDir string) (CredentialConfig, error) {
	out := CredentialConfig{
		TTL:           fc.TTL.Duration,
		SigningMethod: fc.SigningMethod,
		Issuer:        fc.Issuer,
		Audience:      fc.Audience,
	}
	if fc.Secret != "" {
		out.PrivateKey = []byte(fc.Secret)
	}

	read := func(p string) ([]byte, error) {
		if p == "" {
			return nil, nil
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		return os.ReadFile(p)
	}

	priv, err := read(fc.PrivateKeyFile)
	if err != nil {
		return CredentialConfig{}, fmt.Errorf("credential private key: %w", err)
	}
	if priv != nil {
		out.PrivateKey = priv
	}
	pub, err := read(fc.PublicKeyFile)
	if err != nil {
		return CredentialConfig{}, fmt.Errorf("credential public key: %w", err)
	}
	out.PublicKey = pub
	return out, nil
}

// overlay applies the fields set in the file to base.
func (fm fileMethod) overlay(base MethodConfig) MethodConfig {
	out := base
	if fm.VerboseName != "" {
		out.VerboseName = fm.VerboseName
	}
	if fm.Handler != "" {
		out.Handler = fm.Handler
	}
	if fm.Scheme != "" {
		out.Scheme = codes.Scheme(fm.Scheme)
	}
	if fm.ValidityPeriod.Duration != 0 {
		out.ValidityPeriod = fm.ValidityPeriod.Duration
	}
	if fm.Interval.Duration != 0 {
		out.Interval = fm.Interval.Duration
	}
	if fm.SourceField != "" {
		out.SourceAttribute = fm.SourceField
		out.Source = nil
	}
	if fm.Timeout.Duration != 0 {
		out.Timeout = fm.Timeout.Duration
	}
	if fm.EmailSubject != "" {
		out.Email.Subject = fm.EmailSubject
	}
	if fm.EmailBodyTemplate != "" {
		out.Email.BodyTemplate = fm.EmailBodyTemplate
	}
	if fm.SMTP != nil {
		out.Email.SMTP = *fm.SMTP
	}
	if fm.Twilio != nil {
		out.Twilio = *fm.Twilio
	}
	if fm.SMSAPI != nil {
		out.SMSAPI = *fm.SMSAPI
	}
	if fm.SNS != nil {
		out.SNS = *fm.SNS
	}
	if fm.Yubico != nil {
		out.Yubico = *fm.Yubico
	}
	return out
}
