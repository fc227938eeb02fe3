package goMFA

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/internal/backupcodes"
	"github.com/MrEthical07/goMFA/internal/codes"
	"github.com/MrEthical07/goMFA/internal/ephemeral"
	"github.com/MrEthical07/goMFA/jwt"
	"github.com/MrEthical07/goMFA/method"
	"github.com/MrEthical07/goMFA/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dummyPassword is hashed once at Build so that logins for unknown users
// spend the same Argon2 work as logins with a wrong password.
const dummyPassword = "goMFA-dummy-password-for-timing"

// Builder assembles an [Engine].
//
// Builder instances are configured during initialization and used once.
// Build validates the configuration and every collaborator; the returned
// Engine is immutable.
type Builder struct {
	config Config

	store method.Store
	redis redis.UniversalClient
	users UserProvider

	logger *zap.Logger
	mailer Mailer
	sms    map[string]SMSSender
	yubico YubicoVerifier
	now    func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		sms:    map[string]SMSSender{},
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores methods in Redis under Config.Store.RedisPrefix. It is
// ignored when WithMethodStore is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMethodStore sets the persistence adapter for method records, for
// example a *pgstore.Store or a *method.MemoryStore.
func (b *Builder) WithMethodStore(s method.Store) *Builder {
	b.store = s
	return b
}

// WithUserProvider connects the engine to the caller's user database.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.users = up
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithMailer replaces the SMTP client of email methods.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithSMSSender replaces the provider client of every method using the
// handler reference handler (backend.HandlerTwilio, HandlerSMSAPI or
// HandlerSNS).
func (b *Builder) WithSMSSender(handler string, s SMSSender) *Builder {
	b.sms[handler] = s
	return b
}

// WithYubicoVerifier replaces the YubiCloud client of yubi methods.
func (b *Builder) WithYubicoVerifier(v YubicoVerifier) *Builder {
	b.yubico = v
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the second factor latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the Engine.
//
// Build fails when the configuration is invalid, when no user provider or
// method store is set, and when a method handler cannot be constructed.
// A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- METHOD STORE --------
	store := b.store
	storeKind := "custom"
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("method store or redis client required")
		}
		store = method.NewRedisStore(b.redis, cfg.Store.RedisPrefix)
		storeKind = "redis"
	}
	registry := method.NewRegistry(store, now)

	// -------- HASHING --------
	passwords, err := password.NewArgon2(password.Config{
		Memory:        cfg.Password.Memory,
		Time:          cfg.Password.Time,
		Parallelism:   cfg.Password.Parallelism,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MinInputBytes: 1,
		MaxInputBytes: password.DefaultMaxInputBytes,
	})
	if err != nil {
		return nil, err
	}

	var hasher backupcodes.Hasher
	if cfg.BackupCodes.Hashed {
		hasher = passwords
	}
	vault, err := backupcodes.New(backupcodes.Config{
		Quantity: cfg.BackupCodes.Quantity,
		Length:   cfg.BackupCodes.Length,
		Alphabet: cfg.BackupCodes.Alphabet,
		Hashed:   cfg.BackupCodes.Hashed,
	}, hasher)
	if err != nil {
		return nil, err
	}

	dummyHash, err := passwords.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	tokens, err := ephemeral.New(cfg.EphemeralToken.Secret, cfg.EphemeralToken.TTL, now)
	if err != nil {
		return nil, err
	}

	credentials, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Credential.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Credential.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Credential.PrivateKey),
		PublicKey:     cloneBytes(cfg.Credential.PublicKey),
		Issuer:        cfg.Credential.Issuer,
		Audience:      cfg.Credential.Audience,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- BACKENDS --------
	methods := cfg.resolvedMethods()
	sms := make(map[string]SMSSender, len(b.sms))
	for ref, s := range b.sms {
		sms[ref] = s
	}
	dispatcher, err := backend.NewDispatcher(context.Background(), methods, backend.Deps{
		Codes:    codes.New(),
		Counters: registry,
		Issuer:   cfg.IssuerName,
		Now:      now,
		Logger:   logger.Named("backend"),
		Mailer:   b.mailer,
		SMS:      sms,
		Yubico:   b.yubico,
	})
	if err != nil {
		return nil, err
	}
	cfg.Methods = methods

	engine := &Engine{
		config:      cfg,
		registry:    registry,
		dispatcher:  dispatcher,
		vault:       vault,
		tokens:      tokens,
		credentials: credentials,
		passwords:   passwords,
		users:       b.users,
		log:         logger.Named("engine"),
		metrics:     NewMetrics(cfg.Metrics),
		now:         now,
		dummyHash:   dummyHash,
	}

	logger.Info("mfa engine built",
		zap.Strings("methods", cfg.methodNames()),
		zap.String("store", storeKind),
		zap.Bool("hashed_backup_codes", cfg.BackupCodes.Hashed),
		zap.String("credential_alg", credentials.Algorithm()),
		zap.Duration("ephemeral_ttl", cfg.EphemeralToken.TTL),
	)

	b.built = true
	return engine, nil
}
