package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/method/pgstore"
	"github.com/MrEthical07/goMFA/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type serverEnv struct {
	Addr             string
	ConfigFile       string
	EphemeralSecret  string
	CredentialSecret string
	PostgresDSN      string
	RedisAddr        string
	DemoUser         string
	DemoPassword     string
	DemoEmail        string
	AllowedOrigins   []string
	Debug            bool
}

func loadEnv() serverEnv {
	addr := os.Getenv("MFA_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return serverEnv{
		Addr:             addr,
		ConfigFile:       os.Getenv("MFA_CONFIG_FILE"),
		EphemeralSecret:  os.Getenv("MFA_EPHEMERAL_SECRET"),
		CredentialSecret: os.Getenv("MFA_CREDENTIAL_SECRET"),
		PostgresDSN:      os.Getenv("MFA_POSTGRES_DSN"),
		RedisAddr:        os.Getenv("MFA_REDIS_ADDR"),
		DemoUser:         os.Getenv("MFA_DEMO_USER"),
		DemoPassword:     os.Getenv("MFA_DEMO_PASSWORD"),
		DemoEmail:        os.Getenv("MFA_DEMO_EMAIL"),
		AllowedOrigins:   splitList(os.Getenv("MFA_ALLOWED_ORIGINS")),
		Debug:            strings.EqualFold(os.Getenv("MFA_DEBUG"), "true"),
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfig reads the TOML file when set and applies secrets from the
// environment on top.
func loadConfig(env serverEnv) (goMFA.Config, error) {
	cfg := goMFA.DefaultConfig()
	if env.ConfigFile != "" {
		var err error
		if cfg, err = goMFA.LoadConfigFile(env.ConfigFile); err != nil {
			return goMFA.Config{}, err
		}
	}
	if env.EphemeralSecret != "" {
		cfg.EphemeralToken.Secret = []byte(env.EphemeralSecret)
	}
	if env.CredentialSecret != "" {
		cfg.Credential.SigningMethod = "hs256"
		cfg.Credential.PrivateKey = []byte(env.CredentialSecret)
		cfg.Credential.PublicKey = nil
	}
	return cfg, nil
}

// storage is the method store chosen from the environment.
type storage struct {
	kind  string
	apply func(*goMFA.Builder) *goMFA.Builder
	close func()
}

func openStorage(ctx context.Context, env serverEnv, cfg goMFA.Config, logger *zap.Logger) (*storage, error) {
	switch {
	case env.PostgresDSN != "":
		pool, err := pgxpool.New(ctx, env.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := pgstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &storage{
			kind:  "postgres",
			apply: func(b *goMFA.Builder) *goMFA.Builder { return b.WithMethodStore(store) },
			close: pool.Close,
		}, nil

	case env.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &storage{
			kind:  "redis",
			apply: func(b *goMFA.Builder) *goMFA.Builder { return b.WithRedis(client) },
			close: func() { _ = client.Close() },
		}, nil

	default:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		logger.Warn("no store configured, methods are kept in an embedded miniredis",
			zap.String("addr", mr.Addr()), zap.String("prefix", cfg.Store.RedisPrefix))
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return &storage{
			kind:  "miniredis",
			apply: func(b *goMFA.Builder) *goMFA.Builder { return b.WithRedis(client) },
			close: func() {
				_ = client.Close()
				mr.Close()
			},
		}, nil
	}
}

func seedDemoUser(users *memoryUsers, cfg goMFA.Config, env serverEnv) error {
	if env.DemoPassword == "" {
		return fmt.Errorf("MFA_DEMO_PASSWORD is required with MFA_DEMO_USER")
	}
	hasher, err := password.NewArgon2(password.Config{
		Memory:        cfg.Password.Memory,
		Time:          cfg.Password.Time,
		Parallelism:   cfg.Password.Parallelism,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MinInputBytes: 1,
		MaxInputBytes: password.DefaultMaxInputBytes,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(env.DemoPassword)
	if err != nil {
		return err
	}
	users.add(goMFA.UserRecord{
		UserID:       uuid.NewString(),
		Username:     env.DemoUser,
		PasswordHash: hash,
		IsActive:     true,
		Email:        env.DemoEmail,
	})
	return nil
}
