// Command mfa-server is a reference HTTP front end for the goMFA engine.
//
// It reads secrets from the environment (a .env file is loaded when
// present), optional engine settings from a TOML file, and stores methods
// in PostgreSQL, Redis or an embedded miniredis for local use.
//
// Environment:
//
//	MFA_ADDR               listen address (default :8080)
//	MFA_CONFIG_FILE        TOML engine configuration
//	MFA_EPHEMERAL_SECRET   ephemeral token secret, at least 32 bytes
//	MFA_CREDENTIAL_SECRET  hs256 signing key for final credentials
//	MFA_POSTGRES_DSN       use PostgreSQL for method storage
//	MFA_REDIS_ADDR         use Redis for method storage
//	MFA_DEMO_USER          seed a user with this username
//	MFA_DEMO_PASSWORD      password of the seeded user
//	MFA_DEMO_EMAIL         email of the seeded user
//	MFA_DEBUG              development logger when "true"
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	env := loadEnv()
	logger, err := newLogger(env.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	if err := run(env, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(env serverEnv, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(env)
	if err != nil {
		return err
	}

	storage, err := openStorage(ctx, env, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.close()

	users := newMemoryUsers()
	if env.DemoUser != "" {
		if err := seedDemoUser(users, cfg, env); err != nil {
			return err
		}
		logger.Info("demo user seeded", zap.String("username", env.DemoUser))
	}

	engine, err := storage.apply(goMFA.New()).
		WithConfig(cfg).
		WithUserProvider(users).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         env.Addr,
		Handler:      newRouter(engine, logger, env.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", env.Addr), zap.String("store", storage.kind))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
