package goMFA

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goMFA/method"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// settleLastLogin completes one login so later logins in the same clock
// second leave the last-login marker unchanged and tokens stay valid.
func settleLastLogin(t *testing.T, f *fixture) {
	t.Helper()
	res := f.login(t)
	if _, err := f.engine.AuthenticateSecondFactor(context.Background(), res.EphemeralToken, f.mail.lastCode(t)); err != nil {
		t.Fatalf("AuthenticateSecondFactor failed: %v", err)
	}
}

func TestConcurrentBackupCodeUseSucceedsOnce(t *testing.T) {
	f := newFixture(t, nil)
	backups := f.enrollEmail(t)
	settleLastLogin(t, f)

	const workers = 8
	tokens := make([]string, workers)
	for i := range tokens {
		tokens[i] = f.login(t).EphemeralToken
	}

	var wins, misses int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(token string) {
			defer wg.Done()
			_, err := f.engine.AuthenticateSecondFactor(context.Background(), token, backups[0])
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, ErrInvalidCode):
				atomic.AddInt64(&misses, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(tokens[i])
	}
	wg.Wait()

	if wins != 1 || misses != workers-1 {
		t.Fatalf("expected exactly one success, got wins=%d misses=%d", wins, misses)
	}
	if got := len(f.methodRecord(t, "email").BackupCodes); got != len(backups)-1 {
		t.Fatalf("expected %d stored codes, got %d", len(backups)-1, got)
	}
}

func TestConcurrentHOTPCodeUseSucceedsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.enrollEmail(t)
	settleLastLogin(t, f)

	const workers = 8
	tokens := make([]string, workers)
	for i := range tokens {
		tokens[i] = f.login(t).EphemeralToken
	}
	// Only the last dispatched code is current.
	code := f.mail.lastCode(t)

	var wins int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(token string) {
			defer wg.Done()
			_, err := f.engine.AuthenticateSecondFactor(context.Background(), token, code)
			if err == nil {
				atomic.AddInt64(&wins, 1)
			} else if !errors.Is(err, ErrInvalidCode) {
				t.Errorf("unexpected error: %v", err)
			}
		}(tokens[i])
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one success, got %d", wins)
	}
}

func TestConcurrentPrimaryChangesKeepOnePrimary(t *testing.T) {
	f := newFixture(t, nil)
	emailBackups := f.enrollEmail(t)
	f.enrollApp(t)
	f.enrollYubi(t)

	var wg sync.WaitGroup
	targets := []string{"app", "yubi", "app", "yubi"}
	wg.Add(len(targets))
	for i, name := range targets {
		go func(name, code string) {
			defer wg.Done()
			_ = f.engine.SetPrimaryMethod(context.Background(), testUserID, name, code)
		}(name, emailBackups[i])
	}
	wg.Wait()

	active, primary := f.primaryCount(t)
	if active != 3 || primary != 1 {
		t.Fatalf("expected 3 active and 1 primary, got %d and %d", active, primary)
	}
}

func TestConcurrentConfirmationActivatesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.engine.RegisterMethod(ctx, testUserID, "app", nil); err != nil {
		t.Fatalf("RegisterMethod failed: %v", err)
	}
	code := f.appCode(t)

	var wins int64
	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 4; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.engine.ConfirmMethod(ctx, testUserID, "app", code); err == nil {
				atomic.AddInt64(&wins, 1)
			} else if !errors.Is(err, ErrMethodAlreadyActive) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected one activation, got %d", wins)
	}
	if _, primary := f.primaryCount(t); primary != 1 {
		t.Fatalf("expected one primary, got %d", primary)
	}
}

func TestRedisBackedEngineFlow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	users := newMemoryUsers()
	users.add(UserRecord{
		UserID:       testUserID,
		Username:     testUsername,
		PasswordHash: hashTestPassword(t, testPassword),
		IsActive:     true,
		Email:        "alice@example.com",
	})
	mail := &outbox{}
	clock := newTestClock()

	cfg := testConfig()
	cfg.Methods = map[string]MethodConfig{"email": DefaultMethods()["email"]}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithMailer(mail).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ctx := context.Background()

	if _, err := engine.RegisterMethod(ctx, testUserID, "email", nil); err != nil {
		t.Fatalf("RegisterMethod failed: %v", err)
	}
	backups, err := engine.ConfirmMethod(ctx, testUserID, "email", mail.lastCode(t))
	if err != nil {
		t.Fatalf("ConfirmMethod failed: %v", err)
	}
	if !mr.Exists(method.DefaultRedisPrefix + testUserID) {
		t.Fatal("expected the method hash in redis")
	}

	res, err := engine.AuthenticateFirstFactor(ctx, testUsername, testPassword)
	if err != nil || !res.MFARequired {
		t.Fatalf("expected MFA challenge, got %+v, %v", res, err)
	}
	if _, err := engine.AuthenticateSecondFactor(ctx, res.EphemeralToken, mail.lastCode(t)); err != nil {
		t.Fatalf("AuthenticateSecondFactor failed: %v", err)
	}

	res, err = engine.AuthenticateFirstFactor(ctx, testUsername, testPassword)
	if err != nil {
		t.Fatalf("AuthenticateFirstFactor failed: %v", err)
	}
	if _, err := engine.AuthenticateSecondFactor(ctx, res.EphemeralToken, backups[0]); err != nil {
		t.Fatalf("backup code login failed: %v", err)
	}

	methods, err := engine.ListActiveMethods(ctx, testUserID)
	if err != nil {
		t.Fatalf("ListActiveMethods failed: %v", err)
	}
	if len(methods) != 1 || !methods[0].IsPrimary {
		t.Fatalf("unexpected methods %+v", methods)
	}
}
