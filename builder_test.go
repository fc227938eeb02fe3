package goMFA

import (
	"context"
	"strings"
	"testing"

	"github.com/MrEthical07/goMFA/method"
)

func TestBuildRequiresUserProvider(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithMethodStore(method.NewMemoryStore()).Build()
	if err == nil || !strings.Contains(err.Error(), "user provider") {
		t.Fatalf("expected user provider error, got %v", err)
	}
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithUserProvider(newMemoryUsers()).Build()
	if err == nil || !strings.Contains(err.Error(), "method store or redis") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestBuildValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.EphemeralToken.Secret = nil
	_, err := New().WithConfig(cfg).WithMethodStore(method.NewMemoryStore()).WithUserProvider(newMemoryUsers()).Build()
	if err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithMethodStore(method.NewMemoryStore()).WithUserProvider(newMemoryUsers())
	for _, ref := range []string{"sms_twilio", "sms_api", "sms_aws"} {
		b.WithSMSSender(ref, &outbox{})
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.AuthenticateFirstFactor(context.Background(), "a", "b"); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.ParseCredential("x"); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if len(e.MetricsSnapshot().Counters) != 0 {
		t.Fatal("expected empty snapshot")
	}
}
