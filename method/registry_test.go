package method

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(NewMemoryStore(), nil)
}

func activateMethod(t *testing.T, r *Registry, userID, name string) *Method {
	t.Helper()
	ctx := context.Background()
	_, _, err := r.CreateOrGetPending(ctx, userID, name, "SECRET"+name)
	require.NoError(t, err)
	m, err := r.Activate(ctx, userID, name, []string{"c1", "c2"}, "")
	require.NoError(t, err)
	return m
}

func assertPrimaryInvariant(t *testing.T, r *Registry, userID string) {
	t.Helper()
	all, err := r.List(context.Background(), userID)
	require.NoError(t, err)

	active, primaries := 0, 0
	for _, m := range all {
		if m.IsActive {
			active++
		}
		if m.IsPrimary {
			primaries++
			assert.True(t, m.IsActive, "primary %s must be active", m.Name)
		}
	}
	if active > 0 {
		assert.Equal(t, 1, primaries)
	} else {
		assert.Equal(t, 0, primaries)
	}
}

func TestCreateOrGetPendingIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	m, created, err := r.CreateOrGetPending(ctx, "u1", "email", "S1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatePending, m.State())

	m, created, err = r.CreateOrGetPending(ctx, "u1", "email", "S2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "S1", m.Secret)
}

func TestCreateOrGetPendingRefusesActive(t *testing.T) {
	r := newTestRegistry()
	activateMethod(t, r, "u1", "email")

	_, _, err := r.CreateOrGetPending(context.Background(), "u1", "email", "S")
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestActivateAssignsPrimaryOnlyToFirst(t *testing.T) {
	r := newTestRegistry()

	first := activateMethod(t, r, "u1", "email")
	second := activateMethod(t, r, "u1", "app")

	assert.True(t, first.IsPrimary)
	assert.False(t, second.IsPrimary)
	assert.Equal(t, []string{"c1", "c2"}, second.BackupCodes)
	assertPrimaryInvariant(t, r, "u1")
}

func TestActivateReplacesSecret(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, _, err := r.CreateOrGetPending(ctx, "u1", "yubi", "PLACEHOLDER")
	require.NoError(t, err)
	m, err := r.Activate(ctx, "u1", "yubi", []string{"c"}, "ccccccbcgujh")
	require.NoError(t, err)
	assert.Equal(t, "ccccccbcgujh", m.Secret)
}

func TestActivateErrors(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Activate(ctx, "u1", "email", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)

	activateMethod(t, r, "u1", "email")
	_, err = r.Activate(ctx, "u1", "email", nil, "")
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestDeactivatePolicy(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	activateMethod(t, r, "u1", "email")
	activateMethod(t, r, "u1", "app")

	assert.ErrorIs(t, r.Deactivate(ctx, "u1", "email"), ErrDeactivatePrimary)
	assert.ErrorIs(t, r.Deactivate(ctx, "u1", "sms_twilio"), ErrNotFound)

	require.NoError(t, r.SetPrimary(ctx, "u1", "app"))
	require.NoError(t, r.Deactivate(ctx, "u1", "email"))
	assert.ErrorIs(t, r.Deactivate(ctx, "u1", "email"), ErrNotEnabled)

	m, err := r.Get(ctx, "u1", "email")
	require.NoError(t, err)
	assert.Equal(t, StateInactive, m.State())
	assertPrimaryInvariant(t, r, "u1")
}

func TestSetPrimaryErrors(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	activateMethod(t, r, "u1", "email")
	_, _, err := r.CreateOrGetPending(ctx, "u1", "app", "S")
	require.NoError(t, err)

	assert.ErrorIs(t, r.SetPrimary(ctx, "u1", "missing"), ErrNotFound)
	assert.ErrorIs(t, r.SetPrimary(ctx, "u1", "app"), ErrPrimaryInactive)
	assert.ErrorIs(t, r.SetPrimary(ctx, "u1", "email"), ErrSamePrimary)
}

func TestPrimaryInvariantAcrossSequences(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	assertPrimaryInvariant(t, r, "u1")
	for _, name := range []string{"email", "sms_twilio", "app", "yubi"} {
		activateMethod(t, r, "u1", name)
		assertPrimaryInvariant(t, r, "u1")
	}

	steps := []struct {
		op   string
		name string
	}{
		{"primary", "app"},
		{"deactivate", "email"},
		{"primary", "yubi"},
		{"deactivate", "app"},
		{"deactivate", "sms_twilio"},
		{"deactivate", "yubi"},
	}
	for _, s := range steps {
		switch s.op {
		case "primary":
			_ = r.SetPrimary(ctx, "u1", s.name)
		case "deactivate":
			_ = r.Deactivate(ctx, "u1", s.name)
		}
		assertPrimaryInvariant(t, r, "u1")
	}

	primary, err := r.GetPrimaryActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "yubi", primary.Name)
}

func TestListActivePrimaryFirst(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	activateMethod(t, r, "u1", "email")
	activateMethod(t, r, "u1", "app")
	activateMethod(t, r, "u1", "yubi")
	require.NoError(t, r.SetPrimary(ctx, "u1", "yubi"))

	active, err := r.ListActive(ctx, "u1")
	require.NoError(t, err)
	names := make([]string, len(active))
	for i, m := range active {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"yubi", "email", "app"}, names)
}

func TestExistsPrimary(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	ok, err := r.ExistsPrimary(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = r.CreateOrGetPending(ctx, "u1", "email", "S")
	require.NoError(t, err)
	ok, _ = r.ExistsPrimary(ctx, "u1")
	assert.False(t, ok)

	activateMethod(t, r, "u1", "app")
	ok, _ = r.ExistsPrimary(ctx, "u1")
	assert.True(t, ok)
}

func TestConsumeBackupCodeOnce(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	activateMethod(t, r, "u1", "email")

	ok, err := r.ConsumeBackupCode(ctx, "u1", "email", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ConsumeBackupCode(ctx, "u1", "email", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	m, _ := r.Get(ctx, "u1", "email")
	assert.Equal(t, []string{"c2"}, m.BackupCodes)
}

func TestCounterAdvanceAndConsume(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	activateMethod(t, r, "u1", "email")

	m, err := r.AdvanceCounter(ctx, "u1", "email")
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.Counter)
	assert.False(t, m.CodeGeneratedAt.IsZero())

	next, err := r.AdvanceCounter(ctx, "u1", "email")
	require.NoError(t, err)

	ok, _ := r.ConsumeCounterCode(ctx, "u1", "email", m.Counter)
	assert.False(t, ok, "superseded counter must not be consumable")

	ok, _ = r.ConsumeCounterCode(ctx, "u1", "email", next.Counter)
	assert.True(t, ok)
	ok, _ = r.ConsumeCounterCode(ctx, "u1", "email", next.Counter)
	assert.False(t, ok)
}

func TestConcurrentBackupCodeUseSingleWinner(t *testing.T) {
	r := newTestRegistry()
	activateMethod(t, r, "u1", "email")

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.ConsumeBackupCode(context.Background(), "u1", "email", "c2")
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}
