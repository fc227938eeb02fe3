//go:build integration

package pgstore

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goMFA/method"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationRegistry(t *testing.T) *method.Registry {
	t.Helper()
	dsn := os.Getenv("GOMFA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOMFA_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := New(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	return method.NewRegistry(store, nil)
}

func TestPostgresLifecycle(t *testing.T) {
	r := newIntegrationRegistry(t)
	ctx := context.Background()
	userID := uuid.NewString()

	for _, name := range []string{"email", "app"} {
		_, created, err := r.CreateOrGetPending(ctx, userID, name, "JBSWY3DPEHPK3PXP")
		require.NoError(t, err)
		require.True(t, created)
		_, err = r.Activate(ctx, userID, name, []string{"h1", "h2"}, "")
		require.NoError(t, err)
	}

	require.ErrorIs(t, r.Deactivate(ctx, userID, "email"), method.ErrDeactivatePrimary)
	require.NoError(t, r.SetPrimary(ctx, userID, "app"))
	require.NoError(t, r.Deactivate(ctx, userID, "email"))

	primary, err := r.GetPrimaryActive(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "app", primary.Name)

	m, err := r.AdvanceCounter(ctx, userID, "app")
	require.NoError(t, err)
	ok, err := r.ConsumeCounterCode(ctx, userID, "app", m.Counter)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgresConcurrentBackupCodeUse(t *testing.T) {
	r := newIntegrationRegistry(t)
	ctx := context.Background()
	userID := uuid.NewString()

	_, _, err := r.CreateOrGetPending(ctx, userID, "email", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	_, err = r.Activate(ctx, userID, "email", []string{"h1", "h2"}, "")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := r.ConsumeBackupCode(ctx, userID, "email", "h1"); err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}
