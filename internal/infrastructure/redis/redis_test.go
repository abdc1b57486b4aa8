package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/inventario-ledger/pkg/config"
)

// Requiere un Redis desechable: INVENTARIO_TEST_REDIS_ADDR=localhost:6379 go test ./...
func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("INVENTARIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INVENTARIO_TEST_REDIS_ADDR no definido")
	}
	client, err := redis.NewClient(context.Background(), config.RedisConfig{Address: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newRecord(key string) entity.IdempotencyRecord {
	now := time.Now().UTC()
	return entity.IdempotencyRecord{
		OperationKey: key,
		BusinessID:   "biz-1",
		Operation:    "corrections.apply",
		PayloadHash:  "hash-1",
		Status:       entity.IdempotencyStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(time.Minute),
	}
}

func TestIdempotencyStore_CicloCompleto(t *testing.T) {
	store := redis.NewIdempotencyStore(testClient(t))
	ctx := context.Background()
	key := uuid.NewString()

	_, acquired, err := store.Insert(ctx, newRecord(key))
	require.NoError(t, err)
	assert.True(t, acquired)

	existing, acquired, err := store.Insert(ctx, newRecord(key))
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, entity.IdempotencyStarted, existing.Status)
	assert.Equal(t, "hash-1", existing.PayloadHash)

	require.NoError(t, store.Fail(ctx, key, "timeout"))
	failed, _, err := store.Insert(ctx, newRecord(key))
	require.NoError(t, err)
	assert.Equal(t, entity.IdempotencyFailed, failed.Status)
	assert.Equal(t, "timeout", failed.LastError)

	ok, err := store.TakeOver(ctx, key, failed.UpdatedAt.Add(-time.Second), "hash-2")
	require.NoError(t, err)
	assert.False(t, ok, "otra escritura ya movió updated_at")

	ok, err = store.TakeOver(ctx, key, failed.UpdatedAt, "hash-2")
	require.NoError(t, err)
	assert.True(t, ok)
	retaken, _, err := store.Insert(ctx, newRecord(key))
	require.NoError(t, err)
	assert.Equal(t, "hash-2", retaken.PayloadHash, "el reintento registra su propio payload")

	require.NoError(t, store.Complete(ctx, key, []byte(`{"applied_count":1}`)))
	done, _, err := store.Insert(ctx, newRecord(key))
	require.NoError(t, err)
	assert.Equal(t, entity.IdempotencySucceeded, done.Status)
	assert.JSONEq(t, `{"applied_count":1}`, string(done.Result))

	ok, err = store.TakeOver(ctx, key, done.UpdatedAt, "hash-2")
	require.NoError(t, err)
	assert.False(t, ok, "una llave exitosa no se retoma")
}

func TestLocker_Exclusivo(t *testing.T) {
	locker := redis.NewLocker(testClient(t))
	ctx := context.Background()
	key := "recon:batch:" + uuid.NewString()

	release, err := locker.Obtain(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, key, time.Minute)
	assert.ErrorIs(t, err, reconciliation.ErrLockNotObtained)

	require.NoError(t, release(ctx))
	release, err = locker.Obtain(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
