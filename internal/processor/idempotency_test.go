package processor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/expense-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.Adapter) {
	mr := miniredis.RunT(t)
	adapter, err := redis.New(context.Background(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return mr, adapter
}

func TestIdempotencyService_AcquireProcessingLock_FirstAttempt(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	pc, err := svc.AcquireProcessingLock(context.Background(), "7:100")
	require.NoError(t, err)
	assert.Equal(t, "7:100", pc.Key)
	assert.True(t, pc.lockAcquired)
	assert.True(t, mr.Exists("reindex:lock:7:100"))
}

func TestIdempotencyService_AcquireProcessingLock_Concurrent(t *testing.T) {
	_, adapter := setupTestRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	_, err := svc.AcquireProcessingLock(context.Background(), "k")
	require.NoError(t, err)

	_, err = svc.AcquireProcessingLock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := svc.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, svc.MarkSuccess(ctx, pc))

	assert.False(t, mr.Exists("reindex:lock:k"))
	done, err := svc.IsProcessed(ctx, "k")
	require.NoError(t, err)
	assert.True(t, done)

	_, err = svc.AcquireProcessingLock(ctx, "k")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIdempotencyService_ProcessedMarkerExpires(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.ProcessedTTL = time.Minute
	svc := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	pc, err := svc.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, svc.MarkSuccess(ctx, pc))

	mr.FastForward(2 * time.Minute)
	_, err = svc.AcquireProcessingLock(ctx, "k")
	assert.NoError(t, err)
}

func TestIdempotencyService_MarkFailure_AllowsRetry(t *testing.T) {
	_, adapter := setupTestRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := svc.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailure(ctx, pc, assert.AnError))

	done, err := svc.IsProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = svc.AcquireProcessingLock(ctx, "k")
	assert.NoError(t, err)
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	_, adapter := setupTestRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	assert.NoError(t, svc.ReleaseLock(ctx, nil))

	pc, err := svc.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, svc.ReleaseLock(ctx, pc))
	assert.False(t, pc.lockAcquired)
	assert.NoError(t, svc.ReleaseLock(ctx, pc))
}
