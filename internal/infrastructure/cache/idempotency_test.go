package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
)

func newTestIdempotency(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewIdempotencyStore(rdb, time.Hour), mr
}

func TestIdempotencyStore_ReplaysCompletedResponse(t *testing.T) {
	s, _ := newTestIdempotency(t)
	ctx := context.Background()

	replay, err := s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	require.Nil(t, replay)

	require.NoError(t, s.Complete(ctx, "k1", "fp", Replay{StatusCode: 200, ContentType: "application/json", Body: []byte(`{"ok":true}`)}))

	replay, err = s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 200, replay.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
}

func TestIdempotencyStore_BusyWhilePending(t *testing.T) {
	s, _ := newTestIdempotency(t)
	ctx := context.Background()

	_, err := s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)

	_, err = s.Acquire(ctx, "k1", "fp")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyInProgress))
}

func TestIdempotencyStore_RejectsDifferentRequest(t *testing.T) {
	s, _ := newTestIdempotency(t)
	ctx := context.Background()

	_, err := s.Acquire(ctx, "k1", "fp-a")
	require.NoError(t, err)

	_, err = s.Acquire(ctx, "k1", "fp-b")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyKeyMismatch))
}

func TestIdempotencyStore_ReleaseAllowsRetry(t *testing.T) {
	s, _ := newTestIdempotency(t)
	ctx := context.Background()

	_, err := s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k1"))

	replay, err := s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_PendingLockExpires(t *testing.T) {
	s, mr := newTestIdempotency(t)
	ctx := context.Background()

	_, err := s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	mr.FastForward(2 * pendingTTL)

	replay, err := s.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.Nil(t, replay)
}
