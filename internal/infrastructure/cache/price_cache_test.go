package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/types"
	"workshop/internal/domain/pricing"
)

func newTestCache(t *testing.T) (*PriceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPriceCache(rdb, time.Minute), mr
}

func loaderFor(res pricing.Resolution, calls *int32) func(context.Context) (pricing.Resolution, error) {
	return func(context.Context) (pricing.Resolution, error) {
		atomic.AddInt32(calls, 1)
		return res, nil
	}
}

func TestPriceCache_MemoizesResolution(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	want := pricing.Resolution{Rate: types.MustMoney("150000"), Currency: "IDR", Source: "service_price", Found: true}
	var calls int32

	got, err := c.FetchResolution(ctx, "service|Oil Change|Standard|2026-01-01", loaderFor(want, &calls))
	require.NoError(t, err)
	assert.True(t, want.Rate.Equal(got.Rate))

	got, err = c.FetchResolution(ctx, "service|Oil Change|Standard|2026-01-01", loaderFor(want, &calls))
	require.NoError(t, err)
	assert.True(t, want.Rate.Equal(got.Rate))
	assert.Equal(t, "IDR", got.Currency)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPriceCache_InvalidateStartsNewGeneration(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := loaderFor(pricing.Resolution{Rate: types.MustMoney("10"), Found: true}, &calls)

	_, err := c.FetchResolution(ctx, "k", load)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	v, err := mr.Get("workshop:prices:version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = c.FetchResolution(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPriceCache_LoadErrorIsNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := c.FetchResolution(ctx, "k", func(context.Context) (pricing.Resolution, error) {
		return pricing.Resolution{}, boom
	})
	require.ErrorIs(t, err, boom)

	var calls int32
	_, err = c.FetchResolution(ctx, "k", loaderFor(pricing.Resolution{Found: false}, &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPriceCache_RedisDownFallsBackToLoad(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	var calls int32
	got, err := c.FetchResolution(context.Background(), "k", loaderFor(pricing.Resolution{Rate: types.MustMoney("5"), Found: true}, &calls))
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPriceCache_ConcurrentFetches(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := loaderFor(pricing.Resolution{Rate: types.MustMoney("7"), Found: true}, &calls)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.FetchResolution(ctx, "shared", load)
			assert.NoError(t, err)
			assert.True(t, res.Found)
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

type countingInvalidator struct{ n int32 }

func (c *countingInvalidator) Invalidate(context.Context) error {
	atomic.AddInt32(&c.n, 1)
	return nil
}

func TestPriceListener_HandleNotification(t *testing.T) {
	inv := &countingInvalidator{}
	l := NewPriceListener(nil, inv)
	l.ctx = context.Background()

	l.handleNotification(ChannelPriceChanged, "item_prices")
	l.handleNotification("other_channel", "")

	assert.Equal(t, int32(1), atomic.LoadInt32(&inv.n))
}
