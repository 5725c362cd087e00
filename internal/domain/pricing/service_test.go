package pricing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/pricing"
)

type countingCache struct {
	entries     map[string]pricing.Resolution
	loads       int
	invalidated int
}

func (c *countingCache) FetchResolution(ctx context.Context, key string, load func(ctx context.Context) (pricing.Resolution, error)) (pricing.Resolution, error) {
	if r, ok := c.entries[key]; ok {
		return r, nil
	}
	c.loads++
	r, err := load(ctx)
	if err == nil {
		c.entries[key] = r
	}
	return r, err
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidated++
	c.entries = map[string]pricing.Resolution{}
	return nil
}

func newService(f *fixture, cache pricing.Cache) *pricing.Service {
	return pricing.NewService(pricing.ServiceConfig{
		Repo:            f.prices,
		Items:           catalog.NewService(f.cat, ""),
		ItemPrices:      f.prices,
		Cache:           cache,
		TxManager:       tx.Nop{},
		DefaultCurrency: "IDR",
	})
}

func TestService_CreateDefaultsCurrency(t *testing.T) {
	f := newFixture()
	svc := newService(f, nil)

	p := pricing.NewServicePrice(catalog.Ref(catalog.KindJobType, "JT-01"), priceList, types.MustMoney("100"))
	require.NoError(t, svc.Create(context.Background(), p))
	assert.Equal(t, "IDR", p.Currency)
}

func TestService_CreateRejects(t *testing.T) {
	f := newFixture()
	svc := newService(f, nil)
	ctx := context.Background()
	ref := catalog.Ref(catalog.KindJobType, "JT-01")

	zero := pricing.NewServicePrice(ref, priceList, types.Zero())
	assert.True(t, apperror.HasCode(svc.Create(ctx, zero), apperror.CodeQuantityViolation))

	inverted := pricing.NewServicePrice(ref, priceList, types.MustMoney("10"))
	inverted.ValidFrom, inverted.ValidUpto = day("2026-02-01"), day("2026-01-01")
	assert.True(t, apperror.HasCode(svc.Create(ctx, inverted), apperror.CodeValidation))

	unknown := pricing.NewServicePrice(catalog.Ref(catalog.KindJobType, "JT-99"), priceList, types.MustMoney("10"))
	assert.True(t, apperror.HasCode(svc.Create(ctx, unknown), apperror.CodeReferenceNotFound))

	first := pricing.NewServicePrice(ref, priceList, types.MustMoney("100"))
	first.ValidFrom = day("2026-01-01")
	require.NoError(t, svc.Create(ctx, first))

	overlapping := pricing.NewServicePrice(ref, priceList, types.MustMoney("120"))
	overlapping.ValidUpto = day("2026-01-15")
	assert.True(t, apperror.HasCode(svc.Create(ctx, overlapping), apperror.CodeDuplicate))

	// inactive rows may overlap
	inactive := pricing.NewServicePrice(ref, priceList, types.MustMoney("120"))
	inactive.IsActive = false
	assert.NoError(t, svc.Create(ctx, inactive))
}

func TestService_ActivateDeactivatesConflicts(t *testing.T) {
	f := newFixture()
	svc := newService(f, nil)
	ctx := context.Background()
	ref := catalog.Ref(catalog.KindJobType, "JT-01")

	old := pricing.NewServicePrice(ref, priceList, types.MustMoney("100"))
	require.NoError(t, svc.Create(ctx, old))

	later := pricing.NewServicePrice(ref, priceList, types.MustMoney("150"))
	later.ValidFrom = day("2026-06-01")
	later.IsActive = false
	require.NoError(t, svc.Create(ctx, later))

	deactivated, err := svc.Activate(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, []any{old.ID}, toAny(deactivated))
	assert.False(t, old.IsActive)
	assert.True(t, later.IsActive)

	res, err := svc.Resolve(ctx, ref, priceList, *day("2026-07-01"))
	require.NoError(t, err)
	assert.True(t, types.MustMoney("150").Equal(res.Rate))
}

func TestService_DeleteLastActiveWarns(t *testing.T) {
	f := newFixture()
	svc := newService(f, nil)
	ctx := context.Background()

	p := pricing.NewServicePrice(catalog.Ref(catalog.KindJobType, "JT-01"), priceList, types.MustMoney("100"))
	require.NoError(t, svc.Create(ctx, p))

	warning, err := svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, warning, "only active price")
	assert.Empty(t, f.prices.Prices)
}

func TestService_ResolveUsesCacheAndInvalidates(t *testing.T) {
	f := newFixture()
	cache := &countingCache{entries: map[string]pricing.Resolution{}}
	svc := newService(f, cache)
	ctx := context.Background()
	ref := catalog.Ref(catalog.KindJobType, "JT-01")
	on := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Resolve(ctx, ref, priceList, on)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, ref, priceList, on)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.loads)

	require.NoError(t, svc.Create(ctx, pricing.NewServicePrice(ref, priceList, types.MustMoney("80"))))
	assert.Equal(t, 1, cache.invalidated)

	res, err := svc.Resolve(ctx, ref, priceList, on)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("80").Equal(res.Rate))
	assert.Equal(t, 2, cache.loads)
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
