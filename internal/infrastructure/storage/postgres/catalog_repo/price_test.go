package catalog_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/pricing"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidOn(t *testing.T) {
	sql, args, err := ValidOn(date(2026, 3, 15)).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "((valid_from IS NULL OR valid_from <= ?) AND (valid_upto IS NULL OR valid_upto >= ?))", sql)
	assert.Equal(t, []any{"2026-03-15", "2026-03-15"}, args)
}

func TestOverlapsWindow_OpenEndsUseSentinels(t *testing.T) {
	from := date(2026, 1, 1)
	sql, args, err := OverlapsWindow(pricing.Window{From: &from}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "(COALESCE(valid_from, ?::date) <= ?::date AND COALESCE(valid_upto, ?::date) >= ?::date)", sql)
	assert.Equal(t, []any{"1000-01-01", "9999-12-31", "9999-12-31", "2026-01-01"}, args)
}

func TestActiveQuery(t *testing.T) {
	r := NewPriceRepo(nil)
	ref := catalog.Ref(catalog.KindJobType, "Tune Up")

	sql, args, err := r.activeQuery(ref, "Standard Selling", date(2026, 3, 15)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM cat_service_prices WHERE is_active = $1 AND price_list = $2 AND reference_name = $3 AND reference_type = $4")
	assert.Contains(t, sql, "ORDER BY valid_from DESC NULLS LAST, created_at DESC")
	assert.Equal(t, []any{true, "Standard Selling", "Tune Up", catalog.KindJobType, "2026-03-15", "2026-03-15"}, args)
}

func TestOverlappingQuery_ExcludesSelf(t *testing.T) {
	r := NewPriceRepo(nil)
	p := pricing.NewServicePrice(catalog.Ref(catalog.KindPart, "P-1"), "Standard Selling", types.MustMoney("10"))

	sql, args, err := r.overlappingQuery(p).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "id <> $5")
	assert.Contains(t, args, p.ID)
}

func TestItemPriceQuery(t *testing.T) {
	r := NewPriceRepo(nil)

	sql, args, err := r.itemPriceQuery("OIL-1", "Standard Selling", date(2026, 3, 15)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM cat_item_prices WHERE item_code = $1 AND price_list = $2 AND selling = $3")
	assert.Equal(t, []any{"OIL-1", "Standard Selling", true, "2026-03-15", "2026-03-15"}, args)
}
