package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/workorder"
)

func TestAddConsumedQtyQuery(t *testing.T) {
	woID := id.New()
	qty := types.Qty(-2)

	sql, args, err := addConsumedQtyQuery(woID, workorder.ConsumedDelta{Part: "P-OIL", Qty: qty}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE doc_work_order_parts SET consumed_qty = GREATEST(consumed_qty + $1, 0) "+
			"WHERE line_id = (SELECT line_id FROM doc_work_order_parts WHERE work_order_id = $2 AND part = $3 ORDER BY line_no LIMIT 1)",
		sql)
	assert.Equal(t, []any{qty, woID, "P-OIL"}, args)
}

func TestBumpWorkOrderVersionQuery(t *testing.T) {
	woID := id.New()

	sql, args, err := bumpWorkOrderVersionQuery(woID).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE doc_work_orders SET version = version + 1, updated_at = now() WHERE id = $1", sql)
	assert.Equal(t, []any{woID.String()}, args)
}
