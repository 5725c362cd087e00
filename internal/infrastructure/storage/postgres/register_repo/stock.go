// Package register_repo provides the PostgreSQL stock register: stock
// entries, their movements and the balances folded from them.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	stockEntriesTable    = "doc_stock_entries"
	stockEntryItemsTable = "doc_stock_entry_items"
	stockMovementsTable  = "reg_stock_movements"
	stockBalancesTable   = "reg_stock_balances"
	journalEntriesTable  = "acc_journal_entries"
)

var (
	movementColumns = []string{
		"line_id", "recorder_id", "recorder_type",
		"period", "record_type",
		"warehouse", "item_code", "quantity", "valuation_rate", "created_at",
	}
	balanceColumns = []string{
		"warehouse", "item_code", "quantity", "valuation_rate", "last_movement_at", "updated_at",
	}
)

// recalcBalancesSQL rebuilds the balance rows of the given keys from movements.
// The valuation rate is the receipt-weighted average.
const recalcBalancesSQL = `
	INSERT INTO reg_stock_balances (warehouse, item_code, quantity, valuation_rate, last_movement_at, updated_at)
	SELECT k.warehouse, k.item_code,
		COALESCE(SUM(CASE WHEN m.record_type = 'receipt' THEN m.quantity ELSE -m.quantity END), 0),
		COALESCE(
			SUM(CASE WHEN m.record_type = 'receipt' THEN m.quantity * m.valuation_rate END)
				/ NULLIF(SUM(CASE WHEN m.record_type = 'receipt' THEN m.quantity END), 0),
			0),
		COALESCE(MAX(m.created_at), now()),
		now()
	FROM unnest($1::text[], $2::text[]) AS k(warehouse, item_code)
	LEFT JOIN reg_stock_movements m ON m.warehouse = k.warehouse AND m.item_code = k.item_code
	GROUP BY k.warehouse, k.item_code
	ON CONFLICT (warehouse, item_code) DO UPDATE SET
		quantity         = EXCLUDED.quantity,
		valuation_rate   = EXCLUDED.valuation_rate,
		last_movement_at = EXCLUDED.last_movement_at,
		updated_at       = EXCLUDED.updated_at`

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	entries *postgres.Table[*stock.StockEntry]
	items   *postgres.Lines[stock.EntryItem]
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: postgres.Builder(),
		entries: postgres.NewTable(txm, postgres.TableConfig[*stock.StockEntry]{
			Name:   stockEntriesTable,
			Entity: stock.EntityName,
			New:    func() *stock.StockEntry { return &stock.StockEntry{} },
		}),
		items: postgres.NewLines[stock.EntryItem](txm, stockEntryItemsTable, "entry_id", "line_no"),
	}
}

// CreateEntry inserts the entry with its items.
func (r *StockRepo) CreateEntry(ctx context.Context, e *stock.StockEntry) error {
	if err := r.entries.Insert(ctx, e); err != nil {
		return err
	}
	return r.items.Insert(ctx, e.ID, e.Items)
}

// UpdateEntry writes the header; items of a posted entry never change.
func (r *StockRepo) UpdateEntry(ctx context.Context, e *stock.StockEntry) error {
	if err := r.entries.Update(ctx, e, e.ID, e.Version); err != nil {
		return err
	}
	e.BumpVersion()
	return nil
}

// GetEntry loads an entry with its items.
func (r *StockRepo) GetEntry(ctx context.Context, entryID id.ID) (*stock.StockEntry, error) {
	e, err := r.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Items, err = r.items.Load(ctx, entryID); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateMovements inserts movements and refreshes the affected balances.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			m.LineID, m.RecorderID, m.RecorderType,
			m.Period, m.RecordType,
			m.Warehouse, m.ItemCode, m.Quantity, m.ValuationRate, m.CreatedAt,
		})
	}

	// Fast path: COPY when inside a transaction.
	if r.txm.GetTx(ctx) != nil {
		if _, err := postgres.NewBatchInserter(r.txm).CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
	} else {
		q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
		for _, row := range rows {
			q = q.Values(row...)
		}
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert movements: %w", err)
		}
	}

	return r.recalcBalances(ctx, movements)
}

// DeleteMovementsByRecorder removes an entry's movements and refreshes balances.
func (r *StockRepo) DeleteMovementsByRecorder(ctx context.Context, recorderID id.ID) error {
	movements, err := r.GetMovementsByRecorder(ctx, recorderID)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Delete(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}

	return r.recalcBalances(ctx, movements)
}

func (r *StockRepo) recalcBalances(ctx context.Context, movements []entity.StockMovement) error {
	warehouses, items := balanceKeys(movements)
	if len(warehouses) == 0 {
		return nil
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, recalcBalancesSQL, warehouses, items); err != nil {
		return fmt.Errorf("recalculate balances: %w", err)
	}
	return nil
}

// balanceKeys returns the distinct (warehouse, item) pairs as parallel slices.
func balanceKeys(movements []entity.StockMovement) ([]string, []string) {
	type key struct{ warehouse, item string }
	seen := make(map[key]struct{}, len(movements))
	var warehouses, items []string
	for _, m := range movements {
		k := key{m.Warehouse, m.ItemCode}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		warehouses = append(warehouses, m.Warehouse)
		items = append(items, m.ItemCode)
	}
	return warehouses, items
}

// GetMovementsByRecorder retrieves movements for a document.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

func (r *StockRepo) balanceQuery(warehouse, itemCode string) squirrel.SelectBuilder {
	return r.builder.Select(balanceColumns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"warehouse": warehouse, "item_code": itemCode})
}

func (r *StockRepo) getBalance(ctx context.Context, q squirrel.SelectBuilder) (*entity.StockBalance, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var balance entity.StockBalance
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &balance, nil
}

// GetBalance returns current balance for warehouse+item.
func (r *StockRepo) GetBalance(ctx context.Context, warehouse, itemCode string) (*entity.StockBalance, error) {
	return r.getBalance(ctx, r.balanceQuery(warehouse, itemCode))
}

// GetBalanceForUpdate returns balance with pessimistic lock.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, warehouse, itemCode string) (*entity.StockBalance, error) {
	return r.getBalance(ctx, r.balanceQuery(warehouse, itemCode).Suffix("FOR UPDATE"))
}

func (r *StockRepo) warehouseBalancesQuery(warehouse string, filter stock.BalanceFilter) squirrel.SelectBuilder {
	q := r.builder.Select(balanceColumns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"warehouse": warehouse})
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}
	if len(filter.ItemCodes) > 0 {
		q = q.Where(squirrel.Eq{"item_code": filter.ItemCodes})
	}
	return q.OrderBy("item_code")
}

// GetBalancesByWarehouse returns balances for a warehouse.
func (r *StockRepo) GetBalancesByWarehouse(ctx context.Context, warehouse string, filter stock.BalanceFilter) ([]entity.StockBalance, error) {
	sql, args, err := r.warehouseBalancesQuery(warehouse, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var balances []entity.StockBalance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

func (r *StockRepo) subsequentQuery(f stock.SubsequentFilter) squirrel.SelectBuilder {
	return r.builder.Select("1").
		Prefix("SELECT EXISTS (").
		From(stockMovementsTable).
		Where(squirrel.NotEq{"recorder_id": f.ExcludeRecorder}).
		Where(squirrel.Eq{"item_code": f.ItemCodes}).
		Where(squirrel.Eq{"warehouse": f.Warehouses}).
		Where(squirrel.Or{
			squirrel.Gt{"period": f.AfterPeriod},
			squirrel.And{
				squirrel.Eq{"period": f.AfterPeriod},
				squirrel.Gt{"created_at": f.CreatedAfter},
			},
		}).
		Suffix(")")
}

// HasSubsequentMovements reports later movements of other documents on the same stock.
func (r *StockRepo) HasSubsequentMovements(ctx context.Context, f stock.SubsequentFilter) (bool, error) {
	if len(f.ItemCodes) == 0 || len(f.Warehouses) == 0 {
		return false, nil
	}
	sql, args, err := r.subsequentQuery(f).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check subsequent movements: %w", err)
	}
	return exists, nil
}

func (r *StockRepo) journalQuery(entryID id.ID) squirrel.SelectBuilder {
	return r.builder.Select("1").
		Prefix("SELECT EXISTS (").
		From(journalEntriesTable).
		Where(squirrel.Eq{
			"reference_type": stock.EntityName,
			"reference_id":   entryID,
			"docstatus":      entity.DocStatusSubmitted,
		}).
		Suffix(")")
}

// HasJournalEntries reports submitted journal entries referencing the entry.
func (r *StockRepo) HasJournalEntries(ctx context.Context, entryID id.ID) (bool, error) {
	sql, args, err := r.journalQuery(entryID).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check journal entries: %w", err)
	}
	return exists, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
