package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/adjustment"
	"workshop/internal/domain/opname"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	adjustmentTable      = "doc_part_stock_adjustments"
	adjustmentItemsTable = "doc_part_stock_adjustment_items"
	adjustmentLogsTable  = "doc_part_stock_adjustment_entry_logs"
)

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct {
	txm   *postgres.TxManager
	docs  *postgres.Table[*adjustment.Adjustment]
	items *postgres.Lines[adjustment.Line]
	logs  *postgres.Lines[adjustment.StockEntryLog]
}

// NewAdjustmentRepo creates the adjustment repository.
func NewAdjustmentRepo(txm *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		txm: txm,
		docs: postgres.NewTable(txm, postgres.TableConfig[*adjustment.Adjustment]{
			Name:         adjustmentTable,
			Entity:       adjustment.EntityName,
			StatusColumn: "status",
			DefaultOrder: "posting_date DESC, created_at DESC",
			New:          func() *adjustment.Adjustment { return &adjustment.Adjustment{} },
		}),
		items: postgres.NewLines[adjustment.Line](txm, adjustmentItemsTable, "adjustment_id", "line_no"),
		logs:  postgres.NewLines[adjustment.StockEntryLog](txm, adjustmentLogsTable, "adjustment_id", "created_at"),
	}
}

// Create inserts the adjustment and its lines.
func (r *AdjustmentRepo) Create(ctx context.Context, a *adjustment.Adjustment) error {
	if err := r.docs.Insert(ctx, a); err != nil {
		return err
	}
	if err := r.items.Insert(ctx, a.ID, a.Items); err != nil {
		return err
	}
	return r.logs.Insert(ctx, a.ID, a.StockEntryLogs)
}

// Update writes header and lines. Stock entry logs are owned by SetPostingResult.
func (r *AdjustmentRepo) Update(ctx context.Context, a *adjustment.Adjustment) error {
	if err := r.docs.Update(ctx, a, a.ID, a.Version); err != nil {
		return err
	}
	if err := r.items.Replace(ctx, a.ID, a.Items); err != nil {
		return err
	}
	a.BumpVersion()
	return nil
}

// GetByID loads an adjustment with lines and logs.
func (r *AdjustmentRepo) GetByID(ctx context.Context, adjustmentID id.ID) (*adjustment.Adjustment, error) {
	a, err := r.docs.GetByID(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	if a.Items, err = r.items.Load(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.StockEntryLogs, err = r.logs.Load(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns adjustment headers.
func (r *AdjustmentRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*adjustment.Adjustment], error) {
	return r.docs.List(ctx, f)
}

func activeForOpnameQuery(opnameID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().Select("id", "number").From(adjustmentTable).
		Where(squirrel.Eq{"reference_opname": opnameID}).
		Where(squirrel.NotEq{"docstatus": entity.DocStatusCancelled}).
		OrderBy("number")
}

// ActiveForOpname lists draft and submitted adjustments of an opname.
func (r *AdjustmentRepo) ActiveForOpname(ctx context.Context, opnameID id.ID) ([]opname.AdjustmentRef, error) {
	sql, args, err := activeForOpnameQuery(opnameID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []opname.AdjustmentRef
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustments of opname: %w", err)
	}
	return out, nil
}

func claimPostingQuery(adjustmentID id.ID) squirrel.UpdateBuilder {
	return postgres.Builder().Update(adjustmentTable).
		Set("posting_status", adjustment.PostingInProgress).
		Set("posting_error", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"id":             adjustmentID,
			"docstatus":      entity.DocStatusSubmitted,
			"posting_status": []adjustment.PostingStatus{adjustment.PostingQueued, adjustment.PostingFailed},
		})
}

// ClaimPosting takes the adjustment for one posting run. The row lock held
// until commit makes a concurrent claim wait and then see the new status.
func (r *AdjustmentRepo) ClaimPosting(ctx context.Context, adjustmentID id.ID) (bool, error) {
	sql, args, err := claimPostingQuery(adjustmentID).ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}
	res, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("claim posting: %w", err)
	}
	return res.RowsAffected() == 1, nil
}

func postingResultQuery(adjustmentID id.ID, result adjustment.PostingResult) squirrel.UpdateBuilder {
	return postgres.Builder().Update(adjustmentTable).
		Set("posting_status", result.Status).
		Set("posting_error", result.Error).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": adjustmentID})
}

// SetPostingResult records the posting outcome and its stock entry logs.
func (r *AdjustmentRepo) SetPostingResult(ctx context.Context, adjustmentID id.ID, result adjustment.PostingResult) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := postingResultQuery(adjustmentID, result).ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("set posting result: %w", err)
		}
		return r.logs.Replace(ctx, adjustmentID, result.Logs)
	})
}

var _ adjustment.Repository = (*AdjustmentRepo)(nil)
