// Package document_repo provides PostgreSQL repositories for workshop documents.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/opname"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	opnameTable      = "doc_part_stock_opnames"
	opnameItemsTable = "doc_part_stock_opname_items"
)

// OpnameRepo implements opname.Repository.
type OpnameRepo struct {
	txm   *postgres.TxManager
	docs  *postgres.Table[*opname.Opname]
	items *postgres.Lines[opname.Item]
}

// NewOpnameRepo creates the opname repository.
func NewOpnameRepo(txm *postgres.TxManager) *OpnameRepo {
	return &OpnameRepo{
		txm: txm,
		docs: postgres.NewTable(txm, postgres.TableConfig[*opname.Opname]{
			Name:         opnameTable,
			Entity:       opname.EntityName,
			StatusColumn: "status",
			DefaultOrder: "posting_date DESC, created_at DESC",
			New:          func() *opname.Opname { return &opname.Opname{} },
		}),
		items: postgres.NewLines[opname.Item](txm, opnameItemsTable, "opname_id", "line_no"),
	}
}

// Create inserts the opname and its items.
func (r *OpnameRepo) Create(ctx context.Context, o *opname.Opname) error {
	if err := r.docs.Insert(ctx, o); err != nil {
		return err
	}
	return r.items.Insert(ctx, o.ID, o.Items)
}

// Update writes the header under optimistic locking and replaces the items.
func (r *OpnameRepo) Update(ctx context.Context, o *opname.Opname) error {
	if err := r.docs.Update(ctx, o, o.ID, o.Version); err != nil {
		return err
	}
	if err := r.items.Replace(ctx, o.ID, o.Items); err != nil {
		return err
	}
	o.BumpVersion()
	return nil
}

// GetByID loads an opname with items and decoded snapshot.
func (r *OpnameRepo) GetByID(ctx context.Context, opnameID id.ID) (*opname.Opname, error) {
	o, err := r.docs.GetByID(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OpnameRepo) hydrate(ctx context.Context, o *opname.Opname) error {
	items, err := r.items.Load(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Items = items
	snap, err := opname.DecodeSnapshot(o.SnapshotBlob)
	if err != nil {
		return fmt.Errorf("decode opname %s snapshot: %w", o.Number, err)
	}
	o.Snapshot = snap
	return nil
}

// List returns opname headers; items are not loaded.
func (r *OpnameRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*opname.Opname], error) {
	return r.docs.List(ctx, f)
}

func markAdjustedQuery(opnameID, adjustmentID id.ID) squirrel.UpdateBuilder {
	return postgres.Builder().Update(opnameTable).
		Set("status", opname.StatusAdjusted).
		Set("adjustment_id", adjustmentID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": opnameID, "status": opname.StatusSubmitted})
}

// MarkAdjusted links the adjustment if the opname is still Submitted.
// The conditional update makes concurrent adjustments of one opname lose.
func (r *OpnameRepo) MarkAdjusted(ctx context.Context, opnameID, adjustmentID id.ID) error {
	sql, args, err := markAdjustedQuery(opnameID, adjustmentID).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark opname adjusted: %w", err)
	}
	if res.RowsAffected() == 0 {
		current, err := r.docs.GetByID(ctx, opnameID)
		if err != nil {
			return err
		}
		return apperror.NewInvalidStateTransition(opname.EntityName, string(current.Status), "adjust")
	}
	return nil
}

var _ opname.Repository = (*OpnameRepo)(nil)
