package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/workorder"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	workOrderTable      = "doc_work_orders"
	workOrderPartsTable = "doc_work_order_parts"
)

// WorkOrderRepo implements workorder.Repository.
type WorkOrderRepo struct {
	txm       *postgres.TxManager
	docs      *postgres.Table[*workorder.WorkOrder]
	jobs      *postgres.Lines[workorder.JobLine]
	packages  *postgres.Lines[workorder.PackageLine]
	parts     *postgres.Lines[workorder.PartLine]
	externals *postgres.Lines[workorder.ExternalLine]
}

// NewWorkOrderRepo creates the work order repository.
func NewWorkOrderRepo(txm *postgres.TxManager) *WorkOrderRepo {
	return &WorkOrderRepo{
		txm: txm,
		docs: postgres.NewTable(txm, postgres.TableConfig[*workorder.WorkOrder]{
			Name:         workOrderTable,
			Entity:       workorder.EntityName,
			StatusColumn: "status",
			New:          func() *workorder.WorkOrder { return &workorder.WorkOrder{} },
		}),
		jobs:      postgres.NewLines[workorder.JobLine](txm, "doc_work_order_job_types", "work_order_id", "line_no"),
		packages:  postgres.NewLines[workorder.PackageLine](txm, "doc_work_order_service_packages", "work_order_id", "line_no"),
		parts:     postgres.NewLines[workorder.PartLine](txm, workOrderPartsTable, "work_order_id", "line_no"),
		externals: postgres.NewLines[workorder.ExternalLine](txm, "doc_work_order_external_services", "work_order_id", "line_no"),
	}
}

// Create inserts the work order and its line groups.
func (r *WorkOrderRepo) Create(ctx context.Context, w *workorder.WorkOrder) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.docs.Insert(ctx, w); err != nil {
			return err
		}
		return r.writeLines(ctx, w)
	})
}

// Update writes the header under optimistic locking and replaces all lines.
func (r *WorkOrderRepo) Update(ctx context.Context, w *workorder.WorkOrder) error {
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.docs.Update(ctx, w, w.ID, w.Version); err != nil {
			return err
		}
		return r.writeLines(ctx, w)
	})
	if err != nil {
		return err
	}
	w.BumpVersion()
	return nil
}

func (r *WorkOrderRepo) writeLines(ctx context.Context, w *workorder.WorkOrder) error {
	if err := r.jobs.Replace(ctx, w.ID, w.JobTypes); err != nil {
		return err
	}
	if err := r.packages.Replace(ctx, w.ID, w.ServicePackages); err != nil {
		return err
	}
	if err := r.parts.Replace(ctx, w.ID, w.Parts); err != nil {
		return err
	}
	return r.externals.Replace(ctx, w.ID, w.ExternalServices)
}

// GetByID loads a work order with all line groups.
func (r *WorkOrderRepo) GetByID(ctx context.Context, workOrderID id.ID) (*workorder.WorkOrder, error) {
	w, err := r.docs.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if w.JobTypes, err = r.jobs.Load(ctx, w.ID); err != nil {
		return nil, err
	}
	if w.ServicePackages, err = r.packages.Load(ctx, w.ID); err != nil {
		return nil, err
	}
	if w.Parts, err = r.parts.Load(ctx, w.ID); err != nil {
		return nil, err
	}
	if w.ExternalServices, err = r.externals.Load(ctx, w.ID); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns work order headers.
func (r *WorkOrderRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*workorder.WorkOrder], error) {
	return r.docs.List(ctx, f)
}

// SetBillingStatus updates only billing_status.
func (r *WorkOrderRepo) SetBillingStatus(ctx context.Context, workOrderID id.ID, status workorder.BillingStatus) error {
	sql, args, err := postgres.Builder().Update(workOrderTable).
		Set("billing_status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": workOrderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set billing status: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperror.NewNotFound(workorder.EntityName, workOrderID)
	}
	return nil
}

func addConsumedQtyQuery(workOrderID id.ID, d workorder.ConsumedDelta) squirrel.UpdateBuilder {
	return postgres.Builder().Update(workOrderPartsTable).
		Set("consumed_qty", squirrel.Expr("GREATEST(consumed_qty + ?, 0)", d.Qty)).
		Where("line_id = (SELECT line_id FROM "+workOrderPartsTable+
			" WHERE work_order_id = ? AND part = ? ORDER BY line_no LIMIT 1)", workOrderID, d.Part)
}

func bumpWorkOrderVersionQuery(workOrderID id.ID) squirrel.UpdateBuilder {
	return postgres.Builder().Update(workOrderTable).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": workOrderID})
}

// AddConsumedQty applies consumption deltas in place so concurrent issues
// and returns never overwrite each other. The version bump makes a stale
// Update of the same work order fail instead of restoring old quantities.
func (r *WorkOrderRepo) AddConsumedQty(ctx context.Context, workOrderID id.ID, deltas []workorder.ConsumedDelta) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)
		sql, args, err := bumpWorkOrderVersionQuery(workOrderID).ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		res, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("bump work order version: %w", err)
		}
		if res.RowsAffected() == 0 {
			return apperror.NewNotFound(workorder.EntityName, workOrderID)
		}
		for _, d := range deltas {
			sql, args, err := addConsumedQtyQuery(workOrderID, d).ToSql()
			if err != nil {
				return fmt.Errorf("build update: %w", err)
			}
			if _, err := q.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("add consumed qty of %s: %w", d.Part, err)
			}
		}
		return nil
	})
}

var _ workorder.Repository = (*WorkOrderRepo)(nil)
