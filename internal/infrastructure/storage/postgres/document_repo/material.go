package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/material"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	materialIssueTable      = "doc_material_issues"
	materialIssueItemsTable = "doc_material_issue_items"
	materialReturnTable     = "doc_material_returns"
	materialReturnItemTable = "doc_material_return_items"
)

// MaterialIssueRepo implements material.IssueRepository.
type MaterialIssueRepo struct {
	txm   *postgres.TxManager
	docs  *postgres.Table[*material.Issue]
	items *postgres.Lines[material.IssueItem]
}

// NewMaterialIssueRepo creates the material issue repository.
func NewMaterialIssueRepo(txm *postgres.TxManager) *MaterialIssueRepo {
	return &MaterialIssueRepo{
		txm: txm,
		docs: postgres.NewTable(txm, postgres.TableConfig[*material.Issue]{
			Name:         materialIssueTable,
			Entity:       material.IssueEntityName,
			StatusColumn: "status",
			DefaultOrder: "posting_date DESC, created_at DESC",
			New:          func() *material.Issue { return &material.Issue{} },
		}),
		items: postgres.NewLines[material.IssueItem](txm, materialIssueItemsTable, "issue_id", "line_no"),
	}
}

// Create inserts the issue and its rows.
func (r *MaterialIssueRepo) Create(ctx context.Context, i *material.Issue) error {
	if err := r.docs.Insert(ctx, i); err != nil {
		return err
	}
	return r.items.Insert(ctx, i.ID, i.Items)
}

// Update writes header and rows under optimistic locking.
func (r *MaterialIssueRepo) Update(ctx context.Context, i *material.Issue) error {
	if err := r.docs.Update(ctx, i, i.ID, i.Version); err != nil {
		return err
	}
	if err := r.items.Replace(ctx, i.ID, i.Items); err != nil {
		return err
	}
	i.BumpVersion()
	return nil
}

// GetByID loads an issue with its rows.
func (r *MaterialIssueRepo) GetByID(ctx context.Context, issueID id.ID) (*material.Issue, error) {
	i, err := r.docs.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if i.Items, err = r.items.Load(ctx, i.ID); err != nil {
		return nil, err
	}
	return i, nil
}

// List returns issue headers.
func (r *MaterialIssueRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*material.Issue], error) {
	return r.docs.List(ctx, f)
}

func issuedPartsQuery(workOrderID, exclude id.ID, parts []string) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("it.part", "d.id", "d.number", "d.docstatus").
		From(materialIssueTable + " d").
		Join(materialIssueItemsTable + " it ON it.issue_id = d.id").
		Where(squirrel.Eq{"d.work_order": workOrderID, "it.part": parts}).
		Where(squirrel.NotEq{"d.docstatus": entity.DocStatusCancelled}).
		Where(squirrel.NotEq{"d.id": exclude}).
		OrderBy("d.number")
}

// IssuedParts finds the parts on other live issues of the work order.
func (r *MaterialIssueRepo) IssuedParts(ctx context.Context, workOrderID, exclude id.ID, parts []string) ([]material.IssuedPart, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	sql, args, err := issuedPartsQuery(workOrderID, exclude, parts).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []material.IssuedPart
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select issued parts: %w", err)
	}
	return out, nil
}

var _ material.IssueRepository = (*MaterialIssueRepo)(nil)

// MaterialReturnRepo implements material.ReturnRepository.
type MaterialReturnRepo struct {
	docs  *postgres.Table[*material.Return]
	items *postgres.Lines[material.ReturnItem]
}

// NewMaterialReturnRepo creates the material return repository.
func NewMaterialReturnRepo(txm *postgres.TxManager) *MaterialReturnRepo {
	return &MaterialReturnRepo{
		docs: postgres.NewTable(txm, postgres.TableConfig[*material.Return]{
			Name:         materialReturnTable,
			Entity:       material.ReturnEntityName,
			StatusColumn: "status",
			DefaultOrder: "posting_date DESC, created_at DESC",
			New:          func() *material.Return { return &material.Return{} },
		}),
		items: postgres.NewLines[material.ReturnItem](txm, materialReturnItemTable, "return_id", "line_no"),
	}
}

// Create inserts the return and its rows.
func (r *MaterialReturnRepo) Create(ctx context.Context, ret *material.Return) error {
	if err := r.docs.Insert(ctx, ret); err != nil {
		return err
	}
	return r.items.Insert(ctx, ret.ID, ret.Items)
}

// Update writes header and rows under optimistic locking.
func (r *MaterialReturnRepo) Update(ctx context.Context, ret *material.Return) error {
	if err := r.docs.Update(ctx, ret, ret.ID, ret.Version); err != nil {
		return err
	}
	if err := r.items.Replace(ctx, ret.ID, ret.Items); err != nil {
		return err
	}
	ret.BumpVersion()
	return nil
}

// GetByID loads a return with its rows.
func (r *MaterialReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*material.Return, error) {
	ret, err := r.docs.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Items, err = r.items.Load(ctx, ret.ID); err != nil {
		return nil, err
	}
	return ret, nil
}

// List returns return headers.
func (r *MaterialReturnRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*material.Return], error) {
	return r.docs.List(ctx, f)
}

var _ material.ReturnRepository = (*MaterialReturnRepo)(nil)
