// Package catalog_repo provides PostgreSQL repositories for master data:
// parts, job types, service packages and prices.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/apperror"
	"workshop/internal/domain/catalog"
	"workshop/internal/infrastructure/cache"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	partsTable           = "cat_parts"
	jobTypesTable        = "cat_job_types"
	servicePackagesTable = "cat_service_packages"
	itemBarcodesTable    = "cat_item_barcodes"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	txm      *postgres.TxManager
	parts    *postgres.Table[*catalog.Part]
	jobs     *postgres.Table[*catalog.JobType]
	packages *postgres.Table[*catalog.ServicePackage]
}

// NewCatalogRepo creates the catalog repository.
func NewCatalogRepo(txm *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txm: txm,
		parts: postgres.NewTable(txm, postgres.TableConfig[*catalog.Part]{
			Name: partsTable, Entity: string(catalog.KindPart), DefaultOrder: "code ASC",
			New: func() *catalog.Part { return &catalog.Part{} },
		}),
		jobs: postgres.NewTable(txm, postgres.TableConfig[*catalog.JobType]{
			Name: jobTypesTable, Entity: string(catalog.KindJobType), DefaultOrder: "code ASC",
			New: func() *catalog.JobType { return &catalog.JobType{} },
		}),
		packages: postgres.NewTable(txm, postgres.TableConfig[*catalog.ServicePackage]{
			Name: servicePackagesTable, Entity: string(catalog.KindServicePackage), DefaultOrder: "code ASC",
			New: func() *catalog.ServicePackage { return &catalog.ServicePackage{} },
		}),
	}
}

// GetPart returns the part or NotFound.
func (r *CatalogRepo) GetPart(ctx context.Context, code string) (*catalog.Part, error) {
	return r.parts.Get(ctx, r.parts.Select().Where(squirrel.Eq{"code": code}), code)
}

// GetJobType returns the job type or NotFound.
func (r *CatalogRepo) GetJobType(ctx context.Context, code string) (*catalog.JobType, error) {
	return r.jobs.Get(ctx, r.jobs.Select().Where(squirrel.Eq{"code": code}), code)
}

// GetServicePackage returns the package or NotFound.
func (r *CatalogRepo) GetServicePackage(ctx context.Context, code string) (*catalog.ServicePackage, error) {
	return r.packages.Get(ctx, r.packages.Select().Where(squirrel.Eq{"code": code}), code)
}

// FindItemByBarcode returns the item owning barcode, or "".
func (r *CatalogRepo) FindItemByBarcode(ctx context.Context, barcode string) (string, error) {
	sql, args, err := postgres.Builder().Select("item_code").
		From(itemBarcodesTable).
		Where(squirrel.Eq{"barcode": barcode}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}
	var itemCode string
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &itemCode, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("find item by barcode: %w", err)
	}
	return itemCode, nil
}

func (r *CatalogRepo) findPart(ctx context.Context, cond squirrel.Sqlizer) (*catalog.Part, error) {
	p, err := r.parts.Get(ctx, r.parts.Select().Where(cond).OrderBy("code"), "")
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return p, err
}

// FindPartByItem returns the part linked to itemCode, or nil.
func (r *CatalogRepo) FindPartByItem(ctx context.Context, itemCode string) (*catalog.Part, error) {
	return r.findPart(ctx, squirrel.Eq{"item_code": itemCode})
}

// FindPartByBarcode returns the part carrying barcode, or nil.
func (r *CatalogRepo) FindPartByBarcode(ctx context.Context, barcode string) (*catalog.Part, error) {
	return r.findPart(ctx, squirrel.Eq{"barcode": barcode})
}

func (r *CatalogRepo) listPartsQuery(search string, limit, offset int) squirrel.SelectBuilder {
	q := r.parts.Select().Where(squirrel.Eq{"disabled": false})
	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"part_name": pattern},
		})
	}
	q = q.OrderBy("code")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

// ListParts searches enabled parts by code or name.
func (r *CatalogRepo) ListParts(ctx context.Context, search string, limit, offset int) ([]catalog.Part, error) {
	found, err := r.parts.Find(ctx, r.listPartsQuery(search, limit, offset))
	if err != nil {
		return nil, err
	}
	parts := make([]catalog.Part, 0, len(found))
	for _, p := range found {
		parts = append(parts, *p)
	}
	return parts, nil
}

func itemLinkTable(kind catalog.ReferenceKind) (string, bool) {
	switch kind {
	case catalog.KindPart:
		return partsTable, true
	case catalog.KindJobType:
		return jobTypesTable, true
	case catalog.KindServicePackage:
		return servicePackagesTable, true
	}
	return "", false
}

func setItemLinkQuery(table, code string, itemCode *string) squirrel.UpdateBuilder {
	return postgres.Builder().Update(table).
		Set("item_code", itemCode).
		Where(squirrel.Eq{"code": code})
}

// notifyPriceChangedQuery uses the table name as payload, the same one the
// table trigger sends, so PostgreSQL folds both into a single notification.
func notifyPriceChangedQuery(table string) squirrel.SelectBuilder {
	return postgres.Builder().Select().
		Column(squirrel.Expr("pg_notify(?, ?)", cache.ChannelPriceChanged, table))
}

// SetItemLink updates item_code and notifies price listeners in one transaction.
func (r *CatalogRepo) SetItemLink(ctx context.Context, ref catalog.Reference, itemCode *string) error {
	table, ok := itemLinkTable(ref.Kind)
	if !ok {
		return apperror.NewValidation(fmt.Sprintf("item link is not stored for %s", ref.Kind))
	}

	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := setItemLinkQuery(table, ref.Name, itemCode).ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		q := r.txm.GetQuerier(ctx)
		res, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("set item link: %w", err)
		}
		if res.RowsAffected() == 0 {
			return apperror.NewNotFound(string(ref.Kind), ref.Name)
		}

		sql, args, err = notifyPriceChangedQuery(table).ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("notify %s: %w", cache.ChannelPriceChanged, err)
		}
		return nil
	})
}

var _ catalog.Repository = (*CatalogRepo)(nil)
