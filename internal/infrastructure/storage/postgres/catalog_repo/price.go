package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/pricing"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	servicePricesTable = "cat_service_prices"
	itemPricesTable    = "cat_item_prices"
	itemTaxesTable     = "cat_item_taxes"
)

// ValidOn matches rows whose [valid_from, valid_upto] window contains date.
// NULL bounds are open.
func ValidOn(date time.Time) squirrel.Sqlizer {
	d := date.Format(time.DateOnly)
	return squirrel.And{
		squirrel.Or{squirrel.Eq{"valid_from": nil}, squirrel.LtOrEq{"valid_from": d}},
		squirrel.Or{squirrel.Eq{"valid_upto": nil}, squirrel.GtOrEq{"valid_upto": d}},
	}
}

// OverlapsWindow matches rows whose window shares a day with w.
func OverlapsWindow(w pricing.Window) squirrel.Sqlizer {
	start, end := w.Bounds()
	return squirrel.And{
		squirrel.Expr("COALESCE(valid_from, ?::date) <= ?::date", pricing.MinDate.Format(time.DateOnly), end.Format(time.DateOnly)),
		squirrel.Expr("COALESCE(valid_upto, ?::date) >= ?::date", pricing.MaxDate.Format(time.DateOnly), start.Format(time.DateOnly)),
	}
}

// PriceRepo implements pricing.Repository and pricing.ItemPriceReader.
type PriceRepo struct {
	txm    *postgres.TxManager
	prices *postgres.Table[*pricing.ServicePrice]
	items  *postgres.Table[*pricing.ItemPrice]
}

// NewPriceRepo creates the price repository.
func NewPriceRepo(txm *postgres.TxManager) *PriceRepo {
	return &PriceRepo{
		txm: txm,
		prices: postgres.NewTable(txm, postgres.TableConfig[*pricing.ServicePrice]{
			Name:   servicePricesTable,
			Entity: "Service Price List",
			New:    func() *pricing.ServicePrice { return &pricing.ServicePrice{} },
		}),
		items: postgres.NewTable(txm, postgres.TableConfig[*pricing.ItemPrice]{
			Name:   itemPricesTable,
			Entity: "Item Price",
			New:    func() *pricing.ItemPrice { return &pricing.ItemPrice{} },
		}),
	}
}

// Create inserts a service price row.
func (r *PriceRepo) Create(ctx context.Context, p *pricing.ServicePrice) error {
	return r.prices.Insert(ctx, p)
}

// Update writes a service price row under optimistic locking.
func (r *PriceRepo) Update(ctx context.Context, p *pricing.ServicePrice) error {
	if err := r.prices.Update(ctx, p, p.ID, p.Version); err != nil {
		return err
	}
	p.BumpVersion()
	return nil
}

// Delete removes a service price row.
func (r *PriceRepo) Delete(ctx context.Context, priceID id.ID) error {
	sql, args, err := postgres.Builder().Delete(servicePricesTable).Where(squirrel.Eq{"id": priceID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete service price: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperror.NewNotFound("Service Price List", priceID)
	}
	return nil
}

// GetByID returns a service price row.
func (r *PriceRepo) GetByID(ctx context.Context, priceID id.ID) (*pricing.ServicePrice, error) {
	return r.prices.GetByID(ctx, priceID)
}

// List returns service price rows.
func (r *PriceRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*pricing.ServicePrice], error) {
	return r.prices.List(ctx, f)
}

func (r *PriceRepo) pairQuery(ref catalog.Reference, priceList string) squirrel.SelectBuilder {
	return r.prices.Select().Where(squirrel.Eq{
		"reference_type": ref.Kind,
		"reference_name": ref.Name,
		"price_list":     priceList,
		"is_active":      true,
	})
}

func (r *PriceRepo) activeQuery(ref catalog.Reference, priceList string, date time.Time) squirrel.SelectBuilder {
	return r.pairQuery(ref, priceList).
		Where(ValidOn(date)).
		OrderBy("valid_from DESC NULLS LAST", "created_at DESC")
}

// FindActive returns the active row covering date, or nil.
func (r *PriceRepo) FindActive(ctx context.Context, ref catalog.Reference, priceList string, date time.Time) (*pricing.ServicePrice, error) {
	p, err := r.prices.Get(ctx, r.activeQuery(ref, priceList, date), ref.Name)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return p, err
}

func (r *PriceRepo) overlappingQuery(p *pricing.ServicePrice) squirrel.SelectBuilder {
	return r.pairQuery(p.Reference(), p.PriceList).
		Where(squirrel.NotEq{"id": p.ID}).
		Where(OverlapsWindow(p.Window())).
		OrderBy("valid_from NULLS FIRST")
}

// FindOverlapping returns other active rows of the pair whose windows overlap p's.
func (r *PriceRepo) FindOverlapping(ctx context.Context, p *pricing.ServicePrice) ([]*pricing.ServicePrice, error) {
	return r.prices.Find(ctx, r.overlappingQuery(p))
}

// CountActive counts active rows of the pair other than exclude.
func (r *PriceRepo) CountActive(ctx context.Context, ref catalog.Reference, priceList string, exclude id.ID) (int, error) {
	sql, args, err := postgres.Builder().Select("COUNT(*)").
		From(servicePricesTable).
		Where(squirrel.Eq{
			"reference_type": ref.Kind,
			"reference_name": ref.Name,
			"price_list":     priceList,
			"is_active":      true,
		}).
		Where(squirrel.NotEq{"id": exclude}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active prices: %w", err)
	}
	return n, nil
}

// Deactivate clears is_active on the given rows.
func (r *PriceRepo) Deactivate(ctx context.Context, ids []id.ID) error {
	if len(ids) == 0 {
		return nil
	}
	sql, args, err := postgres.Builder().Update(servicePricesTable).
		Set("is_active", false).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("deactivate prices: %w", err)
	}
	return nil
}

func (r *PriceRepo) itemPriceQuery(itemCode, priceList string, date time.Time) squirrel.SelectBuilder {
	return r.items.Select().
		Where(squirrel.Eq{"item_code": itemCode, "price_list": priceList, "selling": true}).
		Where(ValidOn(date)).
		OrderBy("valid_from DESC NULLS LAST", "created_at DESC")
}

// FindItemPrice returns the newest selling item price valid on date, or nil.
func (r *PriceRepo) FindItemPrice(ctx context.Context, itemCode, priceList string, date time.Time) (*pricing.ItemPrice, error) {
	ip, err := r.items.Get(ctx, r.itemPriceQuery(itemCode, priceList, date), itemCode)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return ip, err
}

// DefaultTaxTemplate returns the first tax template of the item, or "".
func (r *PriceRepo) DefaultTaxTemplate(ctx context.Context, itemCode string) (string, error) {
	sql, args, err := postgres.Builder().Select("tax_template").
		From(itemTaxesTable).
		Where(squirrel.Eq{"item_code": itemCode}).
		OrderBy("idx").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}
	var tax string
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &tax, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("get item tax template: %w", err)
	}
	return tax, nil
}

var (
	_ pricing.Repository      = (*PriceRepo)(nil)
	_ pricing.ItemPriceReader = (*PriceRepo)(nil)
)
