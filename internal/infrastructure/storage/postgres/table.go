package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/filter"
)

// Table is the generic CRUD layer shared by document repositories.
// T is a pointer to a struct whose "db" tags name the table columns.
type Table[T any] struct {
	txm          *TxManager
	name         string
	entity       string
	cols         []string
	statusColumn string
	defaultOrder string
	newFn        func() T
}

// TableConfig configures a Table.
type TableConfig[T any] struct {
	Name   string
	Entity string // for NotFound and concurrency errors
	// StatusColumn receives ListFilter.Status; empty disables it.
	StatusColumn string
	DefaultOrder string
	New          func() T
}

// NewTable creates a table mapping. Columns come from T's db tags.
func NewTable[T any](txm *TxManager, cfg TableConfig[T]) *Table[T] {
	order := cfg.DefaultOrder
	if order == "" {
		order = "created_at DESC"
	}
	return &Table[T]{
		txm:          txm,
		name:         cfg.Name,
		entity:       cfg.Entity,
		cols:         ExtractDBColumns[T](),
		statusColumn: cfg.StatusColumn,
		defaultOrder: order,
		newFn:        cfg.New,
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Columns returns the mapped columns.
func (t *Table[T]) Columns() []string { return t.cols }

// Querier returns the transaction in ctx or the pool.
func (t *Table[T]) Querier(ctx context.Context) Querier {
	return t.txm.GetQuerier(ctx)
}

func (t *Table[T]) values(e T, skip ...string) map[string]any {
	data := StructToMap(e)
	out := make(map[string]any, len(t.cols))
	for _, col := range t.cols {
		if containsString(skip, col) {
			continue
		}
		if v, ok := data[col]; ok {
			out[col] = v
		}
	}
	return out
}

// Insert writes a new row.
func (t *Table[T]) Insert(ctx context.Context, e T) error {
	sql, args, err := Builder().Insert(t.name).SetMap(t.values(e)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return apperror.NewDuplicate(t.entity, "number", "").WithCause(err)
		}
		if IsForeignKeyViolation(err) {
			return apperror.NewReferenceNotFound(t.entity, constraintName(err)).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

// Update writes all columns under optimistic locking on version.
func (t *Table[T]) Update(ctx context.Context, e T, entityID id.ID, version int) error {
	sql, args, err := Builder().Update(t.name).
		SetMap(t.values(e, "id", "version", "created_at", "created_by")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := t.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	if res.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(t.entity, entityID)
	}
	return nil
}

// Select starts a query over the mapped columns.
func (t *Table[T]) Select() squirrel.SelectBuilder {
	return Builder().Select(t.cols...).From(t.name)
}

// Get returns one row or NotFound.
func (t *Table[T]) Get(ctx context.Context, q squirrel.SelectBuilder, ref any) (T, error) {
	e := t.newFn()
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return e, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, t.Querier(ctx), e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return e, apperror.NewNotFound(t.entity, ref)
		}
		return e, fmt.Errorf("get %s: %w", t.name, err)
	}
	return e, nil
}

// GetByID returns the row with the given id.
func (t *Table[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return t.Get(ctx, t.Select().Where(squirrel.Eq{"id": entityID}), entityID)
}

// Find runs q and returns all rows.
func (t *Table[T]) Find(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []T
	if err := pgxscan.Select(ctx, t.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", t.name, err)
	}
	return items, nil
}

// List applies the common list filter and paginates.
func (t *Table[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: f.Limit, Offset: f.Offset}

	q, err := t.listQuery(f)
	if err != nil {
		return result, err
	}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := t.Querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", t.name, err)
	}

	orderBy, err := t.orderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	result.Items, err = t.Find(ctx, q)
	return result, err
}

func (t *Table[T]) listQuery(f domain.ListFilter) (squirrel.SelectBuilder, error) {
	q := t.Select()
	if f.Status != "" && t.statusColumn != "" {
		q = q.Where(squirrel.Eq{t.statusColumn: f.Status})
	}
	return ApplyFilters(q, f.Filters, t.cols)
}

func (t *Table[T]) orderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return t.defaultOrder, nil
	}
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else {
		field = strings.TrimPrefix(orderBy, "+")
	}
	field = strings.TrimSpace(field)
	if !containsString(t.cols, field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}

// ApplyFilters adds client filters, accepting only whitelisted columns.
func ApplyFilters(q squirrel.SelectBuilder, items []filter.Item, allowed []string) (squirrel.SelectBuilder, error) {
	for _, item := range items {
		if !containsString(allowed, item.Field) {
			return q, apperror.NewValidation(fmt.Sprintf("invalid filter column: %s", item.Field)).
				WithDetail("field", item.Field)
		}
		switch item.Operator {
		case filter.Equal, filter.InList:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotEqual:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.Less:
			q = q.Where(squirrel.Lt{item.Field: item.Value})
		case filter.Greater:
			q = q.Where(squirrel.Gt{item.Field: item.Value})
		case filter.LessOrEqual:
			q = q.Where(squirrel.LtOrEq{item.Field: item.Value})
		case filter.GreaterOrEqual:
			q = q.Where(squirrel.GtOrEq{item.Field: item.Value})
		case filter.IsNull:
			q = q.Where(squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			q = q.Where(squirrel.NotEq{item.Field: nil})
		case filter.Contains:
			q = q.Where(squirrel.ILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		default:
			return q, apperror.NewValidation(fmt.Sprintf("unsupported filter operator: %s", item.Operator))
		}
	}
	return q, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
