package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/id"
)

// Lines maps a child table holding the rows of a document.
// L is the line struct; parentColumn links it to the document id.
type Lines[L any] struct {
	txm          *TxManager
	name         string
	parentColumn string
	cols         []string
	orderBy      string
}

// NewLines creates a child table mapping ordered by orderBy.
func NewLines[L any](txm *TxManager, name, parentColumn, orderBy string) *Lines[L] {
	return &Lines[L]{
		txm:          txm,
		name:         name,
		parentColumn: parentColumn,
		cols:         ExtractDBColumns[L](),
		orderBy:      orderBy,
	}
}

// Replace deletes the document's rows and writes lines.
// Inside a transaction the rows go through COPY.
func (l *Lines[L]) Replace(ctx context.Context, parentID id.ID, lines []L) error {
	sql, args, err := Builder().Delete(l.name).Where(squirrel.Eq{l.parentColumn: parentID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := l.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete %s: %w", l.name, err)
	}
	return l.Insert(ctx, parentID, lines)
}

// Insert appends lines to the document.
func (l *Lines[L]) Insert(ctx context.Context, parentID id.ID, lines []L) error {
	if len(lines) == 0 {
		return nil
	}
	columns := append([]string{l.parentColumn}, l.cols...)
	rows := make([][]any, 0, len(lines))
	for i := range lines {
		data := StructToMap(lines[i])
		row := make([]any, 0, len(columns))
		row = append(row, parentID)
		for _, col := range l.cols {
			row = append(row, data[col])
		}
		rows = append(rows, row)
	}

	if l.txm.GetTx(ctx) != nil {
		if _, err := NewBatchInserter(l.txm).CopyFromSlice(ctx, l.name, columns, rows); err != nil {
			return fmt.Errorf("copy %s: %w", l.name, err)
		}
		return nil
	}

	q := Builder().Insert(l.name).Columns(columns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := l.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", l.name, err)
	}
	return nil
}

// Load returns the document's rows.
func (l *Lines[L]) Load(ctx context.Context, parentID id.ID) ([]L, error) {
	sql, args, err := Builder().Select(l.cols...).From(l.name).
		Where(squirrel.Eq{l.parentColumn: parentID}).
		OrderBy(l.orderBy).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []L
	if err := pgxscan.Select(ctx, l.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", l.name, err)
	}
	return out, nil
}
