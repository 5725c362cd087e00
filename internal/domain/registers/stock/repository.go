package stock

import (
	"context"
	"time"

	"workshop/internal/core/entity"
	"workshop/internal/core/id"
)

// Repository persists stock entries, register movements and balances.
type Repository interface {
	CreateEntry(ctx context.Context, e *StockEntry) error
	UpdateEntry(ctx context.Context, e *StockEntry) error
	GetEntry(ctx context.Context, entryID id.ID) (*StockEntry, error)

	// CreateMovements inserts movements; balances follow in the same transaction.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// DeleteMovementsByRecorder removes the movements of a cancelled entry.
	DeleteMovementsByRecorder(ctx context.Context, recorderID id.ID) error

	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetBalance returns nil when the item never moved in the warehouse.
	GetBalance(ctx context.Context, warehouse, itemCode string) (*entity.StockBalance, error)

	// GetBalanceForUpdate is GetBalance with a row lock.
	GetBalanceForUpdate(ctx context.Context, warehouse, itemCode string) (*entity.StockBalance, error)

	GetBalancesByWarehouse(ctx context.Context, warehouse string, filter BalanceFilter) ([]entity.StockBalance, error)

	// HasSubsequentMovements reports movements of other recorders for the
	// same items and warehouses, dated and created after the given entry.
	HasSubsequentMovements(ctx context.Context, filter SubsequentFilter) (bool, error)

	// HasJournalEntries reports journal entries referencing the entry's postings.
	HasJournalEntries(ctx context.Context, entryID id.ID) (bool, error)
}

// BalanceFilter narrows warehouse balance queries.
type BalanceFilter struct {
	ItemCodes   []string
	ExcludeZero bool
}

// SubsequentFilter selects later movements that would be invalidated by a cancel.
type SubsequentFilter struct {
	ExcludeRecorder id.ID
	ItemCodes       []string
	Warehouses      []string
	AfterPeriod     time.Time
	CreatedAfter    time.Time
}
