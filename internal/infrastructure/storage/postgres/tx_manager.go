package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"workshop/internal/core/tx"
	"workshop/pkg/logger"
)

var tracer = otel.Tracer("workshop/tx")

var _ tx.Manager = (*TxManager)(nil)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TxConfig tunes the transactions started by TxManager.
type TxConfig struct {
	IsolationLevel pgx.TxIsoLevel

	// StatementTimeout bounds every statement inside the transaction.
	StatementTimeout time.Duration

	// MaxAttempts is how many times a unit of work runs when Postgres aborts
	// it with a serialization failure or a deadlock. Concurrent stock
	// postings upsert the same balance rows, so both happen under load.
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultTxConfig returns the settings used by the services.
func DefaultTxConfig() TxConfig {
	return TxConfig{
		IsolationLevel:   pgx.ReadCommitted,
		StatementTimeout: 30 * time.Second,
		MaxAttempts:      3,
		RetryDelay:       20 * time.Millisecond,
	}
}

// TxManager runs units of work in a transaction carried by the context.
// Repositories pick the transaction up through GetQuerier, so services
// never see pgx.
type TxManager struct {
	pool *pgxpool.Pool
	cfg  TxConfig
}

// NewTxManager creates a transaction manager with DefaultTxConfig.
func NewTxManager(pool *Pool) *TxManager {
	return NewTxManagerWithConfig(pool, DefaultTxConfig())
}

// NewTxManagerWithConfig creates a transaction manager with cfg.
func NewTxManagerWithConfig(pool *Pool, cfg TxConfig) *TxManager {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &TxManager{pool: pool.Pool, cfg: cfg}
}

type txKey struct{}

// Tx wraps the active pgx transaction.
type Tx struct {
	pgx.Tx
}

// RunInTransaction executes fn within a transaction. A transaction already in
// ctx is reused, and only the outermost call commits or retries.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.isolation", string(m.cfg.IsolationLevel))))
	defer span.End()

	var err error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		err = m.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) || attempt == m.cfg.MaxAttempts {
			break
		}
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("tx.attempt", attempt)))
		logger.Warn(ctx, "transaction aborted by database, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay(m.cfg.RetryDelay, attempt)):
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: m.cfg.IsolationLevel})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if m.cfg.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", m.cfg.StatementTimeout.Milliseconds())
		if _, err := pgTx.Exec(ctx, stmt); err != nil {
			_ = pgTx.Rollback(context.Background())
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, &Tx{Tx: pgTx})); err != nil {
		// The caller's context may already be cancelled.
		if rbErr := pgTx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isRetryable reports whether Postgres aborted the transaction in a way a
// fresh attempt can succeed.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// retryDelay grows linearly with the attempt number.
func retryDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.pool
}
