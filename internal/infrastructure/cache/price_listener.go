package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"workshop/pkg/logger"
)

// ChannelPriceChanged is notified by triggers on the price tables.
const ChannelPriceChanged = "price_changed"

// Invalidator drops cached data.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// PriceListener invalidates the price cache when PostgreSQL reports a
// change to service or item prices, including changes made by other
// instances or directly in the database.
type PriceListener struct {
	pool  *pgxpool.Pool
	cache Invalidator

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewPriceListener creates a listener for cache.
func NewPriceListener(pool *pgxpool.Pool, cache Invalidator) *PriceListener {
	return &PriceListener{pool: pool, cache: cache}
}

// Start begins listening in the background.
func (l *PriceListener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "price listener started")
}

// Stop ends the listener and waits for it to exit.
func (l *PriceListener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	cancel()
	l.wg.Wait()
	logger.Info(context.Background(), "price listener stopped")
}

func (l *PriceListener) listenLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			l.sleep(time.Second)
			continue
		}
		if _, err = conn.Exec(l.ctx, "LISTEN "+ChannelPriceChanged); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			l.sleep(time.Second)
			continue
		}

		// A notification may have been missed while reconnecting.
		l.handleNotification(ChannelPriceChanged, "reconnect")
		l.waitForNotifications(conn)
		conn.Release()
	}
}

func (l *PriceListener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		ctx, cancel := context.WithTimeout(l.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(l.ctx, "LISTEN connection lost", "error", err)
			return
		}
		l.handleNotification(n.Channel, n.Payload)
	}
}

func (l *PriceListener) handleNotification(channel, payload string) {
	if channel != ChannelPriceChanged {
		return
	}
	logger.Debug(l.ctx, "price change notification", "table", payload)
	if err := l.cache.Invalidate(l.ctx); err != nil {
		logger.Error(l.ctx, "price cache invalidation failed", "error", err)
	}
}

func (l *PriceListener) sleep(d time.Duration) {
	select {
	case <-l.ctx.Done():
	case <-time.After(d):
	}
}
