package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"workshop/pkg/logger"
)

// Worker wraps the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// WorkerConfig collects what the worker needs to start.
type WorkerConfig struct {
	RedisOpt    asynq.RedisConnOpt
	Concurrency int
	Logger      *logger.Logger
	Adjustments *PostAdjustmentHandler
}

// NewWorker constructs a Worker with the posting handler registered.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	asynqCfg := asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueDefault: 1},
	}
	if cfg.Logger != nil {
		asynqCfg.Logger = cfg.Logger.WithComponent("asynq")
	}
	srv := asynq.NewServer(cfg.RedisOpt, asynqCfg)

	mux := asynq.NewServeMux()
	if cfg.Adjustments != nil {
		mux.Handle(TaskPostAdjustment, cfg.Adjustments)
	}
	return &Worker{server: srv, mux: mux}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
