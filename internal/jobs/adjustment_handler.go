package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/id"
	"workshop/pkg/logger"
)

// AdjustmentPoster is the part of the adjustment service the worker drives.
type AdjustmentPoster interface {
	PostStockEntries(ctx context.Context, adjustmentID id.ID) error
	MarkPostingFailed(ctx context.Context, adjustmentID id.ID, cause error) error
}

// Callbacks observe the outcome of a posting task.
type Callbacks struct {
	OnComplete func(ctx context.Context, p PostAdjustmentPayload)
	// OnFailure runs once the task will not be retried.
	OnFailure func(ctx context.Context, p PostAdjustmentPayload, err error)
}

// PostAdjustmentHandler processes TaskPostAdjustment tasks.
type PostAdjustmentHandler struct {
	poster    AdjustmentPoster
	metrics   *Metrics
	callbacks []Callbacks
}

// NewPostAdjustmentHandler creates the handler. The built-in callbacks log
// the outcome and record failures on the adjustment; extra callbacks run after them.
func NewPostAdjustmentHandler(poster AdjustmentPoster, metrics *Metrics, extra ...Callbacks) *PostAdjustmentHandler {
	h := &PostAdjustmentHandler{poster: poster, metrics: metrics}
	h.callbacks = append([]Callbacks{{
		OnComplete: h.logCompleted,
		OnFailure:  h.recordFailure,
	}}, extra...)
	return h
}

// ProcessTask fulfils asynq.Handler.
func (h *PostAdjustmentHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p PostAdjustmentPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || id.IsNil(p.AdjustmentID) {
		logger.Error(ctx, "invalid posting payload", "task", task.Type(), "error", err)
		return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}

	user := p.UserID
	if user == "" {
		user = appctx.SystemUser
	}
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: user, IsSystem: true})
	taskID, _ := asynq.GetTaskID(ctx)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(ctx, taskID, ""))

	tracker := h.metrics.Track(TaskPostAdjustment)
	err := tracker.End(h.poster.PostStockEntries(ctx, p.AdjustmentID))
	if err == nil {
		for _, cb := range h.callbacks {
			if cb.OnComplete != nil {
				cb.OnComplete(ctx, p)
			}
		}
		return nil
	}

	// Business failures will not succeed on retry.
	permanent := apperror.IsAppError(err)
	if permanent || isLastAttempt(ctx) {
		for _, cb := range h.callbacks {
			if cb.OnFailure != nil {
				cb.OnFailure(ctx, p, err)
			}
		}
	}
	if permanent {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *PostAdjustmentHandler) logCompleted(ctx context.Context, p PostAdjustmentPayload) {
	logger.Info(ctx, "adjustment stock entries posted", "adjustment", p.AdjustmentID)
}

func (h *PostAdjustmentHandler) recordFailure(ctx context.Context, p PostAdjustmentPayload, err error) {
	logger.Error(ctx, "adjustment stock entry posting failed", "adjustment", p.AdjustmentID, "error", err)
	if markErr := h.poster.MarkPostingFailed(ctx, p.AdjustmentID, err); markErr != nil {
		logger.Error(ctx, "record posting failure", "adjustment", p.AdjustmentID, "error", markErr)
	}
}

// isLastAttempt reports whether asynq will not retry the running task.
// Outside a worker there is no retry, so it is always the last attempt.
func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
