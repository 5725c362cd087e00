package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"workshop/internal/core/id"
	"workshop/pkg/logger"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue. It is the adjustment dispatcher.
type Client struct {
	client enqueuer
}

// NewClient constructs an asynq client.
func NewClient(redisOpt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpt)}
}

// EnqueuePosting queues the stock entry posting of an adjustment.
// A task already queued for the adjustment is not an error.
func (c *Client) EnqueuePosting(ctx context.Context, adjustmentID id.ID, userID string) error {
	task, err := NewPostAdjustmentTask(PostAdjustmentPayload{AdjustmentID: adjustmentID, UserID: userID})
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Warn(ctx, "posting task already queued", "adjustment", adjustmentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskPostAdjustment, err)
	}
	logger.Info(ctx, "posting task queued", "adjustment", adjustmentID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
