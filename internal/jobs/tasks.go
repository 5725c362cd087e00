// Package jobs runs background work on asynq: posting the stock entries of
// large stock adjustments.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"workshop/internal/core/id"
)

const (
	// QueueDefault is the queue used for stock postings.
	QueueDefault = "default"

	// TaskPostAdjustment posts the stock entries of a submitted adjustment.
	TaskPostAdjustment = "adjustment:post_stock_entries"

	postTimeout  = 10 * time.Minute
	postMaxRetry = 3
)

// PostAdjustmentPayload identifies the adjustment and the user who submitted it.
type PostAdjustmentPayload struct {
	AdjustmentID id.ID  `json:"adjustment_id"`
	UserID       string `json:"user_id"`
}

// NewPostAdjustmentTask builds the posting task. The task id is derived
// from the adjustment so a second enqueue is rejected by asynq.
func NewPostAdjustmentTask(p PostAdjustmentPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskPostAdjustment, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(TaskPostAdjustment+":"+p.AdjustmentID.String()),
		asynq.MaxRetry(postMaxRetry),
		asynq.Timeout(postTimeout),
	), nil
}
