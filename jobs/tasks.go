package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TaskOpeningRecompute retries the carry-forward into the next exercise
// when the inline attempt after a close failed.
const TaskOpeningRecompute = "closing:opening_recompute"

// OpeningRecomputePayload identifies one carry-forward attempt.
type OpeningRecomputePayload struct {
	SourceExerciseID int64 `json:"sourceExerciseId"`
	ActorID          int64 `json:"actorId"`
	CostCenterID     int64 `json:"costCenterId"`
}

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueOpeningRecompute schedules a carry-forward retry with exponential
// backoff handled by the queue.
func (c *Client) EnqueueOpeningRecompute(ctx context.Context, sourceExerciseID, actorID, costCenterID int64) error {
	payload, err := json.Marshal(OpeningRecomputePayload{
		SourceExerciseID: sourceExerciseID,
		ActorID:          actorID,
		CostCenterID:     costCenterID,
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskOpeningRecompute, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Unique(10*time.Minute),
	)
	return err
}
