package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/bigelephant/storefront/internal/orders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderPlaced notifies a customer that an order was accepted.
	TaskOrderPlaced = "order:placed"
	// TaskOrderStatusChanged notifies a customer about a status change.
	TaskOrderStatusChanged = "order:status_changed"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NewOrderPlacedTask builds the order:placed task. The task id is derived from the order so
// a duplicate enqueue is rejected by the queue.
func NewOrderPlacedTask(evt orders.PlacedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPlaced, data,
		asynq.TaskID(fmt.Sprintf("order-placed-%d", evt.OrderID)),
		asynq.MaxRetry(5),
		asynq.Queue(QueueDefault),
	), nil
}

// NewOrderStatusChangedTask builds the order:status_changed task.
func NewOrderStatusChangedTask(evt orders.StatusChangedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusChanged, data,
		asynq.TaskID(fmt.Sprintf("order-status-%d-%s", evt.OrderID, evt.To)),
		asynq.MaxRetry(5),
		asynq.Queue(QueueDefault),
	), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the periodic cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
