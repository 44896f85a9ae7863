package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tenantcms/tenantcms/internal/workflow"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatusChanged audits a persisted content status transition.
	TaskStatusChanged = "content:status_changed"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// IdempotencyCleanupPayload carries the retention window in effect when the
// task was scheduled.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// statusChangedTaskID derives a stable id so a retried publish of the same
// transition is deduplicated by the queue.
func statusChangedTaskID(evt workflow.StatusChangedEvent) string {
	name := fmt.Sprintf("%s:%d:%d:%d:%s:%d", evt.Kind, evt.ID, evt.From, evt.To, evt.ActorID, evt.At.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// NewStatusChangedTask constructs the audit task for evt.
func NewStatusChangedTask(evt workflow.StatusChangedEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatusChanged, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(statusChangedTaskID(evt)),
		asynq.MaxRetry(5),
	), nil
}

// NewIdempotencyCleanupTask builds the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
