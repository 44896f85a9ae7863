package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tenantcms/tenantcms/internal/jobs"
	"github.com/tenantcms/tenantcms/internal/shared"
	"github.com/tenantcms/tenantcms/internal/workflow"
)

// AuditAction is the audit_logs action written for status transitions.
const AuditAction = "CONTENT_STATUS_CHANGED"

// AuditPort persists audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatusChangedJob writes the audit row of a status transition.
type StatusChangedJob struct {
	Audit   AuditPort
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatusChangedJob initialises the handler.
func NewStatusChangedJob(audit AuditPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusChangedJob {
	return &StatusChangedJob{Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStatusChanged tasks.
func (j *StatusChangedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Audit == nil {
		return errors.New("status changed: handler not configured")
	}
	var evt workflow.StatusChangedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	if evt.Kind == "" || evt.ID == 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(jobmetrics.JobStatusChanged)
	defer func() {
		err = tracker.End(err)
	}()

	entry := shared.AuditLog{
		ActorID:  evt.ActorID,
		Action:   AuditAction,
		Entity:   string(evt.Kind),
		EntityID: strconv.FormatInt(evt.ID, 10),
		Meta: map[string]any{
			"from":   int(evt.From),
			"to":     int(evt.To),
			"effect": string(evt.Effect),
		},
		At: evt.At,
	}
	if err = j.Audit.Record(ctx, entry); err != nil {
		j.logger().Error("audit status change",
			slog.Any("error", err),
			slog.String("kind", entry.Entity),
			slog.String("id", entry.EntityID),
		)
		return err
	}
	return nil
}

func (j *StatusChangedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
