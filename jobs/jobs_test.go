package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tenantcms/tenantcms/internal/content"
	jobmetrics "github.com/tenantcms/tenantcms/internal/jobs"
	"github.com/tenantcms/tenantcms/internal/shared"
	"github.com/tenantcms/tenantcms/internal/workflow"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	if r.err != nil {
		return nil, r.err
	}
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

type memoryAudit struct {
	logs []shared.AuditLog
	err  error
}

func (m *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

type memoryCleaner struct {
	purged    int64
	retention time.Duration
}

func (m *memoryCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.retention = olderThan
	return m.purged, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

// counterValue sums every series of the named counter.
func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func sampleEvent() workflow.StatusChangedEvent {
	return workflow.StatusChangedEvent{
		Kind:    content.KindProduct,
		ID:      42,
		ActorID: "u-chief",
		From:    content.StatusChecked,
		To:      content.StatusPublished,
		Effect:  workflow.EffectApproved,
		At:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishStatusChangedEnqueuesTask(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := NewClientWith(enq)

	require.NoError(t, client.PublishStatusChanged(context.Background(), sampleEvent()))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskStatusChanged, enq.tasks[0].Type())

	var evt workflow.StatusChangedEvent
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &evt))
	require.Equal(t, sampleEvent(), evt)
}

func TestPublishStatusChangedTreatsDuplicateAsDone(t *testing.T) {
	client := NewClientWith(&recordingEnqueuer{err: asynq.ErrTaskIDConflict})
	require.NoError(t, client.PublishStatusChanged(context.Background(), sampleEvent()))

	client = NewClientWith(&recordingEnqueuer{err: errors.New("redis down")})
	require.Error(t, client.PublishStatusChanged(context.Background(), sampleEvent()))
}

func TestStatusChangedTaskIDIsStable(t *testing.T) {
	evt := sampleEvent()
	require.Equal(t, statusChangedTaskID(evt), statusChangedTaskID(evt))

	evt.To = content.StatusRejected
	require.NotEqual(t, statusChangedTaskID(sampleEvent()), statusChangedTaskID(evt))
}

func TestStatusChangedJobWritesAudit(t *testing.T) {
	audit := &memoryAudit{}
	registry := prometheus.NewRegistry()
	job := NewStatusChangedJob(audit, nil, jobmetrics.NewMetrics(registry))

	task, err := NewStatusChangedTask(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	require.Equal(t, AuditAction, log.Action)
	require.Equal(t, "product", log.Entity)
	require.Equal(t, "42", log.EntityID)
	require.Equal(t, "u-chief", log.ActorID)
	require.Equal(t, 4, log.Meta["to"])

	require.Equal(t, 1.0, counterValue(t, registry, "tenantcms_jobs_total"))
}

func TestStatusChangedJobSkipsMalformedPayload(t *testing.T) {
	job := NewStatusChangedJob(&memoryAudit{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStatusChanged, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStatusChangedJobRetriesAuditFailure(t *testing.T) {
	job := NewStatusChangedJob(&memoryAudit{err: errors.New("insert failed")}, nil, nil)
	task, err := NewStatusChangedTask(sampleEvent())
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &memoryCleaner{purged: 3}
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewIdempotencyCleanupJob(cleaner, 72*time.Hour, nil, metrics)

	task, err := NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, cleaner.retention)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 72*time.Hour, cleaner.retention)

	require.Equal(t, 6.0, counterValue(t, registry, "tenantcms_idempotency_keys_purged_total"))
}

func TestHealthEndpoint(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}}, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":4,"retry":1}`, rr.Body.String())

	r = chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("no redis")}, nil).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
