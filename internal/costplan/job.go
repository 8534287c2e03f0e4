package costplan

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/costplan/internal/jobs"
	"github.com/odyssey-erp/costplan/jobs"
)

// SnapshotJob processes cost report snapshot tasks.
type SnapshotJob struct {
	service *Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewSnapshotJob constructs a job handler.
func NewSnapshotJob(service *Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotJob {
	return &SnapshotJob{service: service, logger: logger, metrics: metrics, now: time.Now}
}

// Handle fulfils the asynq.HandlerFunc contract for TaskCostReportSnapshot.
func (j *SnapshotJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.CostReportSnapshotPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.SnapshotID == uuid.Nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track("costplan_snapshot")
	if err := j.service.ProcessSnapshot(ctx, payload.SnapshotID); err != nil {
		if j.logger != nil {
			j.logger.Error("costplan snapshot", slog.String("snapshot_id", payload.SnapshotID.String()), slog.Any("error", err))
		}
		return tracker.End(err)
	}
	return tracker.End(nil)
}

// HandleNightly fulfils the asynq.HandlerFunc contract for TaskCostReportNightly.
func (j *SnapshotJob) HandleNightly(ctx context.Context, task *asynq.Task) error {
	var payload jobs.CostReportNightlyPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	period := PeriodOf(j.now().UTC())
	if payload.Period != "" {
		parsed, err := ParsePeriod(payload.Period)
		if err != nil {
			return asynq.SkipRetry
		}
		period = parsed
	}
	tracker := j.metrics.Track("costplan_snapshot_nightly")
	done, err := j.service.SnapshotActiveProjects(ctx, period)
	if j.logger != nil {
		j.logger.Info("costplan nightly snapshots",
			slog.String("period", period.String()),
			slog.Int("projects", done),
			slog.Any("error", err))
	}
	return tracker.End(err)
}
