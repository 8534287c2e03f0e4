package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCostReportSnapshot processes a single pending cost report snapshot.
	TaskCostReportSnapshot = "costplan:snapshot:process"
	// TaskCostReportNightly snapshots every active project for the current period.
	TaskCostReportNightly = "costplan:snapshot:nightly"
)

// CostReportSnapshotPayload identifies the snapshot to process.
type CostReportSnapshotPayload struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
}

// NewCostReportSnapshotTask constructs an Asynq task for one snapshot.
func NewCostReportSnapshotTask(snapshotID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(CostReportSnapshotPayload{SnapshotID: snapshotID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCostReportSnapshot, data), nil
}

// CostReportNightlyPayload scopes the nightly run. An empty Period means the
// month the task executes in.
type CostReportNightlyPayload struct {
	Period string `json:"period,omitempty"`
}

// NewCostReportNightlyTask constructs the nightly snapshot task.
func NewCostReportNightlyTask(period string) (*asynq.Task, error) {
	data, err := json.Marshal(CostReportNightlyPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCostReportNightly, data), nil
}
