package costplan

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SnapshotStatus enumerates async snapshot lifecycle values.
type SnapshotStatus string

const (
	// SnapshotPending indicates waiting to be processed.
	SnapshotPending SnapshotStatus = "PENDING"
	// SnapshotInProgress indicates job executing.
	SnapshotInProgress SnapshotStatus = "IN_PROGRESS"
	// SnapshotReady indicates the report payload is stored.
	SnapshotReady SnapshotStatus = "READY"
	// SnapshotFailed indicates error occurred.
	SnapshotFailed SnapshotStatus = "FAILED"
)

// Snapshot is a frozen cost plan report for a project and period.
type Snapshot struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Period      *Period        `json:"period,omitempty"`
	Status      SnapshotStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	Report      *Report        `json:"report,omitempty"`
	GeneratedAt *time.Time     `json:"generated_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SnapshotRequest configures a trigger for snapshot computation.
type SnapshotRequest struct {
	ProjectID uuid.UUID
	Period    *Period
}

// Validate ensures request is valid.
func (r SnapshotRequest) Validate() error {
	if r.ProjectID == uuid.Nil {
		return errors.New("costplan: project required")
	}
	if r.Period != nil && !r.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

var (
	// ErrCostLineNotFound occurs when a cost line is missing or deleted.
	ErrCostLineNotFound = errors.New("costplan: cost line not found")
	// ErrSnapshotNotFound occurs when snapshot missing.
	ErrSnapshotNotFound = errors.New("costplan: snapshot not found")
	// ErrDuplicateVariationNumber is returned by storage when a number is already taken.
	ErrDuplicateVariationNumber = errors.New("costplan: variation number already exists")
	// ErrNumberAllocation occurs when every numbering attempt conflicted.
	ErrNumberAllocation = errors.New("costplan: could not allocate variation number")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("costplan: invalid input")
)
