package costplan

import (
	"time"

	"github.com/google/uuid"
)

// Report is the full financial status of a project for a reporting period.
type Report struct {
	ProjectID   uuid.UUID            `json:"project_id"`
	Period      *Period              `json:"period,omitempty"`
	Lines       []CalculatedCostLine `json:"lines"`
	Totals      GrandTotals          `json:"totals"`
	Summary     SummaryStatistics    `json:"summary"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// BuildReport runs the full calculation pipeline over a project's ledgers.
// GeneratedAt is left for the caller to stamp.
func BuildReport(projectID uuid.UUID, lines []CostLine, variations []Variation, invoices []Invoice, period *Period) Report {
	calculated := CalculateCostLines(lines, variations, invoices, period)
	return Report{
		ProjectID: projectID,
		Period:    period,
		Lines:     calculated,
		Totals:    CalculateGrandTotals(calculated),
		Summary:   CalculateSummary(calculated),
	}
}
