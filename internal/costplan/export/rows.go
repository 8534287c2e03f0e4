package export

import "github.com/odyssey-erp/costplan/internal/costplan"

// Columns names the amount columns of a cost plan table in display order.
var Columns = []string{
	"Budget",
	"Approved Contract",
	"Forecast Variations",
	"Approved Variations",
	"Final Forecast",
	"Variance to Budget",
	"Claimed to Date",
	"Current Month",
	"ETC",
}

// Header is the full header row of a cost plan table.
func Header() []string {
	return append([]string{"Section", "Reference", "Description"}, Columns...)
}

// RowKind distinguishes detail rows from subtotal rows.
type RowKind int

const (
	RowLine RowKind = iota
	RowSection
	RowGrand
)

// Row is one row of the rendered table.
type Row struct {
	Kind        RowKind
	Section     string
	Reference   string
	Description string
	Amounts     []costplan.Cents
}

func amounts(t costplan.Totals) []costplan.Cents {
	return []costplan.Cents{
		t.BudgetCents,
		t.ApprovedContractCents,
		t.ForecastVariationsCents,
		t.ApprovedVariationsCents,
		t.FinalForecastCents,
		t.VarianceToBudgetCents,
		t.ClaimedToDateCents,
		t.CurrentMonthCents,
		t.EtcCents,
	}
}

func lineAmounts(l costplan.CalculatedCostLine) []costplan.Cents {
	return amounts(costplan.Totals{
		BudgetCents:             l.BudgetCents,
		ApprovedContractCents:   l.ApprovedContractCents,
		ForecastVariationsCents: l.ForecastVariationsCents,
		ApprovedVariationsCents: l.ApprovedVariationsCents,
		FinalForecastCents:      l.FinalForecastCents,
		VarianceToBudgetCents:   l.VarianceToBudgetCents,
		ClaimedToDateCents:      l.ClaimedToDateCents,
		CurrentMonthCents:       l.CurrentMonthCents,
		EtcCents:                l.EtcCents,
	})
}

// Rows flattens a report into lines grouped by section, each section closed
// by its subtotal and the table closed by the grand total. Empty sections are
// skipped.
func Rows(report costplan.Report) []Row {
	bySection := make(map[costplan.Section][]costplan.CalculatedCostLine)
	for _, line := range report.Lines {
		bySection[line.Section] = append(bySection[line.Section], line)
	}
	var rows []Row
	for _, st := range report.Totals.Sections {
		if st.LineCount == 0 {
			continue
		}
		for _, line := range bySection[st.Section] {
			rows = append(rows, Row{
				Kind:        RowLine,
				Section:     st.Label,
				Reference:   line.Reference,
				Description: line.Description,
				Amounts:     lineAmounts(line),
			})
		}
		rows = append(rows, Row{
			Kind:        RowSection,
			Section:     st.Label,
			Description: st.Label + " Total",
			Amounts:     amounts(st.Totals),
		})
	}
	rows = append(rows, Row{
		Kind:        RowGrand,
		Description: "Grand Total",
		Amounts:     amounts(report.Totals.Totals),
	})
	return rows
}
