package costplan

import (
	"sort"

	"github.com/google/uuid"
)

// CalculateCostLine derives the financial figures for a single cost line.
// Final forecast is driven by the approved contract, not the budget; variance
// is budget minus final forecast, so a negative value means over budget.
func CalculateCostLine(line CostLine, variations []Variation, invoices []Invoice, period *Period) CalculatedCostLine {
	vt := AggregateVariations(variations, line.ID)
	it := AggregateInvoices(invoices, line.ID, period)

	finalForecast := line.ApprovedContractCents + vt.ForecastCents + vt.ApprovedCents
	return CalculatedCostLine{
		CostLine: line,
		CalculatedCostLineFields: CalculatedCostLineFields{
			ForecastVariationsCents: vt.ForecastCents,
			ApprovedVariationsCents: vt.ApprovedCents,
			FinalForecastCents:      finalForecast,
			VarianceToBudgetCents:   line.BudgetCents - finalForecast,
			ClaimedToDateCents:      it.ClaimedToDateCents,
			CurrentMonthCents:       it.CurrentMonthCents,
			EtcCents:                finalForecast - it.ClaimedToDateCents,
		},
	}
}

// CalculateCostLines calculates every live cost line, ordered by section then
// sort position. Ledgers are indexed by cost line once so each line only scans
// its own records.
func CalculateCostLines(lines []CostLine, variations []Variation, invoices []Invoice, period *Period) []CalculatedCostLine {
	varsByLine := make(map[uuid.UUID][]Variation)
	for _, v := range variations {
		varsByLine[v.CostLineID] = append(varsByLine[v.CostLineID], v)
	}
	invsByLine := make(map[uuid.UUID][]Invoice)
	for _, inv := range invoices {
		invsByLine[inv.CostLineID] = append(invsByLine[inv.CostLineID], inv)
	}

	out := make([]CalculatedCostLine, 0, len(lines))
	for _, line := range lines {
		if line.Deleted() {
			continue
		}
		out = append(out, CalculateCostLine(line, varsByLine[line.ID], invsByLine[line.ID], period))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Section.order() != b.Section.order() {
			return a.Section.order() < b.Section.order()
		}
		return a.SortOrder < b.SortOrder
	})
	return out
}
