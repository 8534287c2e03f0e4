package costplan

import "math"

// SummaryStatistics condenses a cost plan into headline figures.
type SummaryStatistics struct {
	LineCount          int     `json:"line_count"`
	TotalBudgetCents   Cents   `json:"total_budget_cents"`
	TotalForecastCents Cents   `json:"total_forecast_cents"`
	TotalVarianceCents Cents   `json:"total_variance_cents"`
	VariancePercent    float64 `json:"variance_percent"`
	OverBudgetCount    int     `json:"over_budget_count"`
	UnderBudgetCount   int     `json:"under_budget_count"`
	OnBudgetCount      int     `json:"on_budget_count"`
}

// CalculateSummary reports counts and totals over the live calculated lines.
// VariancePercent is zero when the total budget is zero.
func CalculateSummary(lines []CalculatedCostLine) SummaryStatistics {
	var s SummaryStatistics
	for _, line := range lines {
		if line.Deleted() {
			continue
		}
		s.LineCount++
		s.TotalBudgetCents += line.BudgetCents
		s.TotalForecastCents += line.FinalForecastCents
		s.TotalVarianceCents += line.VarianceToBudgetCents
		switch {
		case line.VarianceToBudgetCents < 0:
			s.OverBudgetCount++
		case line.VarianceToBudgetCents > 0:
			s.UnderBudgetCount++
		default:
			s.OnBudgetCount++
		}
	}
	s.VariancePercent = percentOf(s.TotalVarianceCents, s.TotalBudgetCents)
	return s
}

func percentOf(part, whole Cents) float64 {
	if whole == 0 {
		return 0
	}
	pct := float64(part) / float64(whole) * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return round2(pct)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
