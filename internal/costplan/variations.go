package costplan

import "github.com/google/uuid"

// AggregateVariations sums the live variations of one cost line. Forecast
// variations contribute their forecast amount, Approved variations their
// approved amount; any other status contributes nothing.
func AggregateVariations(variations []Variation, costLineID uuid.UUID) VariationTotals {
	var totals VariationTotals
	for _, v := range variations {
		if v.CostLineID != costLineID || v.Deleted() {
			continue
		}
		switch v.Status {
		case StatusForecast:
			totals.ForecastCents += v.ForecastCents
		case StatusApproved:
			totals.ApprovedCents += v.ApprovedCents
		}
	}
	return totals
}

// variationValue is the amount a variation currently stands at in reports.
func variationValue(v Variation) Cents {
	switch v.Status {
	case StatusForecast:
		return v.ForecastCents
	case StatusApproved:
		return v.ApprovedCents
	}
	return 0
}

// counted reports whether the variation takes part in cost reporting.
func counted(v Variation) bool {
	return v.Status == StatusForecast || v.Status == StatusApproved
}
