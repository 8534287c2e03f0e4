package costplan

// Totals is the elementwise sum of cost line figures.
type Totals struct {
	BudgetCents             Cents `json:"budget_cents"`
	ApprovedContractCents   Cents `json:"approved_contract_cents"`
	ForecastVariationsCents Cents `json:"forecast_variations_cents"`
	ApprovedVariationsCents Cents `json:"approved_variations_cents"`
	FinalForecastCents      Cents `json:"final_forecast_cents"`
	VarianceToBudgetCents   Cents `json:"variance_to_budget_cents"`
	ClaimedToDateCents      Cents `json:"claimed_to_date_cents"`
	CurrentMonthCents       Cents `json:"current_month_cents"`
	EtcCents                Cents `json:"etc_cents"`
}

func (t Totals) addLine(line CalculatedCostLine) Totals {
	t.BudgetCents += line.BudgetCents
	t.ApprovedContractCents += line.ApprovedContractCents
	t.ForecastVariationsCents += line.ForecastVariationsCents
	t.ApprovedVariationsCents += line.ApprovedVariationsCents
	t.FinalForecastCents += line.FinalForecastCents
	t.VarianceToBudgetCents += line.VarianceToBudgetCents
	t.ClaimedToDateCents += line.ClaimedToDateCents
	t.CurrentMonthCents += line.CurrentMonthCents
	t.EtcCents += line.EtcCents
	return t
}

func (t Totals) add(o Totals) Totals {
	t.BudgetCents += o.BudgetCents
	t.ApprovedContractCents += o.ApprovedContractCents
	t.ForecastVariationsCents += o.ForecastVariationsCents
	t.ApprovedVariationsCents += o.ApprovedVariationsCents
	t.FinalForecastCents += o.FinalForecastCents
	t.VarianceToBudgetCents += o.VarianceToBudgetCents
	t.ClaimedToDateCents += o.ClaimedToDateCents
	t.CurrentMonthCents += o.CurrentMonthCents
	t.EtcCents += o.EtcCents
	return t
}

// SectionTotals is the subtotal of one section.
type SectionTotals struct {
	Section   Section `json:"section"`
	Label     string  `json:"label"`
	LineCount int     `json:"line_count"`
	Totals
}

// GrandTotals is the project-wide total together with its section rows.
type GrandTotals struct {
	Sections  []SectionTotals `json:"sections"`
	LineCount int             `json:"line_count"`
	Totals
}

// CalculateSectionTotals folds the live calculated lines of one section.
func CalculateSectionTotals(section Section, lines []CalculatedCostLine) SectionTotals {
	st := SectionTotals{Section: section, Label: section.Label()}
	for _, line := range lines {
		if line.Deleted() || line.Section != section {
			continue
		}
		st.Totals = st.Totals.addLine(line)
		st.LineCount++
	}
	return st
}

// CalculateGrandTotals sums the section subtotals of every section, so the
// grand total always reconciles with the section rows. Lines whose section is
// outside the enumeration are not counted.
func CalculateGrandTotals(lines []CalculatedCostLine) GrandTotals {
	sections := Sections()
	gt := GrandTotals{Sections: make([]SectionTotals, 0, len(sections))}
	for _, section := range sections {
		st := CalculateSectionTotals(section, lines)
		gt.Sections = append(gt.Sections, st)
		gt.Totals = gt.Totals.add(st.Totals)
		gt.LineCount += st.LineCount
	}
	return gt
}
