package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/costplan/internal/costplan"
)

type project struct {
	id         uuid.UUID
	lines      []costplan.CostLine
	variations []costplan.Variation
	invoices   []costplan.Invoice
}

// generateProject builds a deterministic project with lineCount lines, three
// variations and twelve monthly invoices per line.
func generateProject(lineCount int) project {
	p := project{id: uuid.New()}
	sections := costplan.Sections()
	categories := costplan.VariationCategories()
	statuses := []costplan.VariationStatus{costplan.StatusForecast, costplan.StatusApproved, costplan.StatusRejected}
	for i := 0; i < lineCount; i++ {
		line := costplan.CostLine{
			ID:                    uuid.New(),
			ProjectID:             p.id,
			Section:               sections[i%len(sections)],
			Reference:             fmt.Sprintf("L-%04d", i),
			BudgetCents:           costplan.Cents(100_000 + i*1_000),
			ApprovedContractCents: costplan.Cents(95_000 + i*1_000),
			SortOrder:             i,
		}
		p.lines = append(p.lines, line)
		for j := 0; j < 3; j++ {
			p.variations = append(p.variations, costplan.Variation{
				ID:            uuid.New(),
				ProjectID:     p.id,
				CostLineID:    line.ID,
				Number:        fmt.Sprintf("%s-%03d", categories[j].Prefix(), i*3+j+1),
				Category:      categories[j],
				Status:        statuses[j],
				ForecastCents: 2_000,
				ApprovedCents: 1_500,
			})
		}
		for m := 1; m <= 12; m++ {
			p.invoices = append(p.invoices, costplan.Invoice{
				ID:          uuid.New(),
				ProjectID:   p.id,
				CostLineID:  line.ID,
				AmountCents: 5_000,
				Period:      costplan.Period{Year: 2024, Month: m},
			})
		}
	}
	return p
}

func TestCostPlanReportLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		lines     int
		threshold time.Duration
	}{
		{name: "typical project", lines: 150, threshold: 50 * time.Millisecond},
		{name: "large project", lines: 2000, threshold: 500 * time.Millisecond},
	}
	period := &costplan.Period{Year: 2024, Month: 6}

	for _, scenario := range scenarios {
		p := generateProject(scenario.lines)
		samples := make([]time.Duration, 0, 10)
		for i := 0; i < 10; i++ {
			start := time.Now()
			report := costplan.BuildReport(p.id, p.lines, p.variations, p.invoices, period)
			samples = append(samples, time.Since(start))
			if report.Summary.LineCount != scenario.lines {
				t.Fatalf("%s: expected %d lines, got %d", scenario.name, scenario.lines, report.Summary.LineCount)
			}
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func TestPercentile95(t *testing.T) {
	if got := percentile95(nil); got != 0 {
		t.Fatalf("expected 0 for no samples, got %s", got)
	}
	samples := []time.Duration{5, 1, 4, 2, 3}
	if got := percentile95(samples); got != 4 {
		t.Fatalf("expected 4, got %s", got)
	}
	if samples[0] != 5 {
		t.Fatal("input must not be reordered")
	}
}

func BenchmarkBuildReport(b *testing.B) {
	for _, n := range []int{50, 500, 5000} {
		p := generateProject(n)
		period := &costplan.Period{Year: 2024, Month: 6}
		b.Run(fmt.Sprintf("lines=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = costplan.BuildReport(p.id, p.lines, p.variations, p.invoices, period)
			}
		})
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
