package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/odyssey-erp/costplan/internal/costplan"
)

var pdfColumnWidths = []float64{26, 24, 50}

const pdfAmountWidth = 20

// BuildPDF renders a landscape A4 cost plan.
func BuildPDF(report costplan.Report, f *Formatter) ([]byte, error) {
	if f == nil {
		f = DefaultFormatter()
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Cost Plan")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Project: %s", report.ProjectID))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Period: %s", periodLabel(report.Period)))
	pdf.Ln(5)
	if !report.GeneratedAt.IsZero() {
		pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	s := report.Summary
	pdf.Cell(0, 5, fmt.Sprintf("Budget %s  Forecast %s  Variance %s (%s)",
		f.Money(s.TotalBudgetCents), f.Money(s.TotalForecastCents), f.Money(s.TotalVarianceCents), f.Percent(s.VariancePercent)))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Over budget: %d  Under budget: %d  On budget: %d", s.OverBudgetCount, s.UnderBudgetCount, s.OnBudgetCount))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 7)
	for i, title := range Header() {
		pdf.CellFormat(columnWidth(i), 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for _, row := range Rows(report) {
		style := ""
		if row.Kind != RowLine {
			style = "B"
		}
		pdf.SetFont("Arial", style, 7)
		pdf.CellFormat(columnWidth(0), 5, row.Section, "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidth(1), 5, row.Reference, "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidth(2), 5, truncate(row.Description, 40), "1", 0, "L", false, 0, "")
		for i, amount := range row.Amounts {
			pdf.CellFormat(columnWidth(3+i), 5, f.Amount(amount), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidth(i int) float64 {
	if i < len(pdfColumnWidths) {
		return pdfColumnWidths[i]
	}
	return pdfAmountWidth
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
