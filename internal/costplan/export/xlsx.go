package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/costplan/internal/costplan"
)

const (
	summarySheet = "summary"
	linesSheet   = "cost plan"
	amountFormat = "#,##0.00;[Red]-#,##0.00"
)

// BuildXLSX renders a report workbook with a summary sheet and the cost plan table.
func BuildXLSX(report costplan.Report, f *Formatter) ([]byte, error) {
	if f == nil {
		f = DefaultFormatter()
	}
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := book.NewSheet(linesSheet); err != nil {
		return nil, err
	}
	amountStyle, err := book.NewStyle(&excelize.Style{CustomNumFmt: strPtr(amountFormat)})
	if err != nil {
		return nil, err
	}
	totalStyle, err := book.NewStyle(&excelize.Style{CustomNumFmt: strPtr(amountFormat), Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	s := report.Summary
	summary := [][]any{
		{"Cost Plan"},
		{},
		{"Project", report.ProjectID.String()},
		{"Period", periodLabel(report.Period)},
		{"Currency", f.Currency()},
		{"Lines", s.LineCount},
		{"Total Budget", Units(s.TotalBudgetCents)},
		{"Total Forecast", Units(s.TotalForecastCents)},
		{"Total Variance", Units(s.TotalVarianceCents)},
		{"Variance %", s.VariancePercent},
		{"Over Budget", s.OverBudgetCount},
		{"Under Budget", s.UnderBudgetCount},
		{"On Budget", s.OnBudgetCount},
	}
	for i, row := range summary {
		for j, value := range row {
			if err := setCell(book, summarySheet, j+1, i+1, value); err != nil {
				return nil, err
			}
		}
	}
	if err := book.SetCellStyle(summarySheet, "B7", "B9", amountStyle); err != nil {
		return nil, err
	}

	for j, title := range Header() {
		if err := setCell(book, linesSheet, j+1, 1, title); err != nil {
			return nil, err
		}
	}
	for i, row := range Rows(report) {
		r := i + 2
		for j, value := range []string{row.Section, row.Reference, row.Description} {
			if err := setCell(book, linesSheet, j+1, r, value); err != nil {
				return nil, err
			}
		}
		for j, amount := range row.Amounts {
			if err := setCell(book, linesSheet, j+4, r, Units(amount)); err != nil {
				return nil, err
			}
		}
		style := amountStyle
		if row.Kind != RowLine {
			style = totalStyle
		}
		first, _ := excelize.CoordinatesToCellName(4, r)
		last, _ := excelize.CoordinatesToCellName(3+len(row.Amounts), r)
		if err := book.SetCellStyle(linesSheet, first, last, style); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(book *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return book.SetCellValue(sheet, cell, value)
}

func strPtr(s string) *string { return &s }
