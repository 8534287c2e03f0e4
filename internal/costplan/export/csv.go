package export

import (
	"bufio"
	"encoding/csv"
	"io"

	"github.com/odyssey-erp/costplan/internal/costplan"
)

// WriteCSV streams a report as a rectangular CSV table: the header row, then
// one record per line, section total and grand total. Amounts are plain
// decimals. Project and period travel in the download filename.
func WriteCSV(w io.Writer, report costplan.Report) error {
	buf := bufio.NewWriter(w)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true

	if err := writer.Write(Header()); err != nil {
		return err
	}
	for _, row := range Rows(report) {
		record := make([]string, 0, 3+len(row.Amounts))
		record = append(record, row.Section, row.Reference, row.Description)
		for _, amount := range row.Amounts {
			record = append(record, amount.String())
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
