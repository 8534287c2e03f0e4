// Package export renders cost plan reports for spreadsheets and print.
package export

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/costplan/internal/costplan"
)

// Formatter renders amounts for humans. Amounts stay integral cents until
// the digits are printed.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewFormatter builds a formatter for a locale and ISO 4217 currency code.
func NewFormatter(tag language.Tag, code string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("export: currency %q: %w", code, err)
	}
	return &Formatter{printer: message.NewPrinter(tag), unit: unit}, nil
}

// DefaultFormatter formats Australian dollars in English.
func DefaultFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.English), unit: currency.AUD}
}

// Currency returns the ISO code of the formatter.
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Amount renders c with grouped whole units, e.g. "-1,234.56".
func (f *Formatter) Amount(c costplan.Cents) string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + f.printer.Sprintf("%d", v/100) + fmt.Sprintf(".%02d", v%100)
}

// Money renders c prefixed by the currency code, e.g. "AUD -1,234.56".
func (f *Formatter) Money(c costplan.Cents) string {
	return f.unit.String() + " " + f.Amount(c)
}

// Percent renders a two decimal percentage.
func (f *Formatter) Percent(v float64) string {
	return f.printer.Sprintf("%.2f%%", v)
}

// Units converts cents to whole currency units for spreadsheet cells.
func Units(c costplan.Cents) float64 {
	return float64(c) / 100
}

func periodLabel(p *costplan.Period) string {
	if p == nil {
		return "All periods"
	}
	return p.String()
}
