package costplan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Section enumerates the fixed top-level cost plan groupings.
type Section string

const (
	// SectionFees covers statutory and authority fees.
	SectionFees Section = "FEES"
	// SectionConsultants covers design and advisory consultants.
	SectionConsultants Section = "CONSULTANTS"
	// SectionConstruction covers head contract and trade works.
	SectionConstruction Section = "CONSTRUCTION"
	// SectionContingency holds unallocated contingency.
	SectionContingency Section = "CONTINGENCY"
)

// Sections returns every section in reporting order.
func Sections() []Section {
	return []Section{SectionFees, SectionConsultants, SectionConstruction, SectionContingency}
}

// Valid reports whether s is one of the known sections.
func (s Section) Valid() bool {
	switch s {
	case SectionFees, SectionConsultants, SectionConstruction, SectionContingency:
		return true
	}
	return false
}

// Label returns the display name of the section.
func (s Section) Label() string {
	switch s {
	case SectionFees:
		return "Fees"
	case SectionConsultants:
		return "Consultants"
	case SectionConstruction:
		return "Construction"
	case SectionContingency:
		return "Contingency"
	}
	return string(s)
}

func (s Section) order() int {
	switch s {
	case SectionFees:
		return 0
	case SectionConsultants:
		return 1
	case SectionConstruction:
		return 2
	case SectionContingency:
		return 3
	}
	return 4
}

// ParseSection resolves a section name case-insensitively.
func ParseSection(raw string) (Section, error) {
	s := Section(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, raw)
	}
	return s, nil
}

// VariationCategory enumerates who originated a change order.
type VariationCategory string

const (
	// CategoryPrincipal marks principal-initiated variations.
	CategoryPrincipal VariationCategory = "PRINCIPAL"
	// CategoryContractor marks contractor claims.
	CategoryContractor VariationCategory = "CONTRACTOR"
	// CategoryLessorWorks marks lessor or tenancy works.
	CategoryLessorWorks VariationCategory = "LESSOR_WORKS"
)

// VariationCategories returns all categories.
func VariationCategories() []VariationCategory {
	return []VariationCategory{CategoryPrincipal, CategoryContractor, CategoryLessorWorks}
}

// Prefix returns the two-letter numbering prefix, or "" for an unknown category.
func (c VariationCategory) Prefix() string {
	switch c {
	case CategoryPrincipal:
		return "PV"
	case CategoryContractor:
		return "CV"
	case CategoryLessorWorks:
		return "LV"
	}
	return ""
}

// ParseVariationCategory resolves a category name case-insensitively.
func ParseVariationCategory(raw string) (VariationCategory, error) {
	c := VariationCategory(strings.ToUpper(strings.TrimSpace(raw)))
	if c.Prefix() == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return c, nil
}

// VariationStatus is the approval state of a variation. Only Forecast and
// Approved take part in aggregation; everything else is inert.
type VariationStatus string

const (
	StatusForecast  VariationStatus = "Forecast"
	StatusApproved  VariationStatus = "Approved"
	StatusRejected  VariationStatus = "Rejected"
	StatusWithdrawn VariationStatus = "Withdrawn"
)

// Period is a reporting month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Valid reports whether the month lies in 1..12 and the year is positive.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= 1 && p.Month <= 12
}

// Compare orders periods by year then month.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	}
	return 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(raw string) (Period, error) {
	yearPart, monthPart, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	p := Period{Year: year, Month: month}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return p, nil
}

// CostLine is one budgeted item in a project's cost plan.
type CostLine struct {
	ID                    uuid.UUID  `json:"id"`
	ProjectID             uuid.UUID  `json:"project_id"`
	Section               Section    `json:"section"`
	StakeholderID         *uuid.UUID `json:"stakeholder_id,omitempty"`
	Reference             string     `json:"reference"`
	Description           string     `json:"description"`
	BudgetCents           Cents      `json:"budget_cents"`
	ApprovedContractCents Cents      `json:"approved_contract_cents"`
	SortOrder             int        `json:"sort_order"`
	DeletedAt             *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the line has been soft-deleted.
func (c CostLine) Deleted() bool { return c.DeletedAt != nil }

// Variation is a priced change order against a cost line.
type Variation struct {
	ID            uuid.UUID         `json:"id"`
	ProjectID     uuid.UUID         `json:"project_id"`
	CostLineID    uuid.UUID         `json:"cost_line_id"`
	Number        string            `json:"number"`
	Category      VariationCategory `json:"category"`
	Status        VariationStatus   `json:"status"`
	Description   string            `json:"description"`
	ForecastCents Cents             `json:"forecast_cents"`
	ApprovedCents Cents             `json:"approved_cents"`
	CreatedAt     time.Time         `json:"created_at"`
	DeletedAt     *time.Time        `json:"deleted_at,omitempty"`
}

// Deleted reports whether the variation has been soft-deleted.
func (v Variation) Deleted() bool { return v.DeletedAt != nil }

// Invoice is a payment claim recorded against a cost line.
type Invoice struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	CostLineID  uuid.UUID  `json:"cost_line_id"`
	VariationID *uuid.UUID `json:"variation_id,omitempty"`
	Number      string     `json:"number"`
	AmountCents Cents      `json:"amount_cents"`
	GSTCents    Cents      `json:"gst_cents"`
	Period      Period     `json:"period"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the invoice has been soft-deleted.
func (i Invoice) Deleted() bool { return i.DeletedAt != nil }

// ContractOnly reports whether the invoice is not tagged to a variation.
func (i Invoice) ContractOnly() bool { return i.VariationID == nil }

// VariationTotals holds per-line variation sums split by status.
type VariationTotals struct {
	ForecastCents Cents `json:"forecast_cents"`
	ApprovedCents Cents `json:"approved_cents"`
}

// InvoiceTotals holds cumulative and current-period claim sums.
type InvoiceTotals struct {
	ClaimedToDateCents Cents `json:"claimed_to_date_cents"`
	CurrentMonthCents  Cents `json:"current_month_cents"`
}

// CalculatedCostLineFields are the derived financial figures of one line.
type CalculatedCostLineFields struct {
	ForecastVariationsCents Cents `json:"forecast_variations_cents"`
	ApprovedVariationsCents Cents `json:"approved_variations_cents"`
	FinalForecastCents      Cents `json:"final_forecast_cents"`
	VarianceToBudgetCents   Cents `json:"variance_to_budget_cents"`
	ClaimedToDateCents      Cents `json:"claimed_to_date_cents"`
	CurrentMonthCents       Cents `json:"current_month_cents"`
	EtcCents                Cents `json:"etc_cents"`
}

// CalculatedCostLine pairs a cost line with its derived figures.
type CalculatedCostLine struct {
	CostLine
	CalculatedCostLineFields
}

var (
	// ErrUnknownSection is returned for section names outside the enumeration.
	ErrUnknownSection = errors.New("costplan: unknown section")
	// ErrUnknownCategory is returned for variation categories outside the enumeration.
	ErrUnknownCategory = errors.New("costplan: unknown variation category")
	// ErrInvalidPeriod is returned for malformed reporting periods.
	ErrInvalidPeriod = errors.New("costplan: invalid period")
)
