package costplan

import (
	"sort"

	"github.com/google/uuid"
)

// PaymentScheduleRow is one row of a cost line's payment schedule.
type PaymentScheduleRow struct {
	Label              string     `json:"label"`
	VariationID        *uuid.UUID `json:"variation_id,omitempty"`
	Status             string     `json:"status,omitempty"`
	ValueCents         Cents      `json:"value_cents"`
	ClaimedToDateCents Cents      `json:"claimed_to_date_cents"`
	CurrentMonthCents  Cents      `json:"current_month_cents"`
	RemainingCents     Cents      `json:"remaining_cents"`
}

// PaymentSchedule breaks a cost line's claims down into the contract and each
// counted variation.
type PaymentSchedule struct {
	CostLineID uuid.UUID            `json:"cost_line_id"`
	Period     *Period              `json:"period,omitempty"`
	Contract   PaymentScheduleRow   `json:"contract"`
	Variations []PaymentScheduleRow `json:"variations"`
	Other      *PaymentScheduleRow  `json:"other,omitempty"`
	Total      PaymentScheduleRow   `json:"total"`
}

// BuildPaymentSchedule lays out the contract row (contract-only invoices) and
// one row per live Forecast or Approved variation (invoices tagged to it).
// Invoices of the line tagged to a deleted, inert or unknown variation are
// gathered in an Other row with no value, so the total claimed always matches
// the line's claimed to date.
func BuildPaymentSchedule(line CostLine, variations []Variation, invoices []Invoice, period *Period) PaymentSchedule {
	contract := scheduleRow("Contract", line.ApprovedContractCents, AggregateContractInvoices(invoices, line.ID, period))

	var own []Variation
	for _, v := range variations {
		if v.CostLineID == line.ID && !v.Deleted() && counted(v) {
			own = append(own, v)
		}
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Number < own[j].Number })

	schedule := PaymentSchedule{
		CostLineID: line.ID,
		Period:     period,
		Contract:   contract,
		Variations: make([]PaymentScheduleRow, 0, len(own)),
	}
	total := PaymentScheduleRow{Label: "Total"}
	total = accumulate(total, contract)
	shown := make(map[uuid.UUID]bool, len(own))
	for _, v := range own {
		id := v.ID
		shown[id] = true
		row := scheduleRow(v.Number, variationValue(v), sumInvoices(invoices, period, func(inv Invoice) bool {
			return inv.CostLineID == line.ID && inv.VariationID != nil && *inv.VariationID == id
		}))
		row.VariationID = &id
		row.Status = string(v.Status)
		schedule.Variations = append(schedule.Variations, row)
		total = accumulate(total, row)
	}
	other := sumInvoices(invoices, period, func(inv Invoice) bool {
		return inv.CostLineID == line.ID && inv.VariationID != nil && !shown[*inv.VariationID]
	})
	if other != (InvoiceTotals{}) {
		row := scheduleRow("Other", 0, other)
		schedule.Other = &row
		total = accumulate(total, row)
	}
	schedule.Total = total
	return schedule
}

func scheduleRow(label string, value Cents, it InvoiceTotals) PaymentScheduleRow {
	return PaymentScheduleRow{
		Label:              label,
		ValueCents:         value,
		ClaimedToDateCents: it.ClaimedToDateCents,
		CurrentMonthCents:  it.CurrentMonthCents,
		RemainingCents:     value - it.ClaimedToDateCents,
	}
}

func accumulate(total, row PaymentScheduleRow) PaymentScheduleRow {
	total.ValueCents += row.ValueCents
	total.ClaimedToDateCents += row.ClaimedToDateCents
	total.CurrentMonthCents += row.CurrentMonthCents
	total.RemainingCents += row.RemainingCents
	return total
}
