package costplan

import "github.com/google/uuid"

// AggregateInvoices sums the live invoices of a cost line. Invoices up to and
// including period count towards claimed-to-date; invoices in exactly period
// count towards the current month. A nil period sums everything to date and
// leaves the current month at zero.
func AggregateInvoices(invoices []Invoice, costLineID uuid.UUID, period *Period) InvoiceTotals {
	return sumInvoices(invoices, period, func(inv Invoice) bool {
		return inv.CostLineID == costLineID
	})
}

// AggregateContractInvoices is AggregateInvoices restricted to invoices that
// are not tagged to a variation.
func AggregateContractInvoices(invoices []Invoice, costLineID uuid.UUID, period *Period) InvoiceTotals {
	return sumInvoices(invoices, period, func(inv Invoice) bool {
		return inv.CostLineID == costLineID && inv.ContractOnly()
	})
}

// AggregateVariationInvoices sums the invoices tagged to one variation.
func AggregateVariationInvoices(invoices []Invoice, variationID uuid.UUID, period *Period) InvoiceTotals {
	return sumInvoices(invoices, period, func(inv Invoice) bool {
		return inv.VariationID != nil && *inv.VariationID == variationID
	})
}

func sumInvoices(invoices []Invoice, period *Period, match func(Invoice) bool) InvoiceTotals {
	var totals InvoiceTotals
	for _, inv := range invoices {
		if inv.Deleted() || !match(inv) {
			continue
		}
		if period == nil {
			totals.ClaimedToDateCents += inv.AmountCents
			continue
		}
		if onOrBefore(inv.Period, *period) {
			totals.ClaimedToDateCents += inv.AmountCents
		}
		if inv.Period.Compare(*period) == 0 {
			totals.CurrentMonthCents += inv.AmountCents
		}
	}
	return totals
}

// onOrBefore is the single cutoff predicate shared by all invoice aggregations.
func onOrBefore(p, cutoff Period) bool {
	return p.Compare(cutoff) <= 0
}
