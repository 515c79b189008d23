// Package settlement computes the running financial state of a bill.
//
// Everything here is a pure function of its inputs so the same code serves the
// checkout screen (open bill), the close routine and the period report.
package settlement

import (
	"billpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places of the minor currency unit.
const MinorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// DiscountLine is a bill discount together with the amount it takes off the bill.
type DiscountLine struct {
	BillDiscountID     uuid.UUID       `json:"bill_discount_id"`
	DiscountID         uuid.UUID       `json:"discount_id"`
	Name               string          `json:"name"`
	Amount             decimal.Decimal `json:"amount"`
	IsPercent          bool            `json:"is_percent"`
	CalculatedDiscount decimal.Decimal `json:"calculated_discount"`
}

// Summary is the settlement state of a bill.
type Summary struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountBreakdown []DiscountLine  `json:"discount_breakdown"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	TotalPayable      decimal.Decimal `json:"total_payable"`
	// TotalPaid excludes change lines; TotalTendered includes them.
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalTendered decimal.Decimal `json:"total_tendered"`
	Balance       decimal.Decimal `json:"balance"`
}

// Covered reports whether the bill is fully paid (possibly over-tendered).
func (s Summary) Covered() bool {
	return s.Balance.LessThanOrEqual(decimal.Zero)
}

// AmountDue is the outstanding balance, never negative.
func (s Summary) AmountDue() decimal.Decimal {
	if s.Covered() {
		return decimal.Zero
	}
	return s.Balance
}

// ChangeDue is the over-tendered amount, zero while a balance is outstanding.
func (s Summary) ChangeDue() decimal.Decimal {
	if s.Covered() {
		return s.Balance.Abs()
	}
	return decimal.Zero
}

// Calculate derives the settlement state from the bill's items, discounts and
// payments. Discounts must be given in creation order.
func Calculate(items []model.BillItem, discounts []model.BillDiscount, payments []model.BillPayment) Summary {
	subtotal := Subtotal(items)
	breakdown := Breakdown(subtotal, discounts)
	return summarize(subtotal, breakdown, payments)
}

// CalculateFinalized is Calculate for reporting on closed bills: discounts that
// carry a frozen closing amount use it instead of being recomputed.
func CalculateFinalized(items []model.BillItem, discounts []model.BillDiscount, payments []model.BillPayment) Summary {
	subtotal := Subtotal(items)
	breakdown := Breakdown(subtotal, discounts)
	for i, d := range discounts {
		if d.ClosingAmount != nil {
			breakdown[i].CalculatedDiscount = *d.ClosingAmount
		}
	}
	return summarize(subtotal, breakdown, payments)
}

func summarize(subtotal decimal.Decimal, breakdown []DiscountLine, payments []model.BillPayment) Summary {
	totalDiscount := decimal.Zero
	for _, d := range breakdown {
		totalDiscount = totalDiscount.Add(d.CalculatedDiscount)
	}
	paid, tendered := decimal.Zero, decimal.Zero
	for _, p := range payments {
		tendered = tendered.Add(p.Amount)
		if !p.IsChange {
			paid = paid.Add(p.Amount)
		}
	}
	payable := subtotal.Sub(totalDiscount)
	return Summary{
		Subtotal:          subtotal,
		DiscountBreakdown: breakdown,
		TotalDiscount:     totalDiscount,
		TotalPayable:      payable,
		TotalPaid:         paid,
		TotalTendered:     tendered,
		Balance:           payable.Sub(paid),
	}
}

// Subtotal sums the non-voided items with their non-voided modifier items.
func Subtotal(items []model.BillItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		if !items[i].Chargeable() {
			continue
		}
		total = total.Add(items[i].Total())
	}
	return total
}

// Breakdown applies discounts one after another against a rolling total.
// A percentage discount is taken from what is left after the discounts before
// it, rounded to the minor unit at each step, so the order matters.
func Breakdown(subtotal decimal.Decimal, discounts []model.BillDiscount) []DiscountLine {
	rolling := subtotal
	out := make([]DiscountLine, 0, len(discounts))
	for _, d := range discounts {
		calculated := d.Amount
		if d.IsPercent {
			calculated = rolling.Mul(d.Amount).Div(hundred).Round(MinorUnitPlaces)
		}
		rolling = rolling.Sub(calculated)
		out = append(out, DiscountLine{
			BillDiscountID:     d.ID,
			DiscountID:         d.DiscountID,
			Name:               d.Name,
			Amount:             d.Amount,
			IsPercent:          d.IsPercent,
			CalculatedDiscount: calculated,
		})
	}
	return out
}
