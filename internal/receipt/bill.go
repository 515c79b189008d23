package receipt

import (
	"fmt"
	"strings"
	"time"

	"billpos/internal/model"
	"billpos/internal/settlement"

	"github.com/shopspring/decimal"
)

// Org is the business block printed at the top of customer receipts.
type Org struct {
	Name         string
	AddressLines []string
	VAT          string
}

// BillInput is the data for a customer bill receipt.
type BillInput struct {
	Bill   *model.Bill
	Org    Org
	Symbol string
	Width  int
	Now    time.Time
}

const (
	billModPrefix  = " -"
	billCompPrefix = "COMP "
)

func section(c []Command, title string, w int) []Command {
	return append(c, blank(), text(alignCenter(strings.ToUpper(title), w)), divider(w))
}

func orgHeader(org Org, now time.Time, w int) []Command {
	c := []Command{text(alignCenter(org.Name, w))}
	for _, l := range org.AddressLines {
		if l != "" {
			c = append(c, text(alignCenter(l, w)))
		}
	}
	c = append(c, blank(), text(alignLeftRight(now.Format("02/01/2006"), now.Format("15:04:05"), w)))
	return c
}

// ComposeBill renders the customer receipt for a bill. Voided items are left
// off; comped items carry a COMP marker. Totals come from the settlement
// calculator, with frozen discount amounts for closed bills.
func ComposeBill(in BillInput) []Command {
	w := in.Width
	if w <= 0 {
		w = 32
	}
	money := func(d decimal.Decimal) string { return Money(d, in.Symbol) }
	b := in.Bill

	summary := settlement.Calculate(b.Items, b.Discounts, b.Payments)
	if b.IsClosed {
		summary = settlement.CalculateFinalized(b.Items, b.Discounts, b.Payments)
	}

	c := orgHeader(in.Org, in.Now, w)
	c = append(c, text(alignLeftRight("Bill", fmt.Sprintf("#%d", b.Reference), w)))

	c = section(c, "Items", w)
	for i := range b.Items {
		item := &b.Items[i]
		if item.IsVoided {
			continue
		}
		name := item.ItemName
		if item.IsComp {
			name = billCompPrefix + name
		}
		c = append(c, text(alignLeftRight(name, money(item.ItemPrice), w)))
		for _, m := range item.ModifierItems {
			if m.IsVoided {
				continue
			}
			c = append(c, text(alignLeftRight(billModPrefix+m.ModifierItemName, money(m.ModifierItemPrice), w)))
		}
	}
	c = append(c, text(alignLeftRight("TOTAL:", money(summary.Subtotal), w)))

	if len(summary.DiscountBreakdown) > 0 {
		c = section(c, "Discounts", w)
		for _, d := range summary.DiscountBreakdown {
			c = append(c, text(alignLeftRight(d.Name, "-"+money(d.CalculatedDiscount), w)))
		}
	}

	if len(b.Payments) > 0 {
		c = section(c, "Payments", w)
		for _, p := range b.Payments {
			if p.IsChange {
				continue
			}
			c = append(c, text(alignLeftRight(p.PaymentTypeName, money(p.Amount), w)))
		}
	}

	c = section(c, "Totals", w)
	c = append(c, text(alignLeftRight("Subtotal:", money(summary.TotalPayable), w)))
	c = append(c, text(alignLeftRight("Amount Due:", money(summary.AmountDue()), w)))
	if summary.Covered() {
		c = append(c, text(alignLeftRight("Change Due:", money(summary.ChangeDue()), w)))
	}
	c = append(c, divider(w), blank())
	if in.Org.VAT != "" {
		c = append(c, text(alignCenter("VAT: "+in.Org.VAT, w)), blank())
	}
	return append(c, feed(3), cut())
}
