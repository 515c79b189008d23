package receipt

import (
	"fmt"
	"time"

	"billpos/internal/settlement"
)

// PeriodInput is the data for an end-of-period report.
type PeriodInput struct {
	Totals   settlement.PeriodTotals
	Org      Org
	Symbol   string
	Width    int
	OpenedAt time.Time
	ClosedAt time.Time
}

const reportTimeLayout = "02/01/2006 15:04:05"

// ComposePeriod renders the period (Z) report.
func ComposePeriod(in PeriodInput) []Command {
	w := in.Width
	if w <= 0 {
		w = 32
	}
	t := in.Totals
	tally := func(name string, x settlement.Tally) Command {
		return text(alignLeftRight(name, fmt.Sprintf("%d / %s", x.Count, Money(x.Total, in.Symbol)), w))
	}
	totalLine := func(x settlement.Tally) Command {
		return text(alignLeftRight("Total:", fmt.Sprintf("%d / %s", x.Count, Money(x.Total, in.Symbol)), w))
	}

	c := []Command{
		starDivider(w),
		text(alignCenter(in.Org.Name, w)),
		text(alignCenter("PERIOD REPORT", w)),
		text(alignLeftRight("Opened:", in.OpenedAt.Format(reportTimeLayout), w)),
		text(alignLeftRight("Closed:", in.ClosedAt.Format(reportTimeLayout), w)),
		starDivider(w),
	}

	c = section(c, "Bills", w)
	c = append(c, text(alignLeftRight("Total:", fmt.Sprintf("%d", t.BillCount), w)))

	c = section(c, "Category Totals", w)
	for _, x := range t.Categories {
		c = append(c, tally(capitalize(x.Name), x))
	}
	c = append(c, totalLine(t.CategoryTotal))

	c = section(c, "Modifier Totals", w)
	for _, m := range t.Modifiers {
		c = append(c, text(capitalize(m.Name)))
		for _, x := range m.Breakdown {
			c = append(c, tally(billModPrefix+capitalize(x.Name), x))
		}
	}
	c = append(c, totalLine(t.ModifierTotal))

	c = section(c, "Price Group Totals", w)
	for _, x := range t.PriceGroups {
		c = append(c, tally(capitalize(x.Name), x))
	}

	c = section(c, "Voids", w)
	c = append(c, totalLine(t.Voids))
	c = section(c, "Comps", w)
	c = append(c, totalLine(t.Comps))

	c = section(c, "Discount Totals", w)
	for _, x := range t.Discounts {
		c = append(c, tally(capitalize(x.Name), x))
	}
	c = append(c, totalLine(t.DiscountTotal))

	c = section(c, "Payment Totals", w)
	for _, x := range t.Payments {
		c = append(c, tally(capitalize(x.Name), x))
	}
	c = append(c, totalLine(t.PaymentTotal))

	c = section(c, "Sales", w)
	c = append(c, text(alignLeftRight("Sales Total:", Money(t.SalesTotal, in.Symbol), w)))
	return append(c, divider(w), feed(3), cut())
}
