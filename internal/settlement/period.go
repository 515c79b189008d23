package settlement

import (
	"sort"

	"billpos/internal/model"

	"github.com/shopspring/decimal"
)

// Tally is a count and a money total for one reporting bucket.
type Tally struct {
	Name  string          `json:"name"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func (t *Tally) add(amount decimal.Decimal) {
	t.Count++
	t.Total = t.Total.Add(amount)
}

// ModifierTally groups modifier item tallies under their modifier.
type ModifierTally struct {
	Name      string  `json:"name"`
	Breakdown []Tally `json:"breakdown"`
}

// PeriodTotals is the end-of-period (Z report) aggregate over a set of bills.
type PeriodTotals struct {
	BillCount     int             `json:"bill_count"`
	Categories    []Tally         `json:"categories"`
	CategoryTotal Tally           `json:"category_total"`
	Modifiers     []ModifierTally `json:"modifiers"`
	ModifierTotal Tally           `json:"modifier_total"`
	Discounts     []Tally         `json:"discounts"`
	DiscountTotal Tally           `json:"discount_total"`
	Payments      []Tally         `json:"payments"`
	PaymentTotal  Tally           `json:"payment_total"`
	Voids         Tally           `json:"voids"`
	Comps         Tally           `json:"comps"`
	PriceGroups   []Tally         `json:"price_groups"`
	SalesTotal    decimal.Decimal `json:"sales_total"`
}

type bucket struct {
	order []string
	byKey map[string]*Tally
}

func newBucket() *bucket { return &bucket{byKey: map[string]*Tally{}} }

func (b *bucket) add(name string, amount decimal.Decimal) {
	t, ok := b.byKey[name]
	if !ok {
		t = &Tally{Name: name, Total: decimal.Zero}
		b.byKey[name] = t
		b.order = append(b.order, name)
	}
	t.add(amount)
}

func (b *bucket) sorted() []Tally {
	names := append([]string(nil), b.order...)
	sort.Strings(names)
	out := make([]Tally, 0, len(names))
	for _, n := range names {
		out = append(out, *b.byKey[n])
	}
	return out
}

func sum(name string, tallies []Tally) Tally {
	t := Tally{Name: name, Total: decimal.Zero}
	for _, x := range tallies {
		t.Count += x.Count
		t.Total = t.Total.Add(x.Total)
	}
	return t
}

// Period aggregates bills into report totals. Voided modifier items of live
// items are ignored; voided items are reported once, with their modifiers
// folded into the void total. Change lines reduce the total of their
// payment type so payment totals reflect money kept.
func Period(bills []model.Bill) PeriodTotals {
	categories := newBucket()
	priceGroups := newBucket()
	discounts := newBucket()
	payments := newBucket()
	modifiers := map[string]*bucket{}
	var modifierOrder []string

	voids := Tally{Name: "voids", Total: decimal.Zero}
	comps := Tally{Name: "comps", Total: decimal.Zero}
	gross := decimal.Zero

	for _, bill := range bills {
		for i := range bill.Items {
			item := &bill.Items[i]
			if item.IsVoided {
				voids.add(item.Total())
				continue
			}
			// comped items are sold items; the tally only reports them
			if item.IsComp {
				comps.add(item.Total())
			}
			categories.add(item.CategoryName, item.Total())
			priceGroups.add(item.PriceGroupName, item.Total())
			gross = gross.Add(item.Total())
			for _, m := range item.ModifierItems {
				if m.IsVoided {
					continue
				}
				mb, ok := modifiers[m.ModifierName]
				if !ok {
					mb = newBucket()
					modifiers[m.ModifierName] = mb
					modifierOrder = append(modifierOrder, m.ModifierName)
				}
				mb.add(m.ModifierItemName, m.ModifierItemPrice)
			}
		}

		summary := CalculateFinalized(bill.Items, bill.Discounts, bill.Payments)
		for _, d := range summary.DiscountBreakdown {
			discounts.add(d.Name, d.CalculatedDiscount)
		}
		for _, p := range bill.Payments {
			amount := p.Amount
			if p.IsChange {
				amount = amount.Neg()
			}
			payments.add(p.PaymentTypeName, amount)
		}
	}

	out := PeriodTotals{
		BillCount:   len(bills),
		Categories:  categories.sorted(),
		Discounts:   discounts.sorted(),
		Payments:    payments.sorted(),
		PriceGroups: priceGroups.sorted(),
		Voids:       voids,
		Comps:       comps,
	}
	out.CategoryTotal = sum("total", out.Categories)
	out.DiscountTotal = sum("total", out.Discounts)
	out.PaymentTotal = sum("total", out.Payments)

	sort.Strings(modifierOrder)
	var allModifierItems []Tally
	for _, name := range modifierOrder {
		items := modifiers[name].sorted()
		allModifierItems = append(allModifierItems, items...)
		out.Modifiers = append(out.Modifiers, ModifierTally{Name: name, Breakdown: items})
	}
	out.ModifierTotal = sum("total", allModifierItems)
	out.SalesTotal = gross.Sub(out.DiscountTotal.Total)
	return out
}
