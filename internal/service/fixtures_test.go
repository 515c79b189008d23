package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"billpos/internal/clock"
	"billpos/internal/dto"
	"billpos/internal/model"
	"billpos/internal/receipt"
	"billpos/internal/repository/repotest"
	"billpos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubQueue records the bills a dispatch job was requested for.
type stubQueue struct {
	mu    sync.Mutex
	bills []uuid.UUID
}

func (q *stubQueue) EnqueuePrint(_ context.Context, billID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bills = append(q.bills, billID)
	return nil
}

func (q *stubQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bills)
}

var _ service.PrintQueue = (*stubQueue)(nil)

// stubMail captures queued email payloads.
type stubMail struct {
	payloads []interface{}
}

func (m *stubMail) EnqueueEmail(_ context.Context, payload interface{}) error {
	m.payloads = append(m.payloads, payload)
	return nil
}

var _ service.MailQueue = (*stubMail)(nil)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

// ── Fixture ───────────────────────────────────────────────────────────────────

// fixture is a small restaurant: one open period, a kitchen group with two
// printers, a bar group with one, and a handful of priced items.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	ledger *repotest.Ledger
	queue  *stubQueue
	mail   *stubMail
	clock  *clock.Fixed

	period uuid.UUID

	dineIn   uuid.UUID
	takeAway uuid.UUID

	burger   uuid.UUID // kitchen, 6.50 dine in only
	beer     uuid.UUID // bar, 4.00
	water    uuid.UUID // no printer group, 1.50
	cheese   uuid.UUID // modifier item, 0.50
	bacon    uuid.UUID // modifier item, 1.00
	cash     uuid.UUID
	card     uuid.UUID
	staff10  uuid.UUID // 10 percent
	voucher2 uuid.UUID // 2.00 fixed

	kitchenA uuid.UUID
	kitchenB uuid.UUID
	bar      uuid.UUID

	bills   service.BillService
	voids   service.VoidService
	prints  service.PrintService
	periods service.PeriodService
	recpts  service.ReceiptService
}

func newFixture(t *testing.T, requireReason bool) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		ledger:   repotest.New(),
		queue:    &stubQueue{},
		mail:     &stubMail{},
		clock:    clock.NewFixed(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)),
		period:   uuid.New(),
		dineIn:   uuid.New(),
		takeAway: uuid.New(),
		burger:   uuid.New(),
		beer:     uuid.New(),
		water:    uuid.New(),
		cheese:   uuid.New(),
		bacon:    uuid.New(),
		cash:     uuid.New(),
		card:     uuid.New(),
		staff10:  uuid.New(),
		voucher2: uuid.New(),
		kitchenA: uuid.New(),
		kitchenB: uuid.New(),
		bar:      uuid.New(),
	}
	l := f.ledger

	l.Seed(&model.BillPeriod{ID: f.period, OpenedAt: f.clock.Now().Add(-time.Hour)})

	l.PriceGroups[f.dineIn] = model.PriceGroup{ID: f.dineIn, Name: "Dine In", ShortName: "IN"}
	l.PriceGroups[f.takeAway] = model.PriceGroup{ID: f.takeAway, Name: "Take Away", ShortName: "OUT"}

	kitchenGroup, barGroup := uuid.New(), uuid.New()
	l.Printers[f.kitchenA] = model.Printer{ID: f.kitchenA, Name: "Kitchen A", Address: "10.0.0.10"}
	l.Printers[f.kitchenB] = model.Printer{ID: f.kitchenB, Name: "Kitchen B", Address: "10.0.0.11"}
	l.Printers[f.bar] = model.Printer{ID: f.bar, Name: "Bar", Address: "10.0.0.12"}
	l.Groups[kitchenGroup] = []uuid.UUID{f.kitchenA, f.kitchenB}
	l.Groups[barGroup] = []uuid.UUID{f.bar}

	mains := &model.Category{ID: uuid.New(), Name: "Mains"}
	drinks := &model.Category{ID: uuid.New(), Name: "Drinks"}
	toppings := &model.Modifier{ID: uuid.New(), Name: "Toppings", MaxItemAmount: 2}

	l.Items[f.burger] = model.Item{
		ID: f.burger, Name: "Cheeseburger", ShortName: "burger",
		CategoryID: mains.ID, Category: mains, PrinterGroupID: &kitchenGroup,
		Prices: []model.ItemPrice{
			{ItemID: f.burger, PriceGroupID: f.dineIn, Price: decPtr("6.50")},
			{ItemID: f.burger, PriceGroupID: f.takeAway, Price: nil},
		},
	}
	l.Items[f.beer] = model.Item{
		ID: f.beer, Name: "Pale Ale", ShortName: "ale",
		CategoryID: drinks.ID, Category: drinks, PrinterGroupID: &barGroup,
		Prices: []model.ItemPrice{
			{ItemID: f.beer, PriceGroupID: f.dineIn, Price: decPtr("4.00")},
			{ItemID: f.beer, PriceGroupID: f.takeAway, Price: decPtr("3.50")},
		},
	}
	l.Items[f.water] = model.Item{
		ID: f.water, Name: "Still Water", ShortName: "water",
		CategoryID: drinks.ID, Category: drinks,
		Prices: []model.ItemPrice{{ItemID: f.water, PriceGroupID: f.dineIn, Price: decPtr("1.50")}},
	}
	l.ModifierItems[f.cheese] = model.ModifierItem{
		ID: f.cheese, ModifierID: toppings.ID, Name: "Extra Cheese", ShortName: "cheese", Modifier: toppings,
		Prices: []model.ModifierItemPrice{{ModifierItemID: f.cheese, PriceGroupID: f.dineIn, Price: decPtr("0.50")}},
	}
	l.ModifierItems[f.bacon] = model.ModifierItem{
		ID: f.bacon, ModifierID: toppings.ID, Name: "Bacon", ShortName: "bacon", Modifier: toppings,
		Prices: []model.ModifierItemPrice{{ModifierItemID: f.bacon, PriceGroupID: f.dineIn, Price: decPtr("1.00")}},
	}

	l.PaymentTypes[f.cash] = model.PaymentType{ID: f.cash, Name: "Cash"}
	l.PaymentTypes[f.card] = model.PaymentType{ID: f.card, Name: "Card"}
	l.Discounts[f.staff10] = model.Discount{ID: f.staff10, Name: "Staff", Amount: dec("10"), IsPercent: true}
	l.Discounts[f.voucher2] = model.Discount{ID: f.voucher2, Name: "Voucher", Amount: dec("2.00")}

	settings := service.ReceiptSettings{
		Org:         receipt.Org{Name: "The Anchor", AddressLines: []string{"1 Quay St"}, VAT: "GB123"},
		Symbol:      "£",
		Width:       42,
		StoragePath: t.TempDir(),
	}
	f.bills = service.NewBillService(l, l, l.Periods(), l, f.queue, f.clock, "cash")
	f.voids = service.NewVoidService(l, l, f.queue, f.clock, requireReason)
	f.prints = service.NewPrintService(l, l, l.PrintLogs(), f.queue, f.clock)
	f.periods = service.NewPeriodService(l, l.Periods(), l, f.clock, settings)
	f.recpts = service.NewReceiptService(l, f.mail, f.clock, settings)
	return f
}

// openBill opens a bill and returns its id.
func (f *fixture) openBill(reference int) uuid.UUID {
	f.t.Helper()
	resp, err := f.bills.Open(f.ctx, dto.OpenBillRequest{Reference: reference})
	require.NoError(f.t, err)
	return uuid.MustParse(resp.ID)
}

// addItem rings an item on in the dine-in price group and returns the new bill item id.
func (f *fixture) addItem(billID, itemID uuid.UUID, modifiers ...uuid.UUID) uuid.UUID {
	f.t.Helper()
	req := dto.AddItemRequest{ItemID: itemID.String(), PriceGroupID: f.dineIn.String()}
	for _, m := range modifiers {
		req.ModifierItemIDs = append(req.ModifierItemIDs, m.String())
	}
	f.clock.Advance(time.Second)
	resp, err := f.bills.AddItem(f.ctx, billID, req)
	require.NoError(f.t, err)
	return uuid.MustParse(resp.Items[len(resp.Items)-1].ID)
}

func (f *fixture) store(billID uuid.UUID) *dto.BillResponse {
	f.t.Helper()
	f.clock.Advance(time.Second)
	resp, err := f.bills.Store(f.ctx, billID)
	require.NoError(f.t, err)
	return resp
}

func (f *fixture) pay(billID, paymentType uuid.UUID, amount string) (*dto.BillResponse, error) {
	f.clock.Advance(time.Second)
	return f.bills.AddPayment(f.ctx, billID, dto.AddPaymentRequest{PaymentTypeID: paymentType.String(), Amount: dec(amount)})
}

// logsFor returns the print logs of one bill item in creation order.
func (f *fixture) logsFor(billItemID uuid.UUID) []model.BillItemPrintLog {
	var out []model.BillItemPrintLog
	for _, l := range f.ledger.Logs() {
		if l.BillItemID == billItemID {
			out = append(out, l)
		}
	}
	return out
}

// logOn returns the single log of the item on the given printer with the given type.
func (f *fixture) logOn(billItemID, printerID uuid.UUID, typ model.PrintType) model.BillItemPrintLog {
	f.t.Helper()
	var found []model.BillItemPrintLog
	for _, l := range f.logsFor(billItemID) {
		if l.PrinterID == printerID && l.Type == typ {
			found = append(found, l)
		}
	}
	require.Len(f.t, found, 1)
	return found[0]
}
