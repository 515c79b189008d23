package worker_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"billpos/internal/clock"
	"billpos/internal/model"
	"billpos/internal/repository"
	"billpos/internal/repository/repotest"
	"billpos/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type delivery struct {
	printer uuid.UUID
	data    []byte
}

// stubTransport records deliveries and tracks how many run at once, per
// printer and overall.
type stubTransport struct {
	mu         sync.Mutex
	delay      time.Duration
	fail       map[uuid.UUID]error
	block      bool
	onDeliver  func(p model.Printer)
	deliveries []delivery
	active     map[uuid.UUID]int
	maxPer     map[uuid.UUID]int
	total      int
	maxTotal   int
}

func newStubTransport() *stubTransport {
	return &stubTransport{fail: map[uuid.UUID]error{}, active: map[uuid.UUID]int{}, maxPer: map[uuid.UUID]int{}}
}

func (s *stubTransport) Deliver(ctx context.Context, p model.Printer, data []byte) error {
	s.mu.Lock()
	s.active[p.ID]++
	s.total++
	if s.active[p.ID] > s.maxPer[p.ID] {
		s.maxPer[p.ID] = s.active[p.ID]
	}
	if s.total > s.maxTotal {
		s.maxTotal = s.total
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active[p.ID]--
		s.total--
		s.mu.Unlock()
	}()

	if s.onDeliver != nil {
		s.onDeliver(p)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[p.ID]; err != nil {
		return err
	}
	s.deliveries = append(s.deliveries, delivery{printer: p.ID, data: data})
	return nil
}

func (s *stubTransport) printed() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

// racingLogs runs hook right before the dispatcher claims its logs.
type racingLogs struct {
	repository.PrintLogRepository
	hook func()
}

func (r racingLogs) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if r.hook != nil {
		r.hook()
	}
	return r.PrintLogRepository.MarkProcessing(ctx, ids)
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type printFixture struct {
	t         *testing.T
	ledger    *repotest.Ledger
	transport *stubTransport
	clock     *clock.Fixed
	bill      model.Bill
	dineIn    model.PriceGroup
	takeAway  model.PriceGroup
	kitchen   model.Printer
	bar       model.Printer
	requeued  []uuid.UUID
}

func newPrintFixture(t *testing.T) *printFixture {
	f := &printFixture{
		t:         t,
		ledger:    repotest.New(),
		transport: newStubTransport(),
		clock:     clock.NewFixed(time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)),
		dineIn:    model.PriceGroup{ID: uuid.New(), Name: "Dine In", ShortName: "IN"},
		takeAway:  model.PriceGroup{ID: uuid.New(), Name: "Take Away", ShortName: "OUT"},
		kitchen:   model.Printer{ID: uuid.New(), Name: "Kitchen", Address: "10.0.0.10"},
		bar:       model.Printer{ID: uuid.New(), Name: "Bar", Address: "10.0.0.11"},
	}
	f.ledger.Clock = f.clock
	f.ledger.PriceGroups[f.dineIn.ID] = f.dineIn
	f.ledger.PriceGroups[f.takeAway.ID] = f.takeAway
	f.ledger.Printers[f.kitchen.ID] = f.kitchen
	f.ledger.Printers[f.bar.ID] = f.bar

	period := &model.BillPeriod{ID: uuid.New(), OpenedAt: f.clock.Now()}
	f.bill = model.Bill{ID: uuid.New(), Reference: 12, BillPeriodID: period.ID, CreatedAt: f.clock.Now()}
	f.ledger.Seed(period, &f.bill)
	return f
}

// item puts a stored item on the bill.
func (f *printFixture) item(short string, pg model.PriceGroup) *model.BillItem {
	f.clock.Advance(time.Second)
	it := &model.BillItem{
		ID: uuid.New(), BillID: f.bill.ID, ItemID: uuid.New(),
		ItemName: short, ItemShortName: short, ItemPrice: decimal.NewFromInt(5),
		PriceGroupID: pg.ID, PriceGroupName: pg.Name, CategoryName: "Mains",
		IsStored: true, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}
	f.ledger.Seed(it)
	return it
}

// log queues a pending log for the item on a printer.
func (f *printFixture) log(it *model.BillItem, p model.Printer, typ model.PrintType) model.BillItemPrintLog {
	f.clock.Advance(time.Second)
	l := model.BillItemPrintLog{
		ID: uuid.New(), BillID: f.bill.ID, BillItemID: it.ID, PrinterID: p.ID,
		Type: typ, Status: model.PrintPending, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}
	f.ledger.Seed(&l)
	return l
}

func (f *printFixture) worker(logs repository.PrintLogRepository, timeout time.Duration) *worker.PrintWorker {
	if logs == nil {
		logs = f.ledger.PrintLogs()
	}
	return worker.NewPrintWorker(worker.PrintWorkerConfig{
		Bills:     f.ledger,
		Logs:      logs,
		Catalog:   f.ledger,
		Store:     f.ledger,
		Transport: f.transport,
		Clock:     f.clock,
		Timeout:   timeout,
		PrepTime:  15 * time.Minute,
		Requeue: func(_ context.Context, billID uuid.UUID) error {
			f.requeued = append(f.requeued, billID)
			return nil
		},
	})
}

func (f *printFixture) status(id uuid.UUID) model.PrintStatus {
	f.t.Helper()
	l, ok := f.ledger.Log(id)
	require.True(f.t, ok)
	return l.Status
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestDispatch_DeliversAndMarksSucceeded(t *testing.T) {
	f := newPrintFixture(t)
	burger := f.item("burger", f.dineIn)
	ale := f.item("ale", f.dineIn)
	l1 := f.log(burger, f.kitchen, model.PrintTypeNew)
	l2 := f.log(ale, f.bar, model.PrintTypeNew)

	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	assert.Equal(t, model.PrintSucceeded, f.status(l1.ID))
	assert.Equal(t, model.PrintSucceeded, f.status(l2.ID))
	printed := f.transport.printed()
	require.Len(t, printed, 2)
	for _, d := range printed {
		assert.True(t, bytes.HasPrefix(d.data, []byte{0x1B, 0x40}), "ticket starts with ESC @")
		assert.Contains(t, string(d.data), "TABLE")
	}
	assert.Empty(t, f.requeued)
}

func TestDispatch_SerialPerPrinterConcurrentAcross(t *testing.T) {
	f := newPrintFixture(t)
	f.transport.delay = 40 * time.Millisecond
	// two price groups give two tickets per printer
	for _, pg := range []model.PriceGroup{f.dineIn, f.takeAway} {
		f.log(f.item("burger", pg), f.kitchen, model.PrintTypeNew)
		f.log(f.item("ale", pg), f.bar, model.PrintTypeNew)
	}

	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	assert.Len(t, f.transport.printed(), 4)
	assert.Equal(t, 1, f.transport.maxPer[f.kitchen.ID])
	assert.Equal(t, 1, f.transport.maxPer[f.bar.ID])
	assert.Equal(t, 2, f.transport.maxTotal, "different printers print at the same time")
}

func TestDispatch_SamePrinterAcrossWorkersIsSerial(t *testing.T) {
	f := newPrintFixture(t)
	f.transport.delay = 30 * time.Millisecond
	f.log(f.item("burger", f.dineIn), f.kitchen, model.PrintTypeNew)

	other := model.Bill{ID: uuid.New(), Reference: 13, BillPeriodID: f.bill.BillPeriodID, CreatedAt: f.clock.Now()}
	f.ledger.Seed(&other)
	saved := f.bill
	f.bill = other
	f.log(f.item("fries", f.dineIn), f.kitchen, model.PrintTypeNew)
	f.bill = saved

	w := f.worker(nil, time.Second)
	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{saved.ID, other.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.NoError(t, w.Dispatch(context.Background(), id))
		}(id)
	}
	wg.Wait()

	assert.Len(t, f.transport.printed(), 2)
	assert.Equal(t, 1, f.transport.maxPer[f.kitchen.ID])
}

func TestDispatch_TicketsForOnePrinterInCreationOrder(t *testing.T) {
	f := newPrintFixture(t)
	// take away is rung on first, so its ticket goes out first even though
	// tickets are composed in price group name order
	f.log(f.item("fries", f.takeAway), f.kitchen, model.PrintTypeNew)
	f.log(f.item("burger", f.dineIn), f.kitchen, model.PrintTypeNew)

	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	printed := f.transport.printed()
	require.Len(t, printed, 2)
	assert.Contains(t, string(printed[0].data), "Fries")
	assert.Contains(t, string(printed[1].data), "Burger")
}

func TestDispatch_TimeoutMarksErrored(t *testing.T) {
	f := newPrintFixture(t)
	f.transport.block = true
	l := f.log(f.item("burger", f.dineIn), f.kitchen, model.PrintTypeNew)

	start := time.Now()
	require.NoError(t, f.worker(nil, 30*time.Millisecond).Dispatch(context.Background(), f.bill.ID))
	assert.Less(t, time.Since(start), time.Second)

	got, ok := f.ledger.Log(l.ID)
	require.True(t, ok)
	assert.Equal(t, model.PrintErrored, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "deadline")
}

func TestDispatch_FailureOnOnePrinterDoesNotStopOthers(t *testing.T) {
	f := newPrintFixture(t)
	f.transport.fail[f.kitchen.ID] = assert.AnError
	kitchenLog := f.log(f.item("burger", f.dineIn), f.kitchen, model.PrintTypeNew)
	barLog := f.log(f.item("ale", f.dineIn), f.bar, model.PrintTypeNew)

	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	assert.Equal(t, model.PrintErrored, f.status(kitchenLog.ID))
	assert.Equal(t, model.PrintSucceeded, f.status(barLog.ID))
}

func TestDispatch_UnknownPrinterErrored(t *testing.T) {
	f := newPrintFixture(t)
	ghost := model.Printer{ID: uuid.New(), Name: "Removed"}
	l := f.log(f.item("burger", f.dineIn), ghost, model.PrintTypeNew)

	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	got, _ := f.ledger.Log(l.ID)
	assert.Equal(t, model.PrintErrored, got.Status)
	assert.Empty(t, f.transport.printed())
}

func TestDispatch_LogsLostBeforeClaimAreLeftOut(t *testing.T) {
	f := newPrintFixture(t)
	burger := f.item("burger", f.dineIn)
	fries := f.item("fries", f.dineIn)
	keep := f.log(burger, f.kitchen, model.PrintTypeNew)
	lost := f.log(fries, f.kitchen, model.PrintTypeNew)

	// a void cancels one log after the bill was read
	logs := racingLogs{
		PrintLogRepository: f.ledger.PrintLogs(),
		hook:               func() { f.ledger.SetLogStatus(lost.ID, model.PrintCancelled) },
	}
	require.NoError(t, f.worker(logs, time.Second).Dispatch(context.Background(), f.bill.ID))

	printed := f.transport.printed()
	require.Len(t, printed, 1)
	assert.Contains(t, string(printed[0].data), "Burger")
	assert.NotContains(t, string(printed[0].data), "Fries")
	assert.Equal(t, model.PrintSucceeded, f.status(keep.ID))
	assert.Equal(t, model.PrintCancelled, f.status(lost.ID))
}

func TestDispatch_VoidDuringDeliveryQueuesVoidTicket(t *testing.T) {
	f := newPrintFixture(t)
	burger := f.item("burger", f.dineIn)
	l := f.log(burger, f.kitchen, model.PrintTypeNew)

	f.transport.onDeliver = func(model.Printer) {
		voided := *burger
		voided.IsVoided = true
		assert.NoError(t, f.ledger.Apply(context.Background(), repository.NewBatch().Update(&voided, "IsVoided")))
	}
	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	assert.Equal(t, model.PrintSucceeded, f.status(l.ID))
	var voids []model.BillItemPrintLog
	for _, got := range f.ledger.Logs() {
		if got.Type == model.PrintTypeVoid {
			voids = append(voids, got)
		}
	}
	require.Len(t, voids, 1)
	assert.Equal(t, model.PrintPending, voids[0].Status)
	assert.Equal(t, f.kitchen.ID, voids[0].PrinterID)
	assert.Equal(t, []uuid.UUID{f.bill.ID}, f.requeued)
}

func TestDispatch_StatusChangesUseInjectedClock(t *testing.T) {
	f := newPrintFixture(t)
	l := f.log(f.item("burger", f.dineIn), f.kitchen, model.PrintTypeNew)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))

	got, ok := f.ledger.Log(l.ID)
	require.True(t, ok)
	assert.Equal(t, model.PrintSucceeded, got.Status)
	assert.True(t, got.UpdatedAt.Equal(f.clock.Now()), "stamped %s", got.UpdatedAt)
}

func TestDispatch_NothingPending(t *testing.T) {
	f := newPrintFixture(t)
	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), f.bill.ID))
	require.NoError(t, f.worker(nil, time.Second).Dispatch(context.Background(), uuid.New()))
	assert.Empty(t, f.transport.printed())
}

func TestProcess_BadPayloadIsDropped(t *testing.T) {
	f := newPrintFixture(t)
	w := f.worker(nil, time.Second)
	assert.NoError(t, w.Process(context.Background(), []byte(`{"bill_id":"nope"}`)))
	assert.NoError(t, w.Process(context.Background(), []byte(`not json`)))
}

func TestSweepStale(t *testing.T) {
	f := newPrintFixture(t)
	it := f.item("burger", f.dineIn)
	stuck := f.log(it, f.kitchen, model.PrintTypeNew)
	f.ledger.SetLogStatus(stuck.ID, model.PrintProcessing)

	f.clock.Advance(10 * time.Minute)
	recent := f.log(it, f.bar, model.PrintTypeNew)
	f.ledger.SetLogStatus(recent.ID, model.PrintProcessing)

	n := worker.SweepStale(context.Background(), worker.SweeperConfig{
		Logs:       f.ledger.PrintLogs(),
		Clock:      clock.NewFixed(recent.UpdatedAt.Add(time.Minute)),
		StaleAfter: 5 * time.Minute,
	})

	assert.Equal(t, 1, n)
	got, _ := f.ledger.Log(stuck.ID)
	assert.Equal(t, model.PrintErrored, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, model.PrintProcessing, f.status(recent.ID))
}
