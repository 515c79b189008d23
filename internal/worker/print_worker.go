package worker

// print_worker.go
// Processes print jobs from QueuePrint.
// Renders the pending print logs of a bill into prep tickets, one per
// (price group, printer), and delivers them. Tickets for different printers go
// out concurrently; tickets for the same printer strictly one at a time, in
// the order their logs were created.

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"billpos/internal/clock"
	"billpos/internal/model"
	"billpos/internal/receipt"
	"billpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	errUnknownPrinter      = "printer not found"
)

// Transport delivers an encoded ticket to a printer. Implemented by
// infra.NetworkPrinter and infra.LogPrinter.
type Transport interface {
	Deliver(ctx context.Context, p model.Printer, data []byte) error
}

// PrintWorkerConfig holds all dependencies of the print worker.
type PrintWorkerConfig struct {
	Bills     repository.BillRepository
	Logs      repository.PrintLogRepository
	Catalog   repository.CatalogRepository
	Store     repository.Store
	Transport Transport
	Clock     clock.Clock
	// Timeout bounds a single ticket delivery; past it the logs are errored.
	Timeout time.Duration
	// PrepTime is added to the dispatch time for the PREP line on tickets.
	PrepTime time.Duration
	// Requeue schedules another dispatch for a bill, used when a void ticket
	// has to follow a delivery that raced the void.
	Requeue func(ctx context.Context, billID uuid.UUID) error
}

// PrintWorker is the print job dispatcher. It owns every print log status
// transition after pending.
type PrintWorker struct {
	cfg   PrintWorkerConfig
	locks printerLocks
}

func NewPrintWorker(cfg PrintWorkerConfig) *PrintWorker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDeliveryTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &PrintWorker{cfg: cfg, locks: printerLocks{m: map[uuid.UUID]*sync.Mutex{}}}
}

// printerLocks serialises deliveries per printer across all pool workers.
type printerLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *printerLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	return m
}

// Process handles a single print job envelope.
func (w *PrintWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload PrintJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("print_worker: invalid payload")
		return nil
	}
	billID, err := uuid.Parse(payload.BillID)
	if err != nil {
		log.Error().Str("bill_id", payload.BillID).Msg("print_worker: invalid bill_id")
		return nil
	}
	return w.Dispatch(ctx, billID)
}

// Dispatch delivers every pending print log of the bill. Transport failures
// are recorded on the logs; only ledger failures are returned.
func (w *PrintWorker) Dispatch(ctx context.Context, billID uuid.UUID) error {
	// logs first: every item they point at already exists when the bill loads
	pending, err := w.cfg.Logs.ListPendingByBill(ctx, billID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	bill, err := w.cfg.Bills.FindByID(ctx, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("bill_id", billID.String()).Msg("print_worker: bill not found")
			return nil
		}
		return err
	}

	printers, err := w.printers(ctx)
	if err != nil {
		return err
	}
	groups, err := w.priceGroups(ctx)
	if err != nil {
		return err
	}

	var orphaned []uuid.UUID
	for _, l := range pending {
		if _, ok := printers[l.PrinterID]; !ok {
			orphaned = append(orphaned, l.ID)
		}
	}
	if len(orphaned) > 0 {
		if err := w.cfg.Logs.FailPending(ctx, orphaned, errUnknownPrinter); err != nil {
			return err
		}
		log.Warn().Str("bill_id", billID.String()).Int("logs", len(orphaned)).Msg("print_worker: logs for unknown printer errored")
	}

	items := make(map[uuid.UUID]*model.BillItem, len(bill.Items))
	for i := range bill.Items {
		items[bill.Items[i].ID] = &bill.Items[i]
	}
	now := w.cfg.Clock.Now()
	jobs := receipt.ComposeKitchen(receipt.KitchenInput{
		Logs:        pending,
		Items:       items,
		Printers:    printers,
		PriceGroups: groups,
		Reference:   strconv.Itoa(bill.Reference),
		PrepTime:    now.Add(w.cfg.PrepTime),
		Now:         now,
	})

	byPrinter := map[uuid.UUID][]receipt.Job{}
	var order []uuid.UUID
	for _, j := range jobs {
		if _, ok := byPrinter[j.PrinterID]; !ok {
			order = append(order, j.PrinterID)
		}
		byPrinter[j.PrinterID] = append(byPrinter[j.PrinterID], j)
	}

	types := make(map[uuid.UUID]model.PrintType, len(pending))
	for _, l := range pending {
		types[l.ID] = l.Type
	}

	var (
		mu        sync.Mutex
		delivered []uuid.UUID
	)
	var g errgroup.Group
	for _, pid := range order {
		printer, queue := printers[pid], byPrinter[pid]
		sort.SliceStable(queue, func(a, b int) bool { return queue[a].FirstCreated().Before(queue[b].FirstCreated()) })
		g.Go(func() error {
			ok, err := w.deliverAll(ctx, printer, queue)
			mu.Lock()
			delivered = append(delivered, ok...)
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()

	var newDelivered []uuid.UUID
	for _, id := range delivered {
		if types[id] == model.PrintTypeNew {
			newDelivered = append(newDelivered, id)
		}
	}
	if fErr := w.followVoids(ctx, billID, newDelivered); fErr != nil && err == nil {
		err = fErr
	}
	return err
}

// deliverAll sends the printer's tickets in order and returns the ids of the
// logs that were delivered successfully.
func (w *PrintWorker) deliverAll(ctx context.Context, printer model.Printer, queue []receipt.Job) ([]uuid.UUID, error) {
	lock := w.locks.get(printer.ID)
	lock.Lock()
	defer lock.Unlock()

	var delivered []uuid.UUID
	for _, job := range queue {
		ok, err := w.deliver(ctx, printer, job)
		delivered = append(delivered, ok...)
		if err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

func (w *PrintWorker) deliver(ctx context.Context, printer model.Printer, job receipt.Job) ([]uuid.UUID, error) {
	claimed, err := w.cfg.Logs.MarkProcessing(ctx, job.LogIDs)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		// voided or picked up by another worker since the bill was read
		return nil, nil
	}
	if len(claimed) < len(job.LogIDs) {
		keep := make(map[uuid.UUID]bool, len(claimed))
		for _, id := range claimed {
			keep[id] = true
		}
		job = job.Restrict(keep)
	}

	dctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	sendErr := w.cfg.Transport.Deliver(dctx, printer, receipt.Encode(job.Commands))
	cancel()

	status, errText := model.PrintSucceeded, (*string)(nil)
	if sendErr != nil {
		status = model.PrintErrored
		msg := sendErr.Error()
		errText = &msg
	}
	// the outcome is recorded even when the job context is shutting down
	if err := w.cfg.Logs.Complete(context.WithoutCancel(ctx), claimed, status, errText); err != nil {
		return nil, err
	}

	evt := log.Info()
	if sendErr != nil {
		evt = log.Warn().Err(sendErr)
	}
	evt.Str("printer", printer.Name).Int("logs", len(claimed)).Str("status", string(status)).Msg("print_worker: ticket delivered")

	if sendErr != nil {
		return nil, nil
	}
	return claimed, nil
}

// followVoids handles a void that landed while a "new" ticket was in flight:
// the void left the processing log alone, so once it succeeds the kitchen
// still has to be told. Errored deliveries are left for the operator.
func (w *PrintWorker) followVoids(ctx context.Context, billID uuid.UUID, delivered []uuid.UUID) error {
	if len(delivered) == 0 {
		return nil
	}
	bill, err := w.cfg.Bills.FindByID(context.WithoutCancel(ctx), billID)
	if err != nil {
		return err
	}
	wanted := make(map[uuid.UUID]bool, len(delivered))
	for _, id := range delivered {
		wanted[id] = true
	}

	now := w.cfg.Clock.Now()
	batch := repository.NewBatch()
	for i := range bill.Items {
		it := &bill.Items[i]
		if !it.IsVoided {
			continue
		}
		voided := map[uuid.UUID]bool{}
		for _, l := range it.PrintLogs {
			if l.Type == model.PrintTypeVoid && l.Status != model.PrintCancelled {
				voided[l.PrinterID] = true
			}
		}
		for _, l := range it.PrintLogs {
			if !wanted[l.ID] || voided[l.PrinterID] {
				continue
			}
			voided[l.PrinterID] = true
			batch.Create(&model.BillItemPrintLog{
				ID:         uuid.New(),
				BillID:     bill.ID,
				BillItemID: it.ID,
				PrinterID:  l.PrinterID,
				Type:       model.PrintTypeVoid,
				Status:     model.PrintPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := w.cfg.Store.Apply(context.WithoutCancel(ctx), batch); err != nil {
		return err
	}
	log.Info().Str("bill_id", billID.String()).Int("logs", batch.Len()).Msg("print_worker: void tickets queued after racing delivery")
	if w.cfg.Requeue != nil {
		if err := w.cfg.Requeue(ctx, billID); err != nil {
			log.Error().Err(err).Str("bill_id", billID.String()).Msg("print_worker: requeue failed")
		}
	}
	return nil
}

func (w *PrintWorker) printers(ctx context.Context) (map[uuid.UUID]model.Printer, error) {
	list, err := w.cfg.Catalog.ListPrinters(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]model.Printer, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (w *PrintWorker) priceGroups(ctx context.Context) (map[uuid.UUID]model.PriceGroup, error) {
	list, err := w.cfg.Catalog.ListPriceGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]model.PriceGroup, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}
