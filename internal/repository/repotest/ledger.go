// Package repotest provides an in-memory ledger implementing the repository
// interfaces, for service and worker tests that do not need Postgres.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"billpos/internal/clock"
	"billpos/internal/model"
	"billpos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type tables struct {
	periods   map[uuid.UUID]model.BillPeriod
	bills     map[uuid.UUID]model.Bill
	items     map[uuid.UUID]model.BillItem
	modifiers map[uuid.UUID]model.BillItemModifierItem
	logs      map[uuid.UUID]model.BillItemPrintLog
	discounts map[uuid.UUID]model.BillDiscount
	payments  map[uuid.UUID]model.BillPayment
	seq       map[uuid.UUID]int
	next      int
}

func newTables() tables {
	return tables{
		periods:   map[uuid.UUID]model.BillPeriod{},
		bills:     map[uuid.UUID]model.Bill{},
		items:     map[uuid.UUID]model.BillItem{},
		modifiers: map[uuid.UUID]model.BillItemModifierItem{},
		logs:      map[uuid.UUID]model.BillItemPrintLog{},
		discounts: map[uuid.UUID]model.BillDiscount{},
		payments:  map[uuid.UUID]model.BillPayment{},
		seq:       map[uuid.UUID]int{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t tables) clone() tables {
	return tables{
		periods:   cloneMap(t.periods),
		bills:     cloneMap(t.bills),
		items:     cloneMap(t.items),
		modifiers: cloneMap(t.modifiers),
		logs:      cloneMap(t.logs),
		discounts: cloneMap(t.discounts),
		payments:  cloneMap(t.payments),
		seq:       cloneMap(t.seq),
		next:      t.next,
	}
}

// Ledger is a transactional in-memory store. Apply is all-or-nothing and
// honours guards the same way the GORM store does.
type Ledger struct {
	mu sync.Mutex
	t  tables

	// Catalog data, seeded directly by tests.
	Items         map[uuid.UUID]model.Item
	ModifierItems map[uuid.UUID]model.ModifierItem
	PriceGroups   map[uuid.UUID]model.PriceGroup
	PaymentTypes  map[uuid.UUID]model.PaymentType
	Discounts     map[uuid.UUID]model.Discount
	Printers      map[uuid.UUID]model.Printer
	Groups        map[uuid.UUID][]uuid.UUID

	// Clock stamps status transitions made through the print log repository.
	// Defaults to the system clock.
	Clock clock.Clock

	// BeforeApply runs inside Apply, before any mutation, with the lock
	// released. Tests use it to simulate a concurrent writer.
	BeforeApply func()
	// ApplyCount counts committed batches.
	ApplyCount int
}

func New() *Ledger {
	return &Ledger{
		t:             newTables(),
		Items:         map[uuid.UUID]model.Item{},
		ModifierItems: map[uuid.UUID]model.ModifierItem{},
		PriceGroups:   map[uuid.UUID]model.PriceGroup{},
		PaymentTypes:  map[uuid.UUID]model.PaymentType{},
		Discounts:     map[uuid.UUID]model.Discount{},
		Printers:      map[uuid.UUID]model.Printer{},
		Groups:        map[uuid.UUID][]uuid.UUID{},
	}
}

var (
	_ repository.Store              = (*Ledger)(nil)
	_ repository.BillRepository     = (*Ledger)(nil)
	_ repository.PeriodRepository   = periodRepo{}
	_ repository.PrintLogRepository = printLogRepo{}
	_ repository.CatalogRepository  = (*Ledger)(nil)
)

// ── Store ─────────────────────────────────────────────────────────────────────

func (l *Ledger) Apply(_ context.Context, b *repository.Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if l.BeforeApply != nil {
		hook := l.BeforeApply
		l.BeforeApply = nil
		hook()
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	work := l.t.clone()
	for _, m := range b.Mutations() {
		if err := work.apply(m); err != nil {
			return err
		}
	}
	l.t = work
	l.ApplyCount++
	return nil
}

func (t *tables) apply(m repository.Mutation) error {
	switch m.Op {
	case repository.OpCreate:
		return t.create(m.Record)
	case repository.OpUpdate, repository.OpDelete:
		found, ok := t.current(m.Record)
		if !ok || !guardMatches(found, m.Guard) {
			if m.Strict {
				return repository.ErrStale
			}
			return nil
		}
		if m.Op == repository.OpDelete {
			t.remove(m.Record)
			return nil
		}
		return t.put(m.Record)
	}
	return fmt.Errorf("unknown op %v", m.Op)
}

func (t *tables) create(rec any) error {
	if b, ok := rec.(*model.Bill); ok && !b.IsClosed {
		for _, other := range t.bills {
			if !other.IsClosed && other.BillPeriodID == b.BillPeriodID && other.Reference == b.Reference {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	if p, ok := rec.(*model.BillPeriod); ok && p.ClosedAt == nil {
		for _, other := range t.periods {
			if other.ClosedAt == nil {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	if _, exists := t.current(rec); exists {
		return gorm.ErrDuplicatedKey
	}
	t.next++
	t.seq[recordID(rec)] = t.next
	return t.put(rec)
}

func recordID(rec any) uuid.UUID {
	switch r := rec.(type) {
	case *model.BillPeriod:
		return r.ID
	case *model.Bill:
		return r.ID
	case *model.BillItem:
		return r.ID
	case *model.BillItemModifierItem:
		return r.ID
	case *model.BillItemPrintLog:
		return r.ID
	case *model.BillDiscount:
		return r.ID
	case *model.BillPayment:
		return r.ID
	}
	return uuid.Nil
}

// put stores a copy of the record without its associations.
func (t *tables) put(rec any) error {
	switch r := rec.(type) {
	case *model.BillPeriod:
		v := *r
		v.Bills = nil
		t.periods[r.ID] = v
	case *model.Bill:
		v := *r
		v.Items, v.Discounts, v.Payments = nil, nil, nil
		t.bills[r.ID] = v
	case *model.BillItem:
		v := *r
		v.ModifierItems, v.PrintLogs = nil, nil
		t.items[r.ID] = v
	case *model.BillItemModifierItem:
		t.modifiers[r.ID] = *r
	case *model.BillItemPrintLog:
		t.logs[r.ID] = *r
	case *model.BillDiscount:
		t.discounts[r.ID] = *r
	case *model.BillPayment:
		t.payments[r.ID] = *r
	default:
		return fmt.Errorf("unsupported record %T", rec)
	}
	return nil
}

func (t *tables) current(rec any) (any, bool) {
	id := recordID(rec)
	var (
		v  any
		ok bool
	)
	switch rec.(type) {
	case *model.BillPeriod:
		v, ok = t.periods[id]
	case *model.Bill:
		v, ok = t.bills[id]
	case *model.BillItem:
		v, ok = t.items[id]
	case *model.BillItemModifierItem:
		v, ok = t.modifiers[id]
	case *model.BillItemPrintLog:
		v, ok = t.logs[id]
	case *model.BillDiscount:
		v, ok = t.discounts[id]
	case *model.BillPayment:
		v, ok = t.payments[id]
	}
	return v, ok
}

func (t *tables) remove(rec any) {
	id := recordID(rec)
	delete(t.periods, id)
	delete(t.bills, id)
	delete(t.items, id)
	delete(t.modifiers, id)
	delete(t.logs, id)
	delete(t.discounts, id)
	delete(t.payments, id)
}

// guardMatches understands the guard columns the services use.
func guardMatches(found any, guard map[string]any) bool {
	for col, want := range guard {
		switch col {
		case "status":
			l, ok := found.(model.BillItemPrintLog)
			if !ok || l.Status != want.(model.PrintStatus) {
				return false
			}
		case "is_closed":
			b, ok := found.(model.Bill)
			if !ok || b.IsClosed != want.(bool) {
				return false
			}
		case "is_voided", "is_comp", "is_stored":
			it, ok := found.(model.BillItem)
			if !ok || itemFlag(it, col) != want.(bool) {
				return false
			}
		case "closed_at":
			p, ok := found.(model.BillPeriod)
			if !ok || (want == nil) != (p.ClosedAt == nil) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func itemFlag(it model.BillItem, col string) bool {
	switch col {
	case "is_voided":
		return it.IsVoided
	case "is_comp":
		return it.IsComp
	}
	return it.IsStored
}

// ── Test helpers ──────────────────────────────────────────────────────────────

// Seed writes records directly, bypassing guards.
func (l *Ledger) Seed(records ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range records {
		if err := l.t.create(r); err != nil {
			panic(err)
		}
	}
}

// Logs returns every print log in creation order.
func (l *Ledger) Logs() []model.BillItemPrintLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sorted(l.t, l.t.logs, func(v model.BillItemPrintLog) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID })
}

// Log returns a print log by id.
func (l *Ledger) Log(id uuid.UUID) (model.BillItemPrintLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.t.logs[id]
	return v, ok
}

// SetLogStatus forces a log into a status, as a concurrent worker would.
func (l *Ledger) SetLogStatus(id uuid.UUID, status model.PrintStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.t.logs[id]
	v.Status = status
	l.t.logs[id] = v
}

// CloseBill flags a bill closed outside of any batch.
func (l *Ledger) CloseBill(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.t.bills[id]
	v.IsClosed = true
	l.t.bills[id] = v
}

// Payments returns the payments of a bill in creation order.
func (l *Ledger) Payments(billID uuid.UUID) []model.BillPayment {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.BillPayment
	for _, p := range sorted(l.t, l.t.payments, func(v model.BillPayment) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	return out
}

func sorted[V any](t tables, m map[uuid.UUID]V, key func(V) (time.Time, uuid.UUID)) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, idi := key(out[i])
		tj, idj := key(out[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return t.seq[idi] < t.seq[idj]
	})
	return out
}

// ── BillRepository ────────────────────────────────────────────────────────────

func (l *Ledger) assemble(b model.Bill) model.Bill {
	t := l.t
	for _, it := range sorted(t, t.items, func(v model.BillItem) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
		if it.BillID != b.ID {
			continue
		}
		for _, m := range sorted(t, t.modifiers, func(v model.BillItemModifierItem) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
			if m.BillItemID == it.ID {
				it.ModifierItems = append(it.ModifierItems, m)
			}
		}
		for _, pl := range sorted(t, t.logs, func(v model.BillItemPrintLog) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
			if pl.BillItemID == it.ID {
				it.PrintLogs = append(it.PrintLogs, pl)
			}
		}
		b.Items = append(b.Items, it)
	}
	for _, d := range sorted(t, t.discounts, func(v model.BillDiscount) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
		if d.BillID == b.ID {
			b.Discounts = append(b.Discounts, d)
		}
	}
	for _, p := range sorted(t, t.payments, func(v model.BillPayment) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
		if p.BillID == b.ID {
			b.Payments = append(b.Payments, p)
		}
	}
	return b
}

func (l *Ledger) FindByID(_ context.Context, id uuid.UUID) (*model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.t.bills[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := l.assemble(b)
	return &out, nil
}

func (l *Ledger) FindOpenByReference(_ context.Context, periodID uuid.UUID, reference int) (*model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.t.bills {
		if b.BillPeriodID == periodID && b.Reference == reference && !b.IsClosed {
			v := b
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (l *Ledger) listBills(periodID uuid.UUID, openOnly bool) []model.Bill {
	var out []model.Bill
	for _, b := range sorted(l.t, l.t.bills, func(v model.Bill) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
		if b.BillPeriodID != periodID || (openOnly && b.IsClosed) {
			continue
		}
		out = append(out, l.assemble(b))
	}
	return out
}

func (l *Ledger) ListOpen(_ context.Context, periodID uuid.UUID) ([]model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.listBills(periodID, true)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}

func (l *Ledger) ListByPeriod(_ context.Context, periodID uuid.UUID) ([]model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listBills(periodID, false), nil
}

func (l *Ledger) CountOpen(_ context.Context, periodID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, b := range l.t.bills {
		if b.BillPeriodID == periodID && !b.IsClosed {
			n++
		}
	}
	return n, nil
}

// ── PeriodRepository ──────────────────────────────────────────────────────────

type periodRepo struct{ *Ledger }

// Periods returns the ledger as a PeriodRepository.
func (l *Ledger) Periods() repository.PeriodRepository { return periodRepo{l} }

func (l periodRepo) FindOpen(_ context.Context) (*model.BillPeriod, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.t.periods {
		if p.ClosedAt == nil {
			v := p
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (l periodRepo) FindByID(_ context.Context, id uuid.UUID) (*model.BillPeriod, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.t.periods[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (l periodRepo) List(_ context.Context, limit int) ([]model.BillPeriod, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := sorted(l.t, l.t.periods, func(v model.BillPeriod) (time.Time, uuid.UUID) { return v.OpenedAt, v.ID })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── PrintLogRepository ────────────────────────────────────────────────────────

type printLogRepo struct{ *Ledger }

// PrintLogs returns the ledger as a PrintLogRepository.
func (l *Ledger) PrintLogs() repository.PrintLogRepository { return printLogRepo{l} }

func (l printLogRepo) FindByID(_ context.Context, id uuid.UUID) (*model.BillItemPrintLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.t.logs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (l printLogRepo) ListPendingByBill(_ context.Context, billID uuid.UUID) ([]model.BillItemPrintLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.BillItemPrintLog
	for _, pl := range sorted(l.t, l.t.logs, func(v model.BillItemPrintLog) (time.Time, uuid.UUID) { return v.CreatedAt, v.ID }) {
		if pl.BillID == billID && pl.Status == model.PrintPending {
			out = append(out, pl)
		}
	}
	return out, nil
}

func (l *Ledger) now() time.Time {
	if l.Clock == nil {
		return time.Now()
	}
	return l.Clock.Now()
}

func (l *Ledger) transition(ids []uuid.UUID, from, to model.PrintStatus, errText *string) []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	var moved []uuid.UUID
	for _, id := range ids {
		pl, ok := l.t.logs[id]
		if !ok || pl.Status != from {
			continue
		}
		pl.Status = to
		pl.Error = errText
		pl.UpdatedAt = l.now()
		l.t.logs[id] = pl
		moved = append(moved, id)
	}
	return moved
}

func (l printLogRepo) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return l.transition(ids, model.PrintPending, model.PrintProcessing, nil), nil
}

func (l printLogRepo) Complete(_ context.Context, ids []uuid.UUID, status model.PrintStatus, errText *string) error {
	l.transition(ids, model.PrintProcessing, status, errText)
	return nil
}

func (l printLogRepo) FailPending(_ context.Context, ids []uuid.UUID, errText string) error {
	l.transition(ids, model.PrintPending, model.PrintErrored, &errText)
	return nil
}

func (l printLogRepo) FailStale(_ context.Context, cutoff time.Time, errText string) ([]model.BillItemPrintLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.BillItemPrintLog
	for id, pl := range l.t.logs {
		if pl.Status != model.PrintProcessing || !pl.UpdatedAt.Before(cutoff) {
			continue
		}
		pl.Status = model.PrintErrored
		msg := errText
		pl.Error = &msg
		pl.UpdatedAt = l.now()
		l.t.logs[id] = pl
		out = append(out, pl)
	}
	return out, nil
}

// ── CatalogRepository ─────────────────────────────────────────────────────────

func (l *Ledger) FindItem(_ context.Context, id uuid.UUID) (*model.Item, error) {
	v, ok := l.Items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (l *Ledger) FindModifierItem(_ context.Context, id uuid.UUID) (*model.ModifierItem, error) {
	v, ok := l.ModifierItems[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (l *Ledger) FindPriceGroup(_ context.Context, id uuid.UUID) (*model.PriceGroup, error) {
	v, ok := l.PriceGroups[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (l *Ledger) ListPriceGroups(_ context.Context) ([]model.PriceGroup, error) {
	out := make([]model.PriceGroup, 0, len(l.PriceGroups))
	for _, v := range l.PriceGroups {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Ledger) FindPaymentType(_ context.Context, id uuid.UUID) (*model.PaymentType, error) {
	v, ok := l.PaymentTypes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (l *Ledger) FindPaymentTypeByName(_ context.Context, name string) (*model.PaymentType, error) {
	for _, v := range l.PaymentTypes {
		if strings.EqualFold(v.Name, name) {
			pt := v
			return &pt, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (l *Ledger) FindDiscount(_ context.Context, id uuid.UUID) (*model.Discount, error) {
	v, ok := l.Discounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (l *Ledger) ListPrinters(_ context.Context) ([]model.Printer, error) {
	out := make([]model.Printer, 0, len(l.Printers))
	for _, v := range l.Printers {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Ledger) PrintersForGroup(_ context.Context, groupID uuid.UUID) ([]model.Printer, error) {
	var out []model.Printer
	for _, id := range l.Groups[groupID] {
		if p, ok := l.Printers[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ErrBoom is a canned failure for tests that exercise error paths.
var ErrBoom = errors.New("boom")
