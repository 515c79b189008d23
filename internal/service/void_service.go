package service

import (
	"context"
	"errors"
	"strings"

	"billpos/internal/clock"
	"billpos/internal/dto"
	"billpos/internal/model"
	"billpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// VoidService takes items off a bill (void) or flags them complimentary (comp).
type VoidService interface {
	Void(ctx context.Context, billID, billItemID uuid.UUID, req dto.ItemReasonRequest) (*dto.BillResponse, error)
	Comp(ctx context.Context, billID, billItemID uuid.UUID, req dto.ItemReasonRequest) (*dto.BillResponse, error)
}

type voidService struct {
	store         repository.Store
	bills         repository.BillRepository
	queue         PrintQueue
	clock         clock.Clock
	requireReason bool
}

func NewVoidService(store repository.Store, bills repository.BillRepository, queue PrintQueue, clk clock.Clock, requireReason bool) VoidService {
	return &voidService{store: store, bills: bills, queue: queue, clock: clk, requireReason: requireReason}
}

func cleanReason(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *voidService) target(ctx context.Context, billID, billItemID uuid.UUID, req dto.ItemReasonRequest) (*model.Bill, *model.BillItem, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, nil, err
	}
	item := bill.FindItem(billItemID)
	if item == nil {
		return nil, nil, ErrItemNotOnBill
	}
	if item.IsVoided {
		return nil, nil, ErrAlreadyVoided
	}
	if s.requireReason && cleanReason(req.ReasonName) == nil {
		return nil, nil, ErrReasonRequired
	}
	return bill, item, nil
}

// ── Void ──────────────────────────────────────────────────────────────────────
// The item and its modifier items are flagged voided, and its print logs are
// reconciled by status in the same batch:
//   succeeded  → a new pending "void" log for that printer (kitchen is told)
//   pending    → deleted (the kitchen never saw it)
//   errored    → cancelled (nothing left to resend)
//   processing, cancelled → untouched
// The item update is guarded on is_voided = false and the bill on
// is_closed = false, so of two overlapping voids only one commits.
// A dispatch job is enqueued after commit when void logs were created.

func (s *voidService) Void(ctx context.Context, billID, billItemID uuid.UUID, req dto.ItemReasonRequest) (*dto.BillResponse, error) {
	bill, item, err := s.target(ctx, billID, billItemID, req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	batch := repository.NewBatch()
	guardOpen(batch, bill, now)

	item.IsVoided = true
	item.VoidedAt = &now
	item.ReasonName = cleanReason(req.ReasonName)
	item.ReasonDescription = cleanReason(req.ReasonDescription)
	item.UpdatedAt = now
	batch.UpdateStrict(map[string]any{"is_voided": false},
		item, "IsVoided", "VoidedAt", "ReasonName", "ReasonDescription", "UpdatedAt")

	for i := range item.ModifierItems {
		m := &item.ModifierItems[i]
		m.IsVoided = true
		m.UpdatedAt = now
		batch.Update(m, "IsVoided", "UpdatedAt")
	}

	voidLogs := 0
	for i := range item.PrintLogs {
		l := &item.PrintLogs[i]
		switch l.Status {
		case model.PrintSucceeded:
			batch.Create(&model.BillItemPrintLog{
				ID:         uuid.New(),
				BillID:     bill.ID,
				BillItemID: item.ID,
				PrinterID:  l.PrinterID,
				Type:       model.PrintTypeVoid,
				Status:     model.PrintPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			voidLogs++
		case model.PrintPending:
			batch.DeleteIf(map[string]any{"status": model.PrintPending}, l)
		case model.PrintErrored:
			l.Status = model.PrintCancelled
			l.UpdatedAt = now
			batch.UpdateIf(map[string]any{"status": model.PrintErrored}, l, "Status", "UpdatedAt")
		}
	}

	if err := s.apply(ctx, batch, bill.ID, item.ID); err != nil {
		return nil, err
	}
	if voidLogs > 0 {
		enqueuePrint(ctx, s.queue, bill.ID)
	}

	log.Info().
		Str("bill_id", bill.ID.String()).
		Str("bill_item_id", item.ID.String()).
		Int("void_logs", voidLogs).
		Msg("bill item voided")
	return reloadBill(ctx, s.bills, bill.ID)
}

// ── Comp ──────────────────────────────────────────────────────────────────────
// Comp flags the item complimentary. It stays on the order, on the tickets and
// in the subtotal; the flag is reported on receipts and in the period comps.

func (s *voidService) Comp(ctx context.Context, billID, billItemID uuid.UUID, req dto.ItemReasonRequest) (*dto.BillResponse, error) {
	bill, item, err := s.target(ctx, billID, billItemID, req)
	if err != nil {
		return nil, err
	}
	if item.IsComp {
		return nil, ErrAlreadyComped
	}

	now := s.clock.Now()
	batch := repository.NewBatch()
	guardOpen(batch, bill, now)

	item.IsComp = true
	item.ReasonName = cleanReason(req.ReasonName)
	item.ReasonDescription = cleanReason(req.ReasonDescription)
	item.UpdatedAt = now
	batch.UpdateStrict(map[string]any{"is_comp": false, "is_voided": false},
		item, "IsComp", "ReasonName", "ReasonDescription", "UpdatedAt")

	for i := range item.ModifierItems {
		m := &item.ModifierItems[i]
		m.IsComp = true
		m.UpdatedAt = now
		batch.Update(m, "IsComp", "UpdatedAt")
	}

	if err := s.apply(ctx, batch, bill.ID, item.ID); err != nil {
		return nil, err
	}
	log.Info().Str("bill_id", bill.ID.String()).Str("bill_item_id", item.ID.String()).Msg("bill item comped")
	return reloadBill(ctx, s.bills, bill.ID)
}

func (s *voidService) apply(ctx context.Context, batch *repository.Batch, billID, billItemID uuid.UUID) error {
	err := s.store.Apply(ctx, batch)
	if errors.Is(err, repository.ErrStale) {
		return staleItem(ctx, s.bills, billID, billItemID)
	}
	return err
}
