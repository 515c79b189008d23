package service

import (
	"context"
	"errors"
	"time"

	"billpos/internal/clock"
	"billpos/internal/dto"
	"billpos/internal/model"
	"billpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PrintService is the operator side of ticket delivery. Failed deliveries are
// never retried automatically; the operator resends them from here.
type PrintService interface {
	Resend(ctx context.Context, logID uuid.UUID) (*dto.ResendResponse, error)
	ResendErrored(ctx context.Context, billID uuid.UUID) (*dto.ResendResponse, error)
}

type printService struct {
	store repository.Store
	bills repository.BillRepository
	logs  repository.PrintLogRepository
	queue PrintQueue
	clock clock.Clock
}

func NewPrintService(store repository.Store, bills repository.BillRepository, logs repository.PrintLogRepository, queue PrintQueue, clk clock.Clock) PrintService {
	return &printService{store: store, bills: bills, logs: logs, queue: queue, clock: clk}
}

// retireInto cancels an errored log, guarded on it still being errored.
func retireInto(batch *repository.Batch, l *model.BillItemPrintLog, now time.Time) {
	l.Status = model.PrintCancelled
	l.UpdatedAt = now
	batch.UpdateStrict(map[string]any{"status": model.PrintErrored}, l, "Status", "UpdatedAt")
}

// resendInto adds a fresh pending copy of an errored log to the batch and
// retires the errored one as cancelled. The copy keeps type and printer.
func resendInto(batch *repository.Batch, l *model.BillItemPrintLog, now time.Time) *model.BillItemPrintLog {
	fresh := &model.BillItemPrintLog{
		ID:         uuid.New(),
		BillID:     l.BillID,
		BillItemID: l.BillItemID,
		PrinterID:  l.PrinterID,
		Type:       l.Type,
		Status:     model.PrintPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	retireInto(batch, l, now)
	batch.Create(fresh)
	return fresh
}

// retireOnly reports whether an errored log is settled by cancelling it: a
// failed "new" ticket for an item voided since has nothing left to say.
func retireOnly(item *model.BillItem, l *model.BillItemPrintLog) bool {
	return item != nil && item.IsVoided && l.Type == model.PrintTypeNew
}

func (s *printService) Resend(ctx context.Context, logID uuid.UUID) (*dto.ResendResponse, error) {
	l, err := s.logs.FindByID(ctx, logID)
	if err != nil {
		return nil, notFound("print log", logID, err)
	}
	bill, err := loadBill(ctx, s.bills, l.BillID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.PrintErrored {
		return nil, ErrNotResendable
	}

	batch := repository.NewBatch()
	now := s.clock.Now()
	if retireOnly(bill.FindItem(l.BillItemID), l) {
		retireInto(batch, l, now)
		if err := s.apply(ctx, batch); err != nil {
			return nil, err
		}
		log.Info().Str("log_id", l.ID.String()).Msg("errored print log of voided item cancelled")
		return &dto.ResendResponse{
			Logs:    []dto.PrintLogResponse{},
			Retired: []dto.PrintLogResponse{toPrintLogResponse(*l)},
		}, nil
	}

	fresh := resendInto(batch, l, now)
	if err := s.apply(ctx, batch); err != nil {
		return nil, err
	}
	enqueuePrint(ctx, s.queue, l.BillID)

	log.Info().Str("log_id", l.ID.String()).Str("new_log_id", fresh.ID.String()).Msg("print log resent")
	return &dto.ResendResponse{
		Logs:    []dto.PrintLogResponse{toPrintLogResponse(*fresh)},
		Retired: []dto.PrintLogResponse{},
	}, nil
}

// ResendErrored settles every errored log on the bill: resent, or cancelled
// when its item was voided since.
func (s *printService) ResendErrored(ctx context.Context, billID uuid.UUID) (*dto.ResendResponse, error) {
	bill, err := loadBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	batch := repository.NewBatch()
	var fresh, retired []*model.BillItemPrintLog
	for i := range bill.Items {
		it := &bill.Items[i]
		for j := range it.PrintLogs {
			l := &it.PrintLogs[j]
			switch {
			case l.Status != model.PrintErrored:
			case retireOnly(it, l):
				retireInto(batch, l, now)
				retired = append(retired, l)
			default:
				fresh = append(fresh, resendInto(batch, l, now))
			}
		}
	}

	resp := &dto.ResendResponse{
		Logs:    make([]dto.PrintLogResponse, 0, len(fresh)),
		Retired: make([]dto.PrintLogResponse, 0, len(retired)),
	}
	if batch.Len() == 0 {
		return resp, nil
	}
	if err := s.apply(ctx, batch); err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		enqueuePrint(ctx, s.queue, bill.ID)
	}
	for _, l := range fresh {
		resp.Logs = append(resp.Logs, toPrintLogResponse(*l))
	}
	for _, l := range retired {
		resp.Retired = append(resp.Retired, toPrintLogResponse(*l))
	}
	log.Info().
		Str("bill_id", bill.ID.String()).
		Int("resent", len(fresh)).
		Int("cancelled", len(retired)).
		Msg("errored print logs settled")
	return resp, nil
}

func (s *printService) apply(ctx context.Context, batch *repository.Batch) error {
	err := s.store.Apply(ctx, batch)
	if errors.Is(err, repository.ErrStale) {
		return ErrNotResendable
	}
	return err
}
