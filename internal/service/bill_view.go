package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billpos/internal/dto"
	"billpos/internal/model"
	"billpos/internal/repository"
	"billpos/internal/settlement"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PrintQueue schedules prep ticket dispatch for a bill. Implemented by
// worker.Dispatcher.
type PrintQueue interface {
	EnqueuePrint(ctx context.Context, billID uuid.UUID) error
}

// Print states shown on the open bills overview, in priority order.
const (
	PrintStateError    = "error"
	PrintStateUnstored = "unstored"
	PrintStatePrinting = "printing"
	PrintStateOK       = "ok"
)

// PrintState summarises a bill's ticket delivery: any errored log wins, then
// items not yet sent, then tickets still in flight.
func PrintState(b *model.Bill) string {
	unstored, printing := false, false
	for _, it := range b.Items {
		if !it.IsVoided && !it.IsStored {
			unstored = true
		}
		for _, l := range it.PrintLogs {
			switch l.Status {
			case model.PrintErrored:
				return PrintStateError
			case model.PrintPending, model.PrintProcessing:
				printing = true
			}
		}
	}
	switch {
	case unstored:
		return PrintStateUnstored
	case printing:
		return PrintStatePrinting
	}
	return PrintStateOK
}

func notFound(what string, id uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

func loadBill(ctx context.Context, bills repository.BillRepository, id uuid.UUID) (*model.Bill, error) {
	b, err := bills.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("bill", id, err)
	}
	return b, nil
}

func reloadBill(ctx context.Context, bills repository.BillRepository, id uuid.UUID) (*dto.BillResponse, error) {
	b, err := loadBill(ctx, bills, id)
	if err != nil {
		return nil, err
	}
	return toBillResponse(b), nil
}

func loadOpenBill(ctx context.Context, bills repository.BillRepository, id uuid.UUID) (*model.Bill, error) {
	b, err := loadBill(ctx, bills, id)
	if err != nil {
		return nil, err
	}
	if b.IsClosed {
		return nil, ErrBillClosed
	}
	return b, nil
}

// guardOpen touches the bill so the batch aborts with repository.ErrStale if
// the bill was closed after it was read.
func guardOpen(batch *repository.Batch, bill *model.Bill, now time.Time) {
	bill.UpdatedAt = now
	batch.UpdateStrict(map[string]any{"is_closed": false}, bill, "UpdatedAt")
}

// staleItem names the change that made a guarded item batch stale.
func staleItem(ctx context.Context, bills repository.BillRepository, billID, billItemID uuid.UUID) error {
	b, err := loadBill(ctx, bills, billID)
	if err != nil {
		return err
	}
	it := b.FindItem(billItemID)
	switch {
	case b.IsClosed:
		return ErrBillClosed
	case it == nil:
		return ErrItemNotOnBill
	case it.IsVoided:
		return ErrAlreadyVoided
	case it.IsComp:
		return ErrAlreadyComped
	}
	return ErrConcurrentUpdate
}

func enqueuePrint(ctx context.Context, q PrintQueue, billID uuid.UUID) {
	if q == nil {
		return
	}
	if err := q.EnqueuePrint(ctx, billID); err != nil {
		// logs stay pending; an operator resend or the next store picks them up
		log.Error().Err(err).Str("bill_id", billID.String()).Msg("print dispatch enqueue failed")
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func toPrintLogResponse(l model.BillItemPrintLog) dto.PrintLogResponse {
	return dto.PrintLogResponse{
		ID:         l.ID.String(),
		BillItemID: l.BillItemID.String(),
		PrinterID:  l.PrinterID.String(),
		Type:       string(l.Type),
		Status:     string(l.Status),
		Error:      l.Error,
		CreatedAt:  formatTime(l.CreatedAt),
	}
}

func toBillResponse(b *model.Bill) *dto.BillResponse {
	summary := settlement.Calculate(b.Items, b.Discounts, b.Payments)
	if b.IsClosed {
		summary = settlement.CalculateFinalized(b.Items, b.Discounts, b.Payments)
	}
	resp := &dto.BillResponse{
		ID:         b.ID.String(),
		Reference:  b.Reference,
		PeriodID:   b.BillPeriodID.String(),
		IsClosed:   b.IsClosed,
		PrintState: PrintState(b),
		Items:      make([]dto.BillItemResponse, 0, len(b.Items)),
		Discounts:  make([]dto.BillDiscountResponse, 0, len(b.Discounts)),
		Payments:   make([]dto.BillPaymentResponse, 0, len(b.Payments)),
		Summary:    summary,
		AmountDue:  summary.AmountDue(),
		ChangeDue:  summary.ChangeDue(),
		CreatedAt:  formatTime(b.CreatedAt),
	}
	if b.ClosedAt != nil {
		s := formatTime(*b.ClosedAt)
		resp.ClosedAt = &s
	}
	for i := range b.Items {
		it := &b.Items[i]
		ir := dto.BillItemResponse{
			ID:                it.ID.String(),
			ItemID:            it.ItemID.String(),
			Name:              it.ItemName,
			ShortName:         it.ItemShortName,
			Price:             it.ItemPrice,
			Total:             it.Total(),
			PriceGroup:        it.PriceGroupName,
			Category:          it.CategoryName,
			PrintMessage:      it.PrintMessage,
			IsStored:          it.IsStored,
			IsVoided:          it.IsVoided,
			IsComp:            it.IsComp,
			ReasonName:        it.ReasonName,
			ReasonDescription: it.ReasonDescription,
			Modifiers:         make([]dto.ModifierItemResponse, 0, len(it.ModifierItems)),
			PrintLogs:         make([]dto.PrintLogResponse, 0, len(it.PrintLogs)),
		}
		for _, m := range it.ModifierItems {
			ir.Modifiers = append(ir.Modifiers, dto.ModifierItemResponse{
				ID:           m.ID.String(),
				ModifierName: m.ModifierName,
				Name:         m.ModifierItemName,
				ShortName:    m.ModifierItemShortName,
				Price:        m.ModifierItemPrice,
				IsVoided:     m.IsVoided,
				IsComp:       m.IsComp,
			})
		}
		for _, l := range it.PrintLogs {
			ir.PrintLogs = append(ir.PrintLogs, toPrintLogResponse(l))
		}
		resp.Items = append(resp.Items, ir)
	}
	for _, d := range summary.DiscountBreakdown {
		resp.Discounts = append(resp.Discounts, dto.BillDiscountResponse{
			ID:                 d.BillDiscountID.String(),
			DiscountID:         d.DiscountID.String(),
			Name:               d.Name,
			Amount:             d.Amount,
			IsPercent:          d.IsPercent,
			CalculatedDiscount: d.CalculatedDiscount,
		})
	}
	for _, p := range b.Payments {
		resp.Payments = append(resp.Payments, dto.BillPaymentResponse{
			ID:          p.ID.String(),
			PaymentType: p.PaymentTypeName,
			Amount:      p.Amount,
			IsChange:    p.IsChange,
			CreatedAt:   formatTime(p.CreatedAt),
		})
	}
	return resp
}
