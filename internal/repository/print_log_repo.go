package repository

import (
	"context"
	"time"

	"billpos/internal/clock"
	"billpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PrintLogRepository owns the dispatcher side of the print log state machine.
// Every transition is a conditional update on the current status so that a
// concurrent void (which deletes pending logs and cancels errored ones) wins
// cleanly over a stale dispatcher.
type PrintLogRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.BillItemPrintLog, error)
	ListPendingByBill(ctx context.Context, billID uuid.UUID) ([]model.BillItemPrintLog, error)

	// MarkProcessing moves the given logs from pending to processing and
	// returns the ids it actually claimed.
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	// Complete moves processing logs to succeeded or errored.
	Complete(ctx context.Context, ids []uuid.UUID, status model.PrintStatus, errText *string) error
	// FailPending moves pending logs straight to errored (e.g. unknown printer).
	FailPending(ctx context.Context, ids []uuid.UUID, errText string) error
	// FailStale errors logs stuck in processing since before the cutoff and
	// returns them.
	FailStale(ctx context.Context, cutoff time.Time, errText string) ([]model.BillItemPrintLog, error)
}

type printLogRepo struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewPrintLogRepository stamps every transition with clk, the same clock the
// sweeper measures its stale cutoff on.
func NewPrintLogRepository(db *gorm.DB, clk clock.Clock) PrintLogRepository {
	return &printLogRepo{db: db, clock: clk}
}

func (r *printLogRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.BillItemPrintLog, error) {
	var l model.BillItemPrintLog
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *printLogRepo) ListPendingByBill(ctx context.Context, billID uuid.UUID) ([]model.BillItemPrintLog, error) {
	var logs []model.BillItemPrintLog
	err := r.db.WithContext(ctx).
		Where("bill_id = ? AND status = ?", billID, model.PrintPending).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *printLogRepo) transition(ctx context.Context, ids []uuid.UUID, from, to model.PrintStatus, errText *string) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var moved []model.BillItemPrintLog
	res := r.db.WithContext(ctx).
		Model(&moved).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(map[string]any{"status": to, "error": errText, "updated_at": r.clock.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	out := make([]uuid.UUID, 0, len(moved))
	for _, l := range moved {
		out = append(out, l.ID)
	}
	return out, nil
}

func (r *printLogRepo) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.transition(ctx, ids, model.PrintPending, model.PrintProcessing, nil)
}

func (r *printLogRepo) Complete(ctx context.Context, ids []uuid.UUID, status model.PrintStatus, errText *string) error {
	_, err := r.transition(ctx, ids, model.PrintProcessing, status, errText)
	return err
}

func (r *printLogRepo) FailPending(ctx context.Context, ids []uuid.UUID, errText string) error {
	_, err := r.transition(ctx, ids, model.PrintPending, model.PrintErrored, &errText)
	return err
}

func (r *printLogRepo) FailStale(ctx context.Context, cutoff time.Time, errText string) ([]model.BillItemPrintLog, error) {
	var stale []model.BillItemPrintLog
	err := r.db.WithContext(ctx).
		Model(&stale).
		Clauses(clause.Returning{}).
		Where("status = ? AND updated_at < ?", model.PrintProcessing, cutoff).
		Updates(map[string]any{"status": model.PrintErrored, "error": errText, "updated_at": r.clock.Now()}).Error
	return stale, err
}
