package repository

import (
	"context"

	"billpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillRepository reads bills with everything hanging off them. Writes go
// through Store.Apply.
type BillRepository interface {
	// FindByID loads the bill with items (modifier items and print logs
	// included, voided ones too), discounts and payments in creation order.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	FindOpenByReference(ctx context.Context, periodID uuid.UUID, reference int) (*model.Bill, error)
	ListOpen(ctx context.Context, periodID uuid.UUID) ([]model.Bill, error)
	ListByPeriod(ctx context.Context, periodID uuid.UUID) ([]model.Bill, error)
	CountOpen(ctx context.Context, periodID uuid.UUID) (int64, error)
}

type billRepo struct{ db *gorm.DB }

func NewBillRepository(db *gorm.DB) BillRepository { return &billRepo{db: db} }

func (r *billRepo) withLedger(ctx context.Context) *gorm.DB {
	byCreated := func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }
	return r.db.WithContext(ctx).
		Preload("Items", byCreated).
		Preload("Items.ModifierItems", byCreated).
		Preload("Items.PrintLogs", byCreated).
		Preload("Discounts", byCreated).
		Preload("Payments", byCreated)
}

func (r *billRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var b model.Bill
	err := r.withLedger(ctx).First(&b, "id = ?", id).Error
	return &b, err
}

func (r *billRepo) FindOpenByReference(ctx context.Context, periodID uuid.UUID, reference int) (*model.Bill, error) {
	var b model.Bill
	err := r.db.WithContext(ctx).
		Where("bill_period_id = ? AND reference = ? AND is_closed = false", periodID, reference).
		First(&b).Error
	return &b, err
}

func (r *billRepo) ListOpen(ctx context.Context, periodID uuid.UUID) ([]model.Bill, error) {
	var bills []model.Bill
	err := r.withLedger(ctx).
		Where("bill_period_id = ? AND is_closed = false", periodID).
		Order("reference ASC").
		Find(&bills).Error
	return bills, err
}

func (r *billRepo) ListByPeriod(ctx context.Context, periodID uuid.UUID) ([]model.Bill, error) {
	var bills []model.Bill
	err := r.withLedger(ctx).
		Where("bill_period_id = ?", periodID).
		Order("created_at ASC").
		Find(&bills).Error
	return bills, err
}

func (r *billRepo) CountOpen(ctx context.Context, periodID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Bill{}).
		Where("bill_period_id = ? AND is_closed = false", periodID).
		Count(&n).Error
	return n, err
}
