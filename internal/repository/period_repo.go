package repository

import (
	"context"

	"billpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PeriodRepository interface {
	FindOpen(ctx context.Context) (*model.BillPeriod, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.BillPeriod, error)
	List(ctx context.Context, limit int) ([]model.BillPeriod, error)
}

type periodRepo struct{ db *gorm.DB }

func NewPeriodRepository(db *gorm.DB) PeriodRepository { return &periodRepo{db: db} }

func (r *periodRepo) FindOpen(ctx context.Context) (*model.BillPeriod, error) {
	var p model.BillPeriod
	err := r.db.WithContext(ctx).Where("closed_at IS NULL").Order("opened_at DESC").First(&p).Error
	return &p, err
}

func (r *periodRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.BillPeriod, error) {
	var p model.BillPeriod
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *periodRepo) List(ctx context.Context, limit int) ([]model.BillPeriod, error) {
	var periods []model.BillPeriod
	q := r.db.WithContext(ctx).Order("opened_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&periods).Error
	return periods, err
}
