package repository

import (
	"context"

	"billpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository is read-only access to the menu, payment types, discounts
// and printer routing. Bill items copy what they need from it at ring-on time.
type CatalogRepository interface {
	// FindItem loads the item with its category and prices.
	FindItem(ctx context.Context, id uuid.UUID) (*model.Item, error)
	// FindModifierItem loads the modifier item with its modifier and prices.
	FindModifierItem(ctx context.Context, id uuid.UUID) (*model.ModifierItem, error)
	FindPriceGroup(ctx context.Context, id uuid.UUID) (*model.PriceGroup, error)
	ListPriceGroups(ctx context.Context) ([]model.PriceGroup, error)
	FindPaymentType(ctx context.Context, id uuid.UUID) (*model.PaymentType, error)
	FindPaymentTypeByName(ctx context.Context, name string) (*model.PaymentType, error)
	FindDiscount(ctx context.Context, id uuid.UUID) (*model.Discount, error)
	ListPrinters(ctx context.Context) ([]model.Printer, error)
	// PrintersForGroup returns the printers linked to a printer group.
	PrintersForGroup(ctx context.Context, groupID uuid.UUID) ([]model.Printer, error)
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) FindItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var it model.Item
	err := r.db.WithContext(ctx).Preload("Category").Preload("Prices").First(&it, "id = ?", id).Error
	return &it, err
}

func (r *catalogRepo) FindModifierItem(ctx context.Context, id uuid.UUID) (*model.ModifierItem, error) {
	var mi model.ModifierItem
	err := r.db.WithContext(ctx).Preload("Modifier").Preload("Prices").First(&mi, "id = ?", id).Error
	return &mi, err
}

func (r *catalogRepo) FindPriceGroup(ctx context.Context, id uuid.UUID) (*model.PriceGroup, error) {
	var pg model.PriceGroup
	err := r.db.WithContext(ctx).First(&pg, "id = ?", id).Error
	return &pg, err
}

func (r *catalogRepo) ListPriceGroups(ctx context.Context) ([]model.PriceGroup, error) {
	var pgs []model.PriceGroup
	err := r.db.WithContext(ctx).Order("name ASC").Find(&pgs).Error
	return pgs, err
}

func (r *catalogRepo) FindPaymentType(ctx context.Context, id uuid.UUID) (*model.PaymentType, error) {
	var pt model.PaymentType
	err := r.db.WithContext(ctx).First(&pt, "id = ?", id).Error
	return &pt, err
}

func (r *catalogRepo) FindPaymentTypeByName(ctx context.Context, name string) (*model.PaymentType, error) {
	var pt model.PaymentType
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&pt).Error
	return &pt, err
}

func (r *catalogRepo) FindDiscount(ctx context.Context, id uuid.UUID) (*model.Discount, error) {
	var d model.Discount
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	return &d, err
}

func (r *catalogRepo) ListPrinters(ctx context.Context) ([]model.Printer, error) {
	var ps []model.Printer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&ps).Error
	return ps, err
}

func (r *catalogRepo) PrintersForGroup(ctx context.Context, groupID uuid.UUID) ([]model.Printer, error) {
	var g model.PrinterGroup
	err := r.db.WithContext(ctx).
		Preload("Printers", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		First(&g, "id = ?", groupID).Error
	return g.Printers, err
}
