package model

import (
	"time"

	"github.com/google/uuid"
)

// BillPeriod groups the bills of one trading session (usually a day).
// A period is open while ClosedAt is nil.
type BillPeriod struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OpenedAt time.Time `gorm:"not null"`
	ClosedAt *time.Time

	Bills []Bill `gorm:"foreignKey:BillPeriodID"`
}

// Bill is an open or closed tab.
// Reference is unique among the open bills of a period (partial unique index,
// see infra.applySchemaPatches); closing a bill frees the number.
type Bill struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Reference    int       `gorm:"not null"`
	IsClosed     bool      `gorm:"not null;default:false;index"`
	ClosedAt     *time.Time
	BillPeriodID uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Items     []BillItem     `gorm:"foreignKey:BillID"`
	Discounts []BillDiscount `gorm:"foreignKey:BillID"`
	Payments  []BillPayment  `gorm:"foreignKey:BillID"`
}

// FindItem returns the bill item with the given id, or nil when it is not on this bill.
func (b *Bill) FindItem(id uuid.UUID) *BillItem {
	for i := range b.Items {
		if b.Items[i].ID == id {
			return &b.Items[i]
		}
	}
	return nil
}
