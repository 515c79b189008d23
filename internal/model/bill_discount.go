package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillDiscount is an immutable snapshot of a discount applied to a bill.
// ClosingAmount freezes the calculated discount when the bill closes.
type BillDiscount struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BillID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	DiscountID uuid.UUID       `gorm:"type:uuid;not null"`
	Name       string          `gorm:"not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsPercent  bool            `gorm:"not null;default:false"`

	ClosingAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BillPayment is never edited: payments are created, or deleted when removed
// from an open bill. IsChange marks the change-due line generated at close.
type BillPayment struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BillID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	PaymentTypeID   uuid.UUID       `gorm:"type:uuid;not null"`
	PaymentTypeName string          `gorm:"not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsChange        bool            `gorm:"not null;default:false"`
	CreatedAt       time.Time
}
