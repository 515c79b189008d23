package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillItem is a snapshot of a sold item. The identity and price columns are
// copied from the catalog when the item is rung on and never change afterwards;
// only the status columns (comp, void, stored) are updated.
type BillItem struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BillID uuid.UUID `gorm:"type:uuid;index;not null"`

	ItemID         uuid.UUID       `gorm:"type:uuid;not null"`
	ItemName       string          `gorm:"not null"`
	ItemShortName  string          `gorm:"not null"`
	ItemPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PriceGroupID   uuid.UUID       `gorm:"type:uuid;not null"`
	PriceGroupName string          `gorm:"not null"`
	CategoryID     uuid.UUID       `gorm:"type:uuid;not null"`
	CategoryName   string          `gorm:"not null"`
	PrintMessage   *string

	IsComp            bool `gorm:"not null;default:false"`
	IsVoided          bool `gorm:"not null;default:false"`
	VoidedAt          *time.Time
	ReasonName        *string
	ReasonDescription *string
	IsStored          bool `gorm:"not null;default:false"`
	StoredAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	ModifierItems []BillItemModifierItem `gorm:"foreignKey:BillItemID"`
	PrintLogs     []BillItemPrintLog     `gorm:"foreignKey:BillItemID"`
}

// Chargeable reports whether the item counts towards the bill total. Comp is
// a reporting flag only; the price still stands.
func (i *BillItem) Chargeable() bool {
	return !i.IsVoided
}

// Total is the item price plus the prices of its non-voided modifier items.
func (i *BillItem) Total() decimal.Decimal {
	total := i.ItemPrice
	for _, m := range i.ModifierItems {
		if !m.IsVoided {
			total = total.Add(m.ModifierItemPrice)
		}
	}
	return total
}

// PrintMessageText returns the free-text print message or "".
func (i *BillItem) PrintMessageText() string {
	if i.PrintMessage == nil {
		return ""
	}
	return *i.PrintMessage
}

// BillItemModifierItem is the snapshot of a modifier option chosen for a bill item.
// Same copy-on-create contract as BillItem.
type BillItemModifierItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BillID     uuid.UUID `gorm:"type:uuid;index;not null"`
	BillItemID uuid.UUID `gorm:"type:uuid;index;not null"`

	ModifierID            uuid.UUID       `gorm:"type:uuid;not null"`
	ModifierName          string          `gorm:"not null"`
	ModifierItemID        uuid.UUID       `gorm:"type:uuid;not null"`
	ModifierItemName      string          `gorm:"not null"`
	ModifierItemShortName string          `gorm:"not null"`
	ModifierItemPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PriceGroupID          uuid.UUID       `gorm:"type:uuid;not null"`

	IsComp   bool `gorm:"not null;default:false"`
	IsVoided bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
