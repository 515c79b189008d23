package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog records are read-only to the ledger: they are consulted when an item
// is rung on and their values are copied into the bill item snapshot.

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"not null"`
	ShortName string
}

type PriceGroup struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"not null"`
	ShortName string
}

// Label is the name printed on kitchen tickets.
func (p PriceGroup) Label() string {
	if p.ShortName != "" {
		return p.ShortName
	}
	return p.Name
}

type Item struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string     `gorm:"not null"`
	ShortName      string     `gorm:"not null"`
	CategoryID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	PrinterGroupID *uuid.UUID `gorm:"type:uuid;index"`

	Category  *Category   `gorm:"foreignKey:CategoryID"`
	Prices    []ItemPrice `gorm:"foreignKey:ItemID"`
	Modifiers []Modifier  `gorm:"many2many:item_modifiers"`
}

// ItemPrice is the price of an item within a price group. A nil price means the
// item is not sold in that group.
type ItemPrice struct {
	ItemID       uuid.UUID        `gorm:"type:uuid;primaryKey"`
	PriceGroupID uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Price        *decimal.Decimal `gorm:"type:decimal(12,2)"`
}

type Modifier struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string    `gorm:"not null"`
	MaxItemAmount int       `gorm:"not null;default:1"`

	Items []ModifierItem `gorm:"foreignKey:ModifierID"`
}

type ModifierItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ModifierID uuid.UUID `gorm:"type:uuid;index;not null"`
	Name       string    `gorm:"not null"`
	ShortName  string    `gorm:"not null"`

	Modifier *Modifier           `gorm:"foreignKey:ModifierID"`
	Prices   []ModifierItemPrice `gorm:"foreignKey:ModifierItemID"`
}

type ModifierItemPrice struct {
	ModifierItemID uuid.UUID        `gorm:"type:uuid;primaryKey"`
	PriceGroupID   uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Price          *decimal.Decimal `gorm:"type:decimal(12,2)"`
}

type PaymentType struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name string    `gorm:"uniqueIndex;not null"`
}

type Discount struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsPercent bool            `gorm:"not null;default:false"`
}
