package model

import (
	"time"

	"github.com/google/uuid"
)

type PrintType string

const (
	PrintTypeNew  PrintType = "new"
	PrintTypeVoid PrintType = "void"
)

type PrintStatus string

const (
	PrintPending    PrintStatus = "pending"
	PrintProcessing PrintStatus = "processing"
	PrintSucceeded  PrintStatus = "succeeded"
	PrintErrored    PrintStatus = "errored"
	PrintCancelled  PrintStatus = "cancelled"
)

// BillItemPrintLog records one delivery of a bill item to one printer.
// A log is never reused: every store, void or resend creates a new row.
// Status transitions belong to the print dispatcher, except the void
// cascade which deletes pending logs and cancels errored ones.
type BillItemPrintLog struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BillID     uuid.UUID   `gorm:"type:uuid;index;not null"`
	BillItemID uuid.UUID   `gorm:"type:uuid;index;not null"`
	PrinterID  uuid.UUID   `gorm:"type:uuid;index;not null"`
	Type       PrintType   `gorm:"type:varchar(10);not null"`
	Status     PrintStatus `gorm:"type:varchar(20);not null;index"`
	// Error holds the last transport error for errored logs
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name aligned with the entity name.
func (BillItemPrintLog) TableName() string { return "bill_item_print_logs" }
