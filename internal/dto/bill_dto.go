package dto

import (
	"billpos/internal/settlement"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenBillRequest struct {
	Reference int `json:"reference" validate:"required,min=1"`
}

type AddItemRequest struct {
	ItemID          string   `json:"item_id"           validate:"required,uuid"`
	PriceGroupID    string   `json:"price_group_id"    validate:"required,uuid"`
	ModifierItemIDs []string `json:"modifier_item_ids" validate:"omitempty,dive,uuid"`
	// PrintMessage is free text printed under the item on the prep ticket
	PrintMessage *string `json:"print_message" validate:"omitempty,max=120"`
}

type AddDiscountRequest struct {
	DiscountID string `json:"discount_id" validate:"required,uuid"`
}

type AddPaymentRequest struct {
	PaymentTypeID string          `json:"payment_type_id" validate:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"          validate:"required,gt=0"`
}

// ItemReasonRequest is the body of void and comp requests.
type ItemReasonRequest struct {
	ReasonName        *string `json:"reason_name"        validate:"omitempty,min=1,max=60"`
	ReasonDescription *string `json:"reason_description" validate:"omitempty,max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ModifierItemResponse struct {
	ID           string          `json:"id"`
	ModifierName string          `json:"modifier_name"`
	Name         string          `json:"name"`
	ShortName    string          `json:"short_name"`
	Price        decimal.Decimal `json:"price"`
	IsVoided     bool            `json:"is_voided"`
	IsComp       bool            `json:"is_comp"`
}

type PrintLogResponse struct {
	ID         string  `json:"id"`
	BillItemID string  `json:"bill_item_id"`
	PrinterID  string  `json:"printer_id"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Error      *string `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type BillItemResponse struct {
	ID                string                 `json:"id"`
	ItemID            string                 `json:"item_id"`
	Name              string                 `json:"name"`
	ShortName         string                 `json:"short_name"`
	Price             decimal.Decimal        `json:"price"`
	Total             decimal.Decimal        `json:"total"`
	PriceGroup        string                 `json:"price_group"`
	Category          string                 `json:"category"`
	PrintMessage      *string                `json:"print_message,omitempty"`
	IsStored          bool                   `json:"is_stored"`
	IsVoided          bool                   `json:"is_voided"`
	IsComp            bool                   `json:"is_comp"`
	ReasonName        *string                `json:"reason_name,omitempty"`
	ReasonDescription *string                `json:"reason_description,omitempty"`
	Modifiers         []ModifierItemResponse `json:"modifiers"`
	PrintLogs         []PrintLogResponse     `json:"print_logs"`
}

type BillDiscountResponse struct {
	ID                 string          `json:"id"`
	DiscountID         string          `json:"discount_id"`
	Name               string          `json:"name"`
	Amount             decimal.Decimal `json:"amount"`
	IsPercent          bool            `json:"is_percent"`
	CalculatedDiscount decimal.Decimal `json:"calculated_discount"`
}

type BillPaymentResponse struct {
	ID          string          `json:"id"`
	PaymentType string          `json:"payment_type"`
	Amount      decimal.Decimal `json:"amount"`
	IsChange    bool            `json:"is_change"`
	CreatedAt   string          `json:"created_at"`
}

type BillResponse struct {
	ID         string                 `json:"id"`
	Reference  int                    `json:"reference"`
	PeriodID   string                 `json:"period_id"`
	IsClosed   bool                   `json:"is_closed"`
	ClosedAt   *string                `json:"closed_at,omitempty"`
	PrintState string                 `json:"print_state"`
	Items      []BillItemResponse     `json:"items"`
	Discounts  []BillDiscountResponse `json:"discounts"`
	Payments   []BillPaymentResponse  `json:"payments"`
	Summary    settlement.Summary     `json:"summary"`
	AmountDue  decimal.Decimal        `json:"amount_due"`
	ChangeDue  decimal.Decimal        `json:"change_due"`
	CreatedAt  string                 `json:"created_at"`
}

// BillOverview is one row of the open bills screen.
type BillOverview struct {
	ID         string          `json:"id"`
	Reference  int             `json:"reference"`
	ItemCount  int             `json:"item_count"`
	Balance    decimal.Decimal `json:"balance"`
	PrintState string          `json:"print_state"`
	CreatedAt  string          `json:"created_at"`
}
