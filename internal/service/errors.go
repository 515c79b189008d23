package service

import "errors"

// Consistency errors: the request is well formed but conflicts with the
// current state of the ledger. Nothing is written when one is returned.
var (
	ErrBillClosed         = errors.New("bill is closed")
	ErrBalanceOutstanding = errors.New("bill has an outstanding balance")
	ErrItemNotOnBill      = errors.New("item is not on this bill")
	ErrAlreadyVoided      = errors.New("item is already voided")
	ErrAlreadyComped      = errors.New("item is already comped")
	ErrItemStored         = errors.New("item has been sent to the kitchen and can only be voided")
	ErrReferenceInUse     = errors.New("reference is already used by an open bill")
	ErrPeriodOpen         = errors.New("a bill period is already open")
	ErrNoOpenPeriod       = errors.New("no bill period is open")
	ErrPeriodClosed       = errors.New("bill period is closed")
	ErrOpenBills          = errors.New("bill period still has open bills")
	ErrNotResendable      = errors.New("only errored print logs can be resent")
	ErrConcurrentUpdate   = errors.New("bill changed while the request was applied, retry")
)

// Validation errors.
var (
	ErrReasonRequired = errors.New("a void reason is required")
	ErrNotPriced      = errors.New("item is not sold in this price group")
	ErrModifierLimit  = errors.New("too many options chosen for a modifier")
	ErrInvalidAmount  = errors.New("amount must be greater than zero")
	ErrNoRecipient    = errors.New("recipient email is required")
)

// ErrNotFound wraps record-not-found conditions so handlers can map them to 404.
var ErrNotFound = errors.New("not found")
