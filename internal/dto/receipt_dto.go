package dto

type ReceiptResponse struct {
	BillID string   `json:"bill_id"`
	Lines  []string `json:"lines"`
}

type EmailReceiptRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ReceiptPDFResponse struct {
	BillID string `json:"bill_id"`
	Path   string `json:"path"`
}
