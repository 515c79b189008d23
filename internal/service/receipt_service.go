package service

import (
	"context"
	"fmt"
	"strings"

	"billpos/internal/clock"
	"billpos/internal/dto"
	"billpos/internal/infra"
	"billpos/internal/receipt"
	"billpos/internal/repository"
	"billpos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReceiptSettings is the business identity and layout used on customer-facing
// receipts and reports.
type ReceiptSettings struct {
	Org         receipt.Org
	Symbol      string
	Width       int
	StoragePath string
}

// MailQueue schedules outgoing email. Implemented by worker.Dispatcher.
type MailQueue interface {
	EnqueueEmail(ctx context.Context, payload interface{}) error
}

// ReceiptService renders customer bill receipts as text, PDF or email.
type ReceiptService interface {
	Bill(ctx context.Context, billID uuid.UUID) (*dto.ReceiptResponse, error)
	PDF(ctx context.Context, billID uuid.UUID) (*dto.ReceiptPDFResponse, error)
	Email(ctx context.Context, billID uuid.UUID, req dto.EmailReceiptRequest) error
}

type receiptService struct {
	bills    repository.BillRepository
	mail     MailQueue
	clock    clock.Clock
	settings ReceiptSettings
}

func NewReceiptService(bills repository.BillRepository, mail MailQueue, clk clock.Clock, settings ReceiptSettings) ReceiptService {
	return &receiptService{bills: bills, mail: mail, clock: clk, settings: settings}
}

func (s *receiptService) input(ctx context.Context, billID uuid.UUID) (receipt.BillInput, error) {
	bill, err := loadBill(ctx, s.bills, billID)
	if err != nil {
		return receipt.BillInput{}, err
	}
	return receipt.BillInput{
		Bill:   bill,
		Org:    s.settings.Org,
		Symbol: s.settings.Symbol,
		Width:  s.settings.Width,
		Now:    s.clock.Now(),
	}, nil
}

func (s *receiptService) Bill(ctx context.Context, billID uuid.UUID) (*dto.ReceiptResponse, error) {
	in, err := s.input(ctx, billID)
	if err != nil {
		return nil, err
	}
	return &dto.ReceiptResponse{
		BillID: billID.String(),
		Lines:  receipt.Lines(receipt.ComposeBill(in)),
	}, nil
}

func (s *receiptService) PDF(ctx context.Context, billID uuid.UUID) (*dto.ReceiptPDFResponse, error) {
	in, err := s.input(ctx, billID)
	if err != nil {
		return nil, err
	}
	path, err := infra.GenerateBillPDF(in, s.settings.StoragePath)
	if err != nil {
		return nil, err
	}
	return &dto.ReceiptPDFResponse{BillID: billID.String(), Path: path}, nil
}

// Email renders the PDF now and leaves delivery to the email worker.
func (s *receiptService) Email(ctx context.Context, billID uuid.UUID, req dto.EmailReceiptRequest) error {
	to := strings.TrimSpace(req.Email)
	if to == "" {
		return ErrNoRecipient
	}
	in, err := s.input(ctx, billID)
	if err != nil {
		return err
	}
	path, err := infra.GenerateBillPDF(in, s.settings.StoragePath)
	if err != nil {
		return err
	}
	if s.mail == nil {
		return fmt.Errorf("email delivery is not configured")
	}
	payload := worker.EmailJobPayload{
		ToEmail: to,
		Subject: fmt.Sprintf("%s receipt #%d", s.settings.Org.Name, in.Bill.Reference),
		Body:    "Thank you for dining with us. Your receipt is attached.",
		PDFPath: path,
	}
	if err := s.mail.EnqueueEmail(ctx, payload); err != nil {
		return err
	}
	log.Info().Str("bill_id", billID.String()).Str("to", to).Msg("receipt email queued")
	return nil
}
