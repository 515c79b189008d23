package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billpos/internal/clock"
	"billpos/internal/dto"
	"billpos/internal/model"
	"billpos/internal/repository"
	"billpos/internal/settlement"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillService interface {
	Open(ctx context.Context, req dto.OpenBillRequest) (*dto.BillResponse, error)
	Get(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error)
	Summary(ctx context.Context, billID uuid.UUID) (*settlement.Summary, error)
	ListOpen(ctx context.Context) ([]dto.BillOverview, error)

	AddItem(ctx context.Context, billID uuid.UUID, req dto.AddItemRequest) (*dto.BillResponse, error)
	RemoveItem(ctx context.Context, billID, billItemID uuid.UUID) (*dto.BillResponse, error)
	Store(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error)

	AddDiscount(ctx context.Context, billID uuid.UUID, req dto.AddDiscountRequest) (*dto.BillResponse, error)
	RemoveDiscount(ctx context.Context, billID, billDiscountID uuid.UUID) (*dto.BillResponse, error)
	AddPayment(ctx context.Context, billID uuid.UUID, req dto.AddPaymentRequest) (*dto.BillResponse, error)
	RemovePayment(ctx context.Context, billID, billPaymentID uuid.UUID) (*dto.BillResponse, error)
	Close(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error)
}

type billService struct {
	store    repository.Store
	bills    repository.BillRepository
	periods  repository.PeriodRepository
	catalog  repository.CatalogRepository
	queue    PrintQueue
	clock    clock.Clock
	cashType string
}

func NewBillService(
	store repository.Store,
	bills repository.BillRepository,
	periods repository.PeriodRepository,
	catalog repository.CatalogRepository,
	queue PrintQueue,
	clk clock.Clock,
	cashPaymentType string,
) BillService {
	return &billService{
		store:    store,
		bills:    bills,
		periods:  periods,
		catalog:  catalog,
		queue:    queue,
		clock:    clk,
		cashType: cashPaymentType,
	}
}

func (s *billService) reload(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error) {
	return reloadBill(ctx, s.bills, billID)
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *billService) Open(ctx context.Context, req dto.OpenBillRequest) (*dto.BillResponse, error) {
	period, err := s.periods.FindOpen(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOpenPeriod
		}
		return nil, err
	}

	if _, err := s.bills.FindOpenByReference(ctx, period.ID, req.Reference); err == nil {
		return nil, ErrReferenceInUse
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	bill := &model.Bill{
		ID:           uuid.New(),
		Reference:    req.Reference,
		BillPeriodID: period.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Apply(ctx, repository.NewBatch().Create(bill)); err != nil {
		// lost the race against another terminal opening the same reference
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrReferenceInUse
		}
		return nil, err
	}

	log.Info().Str("bill_id", bill.ID.String()).Int("reference", bill.Reference).Msg("bill opened")
	return toBillResponse(bill), nil
}

func (s *billService) Get(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error) {
	return s.reload(ctx, billID)
}

func (s *billService) Summary(ctx context.Context, billID uuid.UUID) (*settlement.Summary, error) {
	b, err := loadBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	summary := settlement.Calculate(b.Items, b.Discounts, b.Payments)
	if b.IsClosed {
		summary = settlement.CalculateFinalized(b.Items, b.Discounts, b.Payments)
	}
	return &summary, nil
}

func (s *billService) ListOpen(ctx context.Context) ([]dto.BillOverview, error) {
	period, err := s.periods.FindOpen(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []dto.BillOverview{}, nil
		}
		return nil, err
	}
	bills, err := s.bills.ListOpen(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BillOverview, 0, len(bills))
	for i := range bills {
		b := &bills[i]
		count := 0
		for _, it := range b.Items {
			if !it.IsVoided {
				count++
			}
		}
		out = append(out, dto.BillOverview{
			ID:         b.ID.String(),
			Reference:  b.Reference,
			ItemCount:  count,
			Balance:    settlement.Calculate(b.Items, b.Discounts, b.Payments).Balance,
			PrintState: PrintState(b),
			CreatedAt:  formatTime(b.CreatedAt),
		})
	}
	return out, nil
}

// ── Items ─────────────────────────────────────────────────────────────────────
// A bill item copies name, price, category and modifiers from the catalog at
// the moment it is rung on. Later catalog edits never reach existing bills.

func priceIn(prices []model.ItemPrice, priceGroupID uuid.UUID) (decimal.Decimal, bool) {
	for _, p := range prices {
		if p.PriceGroupID == priceGroupID && p.Price != nil {
			return *p.Price, true
		}
	}
	return decimal.Zero, false
}

func modifierPriceIn(prices []model.ModifierItemPrice, priceGroupID uuid.UUID) (decimal.Decimal, bool) {
	for _, p := range prices {
		if p.PriceGroupID == priceGroupID && p.Price != nil {
			return *p.Price, true
		}
	}
	return decimal.Zero, false
}

func (s *billService) AddItem(ctx context.Context, billID uuid.UUID, req dto.AddItemRequest) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item_id: %w", err)
	}
	priceGroupID, err := uuid.Parse(req.PriceGroupID)
	if err != nil {
		return nil, fmt.Errorf("price_group_id: %w", err)
	}

	item, err := s.catalog.FindItem(ctx, itemID)
	if err != nil {
		return nil, notFound("item", itemID, err)
	}
	pg, err := s.catalog.FindPriceGroup(ctx, priceGroupID)
	if err != nil {
		return nil, notFound("price group", priceGroupID, err)
	}
	price, ok := priceIn(item.Prices, priceGroupID)
	if !ok {
		return nil, ErrNotPriced
	}

	now := s.clock.Now()
	bi := &model.BillItem{
		ID:             uuid.New(),
		BillID:         bill.ID,
		ItemID:         item.ID,
		ItemName:       item.Name,
		ItemShortName:  item.ShortName,
		ItemPrice:      price,
		PriceGroupID:   pg.ID,
		PriceGroupName: pg.Name,
		CategoryID:     item.CategoryID,
		PrintMessage:   req.PrintMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if item.Category != nil {
		bi.CategoryName = item.Category.Name
	}
	if bi.PrintMessage != nil && *bi.PrintMessage == "" {
		bi.PrintMessage = nil
	}

	batch := repository.NewBatch().Create(bi)
	perModifier := map[uuid.UUID]int{}
	for _, raw := range req.ModifierItemIDs {
		miID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("modifier_item_ids: %w", err)
		}
		mi, err := s.catalog.FindModifierItem(ctx, miID)
		if err != nil {
			return nil, notFound("modifier item", miID, err)
		}
		modPrice, ok := modifierPriceIn(mi.Prices, priceGroupID)
		if !ok {
			return nil, ErrNotPriced
		}
		modifierName := ""
		if mi.Modifier != nil {
			modifierName = mi.Modifier.Name
			perModifier[mi.ModifierID]++
			if limit := mi.Modifier.MaxItemAmount; limit > 0 && perModifier[mi.ModifierID] > limit {
				return nil, ErrModifierLimit
			}
		}
		batch.Create(&model.BillItemModifierItem{
			ID:                    uuid.New(),
			BillID:                bill.ID,
			BillItemID:            bi.ID,
			ModifierID:            mi.ModifierID,
			ModifierName:          modifierName,
			ModifierItemID:        mi.ID,
			ModifierItemName:      mi.Name,
			ModifierItemShortName: mi.ShortName,
			ModifierItemPrice:     modPrice,
			PriceGroupID:          pg.ID,
			CreatedAt:             now,
			UpdatedAt:             now,
		})
	}

	if err := s.store.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return s.reload(ctx, bill.ID)
}

// RemoveItem deletes an item that has not been sent to a printer yet. Stored
// items can only be voided.
func (s *billService) RemoveItem(ctx context.Context, billID, billItemID uuid.UUID) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	item := bill.FindItem(billItemID)
	if item == nil {
		return nil, ErrItemNotOnBill
	}
	if item.IsStored {
		return nil, ErrItemStored
	}

	batch := repository.NewBatch()
	for i := range item.ModifierItems {
		batch.Delete(&item.ModifierItems[i])
	}
	for i := range item.PrintLogs {
		batch.Delete(&item.PrintLogs[i])
	}
	batch.Delete(item)
	if err := s.store.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return s.reload(ctx, bill.ID)
}

// ── Store ─────────────────────────────────────────────────────────────────────
// Sends every unsent item to the printers of its printer group: one pending
// "new" print log per printer, then a dispatch job for the bill. Each item is
// flagged stored only while still unstored and not voided; when a concurrent
// void or store gets there first the batch is rebuilt from a fresh read.

const storeAttempts = 3

func (s *billService) Store(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := s.storeOnce(ctx, billID)
		if !errors.Is(err, repository.ErrStale) {
			return resp, err
		}
		if attempt == storeAttempts {
			return nil, ErrConcurrentUpdate
		}
		log.Warn().Str("bill_id", billID.String()).Int("attempt", attempt).Msg("store: bill changed underneath, retrying")
	}
}

func (s *billService) storeOnce(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	batch := repository.NewBatch()
	guardOpen(batch, bill, now)
	printers := map[uuid.UUID][]model.Printer{}
	stored, logCount := 0, 0
	for i := range bill.Items {
		it := &bill.Items[i]
		if it.IsStored || it.IsVoided {
			continue
		}
		it.IsStored = true
		it.StoredAt = &now
		it.UpdatedAt = now
		batch.UpdateStrict(map[string]any{"is_stored": false, "is_voided": false},
			it, "IsStored", "StoredAt", "UpdatedAt")
		stored++

		catalogItem, err := s.catalog.FindItem(ctx, it.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn().Str("bill_item_id", it.ID.String()).Msg("store: catalog item gone, nothing to print")
				continue
			}
			return nil, err
		}
		if catalogItem.PrinterGroupID == nil {
			continue
		}
		groupID := *catalogItem.PrinterGroupID
		targets, ok := printers[groupID]
		if !ok {
			targets, err = s.catalog.PrintersForGroup(ctx, groupID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			printers[groupID] = targets
		}
		for _, p := range targets {
			batch.Create(&model.BillItemPrintLog{
				ID:         uuid.New(),
				BillID:     bill.ID,
				BillItemID: it.ID,
				PrinterID:  p.ID,
				Type:       model.PrintTypeNew,
				Status:     model.PrintPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			logCount++
		}
	}

	if stored == 0 {
		return toBillResponse(bill), nil
	}
	if err := s.store.Apply(ctx, batch); err != nil {
		return nil, err
	}
	if logCount > 0 {
		enqueuePrint(ctx, s.queue, bill.ID)
	}
	log.Info().Str("bill_id", bill.ID.String()).Int("print_logs", logCount).Msg("bill stored")
	return s.reload(ctx, bill.ID)
}

// ── Discounts ─────────────────────────────────────────────────────────────────

func (s *billService) AddDiscount(ctx context.Context, billID uuid.UUID, req dto.AddDiscountRequest) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	discountID, err := uuid.Parse(req.DiscountID)
	if err != nil {
		return nil, fmt.Errorf("discount_id: %w", err)
	}
	d, err := s.catalog.FindDiscount(ctx, discountID)
	if err != nil {
		return nil, notFound("discount", discountID, err)
	}

	now := s.clock.Now()
	bd := &model.BillDiscount{
		ID:         uuid.New(),
		BillID:     bill.ID,
		DiscountID: d.ID,
		Name:       d.Name,
		Amount:     d.Amount,
		IsPercent:  d.IsPercent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Apply(ctx, repository.NewBatch().Create(bd)); err != nil {
		return nil, err
	}
	return s.reload(ctx, bill.ID)
}

func (s *billService) RemoveDiscount(ctx context.Context, billID, billDiscountID uuid.UUID) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	for i := range bill.Discounts {
		if bill.Discounts[i].ID == billDiscountID {
			if err := s.store.Apply(ctx, repository.NewBatch().Delete(&bill.Discounts[i])); err != nil {
				return nil, err
			}
			return s.reload(ctx, bill.ID)
		}
	}
	return nil, fmt.Errorf("bill discount %s: %w", billDiscountID, ErrNotFound)
}

// ── Payments & close ─────────────────────────────────────────────────────────
// A payment that covers the balance closes the bill in the same batch.

func (s *billService) AddPayment(ctx context.Context, billID uuid.UUID, req dto.AddPaymentRequest) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	paymentTypeID, err := uuid.Parse(req.PaymentTypeID)
	if err != nil {
		return nil, fmt.Errorf("payment_type_id: %w", err)
	}
	pt, err := s.catalog.FindPaymentType(ctx, paymentTypeID)
	if err != nil {
		return nil, notFound("payment type", paymentTypeID, err)
	}

	now := s.clock.Now()
	payment := model.BillPayment{
		ID:              uuid.New(),
		BillID:          bill.ID,
		PaymentTypeID:   pt.ID,
		PaymentTypeName: pt.Name,
		Amount:          req.Amount.Round(settlement.MinorUnitPlaces),
		CreatedAt:       now,
	}
	batch := repository.NewBatch().Create(&payment)
	bill.Payments = append(bill.Payments, payment)

	summary := settlement.Calculate(bill.Items, bill.Discounts, bill.Payments)
	if summary.Covered() {
		if err := s.closeInto(ctx, batch, bill, summary, now); err != nil {
			return nil, err
		}
	}
	if err := s.apply(ctx, batch); err != nil {
		return nil, err
	}
	return s.reload(ctx, bill.ID)
}

func (s *billService) RemovePayment(ctx context.Context, billID, billPaymentID uuid.UUID) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	for i := range bill.Payments {
		if bill.Payments[i].ID == billPaymentID {
			if err := s.store.Apply(ctx, repository.NewBatch().Delete(&bill.Payments[i])); err != nil {
				return nil, err
			}
			return s.reload(ctx, bill.ID)
		}
	}
	return nil, fmt.Errorf("bill payment %s: %w", billPaymentID, ErrNotFound)
}

func (s *billService) Close(ctx context.Context, billID uuid.UUID) (*dto.BillResponse, error) {
	bill, err := loadOpenBill(ctx, s.bills, billID)
	if err != nil {
		return nil, err
	}
	summary := settlement.Calculate(bill.Items, bill.Discounts, bill.Payments)
	if !summary.Covered() {
		return nil, ErrBalanceOutstanding
	}
	batch := repository.NewBatch()
	if err := s.closeInto(ctx, batch, bill, summary, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, batch); err != nil {
		return nil, err
	}
	return s.reload(ctx, bill.ID)
}

// closeInto adds the close mutations to batch: one change line for the
// over-tendered amount, the closed flag, and the frozen discount amounts.
func (s *billService) closeInto(ctx context.Context, batch *repository.Batch, bill *model.Bill, summary settlement.Summary, now time.Time) error {
	cash, err := s.catalog.FindPaymentTypeByName(ctx, s.cashType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("payment type %q: %w", s.cashType, ErrNotFound)
		}
		return err
	}

	batch.Create(&model.BillPayment{
		ID:              uuid.New(),
		BillID:          bill.ID,
		PaymentTypeID:   cash.ID,
		PaymentTypeName: cash.Name,
		Amount:          summary.ChangeDue(),
		IsChange:        true,
		CreatedAt:       now,
	})

	bill.IsClosed = true
	bill.ClosedAt = &now
	bill.UpdatedAt = now
	batch.UpdateStrict(map[string]any{"is_closed": false}, bill, "IsClosed", "ClosedAt", "UpdatedAt")

	for i := range bill.Discounts {
		amount := summary.DiscountBreakdown[i].CalculatedDiscount
		bill.Discounts[i].ClosingAmount = &amount
		bill.Discounts[i].UpdatedAt = now
		batch.Update(&bill.Discounts[i], "ClosingAmount", "UpdatedAt")
	}

	log.Info().
		Str("bill_id", bill.ID.String()).
		Str("change", summary.ChangeDue().StringFixed(settlement.MinorUnitPlaces)).
		Msg("bill closed")
	return nil
}

func (s *billService) apply(ctx context.Context, batch *repository.Batch) error {
	err := s.store.Apply(ctx, batch)
	if errors.Is(err, repository.ErrStale) {
		return ErrBillClosed
	}
	return err
}
