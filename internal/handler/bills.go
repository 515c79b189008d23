package handler

import (
	"context"
	"net/http"

	"billpos/internal/dto"
	"billpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BillsHandler struct {
	bills service.BillService
	voids service.VoidService
}

func NewBillsHandler(bills service.BillService, voids service.VoidService) *BillsHandler {
	return &BillsHandler{bills: bills, voids: voids}
}

// Open godoc
// @Summary      Open a bill
// @Description  Opens a bill in the current period. The reference (table or tab number) must not be in use by another open bill.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        body body dto.OpenBillRequest true "Bill reference"
// @Success      201  {object} dto.BillResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/bills [post]
func (h *BillsHandler) Open(c *gin.Context) {
	var req dto.OpenBillRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.bills.Open(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListOpen godoc
// @Summary      List open bills
// @Description  Open bills of the current period with balance and print state (error, unstored, printing, ok).
// @Tags         bills
// @Produce      json
// @Success      200  {array}  dto.BillOverview
// @Router       /v1/bills [get]
func (h *BillsHandler) ListOpen(c *gin.Context) {
	resp, err := h.bills.ListOpen(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Get a bill
// @Tags         bills
// @Produce      json
// @Param        id   path     string true "Bill UUID"
// @Success      200  {object} dto.BillResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/bills/{id} [get]
func (h *BillsHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.bills.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Summary godoc
// @Summary      Bill summary
// @Description  Totals, discounts, tax breakdown and balance computed from the bill as it stands.
// @Tags         bills
// @Produce      json
// @Param        id   path     string true "Bill UUID"
// @Success      200  {object} settlement.Summary
// @Failure      404  {object} apierror.APIError
// @Router       /v1/bills/{id}/summary [get]
func (h *BillsHandler) Summary(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.bills.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddItem godoc
// @Summary      Add an item
// @Description  Rings an item on with its modifier items. Price, tax and names are copied from the catalog at this moment.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id   path     string             true "Bill UUID"
// @Param        body body     dto.AddItemRequest true "Item"
// @Success      201  {object} dto.BillResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/bills/{id}/items [post]
func (h *BillsHandler) AddItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AddItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.bills.AddItem(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RemoveItem deletes an item that has not been sent to the kitchen yet.
// @Summary      Remove an unstored item
// @Tags         bills
// @Produce      json
// @Param        id      path     string true "Bill UUID"
// @Param        item_id path     string true "Bill item UUID"
// @Success      200     {object} dto.BillResponse
// @Failure      409     {object} apierror.APIError
// @Router       /v1/bills/{id}/items/{item_id} [delete]
func (h *BillsHandler) RemoveItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	resp, err := h.bills.RemoveItem(c.Request.Context(), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Store godoc
// @Summary      Send to kitchen
// @Description  Marks unstored items stored, creates one print log per printer of each item's printer group and queues dispatch.
// @Tags         bills
// @Produce      json
// @Param        id   path     string true "Bill UUID"
// @Success      202  {object} dto.BillResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/bills/{id}/store [post]
func (h *BillsHandler) Store(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.bills.Store(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// Void godoc
// @Summary      Void an item
// @Description  Voids the item and its modifiers. Pending tickets are cancelled, printed ones get a void ticket.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id      path     string                true  "Bill UUID"
// @Param        item_id path     string                true  "Bill item UUID"
// @Param        body    body     dto.ItemReasonRequest false "Reason"
// @Success      200     {object} dto.BillResponse
// @Failure      409     {object} apierror.APIError
// @Failure      422     {object} apierror.APIError
// @Router       /v1/bills/{id}/items/{item_id}/void [post]
func (h *BillsHandler) Void(c *gin.Context) {
	h.reasoned(c, h.voids.Void)
}

// Comp godoc
// @Summary      Comp an item
// @Description  Zeroes the item's contribution to the bill. Kitchen tickets are unaffected.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id      path     string                true  "Bill UUID"
// @Param        item_id path     string                true  "Bill item UUID"
// @Param        body    body     dto.ItemReasonRequest false "Reason"
// @Success      200     {object} dto.BillResponse
// @Failure      409     {object} apierror.APIError
// @Router       /v1/bills/{id}/items/{item_id}/comp [post]
func (h *BillsHandler) Comp(c *gin.Context) {
	h.reasoned(c, h.voids.Comp)
}

func (h *BillsHandler) reasoned(c *gin.Context, op func(ctx context.Context, billID, itemID uuid.UUID, req dto.ItemReasonRequest) (*dto.BillResponse, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	var req dto.ItemReasonRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := op(c.Request.Context(), id, itemID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddDiscount godoc
// @Summary      Apply a discount
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id   path     string                 true "Bill UUID"
// @Param        body body     dto.AddDiscountRequest true "Discount"
// @Success      201  {object} dto.BillResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/bills/{id}/discounts [post]
func (h *BillsHandler) AddDiscount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AddDiscountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.bills.AddDiscount(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *BillsHandler) RemoveDiscount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	discountID, ok := paramID(c, "discount_id")
	if !ok {
		return
	}
	resp, err := h.bills.RemoveDiscount(c.Request.Context(), id, discountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddPayment godoc
// @Summary      Take a payment
// @Description  Records a tender. When the balance reaches zero or below the bill closes and a change line is written.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id   path     string                true "Bill UUID"
// @Param        body body     dto.AddPaymentRequest true "Payment"
// @Success      201  {object} dto.BillResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/bills/{id}/payments [post]
func (h *BillsHandler) AddPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AddPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.bills.AddPayment(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *BillsHandler) RemovePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := paramID(c, "payment_id")
	if !ok {
		return
	}
	resp, err := h.bills.RemovePayment(c.Request.Context(), id, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary      Close a bill
// @Description  Closes a bill whose balance is settled. Rejected while money is outstanding.
// @Tags         bills
// @Produce      json
// @Param        id   path     string true "Bill UUID"
// @Success      200  {object} dto.BillResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/bills/{id}/close [post]
func (h *BillsHandler) Close(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.bills.Close(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
