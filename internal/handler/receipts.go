package handler

import (
	"net/http"
	"path/filepath"

	"billpos/internal/dto"
	"billpos/internal/service"

	"github.com/gin-gonic/gin"
)

type ReceiptsHandler struct{ svc service.ReceiptService }

func NewReceiptsHandler(svc service.ReceiptService) *ReceiptsHandler {
	return &ReceiptsHandler{svc: svc}
}

// Lines godoc
// @Summary      Customer receipt
// @Description  The bill receipt rendered as fixed-width text lines.
// @Tags         receipts
// @Produce      json
// @Param        id   path     string true "Bill UUID"
// @Success      200  {object} dto.ReceiptResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/bills/{id}/receipt [get]
func (h *ReceiptsHandler) Lines(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Bill(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PDF godoc
// @Summary      Customer receipt PDF
// @Tags         receipts
// @Produce      application/pdf
// @Param        id   path     string true "Bill UUID"
// @Success      200  {file}   binary
// @Failure      404  {object} apierror.APIError
// @Router       /v1/bills/{id}/receipt/pdf [get]
func (h *ReceiptsHandler) PDF(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.PDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(resp.Path, filepath.Base(resp.Path))
}

// Email godoc
// @Summary      Email the receipt
// @Description  Queues the receipt PDF for delivery to the given address.
// @Tags         receipts
// @Accept       json
// @Param        id   path     string                  true "Bill UUID"
// @Param        body body     dto.EmailReceiptRequest true "Recipient"
// @Success      202
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/bills/{id}/receipt/email [post]
func (h *ReceiptsHandler) Email(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.EmailReceiptRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Email(c.Request.Context(), id, req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
