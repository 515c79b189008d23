package handler

import (
	"net/http"
	"strconv"

	"billpos/internal/dto"
	"billpos/internal/service"
	"billpos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// PrintsHandler exposes operator actions on kitchen tickets.
type PrintsHandler struct {
	svc service.PrintService
	rdb *redis.Client
}

func NewPrintsHandler(svc service.PrintService, rdb *redis.Client) *PrintsHandler {
	return &PrintsHandler{svc: svc, rdb: rdb}
}

// Resend godoc
// @Summary      Resend an errored ticket
// @Description  Cancels the errored print log and queues a fresh pending copy for the same printer.
// @Description  A failed ticket for an item voided since is only cancelled, which clears the bill warning.
// @Tags         printing
// @Produce      json
// @Param        id   path     string true "Print log UUID"
// @Success      202  {object} dto.ResendResponse
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/print-logs/{id}/resend [post]
func (h *PrintsHandler) Resend(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Resend(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// ResendErrored godoc
// @Summary      Resend every errored ticket of a bill
// @Tags         printing
// @Produce      json
// @Param        id   path     string true "Bill UUID"
// @Success      202  {object} dto.ResendResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/bills/{id}/print/resend [post]
func (h *PrintsHandler) ResendErrored(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ResendErrored(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// DeadLetters lists dispatch jobs that could not be processed.
// @Summary      Dead-lettered print jobs
// @Tags         printing
// @Produce      json
// @Param        limit query int false "Maximum rows (default 50)"
// @Success      200   {array} dto.DLQEntryResponse
// @Router       /v1/print-jobs/dead [get]
func (h *PrintsHandler) DeadLetters(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	entries, err := worker.ListDLQ(c.Request.Context(), h.rdb, worker.QueuePrint, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.DLQEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.DLQEntryResponse{
			OriginalQueue: e.OriginalQueue,
			JobType:       e.JobType,
			Payload:       string(e.Payload),
			Reason:        e.Reason,
			FailedAt:      e.FailedAt,
			Attempts:      e.Attempts,
		})
	}
	c.JSON(http.StatusOK, out)
}
