package handler

import (
	"net/http"

	"billpos/internal/apierror"
	"billpos/internal/service"

	"github.com/gin-gonic/gin"
)

type PeriodsHandler struct{ svc service.PeriodService }

func NewPeriodsHandler(svc service.PeriodService) *PeriodsHandler { return &PeriodsHandler{svc: svc} }

// Open godoc
// @Summary      Open a bill period
// @Description  Starts a trading period. Only one period may be open at a time.
// @Tags         periods
// @Produce      json
// @Success      201  {object} dto.PeriodResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/periods [post]
func (h *PeriodsHandler) Open(c *gin.Context) {
	resp, err := h.svc.Open(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *PeriodsHandler) Current(c *gin.Context) {
	resp, err := h.svc.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type periodListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// List godoc
// @Summary      List bill periods
// @Tags         periods
// @Produce      json
// @Param        limit query int false "Maximum rows (default 30)"
// @Success      200   {array} dto.PeriodResponse
// @Router       /v1/periods [get]
func (h *PeriodsHandler) List(c *gin.Context) {
	var q periodListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if q.Limit == 0 {
		q.Limit = 30
	}
	resp, err := h.svc.List(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary      Close a bill period
// @Description  Closes the period and returns its end of day report. Rejected while any bill of the period is open.
// @Tags         periods
// @Produce      json
// @Param        id   path     string true "Period UUID"
// @Success      200  {object} dto.PeriodReportResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/periods/{id}/close [post]
func (h *PeriodsHandler) Close(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PeriodsHandler) Report(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
