package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"billpos/internal/dto"
	"billpos/internal/middleware"
	"billpos/internal/service"
	"billpos/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubBills struct {
	service.BillService
	err     error
	payment *dto.AddPaymentRequest
}

var _ service.BillService = (*stubBills)(nil)

func (s *stubBills) Get(_ context.Context, id uuid.UUID) (*dto.BillResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BillResponse{ID: id.String(), Reference: 4}, nil
}

func (s *stubBills) AddPayment(_ context.Context, id uuid.UUID, req dto.AddPaymentRequest) (*dto.BillResponse, error) {
	s.payment = &req
	return &dto.BillResponse{ID: id.String()}, s.err
}

func (s *stubBills) Summary(_ context.Context, _ uuid.UUID) (*settlement.Summary, error) {
	return nil, s.err
}

type stubVoids struct {
	service.VoidService
	req *dto.ItemReasonRequest
	err error
}

func (s *stubVoids) Void(_ context.Context, billID, _ uuid.UUID, req dto.ItemReasonRequest) (*dto.BillResponse, error) {
	s.req = &req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BillResponse{ID: billID.String()}, nil
}

func newEngine(h *BillsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/bills/:id", h.Get)
	r.GET("/bills/:id/summary", h.Summary)
	r.POST("/bills/:id/payments", h.AddPayment)
	r.POST("/bills/:id/items/:item_id/void", h.Void)
	return r
}

func serve(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bill %s: %w", uuid.New(), service.ErrNotFound), http.StatusNotFound},
		{service.ErrBalanceOutstanding, http.StatusConflict},
		{service.ErrReferenceInUse, http.StatusConflict},
		{service.ErrAlreadyVoided, http.StatusConflict},
		{service.ErrItemStored, http.StatusConflict},
		{service.ErrReasonRequired, http.StatusUnprocessableEntity},
		{fmt.Errorf("modifier Toppings: %w", service.ErrModifierLimit), http.StatusUnprocessableEntity},
		{assert.AnError, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestGet_OK(t *testing.T) {
	r := newEngine(NewBillsHandler(&stubBills{}, &stubVoids{}))
	id := uuid.New()

	w := serve(r, http.MethodGet, "/bills/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body dto.BillResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, id.String(), body.ID)
}

func TestGet_BadUUID(t *testing.T) {
	r := newEngine(NewBillsHandler(&stubBills{}, &stubVoids{}))
	w := serve(r, http.MethodGet, "/bills/table-4", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGet_NotFound(t *testing.T) {
	r := newEngine(NewBillsHandler(&stubBills{err: service.ErrNotFound}, &stubVoids{}))
	w := serve(r, http.MethodGet, "/bills/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"detail"`)
}

func TestSummary_InternalErrorHidesDetail(t *testing.T) {
	r := newEngine(NewBillsHandler(&stubBills{err: fmt.Errorf("pq: connection refused")}, &stubVoids{}))
	w := serve(r, http.MethodGet, "/bills/"+uuid.NewString()+"/summary", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestAddPayment_Validation(t *testing.T) {
	bills := &stubBills{}
	r := newEngine(NewBillsHandler(bills, &stubVoids{}))
	path := "/bills/" + uuid.NewString() + "/payments"

	w := serve(r, http.MethodPost, path, map[string]any{"payment_type_id": uuid.NewString(), "amount": "-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Nil(t, bills.payment, "service must not be called")

	w = serve(r, http.MethodPost, path, map[string]any{"payment_type_id": "cash", "amount": "5"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(r, http.MethodPost, path, map[string]any{"payment_type_id": uuid.NewString(), "amount": "12.40"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "12.4", bills.payment.Amount.String())
}

func TestAddPayment_ConflictWhenClosed(t *testing.T) {
	r := newEngine(NewBillsHandler(&stubBills{err: service.ErrBillClosed}, &stubVoids{}))
	w := serve(r, http.MethodPost, "/bills/"+uuid.NewString()+"/payments",
		map[string]any{"payment_type_id": uuid.NewString(), "amount": "3"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVoid_BodyIsOptional(t *testing.T) {
	voids := &stubVoids{}
	r := newEngine(NewBillsHandler(&stubBills{}, voids))
	path := fmt.Sprintf("/bills/%s/items/%s/void", uuid.New(), uuid.New())

	req := httptest.NewRequest(http.MethodPost, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, voids.req)
	assert.Nil(t, voids.req.ReasonName)

	w = serve(r, http.MethodPost, path, map[string]any{"reason_name": "Wrong table"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, voids.req.ReasonName)
	assert.Equal(t, "Wrong table", *voids.req.ReasonName)
}

func TestVoid_ReasonRequired(t *testing.T) {
	r := newEngine(NewBillsHandler(&stubBills{}, &stubVoids{err: service.ErrReasonRequired}))
	w := serve(r, http.MethodPost, fmt.Sprintf("/bills/%s/items/%s/void", uuid.New(), uuid.New()), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
