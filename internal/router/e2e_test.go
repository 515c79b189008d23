//go:build integration

package router_test

// e2e_test.go
// End-to-end tests against real Postgres + Redis via testcontainers, with a
// local TCP listener standing in for the kitchen printer.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"billpos/internal/clock"
	"billpos/internal/config"
	"billpos/internal/infra"
	"billpos/internal/model"
	"billpos/internal/repository"
	"billpos/internal/router"
	"billpos/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func expect(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", status, resp.StatusCode, b)
	}
}

// fakePrinter accepts raw connections and records each ticket.
type fakePrinter struct {
	ln      net.Listener
	mu      sync.Mutex
	tickets [][]byte
}

func startFakePrinter(t *testing.T) *fakePrinter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fp := &fakePrinter{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			data, _ := io.ReadAll(conn)
			_ = conn.Close()
			fp.mu.Lock()
			fp.tickets = append(fp.tickets, data)
			fp.mu.Unlock()
		}
	}()
	return fp
}

func (fp *fakePrinter) count() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.tickets)
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type catalogIDs struct {
	dineIn, burger, cash uuid.UUID
}

type testEnv struct {
	server  *httptest.Server
	printer *fakePrinter
	ids     catalogIDs
}

func seedCatalog(t *testing.T, db *gorm.DB, printerAddr string) catalogIDs {
	t.Helper()
	price := decimal.RequireFromString("9.50")
	ids := catalogIDs{dineIn: uuid.New(), burger: uuid.New(), cash: uuid.New()}
	category := model.Category{ID: uuid.New(), Name: "Mains"}
	printer := model.Printer{ID: uuid.New(), Name: "Kitchen", Address: printerAddr, PrintWidth: 42}
	group := model.PrinterGroup{ID: uuid.New(), Name: "Kitchen", Printers: []model.Printer{printer}}

	require.NoError(t, db.Create(&model.PriceGroup{ID: ids.dineIn, Name: "Dine In", ShortName: "IN"}).Error)
	require.NoError(t, db.Create(&category).Error)
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&model.Item{
		ID: ids.burger, Name: "Burger", ShortName: "BURG",
		CategoryID: category.ID, PrinterGroupID: &group.ID,
	}).Error)
	require.NoError(t, db.Create(&model.ItemPrice{ItemID: ids.burger, PriceGroupID: ids.dineIn, Price: &price}).Error)
	require.NoError(t, db.Create(&model.PaymentType{ID: ids.cash, Name: "cash"}).Error)
	return ids
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pgC, err := tcPostgres.Run(ctx, "postgres:15-alpine",
		tcPostgres.WithDatabase("billpos_test"),
		tcPostgres.WithUsername("billpos"),
		tcPostgres.WithPassword("billpos"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                    "test",
		DatabaseURL:            pgURL,
		RedisURL:               rdURL,
		WorkerPoolSize:         2,
		RateLimit:              10000,
		CORSOrigins:            "*",
		PrinterTimeoutSeconds:  2,
		StaleProcessingMinutes: 5,
		CashPaymentType:        "cash",
		PrepMinutes:            15,
		ReceiptStoragePath:     t.TempDir(),
		ReceiptWidth:           42,
		CurrencySymbol:         "£",
		OrgName:                "E2E Diner",
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL, cfg.WorkerPoolSize)
	require.NoError(t, err)

	fp := startFakePrinter(t)
	ids := seedCatalog(t, db, fp.ln.Addr().String())

	np := infra.NewNetworkPrinter(infra.DefaultCBConfig())
	dispatcher := worker.NewDispatcher(rdb)
	pw := worker.NewPrintWorker(worker.PrintWorkerConfig{
		Bills:     repository.NewBillRepository(db),
		Logs:      repository.NewPrintLogRepository(db, clock.System{}),
		Catalog:   repository.NewCatalogRepository(db),
		Store:     repository.NewStore(db),
		Transport: np,
		Clock:     clock.System{},
		Timeout:   2 * time.Second,
		Requeue:   dispatcher.EnqueuePrint,
	})
	pool := worker.NewPool(rdb, cfg.WorkerPoolSize)
	pool.Handle(worker.QueuePrint, worker.JobPrint, pw.Process)
	pool.Start(ctx)

	srv := httptest.NewServer(router.New(ctx, cfg, db, rdb, np))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, printer: fp, ids: ids}
}

type billBody struct {
	ID         string `json:"id"`
	IsClosed   bool   `json:"is_closed"`
	PrintState string `json:"print_state"`
	Items      []struct {
		ID        string `json:"id"`
		IsVoided  bool   `json:"is_voided"`
		PrintLogs []struct {
			Type   string `json:"type"`
			Status string `json:"status"`
		} `json:"print_logs"`
	} `json:"items"`
	Payments []struct {
		Amount   decimal.Decimal `json:"amount"`
		IsChange bool            `json:"is_change"`
	} `json:"payments"`
}

// peekBill fetches a bill without failing the test, for use inside
// require.Eventually conditions.
func (env *testEnv) peekBill(id string) (billBody, bool) {
	var b billBody
	resp, err := env.server.Client().Get(env.server.URL + "/v1/bills/" + id)
	if err != nil {
		return b, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return b, false
	}
	return b, json.NewDecoder(resp.Body).Decode(&b) == nil
}

func (env *testEnv) printState(id string) string {
	b, _ := env.peekBill(id)
	return b.PrintState
}

func (env *testEnv) openPeriodAndBill(t *testing.T, reference int) (periodID, billID string) {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/periods", nil)
	expect(t, resp, http.StatusCreated)
	var period struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &period)

	resp = do(t, env.server, "POST", "/v1/bills", jsonBody(t, map[string]any{"reference": reference}))
	expect(t, resp, http.StatusCreated)
	var bill billBody
	decodeJSON(t, resp, &bill)
	return period.ID, bill.ID
}

func (env *testEnv) addBurger(t *testing.T, billID string) string {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/bills/"+billID+"/items", jsonBody(t, map[string]any{
		"item_id":        env.ids.burger.String(),
		"price_group_id": env.ids.dineIn.String(),
	}))
	expect(t, resp, http.StatusCreated)
	var bill billBody
	decodeJSON(t, resp, &bill)
	return bill.Items[len(bill.Items)-1].ID
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_OrderToSettlement(t *testing.T) {
	env := setupTestEnv(t)
	periodID, billID := env.openPeriodAndBill(t, 7)
	env.addBurger(t, billID)
	env.addBurger(t, billID)

	resp := do(t, env.server, "POST", "/v1/bills/"+billID+"/store", nil)
	expect(t, resp, http.StatusAccepted)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return env.printState(billID) == "ok"
	}, 15*time.Second, 100*time.Millisecond)
	assert.Equal(t, 1, env.printer.count(), "both items share one kitchen ticket")

	// duplicate reference while the bill is open
	resp = do(t, env.server, "POST", "/v1/bills", jsonBody(t, map[string]any{"reference": 7}))
	expect(t, resp, http.StatusConflict)
	resp.Body.Close()

	// the period cannot close with an open bill
	resp = do(t, env.server, "POST", "/v1/periods/"+periodID+"/close", nil)
	expect(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = do(t, env.server, "POST", "/v1/bills/"+billID+"/payments", jsonBody(t, map[string]any{
		"payment_type_id": env.ids.cash.String(),
		"amount":          "20.00",
	}))
	expect(t, resp, http.StatusCreated)
	var paid billBody
	decodeJSON(t, resp, &paid)
	assert.True(t, paid.IsClosed)
	require.Len(t, paid.Payments, 2)
	changes := 0
	for _, p := range paid.Payments {
		if p.IsChange {
			changes++
			assert.True(t, p.Amount.Equal(decimal.RequireFromString("1.00")))
		}
	}
	assert.Equal(t, 1, changes)

	resp = do(t, env.server, "GET", "/v1/bills/"+billID+"/receipt", nil)
	expect(t, resp, http.StatusOK)
	var rcpt struct {
		Lines []string `json:"lines"`
	}
	decodeJSON(t, resp, &rcpt)
	assert.Contains(t, rcpt.Lines[0], "E2E Diner")

	resp = do(t, env.server, "POST", "/v1/periods/"+periodID+"/close", nil)
	expect(t, resp, http.StatusOK)
	var report struct {
		Totals struct {
			SalesTotal decimal.Decimal `json:"sales_total"`
		} `json:"totals"`
	}
	decodeJSON(t, resp, &report)
	assert.True(t, report.Totals.SalesTotal.Equal(decimal.RequireFromString("19.00")))
}

func TestE2E_VoidAfterPrintSendsVoidTicket(t *testing.T) {
	env := setupTestEnv(t)
	_, billID := env.openPeriodAndBill(t, 3)
	itemID := env.addBurger(t, billID)

	resp := do(t, env.server, "POST", "/v1/bills/"+billID+"/store", nil)
	expect(t, resp, http.StatusAccepted)
	resp.Body.Close()
	require.Eventually(t, func() bool { return env.printer.count() == 1 }, 15*time.Second, 100*time.Millisecond)
	require.Eventually(t, func() bool { return env.printState(billID) == "ok" }, 5*time.Second, 50*time.Millisecond)

	resp = do(t, env.server, "POST", "/v1/bills/"+billID+"/items/"+itemID+"/void",
		jsonBody(t, map[string]any{"reason_name": "Sent back"}))
	expect(t, resp, http.StatusOK)
	resp.Body.Close()

	require.Eventually(t, func() bool { return env.printer.count() == 2 }, 15*time.Second, 100*time.Millisecond)
	require.Eventually(t, func() bool {
		b, ok := env.peekBill(billID)
		if !ok || len(b.Items) == 0 {
			return false
		}
		for _, l := range b.Items[0].PrintLogs {
			if l.Type == "void" && l.Status == "succeeded" {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	// voiding twice is a conflict
	resp = do(t, env.server, "POST", "/v1/bills/"+billID+"/items/"+itemID+"/void", nil)
	expect(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestE2E_ValidationAndNotFound(t *testing.T) {
	env := setupTestEnv(t)
	_, billID := env.openPeriodAndBill(t, 1)

	resp := do(t, env.server, "POST", "/v1/bills/"+billID+"/payments", jsonBody(t, map[string]any{
		"payment_type_id": env.ids.cash.String(),
		"amount":          "0",
	}))
	expect(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/v1/bills/"+uuid.NewString(), nil)
	expect(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/v1/bills/not-a-uuid", nil)
	expect(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/health", nil)
	expect(t, resp, http.StatusOK)
	resp.Body.Close()
}
