package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-wac/internal/application/analytics"
	"github.com/jhoicas/inventario-wac/internal/application/dto"
	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/metrics"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/inventario-wac/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/inventario-wac/pkg/jwt"
)

type apiFixture struct {
	app     *fiber.App
	store   *memory.Store
	locker  *lock.LocalScopeLocker
	metrics *metrics.Metrics
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.PutProduct(&entity.Product{ID: "p1", SKU: "SKU-1", Name: "Café", CategoryID: "c1", BrandID: "b1"})
	locker := lock.NewLocalScopeLocker(50 * time.Millisecond)
	engine := inventory.NewWacEngine(store, store.Repos(), locker)
	m := metrics.New()

	app := fiber.New()
	app.Use(apphttp.MetricsMiddleware(m))
	apphttp.Router(app, apphttp.RouterDeps{
		Engine:    engine,
		Tracker:   inventory.NewCogsTracker(engine, nil),
		Receiving: inventory.NewReceivingCoordinator(engine),
		Reports:   analytics.NewValuationUseCase(store.Repos().States, store.Repos().Cogs, store.Products(), time.UTC),
		PDF:       pdf.NewMarotoPDFGenerator(),
		Location:  time.UTC,
		Company:   "Acme",
		JWTSecret: testJWTSecret,
	})
	return &apiFixture{app: app, store: store, locker: locker, metrics: m}
}

func (f *apiFixture) do(t *testing.T, role, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func purchaseBody(qty, cost string) dto.RegisterMovementRequest {
	c := dec(cost)
	return dto.RegisterMovementRequest{
		ProductID: "p1", WarehouseID: "w1", Type: "purchase",
		Quantity: dec(qty), UnitCost: &c, ReferenceType: "purchase_order", ReferenceID: "po-1",
	}
}

func TestAPI_MovementAndSale(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/movements", purchaseBody("100", "10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[dto.MovementResultDTO](t, resp)
	assert.Equal(t, testUserID, res.Movement.Actor)
	assert.True(t, res.State.WeightedAverageCost.Equal(dec("10")))

	resp = f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/movements", purchaseBody("50", "12"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/sales", dto.RecordSaleRequest{
		SaleItemID: "si-1", ProductID: "p1", WarehouseID: "w1", Quantity: dec("30"), SalePrice: dec("15"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[dto.CogsRecordDTO](t, resp)
	assert.True(t, rec.WacAtSale.Equal(dec("10.6667")), rec.WacAtSale.String())
	assert.True(t, rec.TotalCogs.Equal(dec("320.001")), rec.TotalCogs.String())
	assert.Empty(t, rec.Warnings)

	// Misma línea de venta otra vez.
	resp = f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/sales", dto.RecordSaleRequest{
		SaleItemID: "si-1", ProductID: "p1", WarehouseID: "w1", Quantity: dec("1"), SalePrice: dec("15"),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/inventory/sales/si-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[dto.CogsRecordDTO](t, resp).QuantitySold.Equal(dec("30")))

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/inventory/sales/si-404", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/inventory/scopes/state?product_id=p1&warehouse_id=w1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[dto.WacStateDTO](t, resp)
	assert.True(t, st.CurrentQuantity.Equal(dec("120")))
	assert.Equal(t, int64(3), st.LastSequence)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/inventory/scopes/movements?product_id=p1&warehouse_id=w1&limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	movs := decode[[]dto.MovementDTO](t, resp)
	require.Len(t, movs, 2)
	assert.Equal(t, "sale", movs[1].Type)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/inventory/scopes/history?product_id=p1&warehouse_id=w1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]dto.WacHistoryDTO](t, resp), 3)
}

func TestAPI_ErrorMapping(t *testing.T) {
	f := newAPI(t)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"tipo desconocido", dto.RegisterMovementRequest{ProductID: "p1", Type: "gift", Quantity: dec("1")}, http.StatusBadRequest, "INVALID_MOVEMENT"},
		{"compra sin costo", dto.RegisterMovementRequest{ProductID: "p1", Type: "purchase", Quantity: dec("1")}, http.StatusBadRequest, "INVALID_MOVEMENT"},
		{"sin producto", purchaseBodyWithoutProduct(), http.StatusBadRequest, ""},
		{"venta sin stock", dto.RegisterMovementRequest{ProductID: "p1", Type: "sale", Quantity: dec("-1")}, http.StatusConflict, "INSUFFICIENT_STOCK"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, pkgjwt.RoleAdmin, http.MethodPost, "/api/inventory/movements", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.code != "" {
				assert.Equal(t, tc.code, decode[dto.ErrorResponse](t, resp).Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/inventory/movements", bytes.NewBufferString("{no-json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenForRole(t, pkgjwt.RoleAdmin))
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func purchaseBodyWithoutProduct() dto.RegisterMovementRequest {
	b := purchaseBody("1", "1")
	b.ProductID = ""
	return b
}

func TestAPI_EngineBusyReturns503(t *testing.T) {
	f := newAPI(t)
	scope := entity.ScopeKey{ProductID: "p1", WarehouseID: "w1"}
	unlock, err := f.locker.Lock(context.Background(), scope.String())
	require.NoError(t, err)
	defer unlock()

	resp := f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/movements", purchaseBody("1", "1"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, "ENGINE_BUSY", decode[dto.ErrorResponse](t, resp).Code)
}

func TestAPI_Roles(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, pkgjwt.RoleAnalyst, http.MethodPost, "/api/inventory/movements", purchaseBody("1", "1"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/scopes/repair?product_id=p1&warehouse_id=w1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, "", http.MethodGet, "/api/reports/valuation", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_VerifyAndRepair(t *testing.T) {
	f := newAPI(t)
	require.Equal(t, http.StatusCreated, f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/movements", purchaseBody("10", "5")).StatusCode)

	scope := entity.ScopeKey{ProductID: "p1", WarehouseID: "w1"}
	f.store.CorruptState(scope, func(st *entity.WacState) { st.CurrentQuantity = dec("999") })

	resp := f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/inventory/scopes/verify?product_id=p1&warehouse_id=w1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[dto.VerifyScopeDTO](t, resp)
	assert.False(t, v.Healthy)
	require.NotNil(t, v.Replayed)
	assert.True(t, v.Replayed.CurrentQuantity.Equal(dec("10")))

	resp = f.do(t, pkgjwt.RoleAdmin, http.MethodPost, "/api/inventory/scopes/repair?product_id=p1&warehouse_id=w1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r := decode[dto.RepairScopeDTO](t, resp)
	assert.True(t, r.Changed)
	assert.True(t, r.State.CurrentQuantity.Equal(dec("10")))
}

func TestAPI_ReceiptAndTransfer(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/receipts", dto.ReceiptRequest{
		ProductID: "p1", WarehouseID: "w1", PurchaseOrderID: "po-7",
		Batches: []dto.ReceiptBatchRequest{{Quantity: dec("10"), UnitCost: dec("4")}, {Quantity: dec("10"), UnitCost: dec("6")}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	results := decode[[]dto.MovementResultDTO](t, resp)
	require.Len(t, results, 2)
	assert.Equal(t, "po-7", results[1].Movement.ReferenceID)
	assert.True(t, results[1].State.WeightedAverageCost.Equal(dec("5")))

	resp = f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/transfers", dto.TransferRequest{
		ProductID: "p1", FromWarehouseID: "w1", ToWarehouseID: "w2", Quantity: dec("5"), ReferenceID: "tr-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tr := decode[dto.TransferResultDTO](t, resp)
	assert.True(t, tr.In.Movement.UnitCost.Equal(dec("5")))
	assert.True(t, tr.Out.State.CurrentQuantity.Equal(dec("15")))
	assert.True(t, tr.In.State.CurrentQuantity.Equal(dec("5")))
}

func TestAPI_Reports(t *testing.T) {
	f := newAPI(t)
	require.Equal(t, http.StatusCreated, f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/movements", purchaseBody("10", "3")).StatusCode)
	require.Equal(t, http.StatusCreated, f.do(t, pkgjwt.RoleOperator, http.MethodPost, "/api/inventory/sales", dto.RecordSaleRequest{
		SaleItemID: "si-1", ProductID: "p1", WarehouseID: "w1", Quantity: dec("4"), SalePrice: dec("5"),
	}).StatusCode)

	resp := f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/valuation?category_id=c1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	val := decode[dto.ValuationReportDTO](t, resp)
	require.Len(t, val.Rows, 1)
	assert.Equal(t, "SKU-1", val.Rows[0].SKU)
	assert.True(t, val.TotalValue.Equal(dec("18")))

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/cogs?product_ids=p1,p2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cogs := decode[dto.CogsReportDTO](t, resp)
	assert.True(t, cogs.Totals.Revenue.Equal(dec("20")))
	assert.True(t, cogs.Totals.GrossProfit.Equal(dec("8")))

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/profitability?bucket=month", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]dto.BucketDTO](t, resp), 1)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/top-performers?dimension=brand&sort_by=profit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := decode[[]dto.PerformerDTO](t, resp)
	require.Len(t, top, 1)
	assert.Equal(t, "b1", top[0].Key)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decode[dto.SummaryDTO](t, resp)
	assert.True(t, sum.InventoryValue.Equal(dec("18")))

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/valuation.pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/cogs?from=05-03-2026", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/top-performers?dimension=color", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, pkgjwt.RoleAnalyst, http.MethodGet, "/api/reports/profitability?from=2026-04-01&to=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/reports/summary", "200")))
}
