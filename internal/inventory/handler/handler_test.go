package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository/memory"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantID = "tenant-1"

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
	Meta    *httputil.Meta      `json:"meta"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.Nop()

	store := memory.New()
	publisher := events.NewWithSink(testutil.NewMockPublisher(), log)
	alerts := service.NewAlertEvaluator(store, publisher, log)
	ledger := service.NewLedger(store, alerts, publisher, log)
	catalog := service.NewCatalog(store, ledger, alerts, publisher, domain.NewSKUGenerator(), 1000, log)
	reconciler := service.NewReconciler(store, catalog, ledger, service.StrictDepotPolicy, service.DefaultDepotDefaults, log)

	h := &handler.Handlers{
		Stock:    handler.NewStockHandler(ledger, log),
		Products: handler.NewProductHandler(catalog, log),
		Depots:   handler.NewDepotHandler(catalog, log),
		Alerts:   handler.NewAlertHandler(alerts, log),
		Import:   handler.NewImportHandler(reconciler, log),
	}

	r := chi.NewRouter()
	r.Use(httputil.TenantMiddleware)
	r.Route("/api/v1/inventory", h.Routes)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := testutil.NewHTTPRequest(method, "/api/v1/inventory"+path, body)
	testutil.WithTenantHeaders(req, tenantID)
	testutil.WithActorHeaders(req, "u-1", "Dana")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return decode(t, testutil.ExecuteRequest(r, req))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var env envelope
	if rr.Body.Len() > 0 {
		testutil.ParseJSONBody(t, rr, &env)
	}
	return rr, env
}

func createDepot(t *testing.T, r http.Handler, name string, capacity int64) *domain.Depot {
	t.Helper()
	rr, env := do(t, r, http.MethodPost, "/depots", service.CreateDepotInput{Name: name, Capacity: capacity})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var d domain.Depot
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return &d
}

func createProduct(t *testing.T, r http.Handler, sku string) *domain.Product {
	t.Helper()
	rr, env := do(t, r, http.MethodPost, "/products", service.CreateProductInput{SKU: sku, Name: "Product " + sku})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var p domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return &p
}

func TestStockEndpoints(t *testing.T) {
	r := newRouter(t)
	d1 := createDepot(t, r, "North", 1000)
	d2 := createDepot(t, r, "South", 1000)
	p := createProduct(t, r, "SKU-1")

	rr, env := do(t, r, http.MethodPost, "/stock/in", service.StockInput{ProductID: p.ID, DepotID: d1.ID, Quantity: 40})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var res service.MovementResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(40), res.Product.Stock)
	assert.Equal(t, "Dana", res.Transaction.PerformedBy)

	rr, _ = do(t, r, http.MethodPost, "/stock/transfer", service.TransferInput{ProductID: p.ID, FromDepotID: d1.ID, ToDepotID: d2.ID, Quantity: 15})
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr, _ = do(t, r, http.MethodPost, "/stock/adjust", service.AdjustInput{ProductID: p.ID, DepotID: d2.ID, CountedQuantity: 12})
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr, env = do(t, r, http.MethodPost, "/stock/out", service.StockInput{ProductID: p.ID, DepotID: d1.ID, Quantity: 100})
	testutil.AssertStatus(t, rr, http.StatusConflict)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	rr, env = do(t, r, http.MethodGet, "/products/"+p.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var got domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, int64(37), got.Stock)
	assert.Len(t, got.Allocations, 2)

	rr, env = do(t, r, http.MethodGet, "/transactions?product_id="+p.ID+"&type=transfer", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var txns []domain.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txns))
	require.Len(t, txns, 1)
	assert.Equal(t, int64(15), txns[0].Quantity)
}

func TestStockIn_IdempotencyKey(t *testing.T) {
	r := newRouter(t)
	d := createDepot(t, r, "North", 1000)
	p := createProduct(t, r, "SKU-1")
	in := service.StockInput{ProductID: p.ID, DepotID: d.ID, Quantity: 5}

	rr, first := do(t, r, http.MethodPost, "/stock/in", in, handler.HeaderIdempotencyKey, "key-1")
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr, second := do(t, r, http.MethodPost, "/stock/in", in, handler.HeaderIdempotencyKey, "key-1")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var a, b service.MovementResult
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.Equal(t, a.Transaction.ID, b.Transaction.ID)
	assert.True(t, b.Replayed)
	assert.Equal(t, int64(5), b.Product.Stock)
}

func TestRequestErrors(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{name: "validation", method: http.MethodPost, path: "/stock/in", body: service.StockInput{Quantity: 1}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "unknown product", method: http.MethodGet, path: "/products/missing", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "unknown field", method: http.MethodPost, path: "/depots", body: map[string]interface{}{"name": "x", "capacity": 1, "stock": 3}, status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "bad limit", method: http.MethodGet, path: "/transactions?limit=-1", status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "bad from", method: http.MethodGet, path: "/transactions?from=yesterday", status: http.StatusBadRequest, code: "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := do(t, r, tt.method, tt.path, tt.body)
			testutil.AssertStatus(t, rr, tt.status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestMissingTenant(t *testing.T) {
	r := newRouter(t)
	req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/inventory/products", nil)

	rr := testutil.ExecuteRequest(r, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestProductAndDepotLifecycle(t *testing.T) {
	r := newRouter(t)
	d := createDepot(t, r, "North", 100)
	p := createProduct(t, r, "SKU-1")
	createProduct(t, r, "SKU-2")

	rr, env := do(t, r, http.MethodGet, "/products?per_page=1&page=2", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	require.NotNil(t, env.Meta)
	assert.EqualValues(t, 2, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)

	name := "Renamed"
	rr, env = do(t, r, http.MethodPut, "/products/"+p.ID, service.UpdateProductInput{Name: &name})
	testutil.AssertStatus(t, rr, http.StatusOK)
	var updated domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Renamed", updated.Name)

	do(t, r, http.MethodPost, "/stock/in", service.StockInput{ProductID: p.ID, DepotID: d.ID, Quantity: 3})
	rr, env = do(t, r, http.MethodDelete, "/depots/"+d.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	assert.Equal(t, "INVALID_OPERATION", env.Error.Code)

	rr, _ = do(t, r, http.MethodDelete, "/products/"+p.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr, env = do(t, r, http.MethodGet, "/depots/"+d.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var depot domain.Depot
	require.NoError(t, json.Unmarshal(env.Data, &depot))
	assert.Equal(t, int64(0), depot.CurrentUtilization)

	rr, _ = do(t, r, http.MethodDelete, "/depots/"+d.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestAlertEndpoints(t *testing.T) {
	r := newRouter(t)
	p := createProduct(t, r, "SKU-1")

	rr, env := do(t, r, http.MethodGet, "/alerts?unresolved=true&target_id="+p.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var alerts []domain.Alert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertOutOfStock, alerts[0].Type)

	rr, env = do(t, r, http.MethodPost, "/alerts/check", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var check struct {
		Created int `json:"created"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.Equal(t, 0, check.Created)

	rr, env = do(t, r, http.MethodPost, "/alerts", service.RaiseInput{Type: domain.AlertDemandSpike, ProductID: p.ID, Description: "Orders tripled"})
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr, _ = do(t, r, http.MethodPost, "/alerts/"+alerts[0].ID+"/read", nil)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr, env = do(t, r, http.MethodPost, "/alerts/read-all", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var readAll map[string]int64
	require.NoError(t, json.Unmarshal(env.Data, &readAll))
	assert.Equal(t, int64(1), readAll["updated"])

	rr, env = do(t, r, http.MethodPost, "/alerts/"+alerts[0].ID+"/resolve", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var resolved domain.Alert
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "Dana", *resolved.ResolvedBy)

	rr, _ = do(t, r, http.MethodPost, "/alerts/"+alerts[0].ID+"/resolve", nil)
	testutil.AssertStatus(t, rr, http.StatusConflict)
}

func TestImport_CSV(t *testing.T) {
	r := newRouter(t)
	createDepot(t, r, "Central", 1000)

	body := strings.Join([]string{
		"SKU,Name,Quantity,Depot Name",
		"A-1,Alpha,20,Central",
		"B-1,Bravo,5",
		",Nameless,3,Central",
		"A-1,Alpha,3,central",
	}, "\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	testutil.WithTenantHeaders(req, tenantID)

	rr, env := decode(t, testutil.ExecuteRequest(r, req))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var res service.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, 3, res.Errors[1].Row)
	assert.Equal(t, 1, res.ProductsCreated)
	assert.Equal(t, 2, res.TransactionsCreated)
}

func TestImport_JSONHistory(t *testing.T) {
	r := newRouter(t)
	createDepot(t, r, "Central", 1000)

	rr, env := do(t, r, http.MethodPost, "/import/history", map[string]interface{}{
		"rows": []map[string]interface{}{
			{"sku": "A-1", "name": "Alpha", "type": "stock-in", "quantity": 8, "depot_name": "Central", "date": "2026-01-01T00:00:00Z"},
			{"sku": "A-1", "name": "Alpha", "type": "stock-out", "quantity": 2, "depot_name": "Central", "date": "2026-01-02T00:00:00Z"},
		},
	})
	testutil.AssertStatus(t, rr, http.StatusOK)

	var res service.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)

	rr, env = do(t, r, http.MethodGet, "/products?search=A-1", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var products []domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, int64(6), products[0].Stock)
}

func TestImport_CSVWithoutHeader(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(""))
	req.Header.Set("Content-Type", "text/csv")
	testutil.WithTenantHeaders(req, tenantID)

	rr, env := decode(t, testutil.ExecuteRequest(r, req))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}
