package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/billing"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/reconcile"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/users"
)

func TestMain(m *testing.M) {
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

type stack struct {
	cat     *catalog.MemoryRepository
	gateway *payment.LocalGateway
	metrics *metrics.Metrics
	handler http.Handler
}

func newStack(t *testing.T) stack {
	t.Helper()
	cat := catalog.NewMemoryRepository()
	sessions := payment.NewMemorySessionStore()
	guard := reconcile.NewLocalGuard(cat, sessions)
	gw := payment.NewLocalGateway("http://localhost:5050/checkout")
	m := metrics.New()

	h := NewRouter(Deps{
		Metrics:   m,
		Inventory: inventory.NewService(cat),
		Billing:   billing.NewEngine(cat, guard, billing.WithMetrics(m)),
		Payments: payment.NewManager(cat, gw, sessions, guard, "inr",
			payment.URLs{Success: "https://pos.example/success", Cancel: "https://pos.example/failed"},
			payment.WithMetrics(m)),
		Users:            users.NewService(users.NewMemoryRepository()),
		LocalGateway:     gw,
		CORSAllowOrigins: []string{"*"},
	})
	return stack{cat: cat, gateway: gw, metrics: m, handler: h}
}

func (s stack) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func (s stack) seed(t *testing.T, id, owner string, price string, stock int) {
	t.Helper()
	_, err := s.cat.Upsert(context.Background(), catalog.Product{
		ID: id, OwnerID: owner, Name: "Item " + id, Price: decimal.RequireFromString(price), Stock: stock,
	})
	require.NoError(t, err)
}

func (s stack) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := s.cat.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestHealth(t *testing.T) {
	s := newStack(t)
	rr, _ := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestInventoryLifecycle(t *testing.T) {
	s := newStack(t)

	rr, body := s.do(t, http.MethodPost, "/inventory/add",
		`{"user_id":"m1","id":"p1","name":"Pen","price":10,"stock":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Item added", body["message"])
	item := body["item"].(map[string]any)
	assert.Equal(t, "p1", item["id"])
	assert.Equal(t, "m1", item["user_id"])
	assert.Equal(t, float64(10), item["price"])
	assert.Equal(t, float64(5), item["stock"])

	rr, body = s.do(t, http.MethodPut, "/inventory/update/p1", `{"user_id":"m1","price":"12.50"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Item updated", body["message"])
	item = body["item"].(map[string]any)
	assert.Equal(t, 12.5, item["price"])
	assert.Equal(t, "Pen", item["name"])

	rr, body = s.do(t, http.MethodGet, "/inventory/all?user_id=m1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body, 1)
	assert.Contains(t, body, "p1")

	rr, body = s.do(t, http.MethodGet, "/inventory/all?user_id=m2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, body)

	rr, body = s.do(t, http.MethodDelete, "/inventory/delete/p1", `{"user_id":"m1"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Item deleted", body["message"])

	rr, body = s.do(t, http.MethodDelete, "/inventory/delete/p1", `{"user_id":"m1"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Item not found", body["error"])
}

func TestInventoryForeignMerchant(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "m1", "10", 5)

	rr, body := s.do(t, http.MethodPost, "/inventory/add",
		`{"user_id":"m2","id":"p1","name":"Stolen","price":1,"stock":99}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Item belongs to another user", body["error"])

	rr, _ = s.do(t, http.MethodPut, "/inventory/update/p1", `{"user_id":"m2","stock":0}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = s.do(t, http.MethodDelete, "/inventory/delete/p1?user_id=m2", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	assert.Equal(t, 5, s.stock(t, "p1"))
}

func TestInventoryRejectsBadRequests(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "m1", "10", 5)

	tests := map[string]struct {
		method, path, body string
	}{
		"add missing price":      {http.MethodPost, "/inventory/add", `{"user_id":"m1","id":"p2","name":"x","stock":1}`},
		"add negative stock":     {http.MethodPost, "/inventory/add", `{"user_id":"m1","id":"p2","name":"x","price":1,"stock":-1}`},
		"add malformed json":     {http.MethodPost, "/inventory/add", `{"user_id":`},
		"add sub-cent price":     {http.MethodPost, "/inventory/add", `{"user_id":"m1","id":"p2","name":"x","price":"1.005","stock":1}`},
		"update unknown field":   {http.MethodPut, "/inventory/update/p1", `{"user_id":"m1","colour":"red"}`},
		"update nothing":         {http.MethodPut, "/inventory/update/p1", `{"user_id":"m1"}`},
		"update missing user":    {http.MethodPut, "/inventory/update/p1", `{"stock":3}`},
		"list missing user":      {http.MethodGet, "/inventory/all", ""},
		"delete missing user id": {http.MethodDelete, "/inventory/delete/p1", ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rr, body := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Equal(t, 5, s.stock(t, "p1"))
}

func TestCreateBill(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "m1", "10", 5)

	rr, body := s.do(t, http.MethodPost, "/billing/create", `{"user_id":"m1","items":[{"id":"p1","qty":3}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Bill created", body["message"])
	bill := body["bill"].(map[string]any)
	assert.Equal(t, float64(30), bill["total"])
	assert.NotEmpty(t, bill["id"])
	assert.Equal(t, 2, s.stock(t, "p1"))

	rr, body = s.do(t, http.MethodPost, "/billing/create", `{"user_id":"m1","items":[{"id":"p1","qty":3}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Insufficient stock for Item p1", body["error"])
	assert.Equal(t, 2, s.stock(t, "p1"))

	rr, body = s.do(t, http.MethodPost, "/billing/create", `{"user_id":"m1","items":[{"id":"nope","qty":1}]}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Product nope not found", body["error"])

	rr, _ = s.do(t, http.MethodPost, "/billing/create", `{"user_id":"m1","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "m1", "12.50", 4)

	rr, body := s.do(t, http.MethodPost, "/payment/create-checkout-session", `{"item_id":"p1","user_id":"m1"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, "http://localhost:5050/checkout/"+sessionID, body["url"])
	assert.Equal(t, 4, s.stock(t, "p1"), "creating a session reserves nothing")

	rr, body = s.do(t, http.MethodGet, "/payment/session/"+sessionID, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Payment not completed", body["error"])

	rr, _ = s.do(t, http.MethodPost, "/checkout/"+sessionID+"/pay", "")
	require.Equal(t, http.StatusOK, rr.Code)

	for i := 0; i < 3; i++ {
		rr, body = s.do(t, http.MethodGet, "/payment/session/"+sessionID, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "Stock updated successfully", body["message"])
	}
	assert.Equal(t, 3, s.stock(t, "p1"), "stock decremented exactly once")

	rr, _ = s.do(t, http.MethodGet, "/payment/session/cs_unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/checkout/cs_unknown/pay", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "m1", "12.50", 1)

	rr, _ := s.do(t, http.MethodPost, "/payment/create-checkout-session", `{"item_id":"p1","user_id":"m2"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/payment/create-checkout-session", `{"item_id":"p1","user_id":"m1","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/payment/create-checkout-session", `{"item_id":"p1","user_id":"m1","quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateUser(t *testing.T) {
	s := newStack(t)
	body := `{"name":"Asha","email":"asha@example.com","password":"s3cret"}`

	rr, out := s.do(t, http.MethodPost, "/users/create", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "success", out["status"])
	assert.NotEmpty(t, out["user_id"])

	rr, out = s.do(t, http.MethodPost, "/users/create", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "email already registered", out["error"])

	rr, _ = s.do(t, http.MethodPost, "/users/create", `{"name":"Asha"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Deps{CORSAllowOrigins: []string{"https://pos.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/billing/create", nil)
	req.Header.Set("Origin", "https://pos.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://pos.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodOptions, "/billing/create", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "m1", "10", 5)

	s.do(t, http.MethodGet, "/inventory/all?user_id=m1", "")
	rr, _ := s.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(),
		`pos_http_requests_total{method="GET",route="/inventory/all",status="200"} 1`)
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewRouter(Deps{Logger: zap.New(core), CORSAllowOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "/health", fields["route"])
	assert.Equal(t, int64(200), fields["status"])
}
