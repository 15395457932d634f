package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/go-pos-store/internal/audit"
	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/export"
	"github.com/safar/go-pos-store/internal/finance"
	"github.com/safar/go-pos-store/internal/inventory"
	"github.com/safar/go-pos-store/internal/metrics"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/sales"
	"github.com/safar/go-pos-store/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	authn  *auth.Authenticator
	token  string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	store.SeedUser(models.User{Username: "alice", Name: "Alice Smith", PasswordHash: string(hash)})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	authn := auth.NewAuthenticator(store, "test-secret", time.Hour)

	router := NewRouter(Deps{
		Auth:        authn,
		Sales:       sales.NewService(store, audit.Discard{}, m, false),
		Inventory:   inventory.NewService(store, nil),
		Finance:     finance.NewService(store, nil),
		Export:      export.NewService(store),
		Health:      store,
		Logger:      zap.NewNop(),
		Metrics:     m,
		Gatherer:    reg,
		ServiceName: "pos-test",
	})

	token, err := authn.Issue(&models.User{Username: "alice", Name: "Alice Smith"})
	require.NoError(t, err)

	return &testServer{router: router, store: store, authn: authn, token: token}
}

func (s *testServer) do(method, path string, body any, authenticated bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: s.token})
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPlaceOrderEndpoint(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 10)

	w := s.do(http.MethodPost, "/orders", gin.H{
		"items":         []gin.H{{"id": tea, "quantity": 2}, {"id": tea, "quantity": 1}},
		"paymentMethod": "Online",
	}, true)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Online", body["paymentMethod"])
	assert.NotEmpty(t, body["orderId"])

	item, _ := s.store.Item(tea)
	assert.Equal(t, 7, item.Units)

	orders := s.store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "Alice Smith", orders[0].AddedBy)
	assert.Equal(t, 3, orders[0].Items[0].Quantity)
}

func TestPlaceOrderBearerToken(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 10)

	raw, _ := json.Marshal(gin.H{"items": []gin.H{{"id": tea, "quantity": 1}}, "paymentMethod": "Cash"})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestPlaceOrderRequiresCredential(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 10)
	order := gin.H{"items": []gin.H{{"id": tea, "quantity": 1}}, "paymentMethod": "Cash"}

	w := s.do(http.MethodPost, "/orders", order, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", decode(t, w)["message"])

	s.token = "forged.token.value"
	w = s.do(http.MethodPost, "/orders", order, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Zero(t, s.store.Writes())
}

func TestPlaceOrderBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    func(id string) any
		message string
	}{
		{
			name:    "fractional quantity",
			body:    func(id string) any { return gin.H{"items": []gin.H{{"id": id, "quantity": 2.5}}, "paymentMethod": "Cash"} },
			message: "quantity",
		},
		{
			name:    "string quantity",
			body:    func(id string) any { return gin.H{"items": []gin.H{{"id": id, "quantity": "2"}}, "paymentMethod": "Cash"} },
			message: "quantity",
		},
		{
			name:    "numeric id",
			body:    func(string) any { return gin.H{"items": []gin.H{{"id": 7, "quantity": 1}}, "paymentMethod": "Cash"} },
			message: "id",
		},
		{
			name:    "no items",
			body:    func(string) any { return gin.H{"items": []gin.H{}, "paymentMethod": "Cash"} },
			message: "items",
		},
		{
			name:    "items not a list",
			body:    func(string) any { return `{"items": "tea", "paymentMethod": "Cash"}` },
			message: "Invalid request body",
		},
		{
			name:    "bad payment method",
			body:    func(id string) any { return gin.H{"items": []gin.H{{"id": id, "quantity": 1}}, "paymentMethod": "Card"} },
			message: "paymentMethod",
		},
		{
			name:    "unknown item",
			body:    func(string) any { return gin.H{"items": []gin.H{{"id": "nope", "quantity": 1}}, "paymentMethod": "Cash"} },
			message: "Some items not found",
		},
		{
			name:    "insufficient stock",
			body:    func(id string) any { return gin.H{"items": []gin.H{{"id": id, "quantity": 5}}, "paymentMethod": "Cash"} },
			message: "insufficient stock for A: have 3, need 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			id := s.store.SeedItem("A", decimal.NewFromInt(1), decimal.NewFromInt(2), 3)

			w := s.do(http.MethodPost, "/orders", tt.body(id), true)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["message"], tt.message)
			assert.Zero(t, s.store.Writes())
		})
	}
}

func TestPlaceOrderPersistenceFailure(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 10)
	s.store.Fail("CreateOrder", errors.New("relation \"orders\" does not exist"))

	w := s.do(http.MethodPost, "/orders", gin.H{
		"items": []gin.H{{"id": tea, "quantity": 1}}, "paymentMethod": "Cash",
	}, true)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Failed to create order", body["message"])
	assert.Contains(t, body["error"], "does not exist")
}

func TestListOrdersEndpoint(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 100)
	cake := s.store.SeedItem("Cake", decimal.NewFromInt(10), decimal.NewFromInt(35), 100)

	for _, d := range []int{1, 2, 3} {
		now := time.Date(2024, 3, d, 23, 30, 0, 0, time.UTC)
		s.store.Now = func() time.Time { return now }
		w := s.do(http.MethodPost, "/orders", gin.H{
			"items":         []gin.H{{"id": tea, "quantity": d}, {"id": cake, "quantity": 1}},
			"paymentMethod": "Cash",
		}, true)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(http.MethodGet, "/orders?startDate=2024-03-02&endDate=2024-03-02", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Orders []struct {
			OrderID      string `json:"orderId"`
			OrderName    string `json:"orderName"`
			OrderCashier string `json:"orderCashier"`
			OrderDate    string `json:"orderDate"`
			TotalBill    string `json:"totalBill"`
			Items        []struct {
				Name      string `json:"name"`
				SalePrice string `json:"sale_price"`
				Quantity  int    `json:"quantity"`
			} `json:"items"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	require.Len(t, body.Orders, 1)
	assert.Equal(t, "75", body.Orders[0].TotalBill)
	assert.Equal(t, "Order", body.Orders[0].OrderName)
	assert.Equal(t, "Alice Smith", body.Orders[0].OrderCashier)
	assert.Len(t, body.Orders[0].Items, 2)
	assert.NotContains(t, w.Body.String(), "cost_price")

	w = s.do(http.MethodGet, "/orders?startDate=2024-03-02", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Orders, 3, "a single bound is ignored")

	w = s.do(http.MethodGet, "/orders?startDate=yesterday&endDate=2024-03-02", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrdersEndDateAtOrderTime(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 100)

	stamp := time.Date(2024, 3, 2, 10, 0, 0, 500, time.UTC)
	s.store.Now = func() time.Time { return stamp }
	w := s.do(http.MethodPost, "/orders", gin.H{
		"items":         []gin.H{{"id": tea, "quantity": 1}},
		"paymentMethod": "Cash",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	for _, end := range []string{
		stamp.Format(time.RFC3339Nano),
		stamp.Truncate(time.Microsecond).Format(time.RFC3339Nano),
	} {
		w = s.do(http.MethodGet, "/orders?startDate=2024-03-02T09:00:00Z&endDate="+end, nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		orders := decode(t, w)["orders"].([]any)
		assert.Len(t, orders, 1, "endDate %s should include the order", end)
	}

	w = s.do(http.MethodGet, "/orders?startDate=2024-03-02T09:00:00Z&endDate=2024-03-02T09:59:59Z", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["orders"])
}

func TestParseBound(t *testing.T) {
	upper, err := parseBound("2024-03-02T10:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 1000, time.UTC), upper.UTC())

	upper, err = parseBound("2024-03-02T10:00:00.123456789Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 123457000, time.UTC), upper.UTC())

	lower, err := parseBound("2024-03-02T10:00:00.123456789Z", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 123456000, time.UTC), lower.UTC())

	upper, err = parseBound("2024-03-02", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), upper)

	_, err = parseBound("03/02/2024", false)
	assert.Error(t, err)
}

func TestGetOrderEndpoint(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 10)

	w := s.do(http.MethodPost, "/orders", gin.H{
		"items":         []gin.H{{"id": tea, "quantity": 2}},
		"orderName":     "Table 4",
		"paymentMethod": "Cash",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["orderId"].(string)

	w = s.do(http.MethodGet, "/orders/"+id, nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	order := decode(t, w)["order"].(map[string]any)
	assert.Equal(t, id, order["orderId"])
	assert.Equal(t, "Table 4", order["orderName"])
	assert.Equal(t, "40", order["totalBill"])
	assert.Len(t, order["items"], 1)
	assert.NotContains(t, w.Body.String(), "cost_price")

	w = s.do(http.MethodGet, "/orders/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", decode(t, w)["message"])

	w = s.do(http.MethodGet, "/orders/"+id, nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.store.Fail("GetOrder", errors.New("timeout"))
	w = s.do(http.MethodGet, "/orders/"+id, nil, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to get order", decode(t, w)["message"])
}

func TestPlaceOrderWithoutDisplayName(t *testing.T) {
	s := setupTestServer(t)
	tea := s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 10)
	s.store.SeedUser(models.User{Username: "bob", Name: ""})

	token, err := s.authn.Issue(&models.User{Username: "bob"})
	require.NoError(t, err)
	s.token = token

	w := s.do(http.MethodPost, "/orders", gin.H{
		"items":         []gin.H{{"id": tea, "quantity": 1}},
		"paymentMethod": "Cash",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	orders := s.store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "bob", orders[0].AddedBy)
}

func TestInventoryEndpoints(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPost, "/inventory", gin.H{
		"items": []gin.H{{"name": "Tea", "costPrice": 10, "sale_price": "20.50", "units": 12}},
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Inventory processed successfully!", decode(t, w)["message"])

	w = s.do(http.MethodPost, "/inventory", gin.H{"items": []gin.H{}}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/inventory", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	tea := items[0].(map[string]any)
	assert.Equal(t, "Alice Smith", tea["added_by"])
	assert.Equal(t, float64(12), tea["no_of_units"])

	w = s.do(http.MethodGet, "/items", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var catalog []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	require.Len(t, catalog, 1)
	assert.Equal(t, "20.5", catalog[0]["sale_price"])
}

func TestFinanceEndpoints(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPost, "/expenses", gin.H{"amount": 45, "description": "Milk"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "Alice Smith", data["added_by"])

	w = s.do(http.MethodPost, "/investments", gin.H{"amount": "1000", "description": "Capital"}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/expenses", gin.H{"description": "Nothing"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount is required", decode(t, w)["message"])

	w = s.do(http.MethodPost, "/investments", gin.H{"amount": "lots"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportEndpoints(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/export", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/export?type=orders", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.store.SeedItem("Tea", decimal.NewFromInt(10), decimal.NewFromInt(20), 4)
	w = s.do(http.MethodGet, "/export?type=inventory", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="inventory.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "id,name,no_of_units,sale_price,cost_price,added_by,added_at\n"))

	w = s.do(http.MethodGet, "/export/ledger", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxMIMEType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ledger.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.NotZero(t, w.Body.Len())

	w = s.do(http.MethodGet, "/export/ledger", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndLogout(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPost, "/login", gin.H{"username": "alice", "password": "s3cret"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Login successful", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "Alice Smith", user["name"])
	assert.NotContains(t, w.Body.String(), "password")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[0].Path)

	claims, err := s.authn.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	w = s.do(http.MethodPost, "/login", gin.H{"username": "alice", "password": "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode(t, w)["message"])

	w = s.do(http.MethodPost, "/login", gin.H{"username": "alice"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/logout", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	s.store.Fail("Ping", errors.New("connection refused"))
	w = s.do(http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pos_http_requests_total{method="GET",route="/health",status="200"} 2`)
}
