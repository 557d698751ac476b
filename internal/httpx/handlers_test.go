package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-inventory-orders/internal/auth"
	"github.com/ariefcatur/go-inventory-orders/internal/metrics"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
)

type fakeOrders struct {
	createRes orders.CreateOrderResult
	createErr error
	creates   int

	view     orders.OrderView
	viewErr  error
	getCalls int

	cancelRes orders.CancelOrderResult
	cancelErr error

	staffOrder *orders.Order
	list       []orders.Order
	gotLimit   int
	gotOffset  int
}

func (f *fakeOrders) CreateOrderTx(_ context.Context, _ orders.CreateOrderInput) (orders.CreateOrderResult, error) {
	f.creates++
	return f.createRes, f.createErr
}

func (f *fakeOrders) GetOrder(_ context.Context, n, tok string) (orders.OrderView, error) {
	f.getCalls++
	return f.view, f.viewErr
}

func (f *fakeOrders) CancelOrderTx(_ context.Context, n, tok string) (orders.CancelOrderResult, error) {
	return f.cancelRes, f.cancelErr
}

func (f *fakeOrders) StaffGetOrder(_ context.Context, n string) (*orders.Order, error) {
	if f.staffOrder == nil {
		return nil, orders.ErrInvalidOrder
	}
	return f.staffOrder, nil
}

func (f *fakeOrders) ListOrders(_ context.Context, limit, offset int) ([]orders.Order, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.list, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

type env struct {
	router    *chi.Mux
	orders    *fakeOrders
	created   *recordingPublisher
	cancelled *recordingPublisher
	metrics   *metrics.Metrics
	jwt       *auth.JWTService
	cache     *redisx.Cache
}

func newEnv(t *testing.T) *env {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := &env{
		orders:    &fakeOrders{},
		created:   &recordingPublisher{},
		cancelled: &recordingPublisher{},
		metrics:   metrics.New(),
		jwt:       auth.NewJWTService("test-secret", time.Hour),
		cache:     &redisx.Cache{RDB: rdb},
	}
	e.router = NewRouter(e.metrics)
	oh := &OrdersHandler{
		Orders:    e.orders,
		Cache:     e.cache,
		Created:   e.created,
		Cancelled: e.cancelled,
		Metrics:   e.metrics,
		Service:   "order-api",
	}
	oh.Register(e.router, auth.RequireStaff(e.jwt))
	return e
}

func (e *env) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) staffHeader(t *testing.T) map[string]string {
	tok, _, err := e.jwt.Generate(auth.Account{ID: 1, Username: "alice", Role: auth.RoleStaff})
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

const validOrder = `{
  "customerInfo": {"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","phone":"123"},
  "address": {"street":"1 Main","city":"London","postcode":"N1","country":"UK"},
  "items": [{"productId": 1, "quantity": 2}]
}`

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestCreateOrder_Created(t *testing.T) {
	e := newEnv(t)
	e.orders.createRes = orders.CreateOrderResult{
		OrderNumber:   "ORD-000001",
		GuestToken:    "ABCDEF",
		OrderStatus:   orders.OrderStatusPending,
		PaymentStatus: orders.PaymentStatusUnpaid,
		TotalPrice:    decimal.RequireFromString("20.00"),
	}

	rec := e.do(http.MethodPost, "/orders/create", validOrder, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/orders/ORD-000001", rec.Header().Get("Location"))
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "ORD-000001", body["orderNumber"])
	assert.Equal(t, "ABCDEF", body["guestToken"])
	assert.Equal(t, "Pending", body["orderStatus"])

	require.Len(t, e.created.msgs, 1)
	assert.Equal(t, "ORD-000001", string(e.created.msgs[0].Key))
	var envl orders.Envelope
	require.NoError(t, json.Unmarshal(e.created.msgs[0].Value, &envl))
	assert.Equal(t, orders.EventOrderCreated, envl.EventType)
	assert.NotEmpty(t, envl.EventID)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.OrdersCreated))
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/orders/create", `{
	  "customerInfo": {"firstName":"","lastName":"L","email":"e","phone":"p"},
	  "address": {"street":"s","city":"c","postcode":"p","country":"c"},
	  "items": [{"productId": 0, "quantity": 0}]
	}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body validationBody
	decodeBody(t, rec, &body)
	assert.Equal(t, 400, body.StatusCode)
	assert.Equal(t, "One or more errors occurred!", body.Message)
	assert.Contains(t, body.Errors, "customerInfo.firstName")
	assert.Contains(t, body.Errors, "items[0].productId")
	assert.Contains(t, body.Errors, "items[0].quantity")
	assert.Zero(t, e.orders.creates)
}

func TestCreateOrder_NoItems(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/orders/create", `{
	  "customerInfo": {"firstName":"F","lastName":"L","email":"e","phone":"p"},
	  "address": {"street":"s","city":"c","postcode":"p","country":"c"},
	  "items": []
	}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body validationBody
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Errors, "items")
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/orders/create", `{not json`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_DomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"not found", &orders.ProductError{ProductID: 9, Err: orders.ErrProductNotFound}, http.StatusNotFound, "Product 9 was not found."},
		{"unavailable", &orders.ProductError{ProductID: 3, Err: orders.ErrProductUnavailable}, http.StatusConflict, "Product 3 is unavailable."},
		{"stock", &orders.ProductError{ProductID: 1, Err: orders.ErrInsufficientStock}, http.StatusConflict, "Insufficient stock for product 1"},
		{"internal", assert.AnError, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.orders.createErr = tt.err

			rec := e.do(http.MethodPost, "/orders/create", validOrder, nil)

			assert.Equal(t, tt.code, rec.Code)
			var body errorBody
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.msg, body.Message)
			assert.Empty(t, e.created.msgs)
			assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.OrderFailures.WithLabelValues("create", orders.KindOf(tt.err).String())))
		})
	}
}

func TestCreateOrder_IdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	e.orders.createRes = orders.CreateOrderResult{OrderNumber: "ORD-000005", GuestToken: "T"}
	h := map[string]string{headerIdempotency: "checkout-1"}

	first := e.do(http.MethodPost, "/orders/create", validOrder, h)
	second := e.do(http.MethodPost, "/orders/create", validOrder, h)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, e.orders.creates)
	assert.Len(t, e.created.msgs, 1)
	var body map[string]any
	decodeBody(t, second, &body)
	assert.Equal(t, "ORD-000005", body["orderNumber"])
}

func TestGetOrder(t *testing.T) {
	e := newEnv(t)
	e.orders.view = orders.OrderView{
		OrderNumber:   "ORD-000001",
		OrderStatus:   orders.OrderStatusCancelled,
		PaymentStatus: orders.PaymentStatusUnpaid,
		Items:         []orders.OrderViewItem{{ProductName: "Widget", Quantity: 2}},
	}
	h := map[string]string{headerGuestToken: "TOKEN"}

	rec := e.do(http.MethodGet, "/orders/ORD-000001", "", h)
	require.Equal(t, http.StatusOK, rec.Code)
	var got orders.OrderView
	decodeBody(t, rec, &got)
	assert.Equal(t, "Widget", got.Items[0].ProductName)

	// second read is served from cache
	rec = e.do(http.MethodGet, "/orders/ORD-000001", "", h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, e.orders.getCalls)
}

func TestGetOrder_PendingIsNotCached(t *testing.T) {
	e := newEnv(t)
	e.orders.view = orders.OrderView{OrderNumber: "ORD-000001", OrderStatus: orders.OrderStatusPending}
	h := map[string]string{headerGuestToken: "TOKEN"}

	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/orders/ORD-000001", "", h).Code)

	var cached orders.OrderView
	ok, err := e.cache.GetOrderView(context.Background(), "ORD-000001", "TOKEN", &cached)
	require.NoError(t, err)
	assert.False(t, ok)

	// a cancel committed after the first read is visible on the next one
	e.orders.view.OrderStatus = orders.OrderStatusCancelled
	rec := e.do(http.MethodGet, "/orders/ORD-000001", "", h)
	require.Equal(t, http.StatusOK, rec.Code)
	var got orders.OrderView
	decodeBody(t, rec, &got)
	assert.Equal(t, orders.OrderStatusCancelled, got.OrderStatus)
	assert.Equal(t, 2, e.orders.getCalls)
}

func TestGetOrder_MissingToken(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/orders/ORD-000001", "", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body validationBody
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Errors, "guestToken")
	assert.Zero(t, e.orders.getCalls)
}

func TestGetOrder_InvalidCredentials(t *testing.T) {
	e := newEnv(t)
	e.orders.viewErr = orders.ErrInvalidOrder

	rec := e.do(http.MethodGet, "/orders/ORD-000001", "", map[string]string{headerGuestToken: "WRONG"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	h := map[string]string{headerGuestToken: "TOKEN"}
	e.orders.view = orders.OrderView{OrderNumber: "ORD-000001", OrderStatus: orders.OrderStatusPending}
	e.orders.cancelRes = orders.CancelOrderResult{
		OrderNumber:   "ORD-000001",
		OrderStatus:   orders.OrderStatusCancelled,
		CancelledAt:   time.Now(),
		CustomerEmail: "ada@example.com",
	}

	// seed the cache, then make sure cancel evicts it
	require.NoError(t, e.cache.SetOrderView(context.Background(), "ORD-000001", "TOKEN", e.orders.view))

	rec := e.do(http.MethodPost, "/orders/ORD-000001/cancel", "", h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orderNumber":"ORD-000001","orderStatus":"Cancelled"}`, rec.Body.String())

	var cached orders.OrderView
	ok, err := e.cache.GetOrderView(context.Background(), "ORD-000001", "TOKEN", &cached)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, e.cancelled.msgs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.OrdersCancelled))
}

func TestCancelOrder_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid order", orders.ErrInvalidOrder, http.StatusNotFound},
		{"not cancellable", &orders.OrderError{OrderNumber: "ORD-000001", Err: orders.ErrOrderNotCancellable}, http.StatusConflict},
		{"conflict", orders.ErrOrderCancelConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.orders.cancelErr = tt.err

			rec := e.do(http.MethodPost, "/orders/ORD-000001/cancel", "", map[string]string{headerGuestToken: "T"})

			assert.Equal(t, tt.code, rec.Code)
			assert.Empty(t, e.cancelled.msgs)
		})
	}
}

func TestStaffOrders_RequireToken(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/staff/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/staff/orders/ORD-000001", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/orders", "", nil).Code)
}

func TestStaffListOrders_RootAlias(t *testing.T) {
	e := newEnv(t)
	e.orders.list = []orders.Order{{OrderNumber: "ORD-000007", OrderStatus: orders.OrderStatusPaid}}

	rec := e.do(http.MethodGet, "/orders?limit=5", "", e.staffHeader(t))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, e.orders.gotLimit)
	assert.Equal(t, 0, e.orders.gotOffset)
	assert.Contains(t, rec.Body.String(), "ORD-000007")
}

func TestStaffListOrders(t *testing.T) {
	e := newEnv(t)
	e.orders.list = []orders.Order{{OrderNumber: "ORD-000001", OrderStatus: orders.OrderStatusPending}}

	rec := e.do(http.MethodGet, "/staff/orders?limit=10&offset=20", "", e.staffHeader(t))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, e.orders.gotLimit)
	assert.Equal(t, 20, e.orders.gotOffset)
	assert.True(t, strings.Contains(rec.Body.String(), "ORD-000001"))
	assert.NotContains(t, rec.Body.String(), "guestToken")
}

func TestStaffListOrders_BadPaging(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/staff/orders?limit=abc", "", e.staffHeader(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffGetOrder(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/staff/orders/ORD-000404", "", e.staffHeader(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e.orders.staffOrder = &orders.Order{OrderNumber: "ORD-000002", GuestToken: "SECRET"}
	rec = e.do(http.MethodGet, "/staff/orders/ORD-000002", "", e.staffHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SECRET")
}

func TestHealthzAndMetrics(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)

	rec := e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}
