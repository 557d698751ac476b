package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.OrdersCreated.Inc()
	m.OrdersCreated.Inc()
	m.OrdersCancelled.Inc()
	m.Failure("create", "conflict")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderFailures.WithLabelValues("create", "conflict")))
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.OrdersCreated.Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.OrdersCreated))
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/orders/{orderNumber}", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `http_request_duration_seconds_count{method="GET",route="/orders/{orderNumber}",status="200"} 1`)
	assert.Contains(t, string(body), "orders_created_total 0")
}
