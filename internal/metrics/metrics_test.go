package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsIndependent(t *testing.T) {
	a := New()
	b := New()

	a.BillsCreated.Inc()
	a.Confirmations.WithLabelValues("consumed").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.BillsCreated))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BillsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Confirmations.WithLabelValues("consumed")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.HTTPRequests.WithLabelValues("GET", "/health", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `pos_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
