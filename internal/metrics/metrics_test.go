package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Transition("finalize")
	m.Transition("finalize")
	m.Rejection("finalize", "already_completed")
	m.Credit(80, 4000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("finalize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("finalize", "already_completed")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.pointsCredit))
	assert.Equal(t, 4000.0, testutil.ToFloat64(m.moneyCredit))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Transition("accept")
	m.Rejection("accept", "not_pending")
	m.Credit(1, 1)
	m.Request("GET", "200")
	m.LookupFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Request("POST", "200")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "banksampah_http_requests_total"))
}
