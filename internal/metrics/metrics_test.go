package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/api/items", 200, time.Millisecond)
	m.ObserveStats("day", 5)
	m.ItemArchived("used")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/stats", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "/api/stats", 200, 20*time.Millisecond)
	m.ObserveStats("week", 4)
	m.ItemArchived("used")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/stats", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statsRuns.WithLabelValues("week")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.archived.WithLabelValues("used")))
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.ObserveStats("month", 6)

	server := httptest.NewServer(m.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `shramba_stats_computations_total{granularity="month"} 1`))
	assert.True(t, strings.Contains(string(body), "shramba_stats_series_buckets_count 1"))
}
