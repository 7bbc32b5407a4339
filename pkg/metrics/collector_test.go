package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(reg), reg
}

func TestRecordResponse(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordResponse("cache")
	c.RecordResponse("cache")
	c.RecordResponse("fallback")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.responsesTotal.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responsesTotal.WithLabelValues("fallback")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.responsesTotal.WithLabelValues("api")))
}

func TestRecordUpstream(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordUpstream(300*time.Millisecond, 100, 20)
	c.RecordUpstreamError("timeout")

	assert.Equal(t, 1, testutil.CollectAndCount(c.upstreamDuration))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.tokensUsed.WithLabelValues("prompt")))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.tokensUsed.WithLabelValues("completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamErrors.WithLabelValues("timeout")))
}

func TestCacheEntriesGauge(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetCacheEntries(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.cacheEntries))
	c.SetCacheEntries(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.cacheEntries))
}

func TestRecordHTTPRequest(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/chatbot", 200, 10*time.Millisecond)

	expected := `
# HELP bistro_http_requests_total Total number of HTTP requests
# TYPE bistro_http_requests_total counter
bistro_http_requests_total{method="POST",path="/api/chatbot",status="200"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "bistro_http_requests_total"))
}

func TestSeparateRegistries(t *testing.T) {
	// Two collectors on separate registries must not collide.
	assert.NotPanics(t, func() {
		NewCollector(prometheus.NewRegistry())
		NewCollector(prometheus.NewRegistry())
	})
}
