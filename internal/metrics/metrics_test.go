package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry("test")
	c := r.Counter("hits_total", "hits")
	assert.Same(t, c, r.Counter("hits_total", "hits"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), c.Value())

	g := r.Gauge("depth", "depth")
	g.Set(5)
	g.Dec()
	assert.Equal(t, int64(4), g.Value())
}

func TestCounterVec(t *testing.T) {
	r := NewRegistry("")
	v := r.CounterVec("wins_total", "wins", "family")
	v.WithLabel("shift").Inc()
	v.WithLabel("shift").Inc()
	v.WithLabel("vigenere").Inc()

	assert.Equal(t, map[string]uint64{"shift": 2, "vigenere": 1}, v.Values())
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("")
	h := r.Histogram("latency_seconds", "latency", nil, []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.1)
	h.Observe(0.5)
	h.ObserveDuration(3 * time.Second)

	assert.Equal(t, uint64(4), h.Count())
	assert.InDelta(t, 3.65, h.Sum(), 1e-9)
	assert.Equal(t, []uint64{2, 3, 4}, h.cumulative())
}

func TestWritePrometheus(t *testing.T) {
	m := NewCypherifyMetrics(NewRegistry("cypherify"))
	m.ClassificationsTotal.Inc()
	m.FamilyWins.WithLabel("shift").Inc()
	m.FamilyDuration("affine").Observe(0.002)

	var buf bytes.Buffer
	require.NoError(t, m.Registry().WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, "# TYPE cypherify_classifications_total counter")
	assert.Contains(t, out, "cypherify_classifications_total 1")
	assert.Contains(t, out, `cypherify_family_wins_total{family="shift"} 1`)
	assert.Contains(t, out, `cypherify_family_search_seconds_bucket{family="affine",le="+Inf"} 1`)
	assert.Equal(t, 1, strings.Count(out, "# TYPE cypherify_family_search_seconds histogram"))
}

func TestHTTPHandler(t *testing.T) {
	r := NewRegistry("x")
	r.Counter("n", "n").Add(7)

	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "x_n 7")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"x_n": 7`)
}
