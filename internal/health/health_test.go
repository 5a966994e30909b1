package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/logging"
	"cypherify/internal/textstats"
)

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("db", true, DatabaseCheck(func(ctx context.Context) error { return nil }))
	c.RegisterFunc("teacher", false, OptionalFeatureCheck(func() bool { return false }))
	assert.Equal(t, StatusUnknown, c.OverallStatus())

	results := c.Check(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusHealthy, results["db"].Status)
	assert.Equal(t, StatusDegraded, results["teacher"].Status)
	assert.Equal(t, StatusDegraded, c.OverallStatus())

	c.RegisterFunc("db", true, DatabaseCheck(func(ctx context.Context) error { return errors.New("locked") }))
	c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, c.OverallStatus())
	r, ok := c.GetResult("db")
	require.True(t, ok)
	assert.Equal(t, "locked", r.Error)

	_, ok = c.GetResult("missing")
	assert.False(t, ok)
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("boom", false, func(ctx context.Context) CheckResult { panic("kaboom") })

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, StatusUnhealthy, results["boom"].Status)
	assert.Equal(t, "kaboom", results["boom"].Error)
}

func TestCheckComponent(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("custom", true, OptionalFeatureCheck(func() bool { return true }))

	r, ok := c.CheckComponent(context.Background(), "custom")
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.False(t, r.LastChecked.IsZero())

	_, ok = c.CheckComponent(context.Background(), "missing")
	assert.False(t, ok)
}

func TestFileExistsCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("the quick brown fox"), 0o600))

	ctx := context.Background()
	assert.Equal(t, StatusHealthy, FileExistsCheck("")(ctx).Status)
	assert.Equal(t, StatusHealthy, FileExistsCheck(path)(ctx).Status)
	assert.Equal(t, StatusUnhealthy, FileExistsCheck(path+".missing")(ctx).Status)
}

func TestMemoryCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, MemoryCheck(0)(ctx).Status)
	assert.Equal(t, StatusDegraded, MemoryCheck(1)(ctx).Status)
}

func TestLanguageModelCheck(t *testing.T) {
	ctx := context.Background()
	r := LanguageModelCheck(textstats.English())(ctx)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, 26, r.Details["alphabet_size"])

	assert.Equal(t, StatusUnhealthy, LanguageModelCheck(nil)(ctx).Status)
}

func TestClassifierCheck(t *testing.T) {
	cl := classifier.New(classical.DefaultSettings(), classifier.DefaultOptions(), logging.Nop(), nil)

	r := ClassifierCheck(cl)(context.Background())
	assert.Equal(t, StatusHealthy, r.Status, r.Message)
	assert.Equal(t, "shift", r.Details["family"])
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("db", true, DatabaseCheck(func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?full=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.True(t, resp.Ready)
	assert.Contains(t, resp.Components, "db")

	rec = httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
