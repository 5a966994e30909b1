package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/config"
	"cypherify/internal/health"
	"cypherify/internal/logging"
	"cypherify/internal/metrics"
	"cypherify/internal/password"
	"cypherify/internal/report"
	"cypherify/internal/store"
	"cypherify/internal/teacher"
	"cypherify/internal/tracing"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type env struct {
	srv     *Server
	store   *store.Store
	metrics *metrics.CypherifyMetrics
}

func newEnv(t *testing.T, teacherURL string) *env {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	settings := classical.DefaultSettings()
	settings.Substitution.TimeBudget = 0
	m := metrics.NewCypherifyMetrics(metrics.NewRegistry("cypherify"))
	cl := classifier.New(settings, classifier.DefaultOptions(), logging.Nop(), m)
	est, err := password.NewEstimator(password.DefaultGuessesPerSecond)
	require.NoError(t, err)

	key := ""
	if teacherURL != "" {
		key = "sk-test"
	}
	tc := teacher.New(teacher.Options{Endpoint: teacherURL, APIKey: key, Model: "m", HistoryWindow: 4}, logging.Nop())

	checker := health.NewChecker()
	checker.RegisterFunc("store", true, health.DatabaseCheck(st.Ping))
	checker.RegisterFunc("teacher", false, health.OptionalFeatureCheck(tc.Enabled))

	cfg := config.DefaultConfig().Server
	cfg.MaxInputBytes = 4096
	srv, err := New(cfg, Deps{
		Classifier: cl,
		Estimator:  est,
		Store:      st,
		Teacher:    tc,
		Health:     checker,
		Metrics:    m,
		Logger:     logging.Nop(),
	})
	require.NoError(t, err)
	return &env{srv: srv, store: st, metrics: m}
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		data, _ := json.Marshal(body)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(config.DefaultConfig().Server, Deps{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: "Khoor Zruog"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, report.Validate(w.Body.Bytes()))

	doc := decode(t, w)
	assert.Equal(t, "classification", doc["kind"])
	cls := doc["classification"].(map[string]any)
	top := cls["candidates"].([]any)[0].(map[string]any)
	assert.Equal(t, "shift", top["family"])
	assert.Equal(t, "3", top["key"])
	assert.Equal(t, "Hello World", top["plaintext"])

	id := w.Header().Get(historyHeader)
	require.NotEmpty(t, id)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	rec, err := e.store.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "shift", rec.Family)
	assert.Equal(t, "Khoor Zruog", rec.Preview)
	assert.Equal(t, uint64(1), e.metrics.ClassificationsTotal.Value())
	assert.Equal(t, int64(1), e.metrics.HistoryRecords.Value())
}

func TestClassifyUsesCallerRequestID(t *testing.T) {
	e := newEnv(t, "")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(`{"text":"Khoor Zruog"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	cls := decode(t, w)["classification"].(map[string]any)
	assert.Equal(t, "req-42", cls["request_id"])
}

func TestClassifyRejectsLargeBody(t *testing.T) {
	e := newEnv(t, "")
	w := e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: strings.Repeat("a", 64<<10)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: strings.Repeat("a", 5000)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = e.do(http.MethodPost, "/api/v1/classify", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w), "request_id")
}

func TestTransform(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodPost, "/api/v1/transform", transformRequest{
		Family: "vigenere", Direction: "encrypt", Text: "attack at dawn", Key: "LEMON",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tr := decode(t, w)["transform"].(map[string]any)
	assert.Equal(t, "lxfopv ef rnhr", tr["output"])

	tests := map[string]transformRequest{
		"unsupported family": {Family: "enigma", Direction: "encrypt", Text: "x", Key: "1"},
		"non-invertible":     {Family: "affine", Direction: "encrypt", Text: "x", Key: "2,3"},
		"bad direction":      {Family: "shift", Direction: "sideways", Text: "x", Key: "3"},
		"missing family":     {Direction: "encrypt", Text: "x"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/v1/transform", req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPassword(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodPost, "/api/v1/password", passwordRequest{
		Policy:           &password.Policy{Lowercase: true, Length: 4},
		GuessesPerSecond: 1e9,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pw := decode(t, w)["password"].(map[string]any)
	assert.Equal(t, float64(456976), pw["search_space"])

	w = e.do(http.MethodPost, "/api/v1/password", passwordRequest{Password: "correct horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "correct horse")

	rec, err := e.store.Get(t.Context(), w.Header().Get(historyHeader))
	require.NoError(t, err)
	assert.Empty(t, rec.Preview)
	assert.NotContains(t, string(rec.Result), "correct horse")

	for name, req := range map[string]passwordRequest{
		"empty":      {},
		"both":       {Password: "x", Policy: &password.Policy{Digits: true, Length: 1}},
		"no classes": {Policy: &password.Policy{Length: 8}},
		"bad rate":   {Password: "x", GuessesPerSecond: -1},
	} {
		t.Run(name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/v1/password", req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, uint64(2), e.metrics.PasswordEstimates.Value())
}

func TestPIN(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodPost, "/api/v1/pin", pinRequest{PIN: "1234", Attack: "dictionary"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pin := decode(t, w)["pin"].(map[string]any)
	assert.Equal(t, "critical", pin["rating"])
	assert.NotContains(t, w.Body.String(), `"1234"`)

	w = e.do(http.MethodPost, "/api/v1/pin", pinRequest{PIN: "12a4"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/api/v1/pin", pinRequest{PIN: "1234", Attack: "rainbow"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	e := newEnv(t, "")
	e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: "Khoor Zruog"})
	w := e.do(http.MethodPost, "/api/v1/pin", pinRequest{PIN: "482915"})
	pinID := w.Header().Get(historyHeader)

	w = e.do(http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["records"], 2)

	w = e.do(http.MethodGet, "/api/v1/history?kind=classify&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "shift", records[0].(map[string]any)["family"])

	w = e.do(http.MethodGet, "/api/v1/history/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total"])

	w = e.do(http.MethodGet, "/api/v1/history/"+pinID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pin", decode(t, w)["kind"])

	w = e.do(http.MethodDelete, "/api/v1/history/"+pinID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(http.MethodGet, "/api/v1/history/"+pinID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, q := range []string{"?kind=enigma", "?limit=0", "?before=yesterday"} {
		w = e.do(http.MethodGet, "/api/v1/history"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestHistoryDisabled(t *testing.T) {
	e := newEnv(t, "")
	e.srv.deps.Store = nil

	w := e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: "Khoor Zruog"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(historyHeader))

	w = e.do(http.MethodGet, "/api/v1/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFamiliesAndSchema(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodGet, "/api/v1/families", nil)
	require.Equal(t, http.StatusOK, w.Code)
	families := decode(t, w)["families"].([]any)
	require.Len(t, families, 10)
	assert.Equal(t, "shift", families[0].(map[string]any)["family"])

	w = e.do(http.MethodGet, "/api/v1/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.Schema(), w.Body.Bytes())
}

func TestTeacherDisabled(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodGet, "/api/v1/teacher/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["enabled"])

	w = e.do(http.MethodPost, "/api/v1/teacher/ask", teacher.Question{Text: "What is ROT13?"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = e.do(http.MethodPost, "/api/v1/teacher/review", classifyRequest{Text: "Khoor Zruog"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Classification keeps working without the teacher.
	w = e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: "Khoor Zruog"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func fakeTeacher(t *testing.T, reply string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "m",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestTeacherAskAndReview(t *testing.T) {
	e := newEnv(t, fakeTeacher(t, "BEST_MATCH: 1\nCONFIDENCE: high\nREASONING: It reads as English."))

	w := e.do(http.MethodPost, "/api/v1/teacher/ask", teacher.Question{Text: "What is ROT13?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["history"], 2)

	w = e.do(http.MethodPost, "/api/v1/teacher/hint", hintRequest{Family: "vigenere"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/api/v1/teacher/hint", hintRequest{Family: "enigma"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/v1/teacher/review", classifyRequest{Text: "Khoor Zruog"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rv := decode(t, w)["review"].(map[string]any)
	assert.Equal(t, "high", rv["confidence"])
	assert.Equal(t, "shift", rv["candidate"].(map[string]any)["family"])

	assert.Equal(t, uint64(3), e.metrics.TeacherQuestions.Value())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(http.MethodGet, "/health?full=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "degraded", resp["status"])
	assert.Contains(t, resp["components"], "store")

	w = e.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	e.do(http.MethodPost, "/api/v1/classify", classifyRequest{Text: "Khoor Zruog"})
	w = e.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cypherify_classifications_total 1")
}

func TestCORS(t *testing.T) {
	e := newEnv(t, "")
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/classify", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTracePropagation(t *testing.T) {
	var buf bytes.Buffer
	tr, err := tracing.NewTracer(tracing.Config{ServiceName: "cypherify", Exporter: tracing.NewWriterExporter(&buf)})
	require.NoError(t, err)
	tracing.SetTracer(tr)
	t.Cleanup(func() { tracing.SetTracer(nil) })

	e := newEnv(t, "")
	const parent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
	data, _ := json.Marshal(map[string]string{"text": "Khoor Zruog"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/classify", bytes.NewReader(data))
	r.Header.Set("traceparent", parent)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	sc, err := tracing.ParseTraceParent(w.Header().Get("traceparent"))
	require.NoError(t, err)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", sc.TraceID.String())

	names := map[string]int{}
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var d tracing.SpanData
		require.NoError(t, dec.Decode(&d))
		assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", d.TraceID, d.Name)
		if d.Name == "POST /api/v1/classify" {
			assert.Equal(t, "b7ad6b7169203331", d.ParentID)
			assert.Equal(t, "server", d.Kind)
		}
		names[d.Name]++
	}
	assert.Equal(t, 1, names["POST /api/v1/classify"])
	assert.Equal(t, 1, names["classify"])
	assert.Equal(t, 10, names["classify.family"])
}
