package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/logging"
	"cypherify/internal/password"
	"cypherify/internal/store"
)

func newClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	settings := classical.DefaultSettings()
	settings.Substitution.TimeBudget = 0
	return classifier.New(settings, classifier.DefaultOptions(), logging.Nop(), nil)
}

func classify(t *testing.T, input string) *classifier.Result {
	t.Helper()
	res, err := newClassifier(t).Classify(context.Background(), input)
	require.NoError(t, err)
	return res
}

func TestPrintReport(t *testing.T) {
	t.Run("classified", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, classify(t, "Khoor Zruog"))
		out := buf.String()

		for _, want := range []string{
			"CIPHER CLASSIFICATION REPORT",
			"STATISTICS",
			"Index of Coincidence:",
			"RANKED CANDIDATES",
			"EXPLANATION",
			"Hello World",
			"VERDICT: shift key 3",
		} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("unclassified", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, classify(t, "MYNBIQPMZJPLSGQE"))
		out := buf.String()
		assert.Contains(t, out, "VERDICT: "+classifier.DefaultOptions().UnclassifiedLabel)
		assert.Contains(t, out, "1. unclassified")
	})

	t.Run("no letters", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, classify(t, "12 34 !!"))
		assert.Contains(t, buf.String(), "No letters to measure.")
	})

	t.Run("nil", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, nil)
		assert.Equal(t, "No classification data available\n", buf.String())
	})
}

func TestPrintPasswordReport(t *testing.T) {
	e, err := password.NewEstimator(password.DefaultGuessesPerSecond)
	require.NoError(t, err)
	est, err := e.EstimatePassword("hunter2")
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintPasswordReport(&buf, est)
	out := buf.String()
	assert.Contains(t, out, "PASSWORD STRENGTH ESTIMATE")
	assert.Contains(t, out, "lowercase, digits (36 symbols)")
	assert.Contains(t, out, "RECOMMENDATIONS")
	assert.Contains(t, out, "RATING: VERY WEAK")
	assert.Contains(t, out, password.EstimateNote)
	assert.NotContains(t, out, "hunter2")
}

func TestPrintPINReport(t *testing.T) {
	e, err := password.NewEstimator(password.DefaultGuessesPerSecond)
	require.NoError(t, err)
	a, err := e.AnalyzePIN("1234", password.Dictionary)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintPINReport(&buf, a)
	out := buf.String()
	assert.Contains(t, out, "Common PIN:     yes, rank 1")
	assert.Contains(t, out, "RATING: CRITICAL")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, nil)
	assert.Equal(t, "No history recorded\n", buf.String())

	buf.Reset()
	PrintHistory(&buf, []store.Record{
		{ID: "a", Kind: store.KindClassify, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local), Family: "shift", Confidence: 0.9, Preview: "Khoor Zruog"},
		{ID: "b", Kind: store.KindPassword, CreatedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.Local)},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2026-01-02 03:04:05")
	assert.Contains(t, lines[1], "0.900")
	assert.Contains(t, lines[2], "password")
}

func TestFormatMetricBar(t *testing.T) {
	tests := []struct {
		value, min, max float64
		width           int
		want            string
	}{
		{0.5, 0, 1, 10, "[#####-----]"},
		{-1, 0, 1, 4, "[----]"},
		{2, 0, 1, 4, "[####]"},
		{1, 1, 1, 3, "---"},
		{1, 0, 1, 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMetricBar(tt.value, tt.min, tt.max, tt.width))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "日本…", Truncate("日本語のテキスト", 3))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(-time.Second))
	assert.Equal(t, "250µs", FormatDuration(250*time.Microsecond))
	assert.Equal(t, "12ms", FormatDuration(12*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
}

func TestExportDocuments(t *testing.T) {
	e, err := password.NewEstimator(password.DefaultGuessesPerSecond)
	require.NoError(t, err)

	weak, err := e.EstimatePassword("abc")
	require.NoError(t, err)
	huge, err := e.Estimate(password.Policy{Lowercase: true, Uppercase: true, Digits: true, Symbols: true, Length: 64})
	require.NoError(t, err)
	pin, err := e.AnalyzePIN("482915", password.Sequential)
	require.NoError(t, err)
	tr, err := newClassifier(t).Transform("vigenere", classifier.Encrypt, "attack at dawn", "LEMON")
	require.NoError(t, err)

	docs := map[string]*Document{
		"classified":   NewClassificationDocument(classify(t, "Khoor Zruog")),
		"unclassified": NewClassificationDocument(classify(t, "MYNBIQPMZJPLSGQE")),
		"empty input":  NewClassificationDocument(classify(t, "")),
		"transform":    NewTransformDocument(tr),
		"password":     NewPasswordDocument(weak),
		"saturated":    NewPasswordDocument(huge),
		"pin":          NewPINDocument(pin),
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteJSON(&buf, doc))

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
			assert.Equal(t, Format, decoded["format"])
			assert.Equal(t, string(doc.Kind), decoded["kind"])
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"not json":        `{`,
		"missing payload": `{"format":"cypherify-analysis","version":1,"generated_at":"2026-01-01T00:00:00Z","kind":"password"}`,
		"wrong format":    `{"format":"other","version":1,"generated_at":"2026-01-01T00:00:00Z","kind":"pin"}`,
		"unknown kind":    `{"format":"cypherify-analysis","version":1,"generated_at":"2026-01-01T00:00:00Z","kind":"enigma"}`,
		"bad direction":   `{"format":"cypherify-analysis","version":1,"generated_at":"2026-01-01T00:00:00Z","kind":"transform","transform":{"family":"vigenere","direction":"sideways","input":"a","output":"b"}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate([]byte(doc))
			assert.True(t, errors.Is(err, ErrInvalidDocument), "%v", err)
		})
	}
}

func TestSchemaIsCopied(t *testing.T) {
	s := Schema()
	require.NotEmpty(t, s)
	s[0] = 'x'
	assert.Equal(t, byte('{'), Schema()[0])
}

func TestDocumentRecord(t *testing.T) {
	res := classify(t, "Khoor Zruog")
	r, err := NewClassificationDocument(res).Record("Khoor Zruog")
	require.NoError(t, err)
	assert.Equal(t, store.KindClassify, r.Kind)
	assert.Equal(t, res.RequestID, r.RequestID)
	assert.Equal(t, "shift", r.Family)
	assert.Equal(t, "3", r.Key)
	assert.True(t, r.Classified)
	assert.Equal(t, "Khoor Zruog", r.Preview)
	assert.Equal(t, store.InputDigest(store.KindClassify, "Khoor Zruog"), r.InputDigest)
	assert.NotContains(t, string(r.Result), "\n")
	require.NoError(t, Validate(r.Result))

	e, err := password.NewEstimator(password.DefaultGuessesPerSecond)
	require.NoError(t, err)
	est, err := e.EstimatePassword("hunter2!")
	require.NoError(t, err)
	r, err = NewPasswordDocument(est).Record("hunter2!")
	require.NoError(t, err)
	assert.Equal(t, store.KindPassword, r.Kind)
	assert.Empty(t, r.Preview)
	assert.Equal(t, [32]byte{}, r.InputDigest)
	assert.NotContains(t, string(r.Result), "hunter2!")

	_, err = (&Document{Kind: "enigma"}).Record("x")
	assert.Error(t, err)
}
