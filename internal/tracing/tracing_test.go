package tracing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracer(t *testing.T, ratio float64) (*Tracer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	tr, err := NewTracer(Config{ServiceName: "test", Exporter: NewWriterExporter(&buf), Sampler: NewRatioSampler(ratio)})
	require.NoError(t, err)
	return tr, &buf
}

func spans(t *testing.T, buf *bytes.Buffer) []SpanData {
	t.Helper()
	var out []SpanData
	dec := json.NewDecoder(buf)
	for dec.More() {
		var d SpanData
		require.NoError(t, dec.Decode(&d))
		out = append(out, d)
	}
	return out
}

func TestNilTracer(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.Start(context.Background(), "noop")
	assert.Nil(t, span)
	assert.Nil(t, SpanFromContext(ctx))

	// Every span method tolerates nil.
	span.SetAttributes(Attr("k", 1))
	span.AddEvent("e")
	span.RecordError(errors.New("boom"))
	span.End()
	assert.False(t, span.IsRecording())
	assert.NoError(t, tr.Shutdown())
}

func TestNewTracerNeedsExporter(t *testing.T) {
	_, err := NewTracer(Config{})
	require.Error(t, err)
}

func TestParentChild(t *testing.T) {
	tr, buf := newTestTracer(t, 1)

	ctx, root := tr.Start(context.Background(), "root", WithAttributes(Attr("input_bytes", 11)))
	_, child := tr.Start(ctx, "child", WithSpanKind(SpanKindClient))
	child.RecordError(errors.New("boom"))
	child.End()
	root.SetAttributes(Attr("family", "shift"))
	root.End()
	root.End()

	got := spans(t, buf)
	require.Len(t, got, 2)
	c, r := got[0], got[1]

	assert.Equal(t, "child", c.Name)
	assert.Equal(t, "client", c.Kind)
	assert.Equal(t, "error", c.Status)
	assert.Equal(t, "boom", c.StatusMsg)
	require.Len(t, c.Events, 1)
	assert.Equal(t, "exception", c.Events[0].Name)

	assert.Equal(t, r.TraceID, c.TraceID)
	assert.Equal(t, r.SpanID, c.ParentID)
	assert.Empty(t, r.ParentID)
	assert.Equal(t, "test", r.Service)
	assert.Equal(t, "shift", r.Attributes["family"])
	assert.EqualValues(t, 11, r.Attributes["input_bytes"])
	assert.False(t, r.EndTime.Before(r.StartTime))
}

func TestSamplingIsInherited(t *testing.T) {
	tr, buf := newTestTracer(t, 0)

	ctx, root := tr.Start(context.Background(), "root")
	assert.False(t, root.IsRecording())
	assert.True(t, root.Context().IsValid())
	_, child := tr.Start(ctx, "child")
	assert.False(t, child.IsRecording())
	child.End()
	root.End()
	assert.Zero(t, buf.Len())

	// A sampled remote parent overrides the local sampler.
	sc, err := ParseTraceParent("00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	require.NoError(t, err)
	_, span := tr.Start(ContextWithRemoteParent(context.Background(), sc), "server")
	assert.True(t, span.IsRecording())
	span.End()
	got := spans(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "b7ad6b7169203331", got[0].ParentID)
}

func TestRatioSampler(t *testing.T) {
	var low, high TraceID
	high[0] = 0xff
	s := NewRatioSampler(0.5)
	assert.True(t, s.ShouldSample(low))
	assert.False(t, s.ShouldSample(high))
	assert.True(t, NewRatioSampler(3).ShouldSample(high))
	assert.False(t, NewRatioSampler(-1).ShouldSample(low))
}

func TestTraceParent(t *testing.T) {
	const h = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
	sc, err := ParseTraceParent(h)
	require.NoError(t, err)
	assert.True(t, sc.Remote)
	assert.True(t, sc.IsSampled())
	assert.Equal(t, h, FormatTraceParent(sc))

	sc.TraceFlags = 0
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-00", FormatTraceParent(sc))

	for _, bad := range []string{
		"",
		"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331",
		"01-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
		"00-0af7651916cd43dd8448eb211c80319z-b7ad6b7169203331-01",
		"00-00000000000000000000000000000000-b7ad6b7169203331-01",
		"00_0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	} {
		_, err := ParseTraceParent(bad)
		assert.Error(t, err, bad)
	}
}

func TestInjectExtract(t *testing.T) {
	tr, _ := newTestTracer(t, 1)
	ctx, span := tr.Start(context.Background(), "client")
	defer span.End()

	h := http.Header{}
	Inject(ctx, h.Set)
	require.NotEmpty(t, h.Get("traceparent"))

	remote := Extract(context.Background(), h.Get)
	_, server := tr.Start(remote, "server")
	assert.Equal(t, span.Context().TraceID, server.Context().TraceID)
	assert.Equal(t, span.Context().SpanID.String(), server.Data().ParentID)

	// Nothing to inject without a span; a bad header is ignored.
	empty := http.Header{}
	Inject(context.Background(), empty.Set)
	assert.Empty(t, empty.Get("traceparent"))
	empty.Set("traceparent", "garbage")
	assert.Equal(t, context.Background(), Extract(context.Background(), empty.Get))
}

func TestGlobalTracer(t *testing.T) {
	_, span := StartSpan(context.Background(), "disabled")
	assert.Nil(t, span)

	tr, buf := newTestTracer(t, 1)
	SetTracer(tr)
	t.Cleanup(func() { SetTracer(nil) })

	_, span = StartSpan(context.Background(), "enabled")
	span.End()
	require.Len(t, spans(t, buf), 1)
}

func TestFileExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)
	tr, err := NewTracer(Config{Exporter: exp})
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		_, span := tr.Start(context.Background(), name)
		span.End()
	}
	require.NoError(t, tr.Shutdown())
	require.NoError(t, tr.Shutdown())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}
