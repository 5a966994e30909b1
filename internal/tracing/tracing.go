// Package tracing records spans for classifications, API requests and
// teacher calls and writes them as JSON lines.
//
// The model follows OpenTelemetry: a trace is a tree of spans sharing a
// TraceID, spans carry attributes and events, and trace context crosses
// process boundaries in the W3C traceparent header. A process-wide tracer
// is installed with SetTracer; until then every span is a cheap no-op.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// TraceID identifies a trace.
type TraceID [16]byte

func (t TraceID) String() string { return hex.EncodeToString(t[:]) }

// IsValid reports whether the ID is non-zero.
func (t TraceID) IsValid() bool { return t != TraceID{} }

// SpanID identifies a span within a trace.
type SpanID [8]byte

func (s SpanID) String() string { return hex.EncodeToString(s[:]) }

// IsValid reports whether the ID is non-zero.
func (s SpanID) IsValid() bool { return s != SpanID{} }

// SpanKind describes the span's role.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	default:
		return "internal"
	}
}

// StatusCode is the outcome of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Attribute is a key/value pair.
type Attribute struct {
	Key   string
	Value any
}

// Attr builds an Attribute.
func Attr(key string, value any) Attribute {
	return Attribute{Key: key, Value: value}
}

// Event is a timestamped annotation on a span.
type Event struct {
	Name       string
	Timestamp  time.Time
	Attributes []Attribute
}

// SpanContext is the part of a span that propagates.
type SpanContext struct {
	TraceID    TraceID
	SpanID     SpanID
	TraceFlags byte
	Remote     bool
}

// IsValid reports whether both IDs are set.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// IsSampled reports whether the sampled flag is set.
func (sc SpanContext) IsSampled() bool {
	return sc.TraceFlags&0x01 != 0
}

// Span is one timed operation. All methods are safe on a nil Span.
type Span struct {
	mu         sync.Mutex
	tracer     *Tracer
	name       string
	context    SpanContext
	parent     SpanContext
	kind       SpanKind
	startTime  time.Time
	endTime    time.Time
	attributes []Attribute
	events     []Event
	status     StatusCode
	statusMsg  string
	ended      atomic.Bool
}

// Context returns the span's propagation context.
func (s *Span) Context() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return s.context
}

// IsRecording reports whether the span will be exported.
func (s *Span) IsRecording() bool {
	return s != nil && s.tracer != nil && s.context.IsSampled()
}

// SetAttributes adds attributes to the span.
func (s *Span) SetAttributes(attrs ...Attribute) {
	if !s.IsRecording() {
		return
	}
	s.mu.Lock()
	s.attributes = append(s.attributes, attrs...)
	s.mu.Unlock()
}

// AddEvent records a named event.
func (s *Span) AddEvent(name string, attrs ...Attribute) {
	if !s.IsRecording() {
		return
	}
	s.mu.Lock()
	s.events = append(s.events, Event{Name: name, Timestamp: time.Now(), Attributes: attrs})
	s.mu.Unlock()
}

// SetStatus sets the outcome.
func (s *Span) SetStatus(code StatusCode, message string) {
	if !s.IsRecording() {
		return
	}
	s.mu.Lock()
	s.status = code
	s.statusMsg = message
	s.mu.Unlock()
}

// RecordError adds an exception event and marks the span failed.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.AddEvent("exception",
		Attr("exception.type", fmt.Sprintf("%T", err)),
		Attr("exception.message", err.Error()),
	)
	s.SetStatus(StatusError, err.Error())
}

// End finishes the span and exports it. Later calls do nothing.
func (s *Span) End() {
	if s == nil || s.ended.Swap(true) {
		return
	}
	s.mu.Lock()
	s.endTime = time.Now()
	s.mu.Unlock()
	if s.IsRecording() {
		s.tracer.exporter.ExportSpan(s.Data())
	}
}

// SpanData is the exported form of a span.
type SpanData struct {
	Name       string         `json:"name"`
	Service    string         `json:"service,omitempty"`
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Kind       string         `json:"kind"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Duration   time.Duration  `json:"duration_ns"`
	Status     string         `json:"status"`
	StatusMsg  string         `json:"status_message,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []EventData    `json:"events,omitempty"`
}

// EventData is the exported form of an event.
type EventData struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func attrMap(attrs []Attribute) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

// Data returns a snapshot of the span.
func (s *Span) Data() SpanData {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]EventData, len(s.events))
	for i, e := range s.events {
		events[i] = EventData{Name: e.Name, Timestamp: e.Timestamp, Attributes: attrMap(e.Attributes)}
	}
	var parentID string
	if s.parent.SpanID.IsValid() {
		parentID = s.parent.SpanID.String()
	}
	var service string
	if s.tracer != nil {
		service = s.tracer.serviceName
	}
	return SpanData{
		Name:       s.name,
		Service:    service,
		TraceID:    s.context.TraceID.String(),
		SpanID:     s.context.SpanID.String(),
		ParentID:   parentID,
		Kind:       s.kind.String(),
		StartTime:  s.startTime,
		EndTime:    s.endTime,
		Duration:   s.endTime.Sub(s.startTime),
		Status:     s.status.String(),
		StatusMsg:  s.statusMsg,
		Attributes: attrMap(s.attributes),
		Events:     events,
	}
}

// Exporter receives finished spans.
type Exporter interface {
	ExportSpan(SpanData)
	Shutdown() error
}

// WriterExporter writes one JSON object per span.
type WriterExporter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewWriterExporter exports to w. It does not close w.
func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{enc: json.NewEncoder(w)}
}

// NewFileExporter appends spans to the file at path.
func NewFileExporter(path string) (*WriterExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &WriterExporter{enc: json.NewEncoder(f), closer: f}, nil
}

// ExportSpan writes the span.
func (e *WriterExporter) ExportSpan(d SpanData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enc.Encode(d)
}

// Shutdown closes the underlying file, if any.
func (e *WriterExporter) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closer == nil {
		return nil
	}
	err := e.closer.Close()
	e.closer = nil
	return err
}

// Sampler decides whether a new trace is recorded.
type Sampler interface {
	ShouldSample(traceID TraceID) bool
}

// RatioSampler records a fixed fraction of traces, chosen by trace ID so
// every process makes the same decision.
type RatioSampler struct {
	threshold uint64
	all       bool
}

// NewRatioSampler clamps ratio to [0, 1].
func NewRatioSampler(ratio float64) *RatioSampler {
	switch {
	case ratio >= 1:
		return &RatioSampler{all: true}
	case ratio <= 0:
		return &RatioSampler{}
	}
	return &RatioSampler{threshold: uint64(ratio * float64(^uint64(0)))}
}

// ShouldSample compares the leading trace ID bytes with the ratio.
func (s *RatioSampler) ShouldSample(traceID TraceID) bool {
	if s.all {
		return true
	}
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(traceID[i])
	}
	return h < s.threshold
}

// Config configures a Tracer.
type Config struct {
	ServiceName string
	Exporter    Exporter
	Sampler     Sampler
}

// Tracer creates spans. A nil Tracer creates no-op spans.
type Tracer struct {
	serviceName string
	exporter    Exporter
	sampler     Sampler
}

// NewTracer creates a tracer. An exporter is required.
func NewTracer(cfg Config) (*Tracer, error) {
	if cfg.Exporter == nil {
		return nil, errors.New("tracing: exporter is required")
	}
	if cfg.Sampler == nil {
		cfg.Sampler = NewRatioSampler(1)
	}
	return &Tracer{serviceName: cfg.ServiceName, exporter: cfg.Exporter, sampler: cfg.Sampler}, nil
}

// Start begins a span as a child of the span or remote parent in ctx.
// Children inherit the parent's sampling decision.
func (t *Tracer) Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	if t == nil {
		return ctx, nil
	}
	parent := parentContext(ctx)

	span := &Span{tracer: t, name: name, parent: parent, startTime: time.Now()}
	if parent.TraceID.IsValid() {
		span.context.TraceID = parent.TraceID
		span.context.TraceFlags = parent.TraceFlags
	} else {
		rand.Read(span.context.TraceID[:])
		if t.sampler.ShouldSample(span.context.TraceID) {
			span.context.TraceFlags = 0x01
		}
	}
	rand.Read(span.context.SpanID[:])

	for _, opt := range opts {
		opt(span)
	}
	return context.WithValue(ctx, spanKey{}, span), span
}

// Shutdown flushes and closes the exporter.
func (t *Tracer) Shutdown() error {
	if t == nil {
		return nil
	}
	return t.exporter.Shutdown()
}

// SpanOption configures a span at start.
type SpanOption func(*Span)

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(s *Span) { s.kind = kind }
}

// WithAttributes sets initial attributes.
func WithAttributes(attrs ...Attribute) SpanOption {
	return func(s *Span) { s.attributes = append(s.attributes, attrs...) }
}

type (
	spanKey   struct{}
	remoteKey struct{}
)

// SpanFromContext returns the current span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// ContextWithRemoteParent makes sc the parent of the next span started
// from the returned context.
func ContextWithRemoteParent(ctx context.Context, sc SpanContext) context.Context {
	if !sc.IsValid() {
		return ctx
	}
	sc.Remote = true
	return context.WithValue(ctx, remoteKey{}, sc)
}

func parentContext(ctx context.Context) SpanContext {
	if s := SpanFromContext(ctx); s != nil {
		return s.Context()
	}
	sc, _ := ctx.Value(remoteKey{}).(SpanContext)
	return sc
}

var global atomic.Pointer[Tracer]

// SetTracer installs the process-wide tracer. Nil disables tracing.
func SetTracer(t *Tracer) {
	global.Store(t)
}

// GetTracer returns the process-wide tracer, which may be nil.
func GetTracer() *Tracer {
	return global.Load()
}

// StartSpan starts a span with the process-wide tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	return GetTracer().Start(ctx, name, opts...)
}

// ParseTraceParent parses a version 00 W3C traceparent header, e.g.
// 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01.
func ParseTraceParent(header string) (SpanContext, error) {
	if len(header) != 55 || header[2] != '-' || header[35] != '-' || header[52] != '-' {
		return SpanContext{}, errors.New("tracing: malformed traceparent")
	}
	if header[0:2] != "00" {
		return SpanContext{}, fmt.Errorf("tracing: unsupported traceparent version %s", header[0:2])
	}

	var sc SpanContext
	if _, err := hex.Decode(sc.TraceID[:], []byte(header[3:35])); err != nil {
		return SpanContext{}, fmt.Errorf("tracing: trace id: %w", err)
	}
	if _, err := hex.Decode(sc.SpanID[:], []byte(header[36:52])); err != nil {
		return SpanContext{}, fmt.Errorf("tracing: parent id: %w", err)
	}
	var flags [1]byte
	if _, err := hex.Decode(flags[:], []byte(header[53:55])); err != nil {
		return SpanContext{}, fmt.Errorf("tracing: flags: %w", err)
	}
	sc.TraceFlags = flags[0]
	if !sc.IsValid() {
		return SpanContext{}, errors.New("tracing: all-zero trace or parent id")
	}
	sc.Remote = true
	return sc, nil
}

// FormatTraceParent formats sc as a traceparent header.
func FormatTraceParent(sc SpanContext) string {
	return fmt.Sprintf("00-%s-%s-%02x", sc.TraceID, sc.SpanID, sc.TraceFlags&0x01)
}

// Inject sets traceparent from the current span in ctx.
func Inject(ctx context.Context, set func(key, value string)) {
	if sc := SpanFromContext(ctx).Context(); sc.IsValid() {
		set("traceparent", FormatTraceParent(sc))
	}
}

// Extract returns ctx carrying the remote parent named by the traceparent
// header. A missing or malformed header leaves ctx unchanged.
func Extract(ctx context.Context, get func(key string) string) context.Context {
	sc, err := ParseTraceParent(get("traceparent"))
	if err != nil {
		return ctx
	}
	return ContextWithRemoteParent(ctx, sc)
}
