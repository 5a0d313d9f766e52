// Package tracing provides lightweight spans that propagate through
// contexts. Spans form parent-child trees and root spans are written to slog
// when they end, subject to the configured sample rate.
package tracing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
)

type contextKey struct{}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	sampled   bool
	root      bool
	logger    *slog.Logger
	mu        sync.Mutex
}

// Tracer starts root spans. A nil or disabled Tracer still hands out spans
// so callers never branch on it; they are simply never logged.
type Tracer struct {
	enabled    bool
	sampleRate float64
	logger     *slog.Logger
}

// NewTracer builds a Tracer from config.
func NewTracer(cfg config.TracingConfig) *Tracer {
	return &Tracer{
		enabled:    cfg.Enabled,
		sampleRate: cfg.SampleRate,
		logger:     slog.Default().With("component", "tracing"),
	}
}

// Start creates a root span and stores it in the returned context.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID)
	span.root = true
	if t != nil && t.enabled && (t.sampleRate >= 1 || rand.Float64() < t.sampleRate) {
		span.sampled = true
		span.logger = t.logger
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a child span linked to the parent in ctx.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := newSpan(name, "")
	if parent != nil {
		child.TraceID = parent.TraceID
		child.sampled = parent.sampled
		child.logger = parent.logger
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// End records the span's end time. Ending a sampled root span logs the tree.
func (s *Span) End() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.root && s.sampled {
		s.logRecursive(0)
	}
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// Sampled reports whether the span will be logged.
func (s *Span) Sampled() bool {
	return s.sampled
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

func (s *Span) logRecursive(depth int) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for _, k := range keys {
		attrs = append(attrs, k, s.Attrs[k])
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	s.logger.Info("span", attrs...)
	for _, child := range children {
		child.logRecursive(depth + 1)
	}
}
