package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "OK"
	SpanStatusError SpanStatus = "ERROR"
)

// Span times one unit of work: an HTTP request, a bot update or a chart
// render. Spans nest through the context; a child shares its parent's trace.
type Span struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Operation string
	Start     time.Time
	Duration  time.Duration
	Status    SpanStatus
	Error     string

	tags []any
}

type spanContextKey struct{}

func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	span := &Span{
		SpanID:    newID(),
		Operation: operation,
		Start:     time.Now(),
		Status:    SpanStatusOK,
	}

	if parent := GetSpan(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else if requestID := GetRequestID(ctx); requestID != "" {
		span.TraceID = requestID
	} else {
		span.TraceID = newID()
	}

	return context.WithValue(ctx, spanContextKey{}, span), span
}

func GetSpan(ctx context.Context) *Span {
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}

// Finish records the elapsed time. Calling it again is a no-op.
func (s *Span) Finish() {
	if s.Duration == 0 {
		s.Duration = time.Since(s.Start)
	}
}

func (s *Span) SetTag(key string, value any) {
	s.tags = append(s.tags, key, value)
}

func (s *Span) SetError(err error) {
	s.Status = SpanStatusError
	if err != nil {
		s.Error = err.Error()
	}
}

// Attrs flattens the span into slog key/value pairs.
func (s *Span) Attrs() []any {
	attrs := []any{
		"trace_id", s.TraceID,
		"span_id", s.SpanID,
		"operation", s.Operation,
		"status", string(s.Status),
		"duration", s.Duration,
	}
	if s.ParentID != "" {
		attrs = append(attrs, "parent_id", s.ParentID)
	}
	if s.Error != "" {
		attrs = append(attrs, "error", s.Error)
	}
	return append(attrs, s.tags...)
}

func newID() string {
	id := uuid.New()
	return id.String()[:18]
}
