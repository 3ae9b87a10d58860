package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is a structured security-event record. ActorID is "unknown" when
// the flow failed before an account could be resolved.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Outcome   string            `json:"outcome"` // "success" or "failure"
	ActorID   string            `json:"actor_id"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuditSink receives AuditEvent values from the service's audit dispatcher.
// Record is fire-and-forget: the service never inspects its behavior and a
// panicking or slow sink must not block authentication flows (events are
// delivered from a dedicated goroutine).
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

// NoOpSink silently discards all events.
type NoOpSink struct{}

// Record implements AuditSink.
func (NoOpSink) Record(context.Context, AuditEvent) {}

// ChannelSink is a buffered channel-based AuditSink, useful for tests and for
// bridging into an external audit pipeline.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Record implements AuditSink.
func (s *ChannelSink) Record(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON-encoded event per line to an io.Writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Record implements AuditSink.
func (s *JSONWriterSink) Record(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
