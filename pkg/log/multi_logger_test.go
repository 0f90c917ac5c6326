package log

import (
	"sync"
	"testing"
	"time"
)

// recordingLogger collects logged events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	multi := NewMultiLogger(a, b)

	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Category:     CategoryCommand,
	}
	multi.Log(event)

	if a.count() != 1 {
		t.Errorf("first logger: got %d events, want 1", a.count())
	}
	if b.count() != 1 {
		t.Errorf("second logger: got %d events, want 1", b.count())
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	multi := NewMultiLogger()

	// Should not panic with no loggers
	multi.Log(Event{Timestamp: time.Now(), ConnectionID: "conn-1"})
}

func TestMultiLoggerWithNoop(t *testing.T) {
	rec := &recordingLogger{}
	multi := NewMultiLogger(NoopLogger{}, rec)

	multi.Log(Event{Timestamp: time.Now(), ConnectionID: "conn-1"})

	if rec.count() != 1 {
		t.Errorf("recording logger: got %d events, want 1", rec.count())
	}
}
