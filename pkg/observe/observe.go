// Package observe records lifecycle events of the wallet core. Recording is
// fire-and-forget: callers never depend on its outcome.
package observe

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Recorder receives named events with free-form details.
type Recorder interface {
	Record(event string, details map[string]any)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(event string, details map[string]any)

func (f RecorderFunc) Record(event string, details map[string]any) { f(event, details) }

// Nop returns a Recorder that discards everything.
func Nop() Recorder {
	return RecorderFunc(func(string, map[string]any) {})
}

type logRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder returns a Recorder that writes every event as a structured
// info log line.
func NewLogRecorder(logger *zap.Logger) Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logRecorder{logger: logger.Named("observe")}
}

func (r *logRecorder) Record(event string, details map[string]any) {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("event", event))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, details[k]))
	}
	r.logger.Info("wallet event", fields...)
}

// Event is a captured Record call.
type Event struct {
	Name    string         `json:"name"`
	Details map[string]any `json:"details,omitempty"`
}

// Memory keeps recorded events, for tests and diagnostics endpoints. With a
// positive Limit only the most recent Limit events are kept.
type Memory struct {
	Limit int

	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(event string, details map[string]any) {
	cp := make(map[string]any, len(details))
	for k, v := range details {
		cp[k] = v
	}
	m.mu.Lock()
	m.events = append(m.events, Event{Name: event, Details: cp})
	if m.Limit > 0 && len(m.events) > m.Limit {
		m.events = append(m.events[:0], m.events[len(m.events)-m.Limit:]...)
	}
	m.mu.Unlock()
}

// Events returns a copy of the recorded events in order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Names returns the recorded event names in order.
func (m *Memory) Names() []string {
	events := m.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

// Multi fans an event out to several recorders.
func Multi(recorders ...Recorder) Recorder {
	return RecorderFunc(func(event string, details map[string]any) {
		for _, r := range recorders {
			if r != nil {
				r.Record(event, details)
			}
		}
	})
}
