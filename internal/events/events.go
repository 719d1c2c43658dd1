package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Level classifies an event.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Event is one status line.
type Event struct {
	Time    time.Time
	Level   Level
	Session string
	Message string
}

// String renders the event the way a plain log view shows it.
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// Func adapts a plain function to a Sink.
type Func func(Event)

// Emit calls f.
func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// SlogSink writes each event as one log record.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink returns a sink backed by logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{Logger: logger}
}

// Emit logs the event at the matching slog level, stamped with the event's
// own time.
func (s *SlogSink) Emit(e Event) {
	lvl := slog.LevelInfo
	switch e.Level {
	case LevelWarn:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	}
	ctx := context.Background()
	h := s.Logger.Handler()
	if !h.Enabled(ctx, lvl) {
		return
	}
	t := e.Time
	if t.IsZero() {
		t = time.Now()
	}
	r := slog.NewRecord(t, lvl, e.Message, 0)
	if e.Session != "" {
		r.AddAttrs(slog.String("session", e.Session))
	}
	_ = h.Handle(ctx, r)
}

// Recorder keeps every event in memory, in emission order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns the recorded messages at or above min.
func (r *Recorder) Messages(min Level) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Level >= min {
			out = append(out, e.Message)
		}
	}
	return out
}

// Emitter stamps events with a time and session id before handing them to a
// sink. The zero value discards.
type Emitter struct {
	Sink    Sink
	Session string
	Now     func() time.Time
}

// Emit formats and emits a message at lvl.
func (em Emitter) Emit(lvl Level, format string, args ...any) {
	if em.Sink == nil {
		return
	}
	now := time.Now
	if em.Now != nil {
		now = em.Now
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	em.Sink.Emit(Event{Time: now(), Level: lvl, Session: em.Session, Message: msg})
}

// Info emits at LevelInfo.
func (em Emitter) Info(format string, args ...any) { em.Emit(LevelInfo, format, args...) }

// Warn emits at LevelWarn.
func (em Emitter) Warn(format string, args ...any) { em.Emit(LevelWarn, format, args...) }

// Error emits at LevelError.
func (em Emitter) Error(format string, args ...any) { em.Emit(LevelError, format, args...) }
