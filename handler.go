package logship

import (
	"context"
	"log/slog"
	"time"
)

// Handler adapts the pipeline to log/slog: every record the host logger
// emits is translated into a pipeline Record and buffered for shipping.
// Handle never performs I/O.
type Handler struct {
	p      *Pipeline
	target string
	level  slog.Leveler
	attrs  []Field
	group  string
}

// NewHandler creates a slog.Handler shipping into p. target names the
// emitting component in the archived records; level filters what ships.
func NewHandler(p *Pipeline, target string, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{p: p, target: target, level: level}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+rec.NumAttrs())
	fields = append(fields, h.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.group, a)
		return true
	})

	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	h.p.Emit(Record{
		Timestamp: ts.UTC(),
		Level:     levelFromSlog(rec.Level),
		Target:    h.target,
		Message:   rec.Message,
		Fields:    fields,
	})
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]Field, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.group, a)
	}
	return &clone
}

// WithGroup implements slog.Handler. Group names become key prefixes.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func appendAttr(fields []Field, group string, a slog.Attr) []Field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return fields
	}

	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			fields = appendAttr(fields, key, ga)
		}
		return fields
	}

	return append(fields, Field{Key: key, Value: a.Value.Any()})
}

func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelDebug:
		return LevelTrace
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// Span measures a unit of work and ships enter/exit/close records with
// elapsed and busy/idle timing, mirroring how traced spans are archived.
// A Span belongs to one goroutine; its methods are not safe for concurrent
// use.
type Span struct {
	p      *Pipeline
	target string
	name   string
	start  time.Time

	enteredAt time.Time // zero while exited
	busy      time.Duration
}

// StartSpan emits an enter record for the named span and returns a handle.
// The span starts busy; Exit/Enter mark handoffs to other work, and End
// emits the close record with the elapsed and busy/idle split.
func (p *Pipeline) StartSpan(target, name string, fields ...Field) *Span {
	s := &Span{p: p, target: target, name: name, start: time.Now()}
	s.enteredAt = s.start
	p.Emit(Record{
		Timestamp: s.start.UTC(),
		Level:     LevelInfo,
		Target:    target,
		Message:   "enter",
		Fields:    fields,
		Span:      &SpanInfo{Name: name},
	})
	return s
}

// Exit marks the span idle and emits an exit record with the busy/idle
// accumulated so far. Exiting an already-exited span only emits the record.
func (s *Span) Exit(fields ...Field) {
	now := time.Now()
	if !s.enteredAt.IsZero() {
		s.busy += now.Sub(s.enteredAt)
		s.enteredAt = time.Time{}
	}
	s.p.Emit(Record{
		Timestamp: now.UTC(),
		Level:     LevelInfo,
		Target:    s.target,
		Message:   "exit",
		Fields:    fields,
		Span:      &SpanInfo{Name: s.name, Busy: s.busy, Idle: now.Sub(s.start) - s.busy},
	})
}

// Enter marks an exited span busy again and emits an enter record.
func (s *Span) Enter(fields ...Field) {
	now := time.Now()
	if s.enteredAt.IsZero() {
		s.enteredAt = now
	}
	s.p.Emit(Record{
		Timestamp: now.UTC(),
		Level:     LevelInfo,
		Target:    s.target,
		Message:   "enter",
		Fields:    fields,
		Span:      &SpanInfo{Name: s.name},
	})
}

// End emits the span's close record with total elapsed time and the
// busy/idle split.
func (s *Span) End(fields ...Field) {
	now := time.Now()
	if !s.enteredAt.IsZero() {
		s.busy += now.Sub(s.enteredAt)
		s.enteredAt = time.Time{}
	}
	elapsed := now.Sub(s.start)
	s.p.Emit(Record{
		Timestamp: now.UTC(),
		Level:     LevelInfo,
		Target:    s.target,
		Message:   "close",
		Fields:    fields,
		Span:      &SpanInfo{Name: s.name, Elapsed: elapsed, Busy: s.busy, Idle: elapsed - s.busy},
	})
}
