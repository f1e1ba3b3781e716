package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
)

// handler is the slog.Handler behind every BaseLogger. It renders records
// with the logger's formatter and fans them out to its outputs.
type handler struct {
	sink    *BaseLogger
	attrs   []slog.Attr
	redact  map[string]bool
	sampler *sampler
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return levelFromSlog(level) >= h.sink.level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	if h.sampler != nil && !h.sampler.allow(r.Level, r.Message) {
		return nil
	}
	fields := make(Fields, len(h.attrs)+r.NumAttrs())
	set := func(a slog.Attr) bool {
		if h.redact[a.Key] {
			fields[a.Key] = "[REDACTED]"
		} else {
			fields[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		set(a)
	}
	r.Attrs(set)

	entry := &Entry{
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
		Caller:    callerOf(r.PC),
	}
	b, err := h.sink.formatter.Format(entry)
	if err != nil {
		return err
	}
	var first error
	for _, out := range h.sink.outputs {
		if err := out.Write(entry, b); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler { return h.withAttrs(attrs) }

// WithGroup is accepted but fields stay flat.
func (h *handler) WithGroup(string) slog.Handler { return h }

func (h *handler) withAttrs(attrs []slog.Attr) *handler {
	nh := *h
	nh.attrs = append(append(make([]slog.Attr, 0, len(h.attrs)+len(attrs)), h.attrs...), attrs...)
	return &nh
}

func callerOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return ""
	}
	return f.File + ":" + strconv.Itoa(f.Line)
}

// sampler passes the first `initial` records of each level and message, then
// one in every `every`.
type sampler struct {
	initial, every uint64

	mu   sync.Mutex
	seen map[string]uint64
}

func newSampler(initial, every int) *sampler {
	s := &sampler{seen: make(map[string]uint64), every: 1}
	if initial > 0 {
		s.initial = uint64(initial)
	}
	if every > 0 {
		s.every = uint64(every)
	}
	return s
}

func (s *sampler) allow(level slog.Level, msg string) bool {
	key := level.String() + "|" + msg
	s.mu.Lock()
	n := s.seen[key]
	s.seen[key] = n + 1
	s.mu.Unlock()
	return n < s.initial || (n-s.initial)%s.every == 0
}

const slogFatal = slog.LevelError + 4

func slogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return slogFatal
	}
	return slog.LevelInfo
}

func levelFromSlog(level slog.Level) Level {
	switch {
	case level >= slogFatal:
		return FatalLevel
	case level >= slog.LevelError:
		return ErrorLevel
	case level >= slog.LevelWarn:
		return WarnLevel
	case level >= slog.LevelInfo:
		return InfoLevel
	}
	return DebugLevel
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

// pairsToAttrs reads k1, v1, k2, v2... A non-string key or a dangling value is
// kept under "argN".
func pairsToAttrs(args []interface{}) []slog.Attr {
	var attrs []slog.Attr
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			attrs = append(attrs, slog.Any("arg"+strconv.Itoa(i), args[i]))
			i--
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
