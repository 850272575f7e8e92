// Package logbuf keeps a bounded in-memory tail of slog output so the
// API can serve recent log entries without touching the daemon's stdout
// stream.
package logbuf

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   slog.Level     `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer retains the most recent entries, oldest evicted first.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// New creates a buffer holding up to max entries.
func New(max int) *Buffer {
	return &Buffer{max: max}
}

func (b *Buffer) add(e Entry) {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.max {
		// Shift in place; the buffer is small and appends dominate.
		copy(b.entries, b.entries[len(b.entries)-b.max:])
		b.entries = b.entries[:b.max]
	}
	b.mu.Unlock()
}

// Query returns retained entries at or above minLevel and not older
// than since (zero = unbounded), oldest first, keeping at most the last
// limit entries (<=0 = all).
func (b *Buffer) Query(since time.Time, minLevel slog.Level, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Entry
	for _, e := range b.entries {
		if e.Level < minLevel {
			continue
		}
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Handler tees slog records into a Buffer and forwards them to an inner
// handler. The buffer captures every level; the inner handler keeps its
// own filter.
type Handler struct {
	inner slog.Handler
	buf   *Buffer
	attrs []slog.Attr
	group string
}

// NewHandler wraps inner so records also land in buf.
func NewHandler(inner slog.Handler, buf *Buffer) *Handler {
	return &Handler{inner: inner, buf: buf}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = attrValue(a.Value)
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.buf.add(Entry{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})

	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Bind keys under the group active at bind time.
	bound := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		bound[i] = slog.Attr{Key: h.key(a.Key), Value: a.Value}
	}
	return &Handler{
		inner: h.inner.WithAttrs(attrs),
		buf:   h.buf,
		attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], bound...),
		group: h.group,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.group != "" {
		prefix = h.group + "." + name
	}
	return &Handler{
		inner: h.inner.WithGroup(name),
		buf:   h.buf,
		attrs: h.attrs,
		group: prefix,
	}
}

func (h *Handler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// attrValue resolves slog values into JSON-safe types; errors become
// their string form so they don't marshal to {}.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	raw := v.Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}
