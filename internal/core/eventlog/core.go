package eventlog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
)

// maxBuffered bounds the in-memory rolling buffer.
const maxBuffered = 100

// Storer is the durable append-only destination.
type Storer interface {
	// EnsureSchema is an idempotent create-if-not-exists.
	EnsureSchema(context.Context) error
	Add(context.Context, *Event) error
	Find(context.Context, *[]*Event, orm.Pager, ...orm.QueryOption) (int64, error)
}

// Core fans one event out to two sinks: a bounded most-recent-first buffer
// (synchronous, exactly-once) and a durable table (best effort, at most once
// per event). Durable failures never reach the frame loop.
type Core struct {
	mu          sync.Mutex
	buf         []Event
	store       Storer
	schemaReady bool
}

func NewCore(store Storer) *Core {
	c := &Core{store: store}
	if store != nil {
		// Warm the schema up front so the common path is a plain insert.
		// Failure here is fine, the next Record retries.
		if err := store.EnsureSchema(context.Background()); err != nil {
			slog.Warn("event log schema not ready", "err", err)
		} else {
			c.schemaReady = true
		}
	}
	return c
}

// RecordOption attaches optional correlation fields to an event.
type RecordOption func(*Event)

func WithSource(source string) RecordOption {
	return func(e *Event) { e.VideoSource = source }
}

func WithClip(path string) RecordOption {
	return func(e *Event) { e.ClipPath = path }
}

// Record appends the event to the in-memory buffer and then attempts the
// durable insert. It never returns an error: losing one audit row is
// preferable to interrupting detection.
func (c *Core) Record(ctx context.Context, level Level, message string, opts ...RecordOption) {
	ev := Event{
		Timestamp: orm.Now(),
		Level:     level,
		Message:   message,
	}
	for _, opt := range opts {
		opt(&ev)
	}

	c.mu.Lock()
	c.buf = append(c.buf, Event{})
	copy(c.buf[1:], c.buf)
	c.buf[0] = ev
	if len(c.buf) > maxBuffered {
		c.buf = c.buf[:maxBuffered]
	}
	c.mu.Unlock()

	c.persist(ctx, &ev)
}

// persist is the best-effort durable step. A failed insert is surfaced only
// to the diagnostic log, and the schema is re-checked before the next event
// rather than retrying this one.
func (c *Core) persist(ctx context.Context, ev *Event) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	ready := c.schemaReady
	c.mu.Unlock()

	if !ready {
		if err := c.store.EnsureSchema(ctx); err != nil {
			slog.Warn("durable log skipped, schema unavailable", "err", err, "level", ev.Level, "msg", ev.Message)
			return
		}
		c.mu.Lock()
		c.schemaReady = true
		c.mu.Unlock()
	}

	if err := c.store.Add(ctx, ev); err != nil {
		slog.Warn("durable log write failed", "err", err, "level", ev.Level, "msg", ev.Message)
		c.mu.Lock()
		c.schemaReady = false
		c.mu.Unlock()
	}
}

// Recent returns up to limit buffered events, most recent first.
// limit <= 0 returns the whole buffer.
func (c *Core) Recent(limit int) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.buf)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, c.buf[:n])
	return out
}

// FindEvents pages through the durable table.
func (c *Core) FindEvents(ctx context.Context, in *FindEventInput) ([]*Event, int64, error) {
	if c.store == nil {
		return nil, 0, reason.ErrDB.Withf("durable store not configured")
	}

	query := orm.NewQuery(3).OrderBy("timestamp DESC")
	if in.Level != "" {
		query.Where("level = ?", in.Level)
	}
	if in.VideoSource != "" {
		query.Where("video_source = ?", in.VideoSource)
	}
	if in.StartMs > 0 && in.EndMs > 0 {
		query.Where("timestamp >= ? AND timestamp <= ?", in.StartAt(), in.EndAt())
	}

	items := make([]*Event, 0, in.Limit())
	total, err := c.store.Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}
