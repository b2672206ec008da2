package eventlog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ixugo/goddd/pkg/orm"
)

type countingStore struct {
	schemaCalls int
	addCalls    int
	failAdd     bool
	added       []*Event
}

func (s *countingStore) EnsureSchema(context.Context) error {
	s.schemaCalls++
	return nil
}

func (s *countingStore) Add(_ context.Context, ev *Event) error {
	s.addCalls++
	if s.failAdd {
		return errors.New("disk full")
	}
	s.added = append(s.added, ev)
	return nil
}

func (s *countingStore) Find(context.Context, *[]*Event, orm.Pager, ...orm.QueryOption) (int64, error) {
	return 0, nil
}

func TestBufferBoundAndOrder(t *testing.T) {
	c := NewCore(nil)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		c.Record(ctx, LevelInfo, fmt.Sprintf("event %d", i))
	}

	all := c.Recent(0)
	if len(all) != maxBuffered {
		t.Fatalf("buffer length %d, want %d", len(all), maxBuffered)
	}
	if all[0].Message != "event 149" {
		t.Fatalf("newest-first order broken, head is %q", all[0].Message)
	}
	if all[len(all)-1].Message != "event 50" {
		t.Fatalf("oldest retained entry is %q, want event 50", all[len(all)-1].Message)
	}

	if got := c.Recent(5); len(got) != 5 || got[4].Message != "event 145" {
		t.Fatalf("Recent(5) returned %d entries ending with %q", len(got), got[len(got)-1].Message)
	}
}

func TestRecordOptions(t *testing.T) {
	c := NewCore(nil)
	c.Record(context.Background(), LevelDetection, "Knife detected @10:00:00 AM",
		WithSource("cam0"), WithClip("detected_clips/Knife_01-01-26_10-00-00.mp4"))

	ev := c.Recent(1)[0]
	if ev.VideoSource != "cam0" || ev.ClipPath == "" {
		t.Fatalf("correlation fields not applied: %+v", ev)
	}
}

func TestDurableFailureKeepsBuffer(t *testing.T) {
	store := &countingStore{failAdd: true}
	c := NewCore(store)
	ctx := context.Background()

	c.Record(ctx, LevelError, "first")
	c.Record(ctx, LevelError, "second")

	if got := len(c.Recent(0)); got != 2 {
		t.Fatalf("buffer holds %d events, want 2", got)
	}
	// Each failed event is attempted exactly once, never retried.
	if store.addCalls != 2 {
		t.Fatalf("Add called %d times, want 2", store.addCalls)
	}
	// The schema is re-checked after a failed write: one warm-up call at
	// construction plus one before the second event.
	if store.schemaCalls != 2 {
		t.Fatalf("EnsureSchema called %d times, want 2", store.schemaCalls)
	}
}

func TestDurablePathRecords(t *testing.T) {
	store := &countingStore{}
	c := NewCore(store)

	c.Record(context.Background(), LevelSystem, "Webcam feed initiated.")

	if len(store.added) != 1 {
		t.Fatalf("expected 1 durable row, got %d", len(store.added))
	}
	if store.added[0].Level != LevelSystem {
		t.Fatalf("unexpected level %q", store.added[0].Level)
	}
	// Only the construction warm-up call on the happy path.
	if store.schemaCalls != 1 {
		t.Fatalf("EnsureSchema called %d times, want 1", store.schemaCalls)
	}
}

func TestInferLevel(t *testing.T) {
	cases := []struct {
		msg  string
		want Level
	}{
		{"Error opening video source.", LevelError},
		{"Knife detected @11:22:33 AM", LevelDetection},
		{"REC Start: Knife_01-01-26_11-22-33.mp4", LevelRecording},
		{"REC Stop: Knife_01-01-26_11-22-40.mp4", LevelRecording},
		{"Sample 'gun.mp4' selected.", LevelSystem},
		{"User stopped processing.", LevelUser},
		{"operator note, camera cleaned", LevelInfo},
	}
	for _, tc := range cases {
		if got := InferLevel(tc.msg); got != tc.want {
			t.Errorf("InferLevel(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}
