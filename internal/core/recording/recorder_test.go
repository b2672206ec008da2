package recording

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ixugo/goddd/pkg/orm"
	"gocv.io/x/gocv"

	"github.com/kestrelcv/kestrel/internal/core/eventlog"
	"github.com/kestrelcv/kestrel/internal/core/vision"
	"github.com/kestrelcv/kestrel/internal/media"
)

type fakeWriter struct {
	frames int
	closed int
}

func (w *fakeWriter) Write(gocv.Mat) error { w.frames++; return nil }
func (w *fakeWriter) Close() error         { w.closed++; return nil }

type fakeOpener struct {
	writers []*fakeWriter
	paths   []string
	fps     []float64
	fail    bool
}

func (o *fakeOpener) open(path string, fps float64, width, height int) (media.ClipWriter, error) {
	if o.fail {
		return nil, errors.New("codec failure")
	}
	w := &fakeWriter{}
	o.writers = append(o.writers, w)
	o.paths = append(o.paths, path)
	o.fps = append(o.fps, fps)
	return w, nil
}

type fakeClipStore struct {
	clips []*Clip
}

func (s *fakeClipStore) EnsureSchema(context.Context) error { return nil }
func (s *fakeClipStore) Add(_ context.Context, c *Clip) error {
	s.clips = append(s.clips, c)
	return nil
}
func (s *fakeClipStore) Get(context.Context, *Clip, ...orm.QueryOption) error { return nil }
func (s *fakeClipStore) Del(context.Context, *Clip, ...orm.QueryOption) error { return nil }
func (s *fakeClipStore) Find(context.Context, *[]*Clip, orm.Pager, ...orm.QueryOption) (int64, error) {
	return 0, nil
}

func newTestRecorder(t *testing.T, opener *fakeOpener, cooldown int) (*Recorder, *eventlog.Core, *fakeClipStore) {
	t.Helper()
	events := eventlog.NewCore(nil)
	store := &fakeClipStore{}
	rec := NewRecorder(t.TempDir(), opener.open, events, NewCore(store, nil), cooldown)
	rec.Bind("test.mp4", media.SourceInfo{Width: 64, Height: 48, FPS: 30})
	return rec, events, store
}

func weaponAt(conf float64) []vision.Detection {
	return []vision.Detection{{ClassID: vision.WeaponClassID, Label: "Weapon", Confidence: conf}}
}

func countEvents(events *eventlog.Core, level eventlog.Level, substr string) int {
	n := 0
	for _, e := range events.Recent(0) {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

func TestRecorderClipLifecycle(t *testing.T) {
	opener := &fakeOpener{}
	rec, events, store := newTestRecorder(t, opener, 0)
	ctx := context.Background()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// 10 frames, 3-5 positive.
	for i := 1; i <= 10; i++ {
		var dets []vision.Detection
		if i >= 3 && i <= 5 {
			dets = weaponAt(0.9)
		}
		if _, err := rec.Update(ctx, frame, dets); err != nil {
			t.Fatal(err)
		}
	}

	if rec.Recording() {
		t.Fatal("recorder still recording after negative frame")
	}
	if len(opener.writers) != 1 {
		t.Fatalf("expected exactly one clip writer, got %d", len(opener.writers))
	}
	w := opener.writers[0]
	if w.frames != 3 {
		t.Fatalf("expected 3 frames written, got %d", w.frames)
	}
	if w.closed != 1 {
		t.Fatalf("expected writer closed once, got %d", w.closed)
	}

	if got := countEvents(events, eventlog.LevelRecording, "REC Start"); got != 1 {
		t.Fatalf("expected 1 start event, got %d", got)
	}
	if got := countEvents(events, eventlog.LevelRecording, "REC Stop"); got != 1 {
		t.Fatalf("expected 1 stop event, got %d", got)
	}
	if got := countEvents(events, eventlog.LevelDetection, "detected"); got != 3 {
		t.Fatalf("expected 3 detection events, got %d", got)
	}

	name := filepath.Base(opener.paths[0])
	if !strings.HasPrefix(name, "Weapon_") || !strings.HasSuffix(name, media.ClipExt) {
		t.Fatalf("unexpected clip name %q", name)
	}

	if len(store.clips) != 1 {
		t.Fatalf("expected 1 persisted clip row, got %d", len(store.clips))
	}
	clip := store.clips[0]
	if clip.Frames != 3 || clip.Forced || clip.Label != "Weapon" {
		t.Fatalf("unexpected clip row: %+v", clip)
	}
}

func TestRecorderForcedFinalizeIdempotent(t *testing.T) {
	opener := &fakeOpener{}
	rec, events, store := newTestRecorder(t, opener, 0)
	ctx := context.Background()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if _, err := rec.Update(ctx, frame, weaponAt(0.8)); err != nil {
		t.Fatal(err)
	}
	if !rec.Recording() {
		t.Fatal("expected recorder to be recording")
	}

	rec.Finalize(ctx)
	rec.Finalize(ctx) // must be a no-op

	if opener.writers[0].closed != 1 {
		t.Fatalf("writer closed %d times", opener.writers[0].closed)
	}
	if got := countEvents(events, eventlog.LevelRecording, "Finalized (forced)"); got != 1 {
		t.Fatalf("expected 1 forced finalize event, got %d", got)
	}
	if len(store.clips) != 1 || !store.clips[0].Forced {
		t.Fatalf("expected one forced clip row, got %+v", store.clips)
	}
	if rec.ClipPath() != "" {
		t.Fatal("clip path not cleared after finalize")
	}
}

func TestRecorderWriterOpenFailure(t *testing.T) {
	opener := &fakeOpener{fail: true}
	rec, events, _ := newTestRecorder(t, opener, 0)
	ctx := context.Background()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if _, err := rec.Update(ctx, frame, weaponAt(0.9)); err == nil {
		t.Fatal("expected writer open failure to surface")
	}
	if rec.Recording() {
		t.Fatal("recorder must stay idle after writer open failure")
	}
	if got := countEvents(events, eventlog.LevelError, "Error opening clip writer"); got != 1 {
		t.Fatalf("expected 1 error event, got %d", got)
	}
	if got := countEvents(events, eventlog.LevelRecording, "REC Start"); got != 0 {
		t.Fatalf("expected no start event, got %d", got)
	}
}

func TestRecorderFPSFallback(t *testing.T) {
	opener := &fakeOpener{}
	rec, _, _ := newTestRecorder(t, opener, 0)
	rec.Bind("cam", media.SourceInfo{Width: 64, Height: 48, FPS: 0})

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if _, err := rec.Update(context.Background(), frame, weaponAt(0.7)); err != nil {
		t.Fatal(err)
	}
	if opener.fps[0] != media.DefaultFPS {
		t.Fatalf("expected fallback rate %v, got %v", media.DefaultFPS, opener.fps[0])
	}
}

func TestRecorderCooldown(t *testing.T) {
	opener := &fakeOpener{}
	rec, _, _ := newTestRecorder(t, opener, 2)
	ctx := context.Background()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	steps := []bool{true, false, true, false, false}
	for _, positive := range steps {
		var dets []vision.Detection
		if positive {
			dets = weaponAt(0.9)
		}
		if _, err := rec.Update(ctx, frame, dets); err != nil {
			t.Fatal(err)
		}
	}

	// A lone negative frame must not fragment the clip; two consecutive
	// negatives close it.
	if len(opener.writers) != 1 {
		t.Fatalf("expected a single clip across the cooldown gap, got %d", len(opener.writers))
	}
	if rec.Recording() {
		t.Fatal("expected clip closed after cooldown run")
	}
}

// Exercises Recording/ClipPath from another goroutine while the state
// machine transitions; meaningful under the race detector.
func TestRecorderStatusConcurrentReads(t *testing.T) {
	opener := &fakeOpener{}
	rec, _, _ := newTestRecorder(t, opener, 0)
	ctx := context.Background()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if rec.Recording() && rec.ClipPath() == "" {
				t.Error("recording reported without a clip path")
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		var dets []vision.Detection
		if i%2 == 0 {
			dets = weaponAt(0.9)
		}
		if _, err := rec.Update(ctx, frame, dets); err != nil {
			t.Fatal(err)
		}
	}
	rec.Finalize(ctx)

	close(stop)
	<-done

	if rec.Recording() || rec.ClipPath() != "" {
		t.Fatal("published state not cleared after finalize")
	}
}

func TestConfidenceAtThresholdIsNegative(t *testing.T) {
	opener := &fakeOpener{}
	rec, _, _ := newTestRecorder(t, opener, 0)

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// Exactly 0.5 is not "above threshold".
	if _, err := rec.Update(context.Background(), frame, weaponAt(0.5)); err != nil {
		t.Fatal(err)
	}
	if rec.Recording() {
		t.Fatal("confidence at threshold must not start a recording")
	}
}
