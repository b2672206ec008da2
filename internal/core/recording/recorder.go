package recording

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/kestrelcv/kestrel/internal/core/eventlog"
	"github.com/kestrelcv/kestrel/internal/core/vision"
	"github.com/kestrelcv/kestrel/internal/media"
)

// Recorder is the per-frame recording state machine. It is owned by exactly
// one session loop at a time and is not safe for concurrent use; a pipeline
// that parallelizes inference must still serialize Update calls. The only
// cross-goroutine surface is Recording/ClipPath, which read a published view
// guarded by its own lock.
//
// States are IDLE (writer nil, clipPath empty) and RECORDING (writer open,
// clipPath set). The transitions are driven solely by the per-frame
// positive/negative signal.
type Recorder struct {
	dir      string
	open     media.WriterOpener
	events   *eventlog.Core
	clips    Core
	cooldown int

	// published view for status handlers on other goroutines
	mu         sync.Mutex
	statusOpen bool
	statusPath string

	// session-scoped, set by Bind
	source string
	info   media.SourceInfo
	fps    float64

	// clip-scoped
	writer    media.ClipWriter
	clipPath  string
	label     string
	startedAt time.Time
	frames    int
	negRun    int
}

func NewRecorder(outputDir string, open media.WriterOpener, events *eventlog.Core, clips Core, cooldownFrames int) *Recorder {
	return &Recorder{
		dir:      outputDir,
		open:     open,
		events:   events,
		clips:    clips,
		cooldown: cooldownFrames,
	}
}

// Bind points the recorder at a new session's source. The reported frame
// rate is sanitized here once, every clip of the session reuses it.
func (r *Recorder) Bind(source string, info media.SourceInfo) {
	r.source = source
	r.info = info
	r.fps = media.SanitizeFPS(info.FPS)
}

// Recording reports whether a clip is currently open. Safe to call from any
// goroutine.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusOpen
}

// ClipPath returns the active clip path, empty when idle. Safe to call from
// any goroutine.
func (r *Recorder) ClipPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusPath
}

func (r *Recorder) publish(open bool, path string) {
	r.mu.Lock()
	r.statusOpen = open
	r.statusPath = path
	r.mu.Unlock()
}

// Update advances the state machine by one frame. frame must be the raw,
// unannotated image; overlays are never burned into saved evidence.
//
// The returned error is fatal: it means a writer failed to open on a
// positive frame and the session must abort (the ERROR event has already
// been emitted and no writer is left open). All other outcomes are handled
// internally.
func (r *Recorder) Update(ctx context.Context, frame gocv.Mat, weapons []vision.Detection) (wrote bool, err error) {
	det, positive := vision.FirstWeapon(weapons)
	if !positive {
		if r.writer != nil {
			r.negRun++
			limit := r.cooldown
			if limit <= 0 {
				limit = 1
			}
			if r.negRun >= limit {
				r.finalize(ctx, false)
			}
		}
		return false, nil
	}

	r.negRun = 0
	if r.writer == nil {
		if err := r.startClip(ctx, det); err != nil {
			return false, err
		}
	}

	if err := r.writer.Write(frame); err != nil {
		// A failed append is diagnostic only, the clip stays open and the
		// next positive frame tries again.
		r.events.Record(ctx, eventlog.LevelError,
			fmt.Sprintf("Error writing frame to clip: %v", err),
			eventlog.WithSource(r.source), eventlog.WithClip(r.clipPath))
	} else {
		r.frames++
		wrote = true
	}

	r.events.Record(ctx, eventlog.LevelDetection,
		fmt.Sprintf("%s detected @%s", det.Label, time.Now().Format("03:04:05 PM")),
		eventlog.WithSource(r.source), eventlog.WithClip(r.clipPath))
	return wrote, nil
}

// startClip allocates the clip path from the detection label and the
// wall-clock transition time, then opens the writer.
func (r *Recorder) startClip(ctx context.Context, det vision.Detection) error {
	now := time.Now()
	name := fmt.Sprintf("%s_%s_%s%s",
		sanitizeLabel(det.Label), now.Format("02-01-06"), now.Format("15-04-05"), media.ClipExt)
	path := filepath.Join(r.dir, name)

	w, err := r.open(path, r.fps, r.info.Width, r.info.Height)
	if err != nil {
		r.events.Record(ctx, eventlog.LevelError,
			fmt.Sprintf("Error opening clip writer: %s", path),
			eventlog.WithSource(r.source))
		return fmt.Errorf("open clip writer: %w", err)
	}

	r.writer = w
	r.clipPath = path
	r.label = det.Label
	r.startedAt = now
	r.frames = 0
	r.publish(true, path)

	r.events.Record(ctx, eventlog.LevelRecording, "REC Start: "+name,
		eventlog.WithSource(r.source), eventlog.WithClip(path))
	return nil
}

// Finalize force-closes any open clip, used on stream end, external stop or
// session abort. Safe to call repeatedly, the second call is a no-op.
func (r *Recorder) Finalize(ctx context.Context) {
	r.finalize(ctx, true)
}

func (r *Recorder) finalize(ctx context.Context, forced bool) {
	if r.writer == nil {
		return
	}

	path, name := r.clipPath, filepath.Base(r.clipPath)
	if err := r.writer.Close(); err != nil {
		r.events.Record(ctx, eventlog.LevelError,
			fmt.Sprintf("Error closing clip %s: %v", name, err),
			eventlog.WithSource(r.source), eventlog.WithClip(path))
	}

	msg := "REC Stop: " + name
	if forced {
		msg = "REC Finalized (forced): " + name
	}
	r.events.Record(ctx, eventlog.LevelRecording, msg,
		eventlog.WithSource(r.source), eventlog.WithClip(path))

	r.clips.addFinished(ctx, &addClipInput{
		Label:       r.label,
		Path:        path,
		VideoSource: r.source,
		StartedAt:   r.startedAt,
		EndedAt:     time.Now(),
		Frames:      r.frames,
		FPS:         r.fps,
		Forced:      forced,
	})

	r.writer = nil
	r.clipPath = ""
	r.label = ""
	r.frames = 0
	r.negRun = 0
	r.publish(false, "")
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "Weapon"
	}
	return strings.Map(func(c rune) rune {
		switch c {
		case ' ', '/', '\\', ':':
			return '-'
		}
		return c
	}, label)
}
