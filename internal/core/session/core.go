// Package session drives the per-frame processing loop: it owns which video
// source is active, advances the recorder across frames and guarantees that
// any in-progress recording is finalized on every exit path.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ixugo/goddd/pkg/reason"

	"github.com/kestrelcv/kestrel/internal/conf"
	"github.com/kestrelcv/kestrel/internal/core/eventlog"
	"github.com/kestrelcv/kestrel/internal/core/recording"
	"github.com/kestrelcv/kestrel/internal/core/vision"
	"github.com/kestrelcv/kestrel/internal/media"
)

// SourceKind selects how the identifier is interpreted.
type SourceKind string

const (
	KindWebcam SourceKind = "webcam" // identifier: device index, default 0
	KindFile   SourceKind = "file"   // identifier: video file path
	KindSample SourceKind = "sample" // identifier: configured sample name
)

// StartInput describes one session request.
type StartInput struct {
	Kind       SourceKind `json:"kind"`
	Identifier string     `json:"identifier"`
	// TempFile marks an uploaded file that must be unlinked when the
	// session ends.
	TempFile bool `json:"-"`
}

// Core is the session controller. At most one session is active at a time,
// a second Start while one runs is rejected, never interleaved.
type Core struct {
	events   *eventlog.Core
	recorder *recording.Recorder
	weapon   vision.Detector
	general  vision.Detector
	opener   media.Opener
	samples  map[string]string
	preview  *Preview

	inferTimeout time.Duration

	mu       sync.Mutex
	active   bool
	stopping bool
	id       string
	kind     SourceKind
	source   string // display/audit name: "webcam" or file base name
	tempPath string
}

func NewCore(cfg *conf.Bootstrap, events *eventlog.Core, rec *recording.Recorder,
	weapon, general vision.Detector, opener media.Opener, preview *Preview,
) *Core {
	return &Core{
		events:       events,
		recorder:     rec,
		weapon:       weapon,
		general:      general,
		opener:       opener,
		samples:      cfg.Source.Samples,
		preview:      preview,
		inferTimeout: cfg.Detect.InferTimeout.Duration(),
	}
}

// Start begins processing a source. It returns once the loop goroutine is
// launched; open failures surface as ERROR events and the session goes idle
// again on its own.
func (s *Core) Start(ctx context.Context, in *StartInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return "", reason.ErrBadRequest.Withf("a session is already active")
	}

	kind, source, target, err := s.resolve(in)
	if err != nil {
		return "", err
	}

	s.active = true
	s.stopping = false
	s.id = uuid.NewString()
	s.kind = kind
	s.source = source
	s.tempPath = ""
	if in.TempFile {
		s.tempPath = in.Identifier
	}

	switch kind {
	case KindWebcam:
		s.events.Record(ctx, eventlog.LevelSystem, "Webcam feed initiated...", eventlog.WithSource(source))
	case KindSample:
		s.events.Record(ctx, eventlog.LevelSystem,
			fmt.Sprintf("Sample '%s' selected.", in.Identifier), eventlog.WithSource(source))
	default:
		s.events.Record(ctx, eventlog.LevelSystem,
			fmt.Sprintf("File '%s' uploaded.", source), eventlog.WithSource(source))
	}

	go s.run(kind, source, target)
	return s.id, nil
}

// resolve maps a StartInput to the concrete open target.
func (s *Core) resolve(in *StartInput) (SourceKind, string, string, error) {
	switch in.Kind {
	case KindWebcam:
		idx := in.Identifier
		if idx == "" {
			idx = "0"
		}
		if _, err := strconv.Atoi(idx); err != nil {
			return "", "", "", reason.ErrBadRequest.Withf("invalid device index %q", in.Identifier)
		}
		return KindWebcam, "webcam", idx, nil
	case KindFile:
		if _, err := os.Stat(in.Identifier); err != nil {
			return "", "", "", reason.ErrBadRequest.Withf("video file not found: %s", in.Identifier)
		}
		return KindFile, filepath.Base(in.Identifier), in.Identifier, nil
	case KindSample:
		path, ok := s.samples[in.Identifier]
		if !ok {
			return "", "", "", reason.ErrBadRequest.Withf("unknown sample %q", in.Identifier)
		}
		if _, err := os.Stat(path); err != nil {
			return "", "", "", reason.ErrBadRequest.Withf("sample missing: %s", path)
		}
		return KindSample, filepath.Base(path), path, nil
	default:
		return "", "", "", reason.ErrBadRequest.Withf("unknown source kind %q", in.Kind)
	}
}

// RequestStop asks the loop to stop at the next frame boundary. In-flight
// inference on the current frame always completes first.
func (s *Core) RequestStop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.stopping {
		return
	}
	s.stopping = true
	s.events.Record(ctx, eventlog.LevelUser, "User stopped processing.", eventlog.WithSource(s.source))
}

func (s *Core) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Core) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// StatusOutput is the presentation-boundary snapshot of the session.
type StatusOutput struct {
	Active      bool       `json:"active"`
	SessionID   string     `json:"session_id,omitempty"`
	Kind        SourceKind `json:"kind,omitempty"`
	VideoSource string     `json:"video_source,omitempty"`
	Recording   bool       `json:"recording"`
	ClipPath    string     `json:"clip_path,omitempty"`
}

func (s *Core) Status() StatusOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StatusOutput{Active: s.active}
	if s.active {
		out.SessionID = s.id
		out.Kind = s.kind
		out.VideoSource = s.source
		// The recorder publishes its clip state under its own lock; this is
		// a point-in-time snapshot of the running loop.
		out.Recording = s.recorder.Recording()
		out.ClipPath = s.recorder.ClipPath()
	}
	return out
}

// finish clears session state after the loop exits. The temp upload file is
// removed here so a crashed loop cannot leave it behind.
func (s *Core) finish(ctx context.Context) {
	s.mu.Lock()
	temp := s.tempPath
	source := s.source
	s.active = false
	s.stopping = false
	s.tempPath = ""
	s.mu.Unlock()

	if temp != "" {
		switch err := os.Remove(temp); {
		case err == nil:
			s.events.Record(ctx, eventlog.LevelSystem,
				"Temp file deleted: "+filepath.Base(temp), eventlog.WithSource(source))
		case os.IsNotExist(err):
			// already gone, nothing to report
		default:
			s.events.Record(ctx, eventlog.LevelError,
				fmt.Sprintf("Error deleting temp file: %v", err), eventlog.WithSource(source))
		}
	}
	slog.Info("session finished", "source", source)
}
