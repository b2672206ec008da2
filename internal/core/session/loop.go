package session

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/kestrelcv/kestrel/internal/core/eventlog"
	"github.com/kestrelcv/kestrel/internal/core/vision"
	"github.com/kestrelcv/kestrel/internal/media"
)

// run is the frame loop. Everything inside one iteration is sequential:
// read, dual inference, recorder update, annotate, preview publish, stop
// check. Cancellation is frame-granular.
func (s *Core) run(kind SourceKind, source, target string) {
	ctx := context.Background()
	defer s.finish(ctx)

	src, err := s.openSource(kind, target)
	if err != nil {
		s.events.Record(ctx, eventlog.LevelError, "Error opening video source.", eventlog.WithSource(source))
		return
	}
	defer src.Close()

	s.recorder.Bind(source, src.Info())
	s.events.Record(ctx, eventlog.LevelInfo, "Video source opened.", eventlog.WithSource(source))

	// Guaranteed finalize: runs whether the loop ends by stream end, stop
	// request or an internal abort. Idempotent, a normally closed clip
	// makes this a no-op. Registered after the loop-ended event so any
	// forced-finalize RECORDING_EVENT is logged before it.
	defer s.events.Record(ctx, eventlog.LevelInfo, "Processing loop ended.", eventlog.WithSource(source))
	defer s.recorder.Finalize(ctx)

	frame := gocv.NewMat()
	frameLeaked := false
	defer func() {
		if !frameLeaked {
			frame.Close()
		}
	}()

	for !s.stopRequested() {
		if !src.Read(&frame) {
			s.events.Record(ctx, eventlog.LevelInfo, "End of video or stream error.", eventlog.WithSource(source))
			return
		}
		if frame.Empty() {
			continue
		}

		weapons, err := s.infer(s.weapon, frame)
		if err != nil {
			s.events.Record(ctx, eventlog.LevelError,
				fmt.Sprintf("Weapon model error: %v", err), eventlog.WithSource(source))
			frameLeaked = isTimeout(err)
			return
		}
		objects, err := s.infer(s.general, frame)
		if err != nil {
			s.events.Record(ctx, eventlog.LevelError,
				fmt.Sprintf("Object model error: %v", err), eventlog.WithSource(source))
			frameLeaked = isTimeout(err)
			return
		}

		// The recorder receives the raw frame, annotation happens on a clone
		// afterwards so overlays never reach the clip.
		if _, err := s.recorder.Update(ctx, frame, weapons); err != nil {
			// ERROR event already emitted; abort the session cleanly.
			return
		}

		s.publishPreview(frame, weapons, objects)
	}
}

func (s *Core) openSource(kind SourceKind, target string) (media.Source, error) {
	if kind == KindWebcam {
		idx := 0
		fmt.Sscanf(target, "%d", &idx)
		return s.opener.OpenDevice(idx)
	}
	return s.opener.OpenFile(target)
}

type inferResult struct {
	dets []vision.Detection
	err  error
}

type timeoutError struct{ budget time.Duration }

func (e timeoutError) Error() string {
	return fmt.Sprintf("inference exceeded %s budget", e.budget)
}

func isTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}

// infer bounds one model call with the configured budget so a hung model
// cannot wedge the controller. On timeout the session aborts; the stuck
// goroutine (and the frame Mat it still references) is abandoned rather
// than freed under it.
func (s *Core) infer(d vision.Detector, frame gocv.Mat) ([]vision.Detection, error) {
	if s.inferTimeout <= 0 {
		return d.Infer(frame)
	}

	ch := make(chan inferResult, 1)
	go func() {
		dets, err := d.Infer(frame)
		ch <- inferResult{dets: dets, err: err}
	}()

	t := time.NewTimer(s.inferTimeout)
	defer t.Stop()
	select {
	case r := <-ch:
		return r.dets, r.err
	case <-t.C:
		return nil, timeoutError{budget: s.inferTimeout}
	}
}

func (s *Core) publishPreview(frame gocv.Mat, weapons, objects []vision.Detection) {
	if s.preview == nil {
		return
	}
	annotated := vision.Annotate(frame, weapons, objects)
	defer annotated.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		return
	}
	defer buf.Close()
	s.preview.Publish(buf.GetBytes())
}
