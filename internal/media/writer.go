package media

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultFPS is the writer frame rate used when the source reports an
// unusable one. Device and container metadata are unreliable, 0 and absurd
// values show up in the wild.
const DefaultFPS = 20.0

// ClipExt is the container extension of recorded clips.
const ClipExt = ".mp4"

const clipCodec = "mp4v"

// SanitizeFPS clamps a reported frame rate to something a writer accepts.
func SanitizeFPS(fps float64) float64 {
	if fps <= 0 || fps > 120 {
		return DefaultFPS
	}
	return fps
}

// ClipWriter appends raw frames to one output clip. An implementation is
// exclusively owned by the recorder for the duration of a clip.
type ClipWriter interface {
	Write(frame gocv.Mat) error
	Close() error
}

// WriterOpener opens a clip writer for the given geometry. fps must already
// be sanitized by the caller.
type WriterOpener func(path string, fps float64, width, height int) (ClipWriter, error)

// OpenClipWriter is the production gocv WriterOpener.
func OpenClipWriter(path string, fps float64, width, height int) (ClipWriter, error) {
	w, err := gocv.VideoWriterFile(path, clipCodec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open clip writer %s: %w", path, err)
	}
	if !w.IsOpened() {
		_ = w.Close()
		return nil, fmt.Errorf("clip writer did not open: %s", path)
	}
	return w, nil
}
