package media

import (
	"fmt"

	"gocv.io/x/gocv"
)

// SourceInfo reports stream geometry as the device or container declares it.
// FPS in particular may be zero or nonsense, callers must sanitize it before
// handing it to a writer.
type SourceInfo struct {
	Width  int
	Height int
	FPS    float64
}

// Source is one open video stream. Read returns false at end of stream.
// Close must be safe to call even if the source never opened successfully.
type Source interface {
	Read(frame *gocv.Mat) bool
	Info() SourceInfo
	Close() error
}

// Opener opens sources by device index or by path. It exists so the session
// loop can be exercised with fakes.
type Opener interface {
	OpenDevice(index int) (Source, error)
	OpenFile(path string) (Source, error)
}

// CaptureOpener opens real gocv captures.
type CaptureOpener struct{}

func (CaptureOpener) OpenDevice(index int) (Source, error) {
	cap, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %w", index, err)
	}
	return newCaptureSource(cap)
}

func (CaptureOpener) OpenFile(path string) (Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return newCaptureSource(cap)
}

type captureSource struct {
	cap  *gocv.VideoCapture
	info SourceInfo
}

func newCaptureSource(cap *gocv.VideoCapture) (*captureSource, error) {
	if !cap.IsOpened() {
		_ = cap.Close()
		return nil, fmt.Errorf("video source did not open")
	}
	return &captureSource{
		cap: cap,
		info: SourceInfo{
			Width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    cap.Get(gocv.VideoCaptureFPS),
		},
	}, nil
}

func (s *captureSource) Read(frame *gocv.Mat) bool { return s.cap.Read(frame) }

func (s *captureSource) Info() SourceInfo { return s.info }

func (s *captureSource) Close() error { return s.cap.Close() }
