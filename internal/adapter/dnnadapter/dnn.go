// Package dnnadapter runs YOLO-family models through the OpenCV DNN module
// and exposes them behind vision.Detector. Two independently configured
// instances are used per frame: a weapon model and a general object model.
package dnnadapter

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kestrelcv/kestrel/internal/conf"
	"github.com/kestrelcv/kestrel/internal/core/vision"
)

// minScore filters obvious noise before the cores apply their own policy
// threshold on top.
const minScore = 0.3

type Detector struct {
	mu        sync.Mutex
	net       gocv.Net
	labels    []string
	inputSize int
}

var _ vision.Detector = (*Detector)(nil)

// New loads one model instance. When the config names a class file it wins,
// otherwise fallback labels (e.g. the COCO table) are used.
func New(m conf.Model, inputSize int, fallback []string) (*Detector, error) {
	net := gocv.ReadNet(m.Weights, m.Config)
	if net.Empty() {
		return nil, fmt.Errorf("load model %s: network is empty", m.Weights)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	labels := fallback
	if m.Names != "" {
		loaded, err := loadNames(m.Names)
		if err != nil {
			net.Close()
			return nil, err
		}
		labels = loaded
	}

	if inputSize <= 0 {
		inputSize = 640
	}
	return &Detector{net: net, labels: labels, inputSize: inputSize}, nil
}

// Infer scores one frame. The mutex serializes access to the underlying net,
// gocv networks are not safe for concurrent forward passes.
func (d *Detector) Infer(frame gocv.Mat) ([]vision.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sz := float32(d.inputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	frameW := float32(frame.Cols())
	frameH := float32(frame.Rows())

	var dets []vision.Detection
	for i := 0; i < output.Rows(); i++ {
		row := output.RowRange(i, i+1)
		data := row.Clone()
		scores := data.ColRange(5, data.Cols())
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(scores)
		classID := maxLoc.X
		confidence := float64(maxVal)

		if confidence > minScore {
			cx := data.GetFloatAt(0, 0) / sz * frameW
			cy := data.GetFloatAt(0, 1) / sz * frameH
			w := data.GetFloatAt(0, 2) / sz * frameW
			h := data.GetFloatAt(0, 3) / sz * frameH

			left := int(cx - w/2)
			top := int(cy - h/2)
			dets = append(dets, vision.Detection{
				ClassID:    classID,
				Label:      d.className(classID),
				Confidence: confidence,
				Box:        image.Rect(left, top, left+int(w), top+int(h)),
			})
		}

		scores.Close()
		data.Close()
		row.Close()
	}
	return dets, nil
}

// className resolves a class index past the configured table through the
// shared COCO fallback: an undersized names file degrades the label, not
// the detection.
func (d *Detector) className(classID int) string {
	if classID >= 0 && classID < len(d.labels) {
		return d.labels[classID]
	}
	return vision.COCOLabel(classID)
}

func (d *Detector) Close() error {
	return d.net.Close()
}

func loadNames(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, strings.TrimSpace(l))
	}
	return names, nil
}
