package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// ConfidenceThreshold is the fixed policy threshold shared by both model
// instances. It is intentionally not per-class.
const ConfidenceThreshold = 0.5

// WeaponClassID is the class index the weapon model assigns to weapons.
const WeaponClassID = 0

// Detection is one scored box produced by a Detector for a single frame.
// It is ephemeral and never persisted directly.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Detector scores one frame. Implementations must tolerate being invoked
// once per model instance on the same frame without shared mutable state.
type Detector interface {
	Infer(frame gocv.Mat) ([]Detection, error)
	Close() error
}

// FirstWeapon returns the first weapon detection above the threshold.
// The boolean is the per-frame "positive" signal that drives recording.
func FirstWeapon(dets []Detection) (Detection, bool) {
	for _, d := range dets {
		if d.ClassID == WeaponClassID && d.Confidence > ConfidenceThreshold {
			return d, true
		}
	}
	return Detection{}, false
}
