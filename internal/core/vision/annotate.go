package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	weaponColor = color.RGBA{R: 255, A: 255}
	objectColor = color.RGBA{B: 255, A: 255}
)

// Annotate draws boxes and labels for every detection above the threshold
// onto a clone of frame. The original frame is never mutated, so the clip
// writer always receives clean evidence. The caller owns the returned Mat.
func Annotate(frame gocv.Mat, weapons, objects []Detection) gocv.Mat {
	out := frame.Clone()

	for _, d := range weapons {
		if d.ClassID != WeaponClassID || d.Confidence <= ConfidenceThreshold {
			continue
		}
		drawBox(&out, d, weaponColor)
	}
	for _, d := range objects {
		if d.Confidence <= ConfidenceThreshold {
			continue
		}
		drawBox(&out, d, objectColor)
	}
	return out
}

func drawBox(img *gocv.Mat, d Detection, c color.RGBA) {
	gocv.Rectangle(img, d.Box, c, 2)
	label := fmt.Sprintf("%s (%.2f)", d.Label, d.Confidence)
	origin := image.Pt(d.Box.Min.X, d.Box.Min.Y-10)
	gocv.PutText(img, label, origin, gocv.FontHersheySimplex, 0.5, c, 2)
}
