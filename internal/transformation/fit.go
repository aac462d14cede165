package transformation

import (
	"image"
	"math"
)

// Placement is where the foreground lands on the target surface, in
// fractional pixels.
type Placement struct {
	DrawWidth  float64
	DrawHeight float64
	OffsetX    float64
	OffsetY    float64
}

// Fit scales a srcWidth x srcHeight image to the largest size that fits inside
// the target while keeping its aspect ratio, and centers it.
func Fit(srcWidth int, srcHeight int, targetWidth int, targetHeight int) Placement {
	aspectRatio := float64(srcWidth) / float64(srcHeight)
	tw, th := float64(targetWidth), float64(targetHeight)

	drawWidth := tw
	drawHeight := tw / aspectRatio
	if drawHeight > th {
		drawHeight = th
		drawWidth = th * aspectRatio
	}

	return Placement{
		DrawWidth:  drawWidth,
		DrawHeight: drawHeight,
		OffsetX:    (tw - drawWidth) / 2,
		OffsetY:    (th - drawHeight) / 2,
	}
}

// Bounds snaps the placement to the pixel grid. The result is never empty and
// never leaves the targetWidth x targetHeight surface.
func (p Placement) Bounds(targetWidth int, targetHeight int) image.Rectangle {
	x0 := clamp(int(math.Round(p.OffsetX)), 0, targetWidth-1)
	y0 := clamp(int(math.Round(p.OffsetY)), 0, targetHeight-1)
	x1 := clamp(int(math.Round(p.OffsetX+p.DrawWidth)), x0+1, targetWidth)
	y1 := clamp(int(math.Round(p.OffsetY+p.DrawHeight)), y0+1, targetHeight)
	return image.Rect(x0, y0, x1, y1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
