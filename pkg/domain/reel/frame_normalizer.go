package reel

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// CanvasSize scales the browser viewport down to the gif canvas.
func CanvasSize(width, height int, scale float64) (int, int) {
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))

	return max(w, 1), max(h, 1)
}

// ContainRect returns the largest rectangle with the source aspect ratio that fits inside a
// dstW x dstH canvas, centered on it.
func ContainRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rect(0, 0, dstW, dstH)
	}

	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))

	w := min(max(int(math.Round(float64(srcW)*scale)), 1), dstW)
	h := min(max(int(math.Round(float64(srcH)*scale)), 1), dstH)

	x := (dstW - w) / 2
	y := (dstH - h) / 2

	return image.Rect(x, y, x+w, y+h)
}

// FrameNormalizer draws arbitrary images onto one fixed-size white canvas. It reuses the canvas
// between calls and must not be shared between goroutines.
type FrameNormalizer struct {
	canvas *image.RGBA
	scaler draw.Scaler
}

func NewFrameNormalizer(width, height int) *FrameNormalizer {
	return &FrameNormalizer{
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
		scaler: draw.CatmullRom,
	}
}

func (n *FrameNormalizer) Bounds() image.Rectangle {
	return n.canvas.Bounds()
}

// Normalize contain-fits src onto the canvas and returns the canvas. The result is only valid
// until the next call.
func (n *FrameNormalizer) Normalize(src image.Image) *image.RGBA {
	bounds := n.canvas.Bounds()

	draw.Draw(n.canvas, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)

	srcBounds := src.Bounds()
	target := ContainRect(srcBounds.Dx(), srcBounds.Dy(), bounds.Dx(), bounds.Dy())

	n.scaler.Scale(n.canvas, target, src, srcBounds, draw.Over, nil)

	return n.canvas
}
