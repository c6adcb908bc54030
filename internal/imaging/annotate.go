package imaging

import (
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ConfidenceColor maps a confidence in [0,1] onto a hue ramp from red (0) to
// green (1). The ramp is interpolated in HCL space, which keeps perceived
// brightness even so that weak detections are not simply darker.
func ConfidenceColor(confidence float64) color.RGBA {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	low := colorful.Hsv(0, 0.9, 0.95)
	high := colorful.Hsv(120, 0.9, 0.85)
	r, g, b := low.BlendHcl(high, confidence).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Annotate returns a copy of img with an outline drawn around every box.
//
// Each outline is coloured by ConfidenceColor. thickness is clamped to at
// least one pixel; outlines that would leave the image are clipped.
func Annotate(img image.Image, boxes []Box, thickness int) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)

	if thickness < 1 {
		thickness = 1
	}

	for _, box := range boxes {
		c := image.NewUniform(ConfidenceColor(box.Confidence))
		r := box.Rect()
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
			image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
			image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(out, e.Intersect(out.Bounds()), c, image.Point{}, draw.Src)
		}
	}

	return out
}
