package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// GrayPlane is a single-channel luminance image stored as float32 (0-255).
//
// Pixel (x, y) lives at Pix[y*Width+x]. The plane always starts at the origin,
// whatever the bounds of the image it was built from.
type GrayPlane struct {
	Width  int
	Height int
	Pix    []float32
}

// NewGrayPlane converts any image to a luminance plane.
//
// Conversion uses disintegration/imaging's Grayscale, which applies
// ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B) on non-premultiplied
// color, so the same pixel buffer always produces the same plane.
func NewGrayPlane(img image.Image) *GrayPlane {
	g := imaging.Grayscale(img)
	w := g.Bounds().Dx()
	h := g.Bounds().Dy()

	p := &GrayPlane{Width: w, Height: h, Pix: make([]float32, w*h)}
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w*4]
		for x := 0; x < w; x++ {
			p.Pix[y*w+x] = float32(row[x*4])
		}
	}
	return p
}

// Empty reports whether the plane has no pixels.
func (p *GrayPlane) Empty() bool {
	return p == nil || p.Width == 0 || p.Height == 0
}

// At returns the intensity at (x, y), clamping coordinates to the plane.
func (p *GrayPlane) At(x, y int) float32 {
	x = clamp(x, 0, p.Width-1)
	y = clamp(y, 0, p.Height-1)
	return p.Pix[y*p.Width+x]
}

// Sample returns the bilinearly interpolated intensity at a subpixel location.
// Coordinates outside the plane are clamped to the border pixels.
func (p *GrayPlane) Sample(x, y float64) float32 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := float32(x - float64(x0))
	fy := float32(y - float64(y0))

	a := p.At(x0, y0)
	b := p.At(x0+1, y0)
	c := p.At(x0, y0+1)
	d := p.At(x0+1, y0+1)

	top := a + (b-a)*fx
	bottom := c + (d-c)*fx
	return top + (bottom-top)*fy
}

// Image converts the plane back to an 8-bit grayscale image.
func (p *GrayPlane) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	for i, v := range p.Pix {
		img.Pix[i] = uint8(clamp(int(v+0.5), 0, 255))
	}
	return img
}

// Resize returns the plane scaled to width x height using a linear filter.
//
// Pyramid levels are built with this function; linear filtering keeps the
// downscaled levels free of ringing that would create spurious corners.
func (p *GrayPlane) Resize(width, height int) *GrayPlane {
	if width <= 0 || height <= 0 {
		return &GrayPlane{}
	}
	return NewGrayPlane(imaging.Resize(p.Image(), width, height, imaging.Linear))
}

// Smooth returns a gaussian-blurred copy of the plane.
//
// Binary descriptor tests compare single pixels and are very sensitive to
// noise; smoothing first makes them stable. A radius <= 0 returns a copy.
func (p *GrayPlane) Smooth(radius float64) *GrayPlane {
	if radius <= 0 {
		out := &GrayPlane{Width: p.Width, Height: p.Height, Pix: make([]float32, len(p.Pix))}
		copy(out.Pix, p.Pix)
		return out
	}
	return NewGrayPlane(blur.Gaussian(p.Image(), radius))
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling when sampling near image edges.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
