package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrayPlane(t *testing.T) {
	img := createPatternImage(20, 10)

	p := NewGrayPlane(img)
	require.Equal(t, 20, p.Width)
	require.Equal(t, 10, p.Height)
	require.Len(t, p.Pix, 200)

	// White quadrant is full intensity, blue is darker than green.
	assert.InDelta(t, 255, p.At(15, 8), 1)
	assert.Less(t, p.At(2, 8), p.At(15, 2))
}

func TestNewGrayPlane_OffsetBounds(t *testing.T) {
	parent := createPatternImage(40, 40)
	sub := parent.SubImage(image.Rect(20, 20, 40, 40))

	p := NewGrayPlane(sub)
	assert.Equal(t, 20, p.Width)
	assert.Equal(t, 20, p.Height)
	assert.InDelta(t, 255, p.At(0, 0), 1)
}

func TestGrayPlane_AtClamps(t *testing.T) {
	p := &GrayPlane{Width: 2, Height: 2, Pix: []float32{1, 2, 3, 4}}

	assert.Equal(t, float32(1), p.At(-5, -5))
	assert.Equal(t, float32(4), p.At(10, 10))
	assert.Equal(t, float32(2), p.At(7, 0))
	assert.Equal(t, float32(3), p.At(0, 9))
}

func TestGrayPlane_Sample(t *testing.T) {
	p := &GrayPlane{Width: 2, Height: 2, Pix: []float32{0, 100, 100, 200}}

	assert.InDelta(t, 0, p.Sample(0, 0), 1e-4)
	assert.InDelta(t, 50, p.Sample(0.5, 0), 1e-4)
	assert.InDelta(t, 100, p.Sample(0.5, 0.5), 1e-4)
	assert.InDelta(t, 200, p.Sample(1, 1), 1e-4)
}

func TestGrayPlane_ImageRoundTrip(t *testing.T) {
	p := &GrayPlane{Width: 3, Height: 1, Pix: []float32{-4, 127.6, 300}}

	img := p.Image()
	assert.Equal(t, []uint8{0, 128, 255}, img.Pix)
}

func TestGrayPlane_Resize(t *testing.T) {
	p := NewGrayPlane(createInMemoryImage(60, 40, color.Gray{90}))

	half := p.Resize(30, 20)
	assert.Equal(t, 30, half.Width)
	assert.Equal(t, 20, half.Height)
	assert.InDelta(t, 90, half.At(10, 10), 1)

	assert.True(t, p.Resize(0, 10).Empty())
}

func TestGrayPlane_Smooth(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 21, 21))
	img.SetGray(10, 10, color.Gray{255})
	p := NewGrayPlane(img)

	smoothed := p.Smooth(2)
	assert.Less(t, smoothed.At(10, 10), float32(255))
	assert.Greater(t, smoothed.At(11, 10), float32(0))

	cp := p.Smooth(0)
	assert.Equal(t, p.Pix, cp.Pix)
	cp.Pix[0] = 42
	assert.NotEqual(t, p.Pix[0], cp.Pix[0])
}

func TestGrayPlane_Empty(t *testing.T) {
	var nilPlane *GrayPlane
	assert.True(t, nilPlane.Empty())
	assert.True(t, (&GrayPlane{}).Empty())
	assert.False(t, (&GrayPlane{Width: 1, Height: 1, Pix: []float32{0}}).Empty())
}
