package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

// planeFunc builds a plane whose pixel values come from f.
func planeFunc(w, h int, f func(x, y int) float32) *imaging.GrayPlane {
	p := &imaging.GrayPlane{Width: w, Height: h, Pix: make([]float32, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p.Pix[y*w+x] = f(x, y)
		}
	}
	return p
}

func TestFastScore_Corner(t *testing.T) {
	// Bright quadrant up-left of (10,10) on a dark background.
	p := planeFunc(21, 21, func(x, y int) float32 {
		if x <= 10 && y <= 10 {
			return 255
		}
		return 0
	})

	assert.Greater(t, fastScore(p, 10, 10, 20), float32(0))
}

func TestFastScore_StraightEdge(t *testing.T) {
	// A straight edge never gives 9 contiguous pixels on one side.
	p := planeFunc(21, 21, func(x, y int) float32 {
		if y <= 10 {
			return 255
		}
		return 0
	})

	assert.Equal(t, float32(0), fastScore(p, 10, 10, 20))
}

func TestFastScore_Flat(t *testing.T) {
	p := planeFunc(11, 11, func(x, y int) float32 { return 100 })
	assert.Equal(t, float32(0), fastScore(p, 5, 5, 20))
}

func TestLongestRun(t *testing.T) {
	var s [16]int8
	assert.Equal(t, 0, longestRun(s, 1))

	// Run that wraps around the end of the circle.
	for _, i := range []int{12, 13, 14, 15, 0, 1, 2, 3, 4} {
		s[i] = 1
	}
	assert.Equal(t, 9, longestRun(s, 1))

	for i := range s {
		s[i] = -1
	}
	assert.Equal(t, 16, longestRun(s, -1))
}

func TestDetectFAST_SuppressesNeighbours(t *testing.T) {
	// A single bright square: each of its four corners yields one keypoint.
	p := planeFunc(80, 80, func(x, y int) float32 {
		if x >= 30 && x < 50 && y >= 30 && y < 50 {
			return 255
		}
		return 0
	})

	corners := detectFAST(p, 20, describeBorder)
	require.NotEmpty(t, corners)
	for i, a := range corners {
		for j, b := range corners {
			if i == j {
				continue
			}
			near := absInt(a.x-b.x) <= 1 && absInt(a.y-b.y) <= 1
			assert.False(t, near, "adjacent corners (%d,%d) and (%d,%d) both survived", a.x, a.y, b.x, b.y)
		}
	}
}

func TestDetectFAST_TooSmall(t *testing.T) {
	p := planeFunc(40, 40, func(x, y int) float32 { return float32((x * y) % 255) })
	assert.Nil(t, detectFAST(p, 20, describeBorder))
}

func TestIntensityAngle(t *testing.T) {
	tests := []struct {
		name string
		f    func(x, y int) float32
		want float64
	}{
		{"brighter right", func(x, y int) float32 { return float32(x) }, 0},
		{"brighter below", func(x, y int) float32 { return float32(y) }, math.Pi / 2},
		{"brighter left", func(x, y int) float32 { return float32(100 - x) }, math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := planeFunc(50, 50, tt.f)
			got := intensityAngle(p, 25, 25)
			assert.InDelta(t, tt.want, math.Abs(got), 1e-9)
		})
	}
}

func TestBriefPattern(t *testing.T) {
	again := generateBriefPattern(briefBits, briefRadius, briefSeed)
	assert.Equal(t, briefPattern, again)
	require.Len(t, briefPattern, briefBits)

	for _, pr := range briefPattern {
		for _, v := range pr {
			assert.LessOrEqual(t, math.Abs(v), float64(briefRadius))
		}
		assert.False(t, pr[0] == pr[2] && pr[1] == pr[3], "pair compares a point with itself")
	}
}

func TestDescribeBRIEF_RotationFollowsAngle(t *testing.T) {
	// Rotating the sampling pattern by the keypoint angle means a rotated
	// patch described at the rotated angle yields the same bits.
	f := func(x, y int) float32 {
		dx, dy := float64(x-40), float64(y-40)
		return float32(128 + 60*math.Sin(dx/4) + 50*math.Cos(dy/5))
	}
	p := planeFunc(81, 81, f)
	rotated := planeFunc(81, 81, func(x, y int) float32 {
		// Rotate by +90 degrees about (40,40): (x,y) <- (y', -x').
		dx, dy := x-40, y-40
		return f(40+dy, 40-dx)
	})

	a := describeBRIEF(p, 40, 40, 0)
	b := describeBRIEF(rotated, 40, 40, math.Pi/2)
	assert.Equal(t, a, b)
}

func TestDescribeGradient_UnitLength(t *testing.T) {
	p := planeFunc(60, 60, func(x, y int) float32 { return float32((x*7 + y*13) % 97) })

	d := describeGradient(p, 30, 30, 0.3)
	require.Len(t, d.Values, gradLength)

	var sum float64
	for _, v := range d.Values {
		assert.LessOrEqual(t, float64(v), 1.0)
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1, sum, 1e-4)
}

func TestDescribeGradient_FlatIsZero(t *testing.T) {
	p := planeFunc(60, 60, func(x, y int) float32 { return 50 })

	d := describeGradient(p, 30, 30, 0)
	for _, v := range d.Values {
		assert.Equal(t, float32(0), v)
	}
}
