package features

import (
	"math"

	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

const (
	// fastArc is the number of contiguous circle pixels required for a corner.
	fastArc = 9

	// orientationRadius is the radius of the disc used for the intensity centroid.
	orientationRadius = 15

	// describeBorder keeps every descriptor and orientation sample in bounds:
	// the farthest BRIEF sample after rotation is 15*sqrt(2) ≈ 21.2 pixels away.
	describeBorder = 24
)

// fastCircle is the Bresenham circle of radius 3, clockwise from 12 o'clock.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// discSpan[dy] is the half-width of the orientation disc at row offset dy.
var discSpan = func() [orientationRadius + 1]int {
	var span [orientationRadius + 1]int
	for dy := 0; dy <= orientationRadius; dy++ {
		span[dy] = int(math.Floor(math.Sqrt(float64(orientationRadius*orientationRadius - dy*dy))))
	}
	return span
}()

type corner struct {
	x, y  int
	score float32
}

// detectFAST returns the non-maximum-suppressed FAST corners of p that lie at
// least border pixels from every edge, in raster order.
func detectFAST(p *imaging.GrayPlane, threshold float32, border int) []corner {
	w, h := p.Width, p.Height
	if w < 2*border+1 || h < 2*border+1 {
		return nil
	}

	scores := make([]float32, w*h)
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			scores[y*w+x] = fastScore(p, x, y, threshold)
		}
	}

	var corners []corner
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			s := scores[y*w+x]
			if s <= 0 || !isLocalMax(scores, w, x, y) {
				continue
			}
			corners = append(corners, corner{x: x, y: y, score: s})
		}
	}
	return corners
}

// isLocalMax reports whether the score at (x,y) wins its 3x3 neighbourhood.
// On a plateau the first pixel in raster order wins, so equal neighbours never
// both survive.
func isLocalMax(scores []float32, w, x, y int) bool {
	s := scores[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			before := dy < 0 || (dy == 0 && dx < 0)
			if before && n >= s {
				return false
			}
			if !before && n > s {
				return false
			}
		}
	}
	return true
}

// fastScore runs the segment test at (x,y). It returns 0 for non-corners and
// otherwise the larger of the summed excess intensity of the bright and dark
// circle pixels.
func fastScore(p *imaging.GrayPlane, x, y int, t float32) float32 {
	w := p.Width
	c := p.Pix[y*w+x]

	var state [16]int8
	var brightSum, darkSum float32
	for i, o := range fastCircle {
		v := p.Pix[(y+o[1])*w+x+o[0]]
		switch {
		case v > c+t:
			state[i] = 1
			brightSum += v - c - t
		case v < c-t:
			state[i] = -1
			darkSum += c - v - t
		}
	}

	if longestRun(state, 1) < fastArc && longestRun(state, -1) < fastArc {
		return 0
	}
	if brightSum > darkSum {
		return brightSum
	}
	return darkSum
}

// longestRun returns the longest circular run of want in state.
func longestRun(state [16]int8, want int8) int {
	best, run := 0, 0
	for i := 0; i < 32; i++ {
		if state[i%16] == want {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	if best > 16 {
		best = 16
	}
	return best
}

// intensityAngle returns the direction from (x,y) to the intensity centroid
// of the surrounding disc.
func intensityAngle(p *imaging.GrayPlane, x, y int) float64 {
	w := p.Width
	var m01, m10 float64
	for dy := -orientationRadius; dy <= orientationRadius; dy++ {
		span := discSpan[absInt(dy)]
		row := (y + dy) * w
		for dx := -span; dx <= span; dx++ {
			v := float64(p.Pix[row+x+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
