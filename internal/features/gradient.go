package features

import (
	"math"

	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

const (
	gradCells    = 4
	gradCellSize = 4
	gradBins     = 8
	gradLength   = gradCells * gradCells * gradBins

	// gradClip caps any single histogram entry after the first normalisation
	// so one strong edge cannot dominate the descriptor.
	gradClip = 0.2
)

// describeGradient computes a 128-value histogram of gradient orientations
// over a 16x16 patch rotated to the keypoint angle. Each of the 4x4 cells
// contributes 8 bins; samples are weighted by gradient magnitude and a
// gaussian window centred on the keypoint.
func describeGradient(smoothed *imaging.GrayPlane, x, y int, angle float64) Descriptor {
	sin, cos := math.Sincos(angle)
	side := gradCells * gradCellSize
	half := float64(side-1) / 2
	sigma := float64(side) / 2
	binWidth := 2 * math.Pi / gradBins

	hist := make([]float32, gradLength)
	for iy := 0; iy < side; iy++ {
		for ix := 0; ix < side; ix++ {
			u := float64(ix) - half
			v := float64(iy) - half
			px := float64(x) + cos*u - sin*v
			py := float64(y) + sin*u + cos*v

			gx := float64(smoothed.Sample(px+1, py) - smoothed.Sample(px-1, py))
			gy := float64(smoothed.Sample(px, py+1) - smoothed.Sample(px, py-1))

			// Express the gradient in the keypoint frame.
			rgx := cos*gx + sin*gy
			rgy := -sin*gx + cos*gy
			mag := math.Hypot(rgx, rgy)
			if mag == 0 {
				continue
			}

			theta := math.Atan2(rgy, rgx)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			bin := int(theta/binWidth) % gradBins

			weight := math.Exp(-(u*u + v*v) / (2 * sigma * sigma))
			cell := (iy/gradCellSize)*gradCells + ix/gradCellSize
			hist[cell*gradBins+bin] += float32(mag * weight)
		}
	}

	normalize(hist)
	for i, h := range hist {
		if h > gradClip {
			hist[i] = gradClip
		}
	}
	normalize(hist)

	return Descriptor{Values: hist}
}

// normalize scales v to unit L2 length; an all-zero vector is left as is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
