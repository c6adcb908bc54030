package features

import (
	"math"
	"math/rand"

	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

const (
	briefBits   = 256
	briefRadius = 15
	briefSeed   = 0x0b21ef
)

// briefPattern holds the point pairs (x1, y1, x2, y2) compared by each
// descriptor bit. Offsets follow an isotropic gaussian with sigma = patch/5,
// clipped to the 31x31 patch.
var briefPattern = generateBriefPattern(briefBits, briefRadius, briefSeed)

func generateBriefPattern(n, radius int, seed int64) [][4]float64 {
	rng := rand.New(rand.NewSource(seed))
	sigma := float64(2*radius+1) / 5

	draw := func() float64 {
		v := math.Round(rng.NormFloat64() * sigma)
		return math.Max(-float64(radius), math.Min(float64(radius), v))
	}

	pattern := make([][4]float64, n)
	for i := range pattern {
		x1, y1 := draw(), draw()
		x2, y2 := draw(), draw()
		for x1 == x2 && y1 == y2 {
			x2, y2 = draw(), draw()
		}
		pattern[i] = [4]float64{x1, y1, x2, y2}
	}
	return pattern
}

// describeBRIEF computes a rotated BRIEF descriptor: bit i is set when the
// first point of pair i, rotated by angle, is darker than the second.
func describeBRIEF(smoothed *imaging.GrayPlane, x, y int, angle float64) Descriptor {
	sin, cos := math.Sincos(angle)
	bits := make([]uint64, briefBits/64)

	at := func(px, py float64) float32 {
		rx := int(math.Round(cos*px - sin*py))
		ry := int(math.Round(sin*px + cos*py))
		return smoothed.At(x+rx, y+ry)
	}

	for i, pr := range briefPattern {
		if at(pr[0], pr[1]) < at(pr[2], pr[3]) {
			bits[i/64] |= 1 << uint(i%64)
		}
	}
	return Descriptor{Bits: bits}
}
