package geometry

import (
	"context"
	"errors"
	"math"
	"math/rand"
)

// Estimation failures. Callers treat all three as "no detection".
var (
	ErrTooFewCorrespondences = errors.New("geometry: at least 4 correspondences are required")
	ErrDegenerate            = errors.New("geometry: no non-degenerate sample could be fitted")
	ErrNoConsensus           = errors.New("geometry: consensus set is too small")
)

// SampleSize is the number of correspondences a homography is fitted from.
// A fitted sample always supports itself, so a consensus set must be larger.
const SampleSize = 4

// RANSAC defaults.
const (
	DefaultThreshold  = 5.0
	DefaultMaxTrials  = 500
	DefaultConfidence = 0.995
	DefaultMinInliers = 8
	DefaultSeed       = 1 // configuration default; RANSAC uses Seed as given
)

// Estimate is the result of a successful robust fit.
type Estimate struct {
	H Homography

	// Mask[i] is true when correspondence i is an inlier of H.
	Mask []bool

	// Inliers is the number of true entries in Mask.
	Inliers int

	// Trials is the number of samples drawn.
	Trials int
}

// RANSAC estimates a homography robustly. The zero value is usable: zero
// fields take the Default* values, except Seed.
type RANSAC struct {
	// Threshold is the reprojection distance, in pixels, below which a
	// correspondence counts as an inlier.
	Threshold float64

	// MaxTrials caps the number of samples drawn.
	MaxTrials int

	// Confidence drives adaptive early termination. Zero means
	// DefaultConfidence; negative values or values >= 1 disable it.
	Confidence float64

	// MinInliers is the smallest consensus set accepted. Zero means
	// DefaultMinInliers; values up to the sample size are raised above it.
	MinInliers int

	// Seed seeds the per-call sample generator. Every value, zero included,
	// is used as given.
	Seed int64
}

func (r RANSAC) withDefaults() RANSAC {
	if r.Threshold <= 0 {
		r.Threshold = DefaultThreshold
	}
	if r.MaxTrials <= 0 {
		r.MaxTrials = DefaultMaxTrials
	}
	if r.Confidence == 0 {
		r.Confidence = DefaultConfidence
	}
	if r.MinInliers <= 0 {
		r.MinInliers = DefaultMinInliers
	}
	if r.MinInliers <= SampleSize {
		r.MinInliers = SampleSize + 1
	}
	return r
}

// Estimate fits the homography mapping src[i] to dst[i]. The context is
// checked between trials; a cancelled context returns ctx.Err().
func (r RANSAC) Estimate(ctx context.Context, src, dst []Point) (*Estimate, error) {
	if len(src) != len(dst) {
		return nil, errors.New("geometry: src and dst lengths differ")
	}
	n := len(src)
	if n < SampleSize {
		return nil, ErrTooFewCorrespondences
	}
	r = r.withDefaults()

	rng := rand.New(rand.NewSource(r.Seed))

	var (
		best      Homography
		bestMask  []bool
		bestCount int
		fitted    bool
		trials    int
	)
	limit := r.MaxTrials

	var sample [SampleSize]Point
	var target [SampleSize]Point
	for trials < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trials++

		idx := sampleIndices(rng, n)
		for k, i := range idx {
			sample[k] = src[i]
			target[k] = dst[i]
		}
		if degenerateSample(sample) || degenerateSample(target) || !orientationPreserved(sample, target) {
			continue
		}

		h, ok := Fit(sample[:], target[:])
		if !ok {
			continue
		}
		fitted = true

		mask, count := r.consensus(h, src, dst)
		if count > bestCount {
			best, bestMask, bestCount = h, mask, count
			limit = adaptiveLimit(r.Confidence, float64(count)/float64(n), r.MaxTrials, trials)
		}
	}

	if !fitted {
		return nil, ErrDegenerate
	}
	if bestCount < r.MinInliers {
		return nil, ErrNoConsensus
	}

	// Refit on the whole consensus set; keep it only if support holds.
	inSrc := make([]Point, 0, bestCount)
	inDst := make([]Point, 0, bestCount)
	for i, in := range bestMask {
		if in {
			inSrc = append(inSrc, src[i])
			inDst = append(inDst, dst[i])
		}
	}
	if h, ok := Fit(inSrc, inDst); ok {
		if mask, count := r.consensus(h, src, dst); count >= bestCount {
			best, bestMask, bestCount = h, mask, count
		}
	}

	return &Estimate{H: best, Mask: bestMask, Inliers: bestCount, Trials: trials}, nil
}

func (r RANSAC) consensus(h Homography, src, dst []Point) ([]bool, int) {
	mask := make([]bool, len(src))
	count := 0
	for i := range src {
		if h.ReprojectionError(src[i], dst[i]) < r.Threshold {
			mask[i] = true
			count++
		}
	}
	return mask, count
}

// sampleIndices draws SampleSize distinct indices in [0,n).
func sampleIndices(rng *rand.Rand, n int) [SampleSize]int {
	var idx [SampleSize]int
	for k := 0; k < SampleSize; k++ {
	draw:
		for {
			v := rng.Intn(n)
			for j := 0; j < k; j++ {
				if idx[j] == v {
					continue draw
				}
			}
			idx[k] = v
			break
		}
	}
	return idx
}

// adaptiveLimit returns the number of trials needed to draw an all-inlier
// sample with the given confidence, never below done or above maxTrials.
func adaptiveLimit(confidence, inlierRatio float64, maxTrials, done int) int {
	if confidence <= 0 || confidence >= 1 {
		return maxTrials
	}
	if inlierRatio >= 1 {
		return done
	}
	p := math.Pow(inlierRatio, SampleSize)
	if p <= 0 {
		return maxTrials
	}
	need := math.Log(1-confidence) / math.Log(1-p)
	if math.IsNaN(need) || need >= float64(maxTrials) {
		return maxTrials
	}
	k := int(math.Ceil(need))
	if k < done {
		return done
	}
	return k
}
