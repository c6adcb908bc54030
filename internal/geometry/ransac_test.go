package geometry

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scene returns inliers mapped exactly through perspective followed by
// outliers displaced well beyond any reasonable threshold.
func scene(inliers, outliers int) (src, dst []Point) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < inliers+outliers; i++ {
		p := Point{X: rng.Float64() * 300, Y: rng.Float64() * 200}
		q, _ := perspective.Project(p)
		if i >= inliers {
			q.X += 60
			q.Y -= 45
		}
		src = append(src, p)
		dst = append(dst, q)
	}
	return src, dst
}

func TestRANSAC_RecoversHomography(t *testing.T) {
	src, dst := scene(40, 15)

	est, err := RANSAC{}.Estimate(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, 40, est.Inliers)
	require.Len(t, est.Mask, len(src))
	for i, in := range est.Mask {
		assert.Equal(t, i < 40, in, "correspondence %d", i)
	}
	assert.LessOrEqual(t, est.Trials, DefaultMaxTrials)
	assertHomographyNear(t, perspective, est.H, src[:40], 1e-3)
}

func TestRANSAC_Deterministic(t *testing.T) {
	src, dst := scene(25, 25)
	r := RANSAC{Threshold: 3, Seed: 7}

	a, err := r.Estimate(context.Background(), src, dst)
	require.NoError(t, err)
	b, err := r.Estimate(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, a.H, b.H)
	assert.Equal(t, a.Mask, b.Mask)
	assert.Equal(t, a.Trials, b.Trials)
}

func TestRANSAC_TooFew(t *testing.T) {
	src, dst := scene(3, 0)
	_, err := RANSAC{}.Estimate(context.Background(), src, dst)
	assert.ErrorIs(t, err, ErrTooFewCorrespondences)

	_, err = RANSAC{}.Estimate(context.Background(), src, dst[:2])
	assert.Error(t, err)
}

func TestRANSAC_Collinear(t *testing.T) {
	var src, dst []Point
	for i := 0; i < 10; i++ {
		src = append(src, Point{X: float64(i * 10), Y: float64(i * 20)})
		dst = append(dst, Point{X: float64(i * 10), Y: 5})
	}

	_, err := RANSAC{MaxTrials: 50}.Estimate(context.Background(), src, dst)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestRANSAC_NoConsensus(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var src, dst []Point
	for i := 0; i < 30; i++ {
		src = append(src, Point{X: rng.Float64() * 500, Y: rng.Float64() * 500})
		dst = append(dst, Point{X: rng.Float64() * 500, Y: rng.Float64() * 500})
	}

	_, err := RANSAC{MinInliers: 20, MaxTrials: 100}.Estimate(context.Background(), src, dst)
	assert.ErrorIs(t, err, ErrNoConsensus)
}

func TestRANSAC_ZeroValueRejectsNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var src, dst []Point
	for i := 0; i < 40; i++ {
		src = append(src, Point{X: rng.Float64() * 640, Y: rng.Float64() * 480})
		dst = append(dst, Point{X: rng.Float64() * 640, Y: rng.Float64() * 480})
	}

	est, err := RANSAC{}.Estimate(context.Background(), src, dst)
	assert.Nil(t, est)
	assert.ErrorIs(t, err, ErrNoConsensus)
}

func TestRANSAC_MirroredSceneIsNotAPose(t *testing.T) {
	// A left-right flip reverses the winding of every sample.
	src, dst := scene(30, 0)
	for i := range dst {
		dst[i].X = -dst[i].X
	}

	_, err := RANSAC{MaxTrials: 100}.Estimate(context.Background(), src, dst)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestRANSAC_WithDefaults(t *testing.T) {
	r := RANSAC{}.withDefaults()
	assert.Equal(t, DefaultThreshold, r.Threshold)
	assert.Equal(t, DefaultMaxTrials, r.MaxTrials)
	assert.Equal(t, DefaultConfidence, r.Confidence)
	assert.Equal(t, DefaultMinInliers, r.MinInliers)
	assert.Equal(t, int64(0), r.Seed)

	tests := []struct {
		in, want int
	}{
		{-3, DefaultMinInliers},
		{1, SampleSize + 1},
		{4, SampleSize + 1},
		{5, 5},
		{30, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RANSAC{MinInliers: tt.in}.withDefaults().MinInliers, "MinInliers %d", tt.in)
	}
}

func TestOrientationPreserved(t *testing.T) {
	square := [4]Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, orientationPreserved(square, [4]Point{{5, 5}, {25, 7}, {24, 30}, {4, 26}}))
	assert.False(t, orientationPreserved(square, [4]Point{{0, 0}, {-10, 0}, {-10, 10}, {0, 10}}))
	// Swapping two corners twists the quadrilateral.
	assert.False(t, orientationPreserved(square, [4]Point{{0, 0}, {10, 0}, {0, 10}, {10, 10}}))
}

func TestRANSAC_Cancelled(t *testing.T) {
	src, dst := scene(20, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	est, err := RANSAC{}.Estimate(ctx, src, dst)
	assert.Nil(t, est)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleIndices_Distinct(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		idx := sampleIndices(rng, 5)
		seen := map[int]bool{}
		for _, v := range idx {
			assert.False(t, seen[v])
			assert.True(t, v >= 0 && v < 5)
			seen[v] = true
		}
	}
}

func TestAdaptiveLimit(t *testing.T) {
	assert.Equal(t, 500, adaptiveLimit(0.995, 0.1, 500, 3))
	assert.Equal(t, 3, adaptiveLimit(0.995, 1, 500, 3))
	assert.Equal(t, 500, adaptiveLimit(-1, 0.9, 500, 3))

	// w = 0.9: log(0.005)/log(1-0.6561) is about 4.95.
	assert.Equal(t, 5, adaptiveLimit(0.995, 0.9, 500, 1))
	assert.Equal(t, 8, adaptiveLimit(0.995, 0.9, 500, 8))
}
