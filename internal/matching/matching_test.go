package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/feature-match-detector/internal/features"
)

// binarySet builds a binary FeatureSet with one 64-bit word per descriptor.
func binarySet(t *testing.T, words ...uint64) *features.FeatureSet {
	t.Helper()
	kps := make([]features.Keypoint, len(words))
	descs := make([]features.Descriptor, len(words))
	for i, w := range words {
		kps[i] = features.Keypoint{X: float64(i), Y: float64(i)}
		descs[i] = features.Descriptor{Bits: []uint64{w}}
	}
	fs, err := features.NewFeatureSet(features.EncodingBinary, 100, 100, kps, descs)
	require.NoError(t, err)
	return fs
}

// floatSet builds a real-valued FeatureSet.
func floatSet(t *testing.T, vectors ...[]float32) *features.FeatureSet {
	t.Helper()
	kps := make([]features.Keypoint, len(vectors))
	descs := make([]features.Descriptor, len(vectors))
	for i, v := range vectors {
		kps[i] = features.Keypoint{X: float64(i)}
		descs[i] = features.Descriptor{Values: v}
	}
	fs, err := features.NewFeatureSet(features.EncodingFloat, 100, 100, kps, descs)
	require.NoError(t, err)
	return fs
}

func TestNew(t *testing.T) {
	m, err := New(PolicyRatio, Options{})
	require.NoError(t, err)
	assert.Equal(t, PolicyRatio, m.Name())
	assert.Equal(t, DefaultRatio, m.(*RatioMatcher).Ratio)

	m, err = New(PolicyRatio, Options{Ratio: 0.8})
	require.NoError(t, err)
	assert.Equal(t, 0.8, m.(*RatioMatcher).Ratio)

	m, err = New(PolicyCrossCheck, Options{MaxDistance: 30})
	require.NoError(t, err)
	assert.Equal(t, PolicyCrossCheck, m.Name())

	_, err = New(PolicyCrossCheck, Options{MaxDistance: -1})
	assert.Error(t, err)

	_, err = New("flann", Options{})
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	bin := features.EncodingBinary
	assert.Equal(t, 0.0, Distance(bin, features.Descriptor{Bits: []uint64{0xff}}, features.Descriptor{Bits: []uint64{0xff}}))
	assert.Equal(t, 8.0, Distance(bin, features.Descriptor{Bits: []uint64{0xff}}, features.Descriptor{Bits: []uint64{0}}))
	assert.Equal(t, 64.0, Distance(bin, features.Descriptor{Bits: []uint64{0, 0}}, features.Descriptor{Bits: []uint64{0}}))

	f := features.EncodingFloat
	assert.InDelta(t, 5.0, Distance(f, features.Descriptor{Values: []float32{0, 0}}, features.Descriptor{Values: []float32{3, 4}}), 1e-9)
	assert.InDelta(t, 2.0, Distance(f, features.Descriptor{Values: []float32{1}}, features.Descriptor{Values: []float32{1, 2}}), 1e-9)
}

func TestRatioMatcher_KeepsDistinctNearest(t *testing.T) {
	template := binarySet(t, 0x0, math.MaxUint64)
	query := binarySet(t, math.MaxUint64, 0x1, 0xf0f0f0f0f0f0f0f0)

	got := (&RatioMatcher{Ratio: 0.7}).Match(template, query)
	require.Len(t, got, 2)

	assert.Equal(t, Correspondence{TemplateIndex: 0, QueryIndex: 1, Distance: 1}, got[0])
	assert.Equal(t, Correspondence{TemplateIndex: 1, QueryIndex: 0, Distance: 0}, got[1])
}

func TestRatioMatcher_RejectsTies(t *testing.T) {
	// Both query descriptors are exactly one bit away from the template.
	template := binarySet(t, 0x0, 0xffff0000)
	query := binarySet(t, 0x1, 0x2)

	got := (&RatioMatcher{Ratio: 0.7}).Match(template, query)
	for _, c := range got {
		assert.NotEqual(t, 0, c.TemplateIndex, "equal nearest and second-nearest must be rejected")
	}
}

func TestRatioMatcher_RejectsDuplicateZeroDistance(t *testing.T) {
	template := binarySet(t, 0xabc, 0x123)
	query := binarySet(t, 0xabc, 0xabc)

	got := (&RatioMatcher{Ratio: 1}).Match(template, query)
	for _, c := range got {
		assert.NotEqual(t, 0, c.TemplateIndex)
	}
}

func TestRatioMatcher_RatioBoundaryIsStrict(t *testing.T) {
	// nearest = 7, second = 10: accepted at 0.71, rejected at exactly 0.7.
	template := floatSet(t, []float32{0}, []float32{1000})
	query := floatSet(t, []float32{7}, []float32{10})

	assert.Len(t, (&RatioMatcher{Ratio: 0.7}).Match(template, query), 0)
	got := (&RatioMatcher{Ratio: 0.71}).Match(template, query)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].TemplateIndex)
	assert.Equal(t, 0, got[0].QueryIndex)
}

func TestMatchers_TooFewEntries(t *testing.T) {
	matchers := []Matcher{&RatioMatcher{Ratio: 0.7}, &CrossCheckMatcher{}}
	one := binarySet(t, 0x1)
	two := binarySet(t, 0x1, 0x2)
	empty := features.EmptyFeatureSet(features.EncodingBinary, 10, 10)

	for _, m := range matchers {
		t.Run(m.Name(), func(t *testing.T) {
			for _, pair := range [][2]*features.FeatureSet{
				{one, two}, {two, one}, {empty, two}, {two, empty}, {nil, two}, {two, nil},
			} {
				got := m.Match(pair[0], pair[1])
				assert.NotNil(t, got)
				assert.Empty(t, got)
			}
		})
	}
}

func TestMatchers_EncodingMismatch(t *testing.T) {
	bin := binarySet(t, 0x1, 0x2)
	flt := floatSet(t, []float32{1}, []float32{2})

	assert.Empty(t, (&RatioMatcher{Ratio: 0.7}).Match(bin, flt))
	assert.Empty(t, (&CrossCheckMatcher{}).Match(flt, bin))
}

func TestCrossCheckMatcher(t *testing.T) {
	// Template 0 and 2 both prefer query 0; only the mutual pair survives.
	template := binarySet(t, 0x0, 0xff00, 0x1)
	query := binarySet(t, 0x0, 0xff01)

	got := (&CrossCheckMatcher{}).Match(template, query)
	require.Len(t, got, 2)
	assert.Equal(t, Correspondence{TemplateIndex: 0, QueryIndex: 0, Distance: 0}, got[0])
	assert.Equal(t, Correspondence{TemplateIndex: 1, QueryIndex: 1, Distance: 1}, got[1])
}

func TestCrossCheckMatcher_MaxDistance(t *testing.T) {
	// Template 1 and query 1 are mutual nearest neighbours 4 bits apart.
	template := binarySet(t, 0x0, 0xffff0000)
	query := binarySet(t, 0x0, 0xfff00000)

	assert.Len(t, (&CrossCheckMatcher{}).Match(template, query), 2)
	assert.Len(t, (&CrossCheckMatcher{MaxDistance: 4}).Match(template, query), 2)

	got := (&CrossCheckMatcher{MaxDistance: 3}).Match(template, query)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].TemplateIndex)
}

func TestCrossCheckMatcher_DefaultLimits(t *testing.T) {
	wide := func(words ...[2]uint64) *features.FeatureSet {
		kps := make([]features.Keypoint, len(words))
		descs := make([]features.Descriptor, len(words))
		for i, w := range words {
			descs[i] = features.Descriptor{Bits: []uint64{w[0], w[1]}}
		}
		fs, err := features.NewFeatureSet(features.EncodingBinary, 100, 100, kps, descs)
		require.NoError(t, err)
		return fs
	}

	// Template 0 and query 0 are mutual nearest neighbours whose distance is
	// the popcount of word; the other pair is identical.
	template := wide([2]uint64{0, 0}, [2]uint64{math.MaxUint64, math.MaxUint64})
	for _, tt := range []struct {
		word uint64
		kept int
	}{
		{1<<48 - 1, 2},
		{1<<50 - 1, 2},
		{1<<51 - 1, 1},
	} {
		query := wide([2]uint64{tt.word, 0}, [2]uint64{math.MaxUint64, math.MaxUint64})
		assert.Len(t, (&CrossCheckMatcher{}).Match(template, query), tt.kept, "%x", tt.word)
	}

	// Unit vectors: the identical pair survives; the second pair is mutual
	// but sqrt(0.8) apart.
	ft := floatSet(t, []float32{1, 0, 0}, []float32{0, 1, 0})
	fq := floatSet(t, []float32{1, 0, 0}, []float32{0, 0.6, 0.8})
	got := (&CrossCheckMatcher{}).Match(ft, fq)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].TemplateIndex)

	assert.Len(t, (&CrossCheckMatcher{MaxDistance: 2}).Match(ft, fq), 2)
}

func TestMatchers_OrderedByTemplateIndex(t *testing.T) {
	template := binarySet(t, 0xf, 0xf0, 0xf00, 0xf000)
	query := binarySet(t, 0xf000, 0xf00, 0xf0, 0xf)

	for _, m := range []Matcher{&RatioMatcher{Ratio: 0.7}, &CrossCheckMatcher{}} {
		got := m.Match(template, query)
		require.Len(t, got, 4, m.Name())
		for i, c := range got {
			assert.Equal(t, i, c.TemplateIndex)
			assert.Equal(t, 3-i, c.QueryIndex)
		}
	}
}
