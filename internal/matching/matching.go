// Package matching pairs template descriptors with query descriptors.
//
// Two policies are provided and are selected explicitly, independent of the
// descriptor encoding:
//
//   - "ratio": for each template descriptor, find the nearest and
//     second-nearest query descriptors and keep the pair only when
//     nearest < Ratio * second (strictly; ties are rejected)
//   - "crosscheck": keep a pair only when each descriptor is the other's
//     nearest neighbour and their distance is at most MaxDistance
//     (DefaultMaxHamming or DefaultMaxEuclidean when unset)
//
// Distances follow the encoding of the sets being compared: Hamming distance
// (number of differing bits) for binary descriptors and Euclidean distance
// for real-valued descriptors.
package matching

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ironsheep/feature-match-detector/internal/features"
)

// Policy names accepted by New.
const (
	PolicyRatio      = "ratio"
	PolicyCrossCheck = "crosscheck"
)

// DefaultRatio is the nearest/second-nearest acceptance ratio.
const DefaultRatio = 0.7

// Crosscheck distance bounds used when Options.MaxDistance is 0. Binary
// descriptors are 256 bits; real-valued descriptors have unit length.
const (
	DefaultMaxHamming   = 50.0
	DefaultMaxEuclidean = 0.7
)

// Correspondence is a hypothesised match between template keypoint
// TemplateIndex and query keypoint QueryIndex.
type Correspondence struct {
	TemplateIndex int     `json:"template_index"`
	QueryIndex    int     `json:"query_index"`
	Distance      float64 `json:"distance"`
}

// Matcher finds correspondences between two feature sets.
type Matcher interface {
	// Name returns the policy name.
	Name() string

	// Match returns correspondences ordered by template index. It returns an
	// empty slice when either set has fewer than two entries or when the
	// descriptor encodings differ.
	Match(template, query *features.FeatureSet) []Correspondence
}

// Options configures a Matcher.
type Options struct {
	// Ratio is used by the ratio policy; values outside (0,1] fall back to
	// DefaultRatio.
	Ratio float64

	// MaxDistance bounds crosscheck matches; 0 selects the default for the
	// descriptor encoding.
	MaxDistance float64
}

// New returns the matcher for policy.
func New(policy string, opts Options) (Matcher, error) {
	switch policy {
	case PolicyRatio:
		ratio := opts.Ratio
		if ratio <= 0 || ratio > 1 {
			ratio = DefaultRatio
		}
		return &RatioMatcher{Ratio: ratio}, nil
	case PolicyCrossCheck:
		if opts.MaxDistance < 0 {
			return nil, fmt.Errorf("crosscheck max distance must be >= 0, got %v", opts.MaxDistance)
		}
		return &CrossCheckMatcher{MaxDistance: opts.MaxDistance}, nil
	default:
		return nil, fmt.Errorf("unknown match policy %q", policy)
	}
}

// Distance returns the distance between two descriptors of the given
// encoding.
func Distance(enc features.Encoding, a, b features.Descriptor) float64 {
	if enc == features.EncodingBinary {
		return float64(hamming(a.Bits, b.Bits))
	}
	return euclidean(a.Values, b.Values)
}

func hamming(a, b []uint64) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	// Words present in only one descriptor count as fully different.
	return d + 64*(len(a)+len(b)-2*n)
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	for _, v := range a[n:] {
		sum += float64(v) * float64(v)
	}
	for _, v := range b[n:] {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// matchable reports whether two sets can be matched at all.
func matchable(template, query *features.FeatureSet) bool {
	if template.Len() < 2 || query.Len() < 2 {
		return false
	}
	return template.Encoding() == query.Encoding()
}

// RatioMatcher implements the nearest/second-nearest ratio test.
type RatioMatcher struct {
	Ratio float64
}

// Name implements Matcher.
func (m *RatioMatcher) Name() string { return PolicyRatio }

// Match implements Matcher.
func (m *RatioMatcher) Match(template, query *features.FeatureSet) []Correspondence {
	out := make([]Correspondence, 0)
	if !matchable(template, query) {
		return out
	}

	enc := template.Encoding()
	for i := 0; i < template.Len(); i++ {
		td := template.Descriptor(i)
		best, second := math.Inf(1), math.Inf(1)
		bestIdx := -1
		for j := 0; j < query.Len(); j++ {
			d := Distance(enc, td, query.Descriptor(j))
			switch {
			case d < best:
				second = best
				best = d
				bestIdx = j
			case d < second:
				second = d
			}
		}
		if best < m.Ratio*second {
			out = append(out, Correspondence{TemplateIndex: i, QueryIndex: bestIdx, Distance: best})
		}
	}
	return out
}

// CrossCheckMatcher keeps mutual nearest neighbours no further apart than
// MaxDistance. A zero MaxDistance uses DefaultMaxHamming for binary
// descriptors and DefaultMaxEuclidean for real-valued ones.
type CrossCheckMatcher struct {
	MaxDistance float64
}

func (m *CrossCheckMatcher) limit(enc features.Encoding) float64 {
	switch {
	case m.MaxDistance > 0:
		return m.MaxDistance
	case enc == features.EncodingBinary:
		return DefaultMaxHamming
	default:
		return DefaultMaxEuclidean
	}
}

// Name implements Matcher.
func (m *CrossCheckMatcher) Name() string { return PolicyCrossCheck }

// Match implements Matcher.
func (m *CrossCheckMatcher) Match(template, query *features.FeatureSet) []Correspondence {
	out := make([]Correspondence, 0)
	if !matchable(template, query) {
		return out
	}

	enc := template.Encoding()
	limit := m.limit(enc)
	tn, qn := template.Len(), query.Len()
	dist := make([]float64, tn*qn)
	for i := 0; i < tn; i++ {
		td := template.Descriptor(i)
		for j := 0; j < qn; j++ {
			dist[i*qn+j] = Distance(enc, td, query.Descriptor(j))
		}
	}

	// Nearest template descriptor for every query descriptor; the lowest
	// index wins ties.
	backward := make([]int, qn)
	for j := 0; j < qn; j++ {
		bestIdx := 0
		for i := 1; i < tn; i++ {
			if dist[i*qn+j] < dist[bestIdx*qn+j] {
				bestIdx = i
			}
		}
		backward[j] = bestIdx
	}

	for i := 0; i < tn; i++ {
		row := dist[i*qn : (i+1)*qn]
		bestIdx := 0
		for j := 1; j < qn; j++ {
			if row[j] < row[bestIdx] {
				bestIdx = j
			}
		}
		if backward[bestIdx] != i {
			continue
		}
		if row[bestIdx] > limit {
			continue
		}
		out = append(out, Correspondence{TemplateIndex: i, QueryIndex: bestIdx, Distance: row[bestIdx]})
	}
	return out
}
