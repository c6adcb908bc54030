package features

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

// smoothRadius is the gaussian radius applied to a level before describing it.
const smoothRadius = 2.0

type describeFunc func(smoothed *imaging.GrayPlane, x, y int, angle float64) Descriptor

// pyramidExtractor implements the pure-Go strategies: FAST corners over a
// scale pyramid, described by a pluggable descriptor function.
type pyramidExtractor struct {
	name     string
	encoding Encoding
	opts     Options
	describe describeFunc
}

func newPyramidExtractor(name string, enc Encoding, opts Options, describe describeFunc) *pyramidExtractor {
	return &pyramidExtractor{name: name, encoding: enc, opts: opts, describe: describe}
}

func (e *pyramidExtractor) Name() string { return e.name }

// level is one pyramid image with its mapping back to level-0 coordinates.
type level struct {
	plane    *imaging.GrayPlane
	smoothed *imaging.GrayPlane
	sx, sy   float64
}

type candidate struct {
	level int
	c     corner
	x, y  float64
	angle float64
}

// Extract implements Extractor.
func (e *pyramidExtractor) Extract(img image.Image) (*FeatureSet, error) {
	if img == nil {
		return nil, fmt.Errorf("%s: image is nil", e.name)
	}

	base := imaging.NewGrayPlane(img)
	if base.Empty() {
		return EmptyFeatureSet(e.encoding, base.Width, base.Height), nil
	}

	levels := make([]level, 0, e.opts.Levels)
	var candidates []candidate
	scale := 1.0
	for l := 0; l < e.opts.Levels; l++ {
		plane := base
		if l > 0 {
			scale *= e.opts.ScaleFactor
			w := int(math.Round(float64(base.Width) / scale))
			h := int(math.Round(float64(base.Height) / scale))
			if w < 2*describeBorder+1 || h < 2*describeBorder+1 {
				break
			}
			plane = base.Resize(w, h)
		}

		lv := level{
			plane: plane,
			sx:    float64(base.Width) / float64(plane.Width),
			sy:    float64(base.Height) / float64(plane.Height),
		}
		levels = append(levels, lv)

		for _, c := range detectFAST(plane, float32(e.opts.FastThreshold), describeBorder) {
			candidates = append(candidates, candidate{
				level: l,
				c:     c,
				x:     (float64(c.x)+0.5)*lv.sx - 0.5,
				y:     (float64(c.y)+0.5)*lv.sy - 0.5,
				angle: intensityAngle(plane, c.x, c.y),
			})
		}
	}

	if len(candidates) == 0 {
		return EmptyFeatureSet(e.encoding, base.Width, base.Height), nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.c.score != b.c.score {
			return a.c.score > b.c.score
		}
		if a.y != b.y {
			return a.y < b.y
		}
		if a.x != b.x {
			return a.x < b.x
		}
		return a.level < b.level
	})
	if len(candidates) > e.opts.MaxFeatures {
		candidates = candidates[:e.opts.MaxFeatures]
	}

	kps := make([]Keypoint, len(candidates))
	descs := make([]Descriptor, len(candidates))
	for i, cand := range candidates {
		lv := &levels[cand.level]
		if lv.smoothed == nil {
			lv.smoothed = lv.plane.Smooth(smoothRadius)
		}
		kps[i] = Keypoint{
			X:        cand.x,
			Y:        cand.y,
			Scale:    float64(2*briefRadius+1) * lv.sx,
			Angle:    cand.angle,
			Response: float64(cand.c.score),
			Octave:   cand.level,
		}
		descs[i] = e.describe(lv.smoothed, cand.c.x, cand.c.y, cand.angle)
	}

	return NewFeatureSet(e.encoding, base.Width, base.Height, kps, descs)
}
