package detection

import (
	"math"

	"github.com/ironsheep/feature-match-detector/internal/geometry"
)

// ClassName is the only label a detection carries.
const ClassName = "match"

// DefaultNormalization is the correspondence count at which confidence
// saturates at 1.0.
const DefaultNormalization = 40.0

// Detection is one located template instance in a query image.
//
// Coordinates are inclusive pixel indices inside the query image:
//   - 0 <= XMin <= XMax < width
//   - 0 <= YMin <= YMax < height
type Detection struct {
	// Confidence is a heuristic match strength in [0,1], not a probability.
	Confidence float64 `json:"confidence"`

	// ClassName is always "match".
	ClassName string `json:"class_name"`

	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Assembler converts inlier query points into a Detection.
type Assembler struct {
	// Normalization divides the correspondence count to give the confidence.
	// Values <= 0 use DefaultNormalization.
	Normalization float64
}

// Assemble builds the detection box around points and scores it from the
// number of correspondences that passed the match gate.
//
// The box runs from floor of the minimum to ceil of the maximum coordinate,
// clamped to [0,width-1] x [0,height-1]. ok is false when points is empty or
// the image has no area.
func (a Assembler) Assemble(points []geometry.Point, correspondences, width, height int) (Detection, bool) {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return Detection{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	norm := a.Normalization
	if norm <= 0 {
		norm = DefaultNormalization
	}
	confidence := float64(correspondences) / norm
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return Detection{
		Confidence: confidence,
		ClassName:  ClassName,
		XMin:       clampCoord(math.Floor(minX), width),
		YMin:       clampCoord(math.Floor(minY), height),
		XMax:       clampCoord(math.Ceil(maxX), width),
		YMax:       clampCoord(math.Ceil(maxY), height),
	}, true
}

func clampCoord(v float64, size int) int {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > float64(size-1) {
		return size - 1
	}
	return int(v)
}
