package features

import (
	"fmt"
	"image"
)

// Extractor names accepted by New.
const (
	ORB        = "orb"
	Gradient   = "gradient"
	OpenCVORB  = "opencv-orb"
	OpenCVSIFT = "opencv-sift"
)

// Encoding identifies how descriptors in a FeatureSet are stored.
type Encoding int

const (
	// EncodingBinary descriptors are bit-packed into Descriptor.Bits.
	EncodingBinary Encoding = iota
	// EncodingFloat descriptors are real-valued vectors in Descriptor.Values.
	EncodingFloat
)

func (e Encoding) String() string {
	switch e {
	case EncodingBinary:
		return "binary"
	case EncodingFloat:
		return "float"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// Keypoint is a located, oriented salient point.
type Keypoint struct {
	// X and Y are subpixel coordinates in the original (level 0) image.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Scale is the diameter in level-0 pixels of the patch that was described.
	Scale float64 `json:"scale"`

	// Angle is the patch orientation in radians, counter-clockwise from +X
	// in image coordinates (Y down).
	Angle float64 `json:"angle"`

	// Response is the detector score; larger is stronger.
	Response float64 `json:"response"`

	// Octave is the pyramid level the keypoint was found on.
	Octave int `json:"octave"`
}

// Descriptor characterises the patch around one keypoint. Exactly one of
// Bits or Values is set, depending on the FeatureSet encoding.
type Descriptor struct {
	Bits   []uint64
	Values []float32
}

// FeatureSet is the ordered list of keypoints and descriptors found in one
// image. It is immutable: accessors return values, and the descriptor slices
// they expose must not be written to.
type FeatureSet struct {
	encoding    Encoding
	width       int
	height      int
	keypoints   []Keypoint
	descriptors []Descriptor
}

// NewFeatureSet builds a FeatureSet for an image of the given size.
// The slices are copied; keypoint and descriptor counts must agree.
func NewFeatureSet(enc Encoding, width, height int, kps []Keypoint, descs []Descriptor) (*FeatureSet, error) {
	if len(kps) != len(descs) {
		return nil, fmt.Errorf("keypoint count %d does not match descriptor count %d", len(kps), len(descs))
	}
	for i, d := range descs {
		if enc == EncodingBinary && len(d.Bits) == 0 {
			return nil, fmt.Errorf("descriptor %d has no bits for binary encoding", i)
		}
		if enc == EncodingFloat && len(d.Values) == 0 {
			return nil, fmt.Errorf("descriptor %d has no values for float encoding", i)
		}
	}

	fs := &FeatureSet{
		encoding:    enc,
		width:       width,
		height:      height,
		keypoints:   make([]Keypoint, len(kps)),
		descriptors: make([]Descriptor, len(descs)),
	}
	copy(fs.keypoints, kps)
	copy(fs.descriptors, descs)
	return fs, nil
}

// EmptyFeatureSet returns a FeatureSet with no entries, used for images in
// which nothing salient was found.
func EmptyFeatureSet(enc Encoding, width, height int) *FeatureSet {
	return &FeatureSet{encoding: enc, width: width, height: height}
}

// Len returns the number of keypoints. A nil set has length zero.
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.keypoints)
}

// Encoding returns the descriptor encoding.
func (fs *FeatureSet) Encoding() Encoding { return fs.encoding }

// Width returns the width of the source image in pixels.
func (fs *FeatureSet) Width() int { return fs.width }

// Height returns the height of the source image in pixels.
func (fs *FeatureSet) Height() int { return fs.height }

// Keypoint returns keypoint i.
func (fs *FeatureSet) Keypoint(i int) Keypoint { return fs.keypoints[i] }

// Descriptor returns descriptor i.
func (fs *FeatureSet) Descriptor(i int) Descriptor { return fs.descriptors[i] }

// Extractor locates keypoints in an image and describes them.
type Extractor interface {
	// Name returns the strategy name passed to New.
	Name() string

	// Extract converts img to grayscale and returns its features. An image
	// without detectable structure yields an empty set, not an error.
	Extract(img image.Image) (*FeatureSet, error)
}

// Options tunes keypoint detection. Zero fields take the defaults from
// DefaultOptions.
type Options struct {
	// MaxFeatures caps the number of keypoints kept, strongest first.
	MaxFeatures int

	// Levels is the number of pyramid levels searched.
	Levels int

	// ScaleFactor is the size ratio between consecutive pyramid levels.
	ScaleFactor float64

	// FastThreshold is the intensity difference (0-255) a circle pixel must
	// exceed to count as brighter or darker than the centre.
	FastThreshold float64
}

// DefaultOptions returns the detection defaults.
func DefaultOptions() Options {
	return Options{
		MaxFeatures:   500,
		Levels:        3,
		ScaleFactor:   1.5,
		FastThreshold: 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = d.MaxFeatures
	}
	if o.Levels <= 0 {
		o.Levels = d.Levels
	}
	if o.ScaleFactor <= 1 {
		o.ScaleFactor = d.ScaleFactor
	}
	if o.FastThreshold <= 0 {
		o.FastThreshold = d.FastThreshold
	}
	return o
}

// New returns the extractor registered under name.
func New(name string, opts Options) (Extractor, error) {
	opts = opts.withDefaults()
	switch name {
	case ORB:
		return newPyramidExtractor(ORB, EncodingBinary, opts, describeBRIEF), nil
	case Gradient:
		return newPyramidExtractor(Gradient, EncodingFloat, opts, describeGradient), nil
	case OpenCVORB, OpenCVSIFT:
		return newOpenCVExtractor(name, opts)
	default:
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
}

// Names lists the extractor names New understands.
func Names() []string {
	return []string{ORB, Gradient, OpenCVORB, OpenCVSIFT}
}
