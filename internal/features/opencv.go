//go:build gocv
// +build gocv

package features

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

// openCVExtractor delegates detection and description to OpenCV.
type openCVExtractor struct {
	name        string
	maxFeatures int
}

func newOpenCVExtractor(name string, opts Options) (Extractor, error) {
	return &openCVExtractor{name: name, maxFeatures: opts.MaxFeatures}, nil
}

func (e *openCVExtractor) Name() string { return e.name }

// Extract implements Extractor.
func (e *openCVExtractor) Extract(img image.Image) (*FeatureSet, error) {
	if img == nil {
		return nil, fmt.Errorf("%s: image is nil", e.name)
	}

	enc := EncodingBinary
	if e.name == OpenCVSIFT {
		enc = EncodingFloat
	}
	b := img.Bounds()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%s: convert image: %w", e.name, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return EmptyFeatureSet(enc, b.Dx(), b.Dy()), nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	mask := gocv.NewMat()
	defer mask.Close()

	var (
		kps  []gocv.KeyPoint
		desc gocv.Mat
	)
	switch e.name {
	case OpenCVSIFT:
		sift := gocv.NewSIFT()
		defer sift.Close()
		kps, desc = sift.DetectAndCompute(gray, mask)
	default:
		orb := gocv.NewORB()
		defer orb.Close()
		kps, desc = orb.DetectAndCompute(gray, mask)
	}
	defer desc.Close()

	if len(kps) == 0 || desc.Empty() {
		return EmptyFeatureSet(enc, b.Dx(), b.Dy()), nil
	}

	order := make([]int, len(kps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return kps[order[i]].Response > kps[order[j]].Response
	})
	if len(order) > e.maxFeatures {
		order = order[:e.maxFeatures]
	}

	keypoints := make([]Keypoint, len(order))
	descs := make([]Descriptor, len(order))
	for i, idx := range order {
		kp := kps[idx]
		keypoints[i] = Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Scale:    kp.Size,
			Angle:    kp.Angle * math.Pi / 180,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
		descs[i] = matRow(desc, idx, enc)
	}

	return NewFeatureSet(enc, b.Dx(), b.Dy(), keypoints, descs)
}

// matRow copies one descriptor row out of an OpenCV descriptor matrix.
func matRow(desc gocv.Mat, row int, enc Encoding) Descriptor {
	cols := desc.Cols()
	if enc == EncodingFloat {
		values := make([]float32, cols)
		for c := 0; c < cols; c++ {
			values[c] = desc.GetFloatAt(row, c)
		}
		return Descriptor{Values: values}
	}

	bits := make([]uint64, (cols*8+63)/64)
	for c := 0; c < cols; c++ {
		bits[c/8] |= uint64(desc.GetUCharAt(row, c)) << uint(8*(c%8))
	}
	return Descriptor{Bits: bits}
}
