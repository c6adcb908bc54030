//go:build !gocv
// +build !gocv

package features

import "errors"

// newOpenCVExtractor reports that OpenCV strategies need the gocv build tag.
func newOpenCVExtractor(name string, opts Options) (Extractor, error) {
	_ = opts
	return nil, errors.New(name + ": gocv build tag is not enabled")
}
