//go:build !gocv
// +build !gocv

package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_OpenCVRequiresBuildTag(t *testing.T) {
	for _, name := range []string{OpenCVORB, OpenCVSIFT} {
		_, err := New(name, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gocv build tag")
	}
}
