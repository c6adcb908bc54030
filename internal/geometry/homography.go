// Package geometry fits planar projective transforms between point sets.
//
// The package provides the Homography type, a normalised direct linear
// transform (DLT) solver and a RANSAC estimator that fits a homography to
// correspondences contaminated by outliers.
//
// # Coordinate System
//
// Points are in pixel units with the image convention (origin top-left, Y
// down). A Homography maps template-plane coordinates to query-image
// coordinates.
//
// # Determinism
//
// RANSAC draws its samples from a math/rand source created per call from the
// configured seed, so identical input and seed always give the identical
// homography and inlier mask, even when estimators run concurrently.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is a 2D location in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Homography is a 3x3 projective transform stored row-major.
type Homography [9]float64

// Project maps p through h. ok is false when p lands on the line at infinity.
func (h Homography) Project(p Point) (Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// ReprojectionError is the distance between h(src) and dst, or +Inf when src
// projects to infinity.
func (h Homography) ReprojectionError(src, dst Point) float64 {
	p, ok := h.Project(src)
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(p.X-dst.X, p.Y-dst.Y)
}

// mul returns a*b for row-major 3x3 matrices.
func mul(a, b Homography) Homography {
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = a[r*3]*b[c] + a[r*3+1]*b[3+c] + a[r*3+2]*b[6+c]
		}
	}
	return out
}

// normalization returns the similarity transform that moves the centroid of
// pts to the origin and scales their mean distance from it to sqrt(2), and
// its inverse. ok is false when all points coincide.
func normalization(pts []Point) (t, inv Homography, ok bool) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= n
	if mean < 1e-12 {
		return Homography{}, Homography{}, false
	}

	s := math.Sqrt2 / mean
	t = Homography{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}
	inv = Homography{1 / s, 0, cx, 0, 1 / s, cy, 0, 0, 1}
	return t, inv, true
}

// Fit solves for the homography mapping src onto dst with the normalised
// direct linear transform. Four correspondences give an exact solution; more
// give the algebraic least-squares solution. ok is false for fewer than four
// points or a degenerate configuration.
func Fit(src, dst []Point) (Homography, bool) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return Homography{}, false
	}

	ts, _, ok := normalization(src)
	if !ok {
		return Homography{}, false
	}
	td, tdInv, ok := normalization(dst)
	if !ok {
		return Homography{}, false
	}

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		s, _ := ts.Project(src[i])
		d, _ := td.Project(dst[i])
		a.SetRow(2*i, []float64{-s.X, -s.Y, -1, 0, 0, 0, d.X * s.X, d.X * s.Y, d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -s.X, -s.Y, -1, d.Y * s.X, d.Y * s.Y, d.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Homography{}, false
	}
	var v mat.Dense
	svd.VTo(&v)

	// The solution is the right singular vector of the smallest singular
	// value, which is always the last column.
	var hn Homography
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	h := mul(tdInv, mul(hn, ts))
	if math.Abs(h[8]) < 1e-12 {
		return Homography{}, false
	}
	for i := range h {
		h[i] /= h[8]
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return Homography{}, false
		}
	}
	return h, true
}

// collinear reports whether a, b and c lie on (or very near) one line.
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func collinear(a, b, c Point) bool {
	return math.Abs(cross(a, b, c)) < 1.0
}

// degenerateSample reports whether any three of the four points are collinear.
func degenerateSample(p [4]Point) bool {
	return collinear(p[0], p[1], p[2]) ||
		collinear(p[0], p[1], p[3]) ||
		collinear(p[0], p[2], p[3]) ||
		collinear(p[1], p[2], p[3])
}

// orientationPreserved reports whether every triangle of the sample keeps its
// winding order under the mapping src -> dst. A planar target seen from the
// front never flips, so a candidate that does is not a pose.
func orientationPreserved(src, dst [4]Point) bool {
	for _, t := range [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}} {
		a := cross(src[t[0]], src[t[1]], src[t[2]])
		b := cross(dst[t[0]], dst[t[1]], dst[t[2]])
		if (a > 0) != (b > 0) {
			return false
		}
	}
	return true
}
