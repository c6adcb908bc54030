// Package features extracts keypoints and descriptors from images.
//
// An Extractor turns an image into an immutable FeatureSet: an ordered list of
// keypoints, each paired with a descriptor. Two pure-Go strategies are always
// available and two OpenCV-backed strategies are compiled in with the gocv
// build tag:
//
//   - "orb": FAST-9 corners over a scale pyramid, intensity-centroid
//     orientation and rotated BRIEF descriptors (256 bits, bit-packed)
//   - "gradient": the same keypoints described by a 4x4x8 gradient
//     orientation histogram (128 float32 values)
//   - "opencv-orb", "opencv-sift": OpenCV's ORB and SIFT via gocv
//
// # Algorithm
//
// The pure-Go strategies share one detector:
//
//  1. Grayscale conversion and a pyramid of Levels images, each ScaleFactor
//     smaller than the previous one
//  2. FAST segment test on the 16-pixel circle of radius 3: a pixel is a
//     corner when 9 contiguous circle pixels are all brighter or all darker
//     than the centre by more than FastThreshold
//  3. 3x3 non-maximum suppression on the corner score
//  4. Orientation from the intensity centroid of a radius-15 disc
//  5. The MaxFeatures strongest corners over all levels are described on a
//     gaussian-smoothed copy of their level
//
// Keypoints closer than 24 pixels (at their level) to the border are dropped
// so every descriptor sample stays inside the image.
//
// # Determinism
//
// Extraction is a pure function of the pixel buffer and Options. Ties in
// corner response are broken by position and pyramid level, and the BRIEF
// sampling pattern is generated from a fixed seed.
//
// # Thread Safety
//
// Extractors hold no mutable state and may be shared between goroutines.
// FeatureSets are read-only after construction.
package features
