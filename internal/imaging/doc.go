// Package imaging provides the image plumbing used by the feature matcher.
//
// This package loads and decodes template and query images, converts them to
// floating-point grayscale planes for keypoint extraction, builds resized and
// smoothed copies for scale pyramids, and renders detection results back onto
// images (annotation and cropping).
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based and relative to the
// top-left corner of the image:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Boxes are inclusive on both corners: (XMin,YMin) and (XMax,YMax) are
//     both pixels inside the box
//
// Images whose bounds do not start at (0,0) are normalised on conversion; a
// GrayPlane always starts at the origin.
//
// # Grayscale Planes
//
// GrayPlane stores luminance as float32 in the range 0-255. Conversion goes
// through disintegration/imaging, so any image.Image (paletted, YCbCr, NRGBA,
// 16-bit) is accepted. Out-of-range reads clamp to the nearest edge pixel.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and may be called concurrently; a GrayPlane is read-only after
// construction.
//
// # Error Handling
//
// Functions return errors for:
//   - File I/O errors during image loading
//   - Undecodable or empty image data
//   - Encoding errors during PNG output
//   - Crop boxes that fall outside the image
package imaging
