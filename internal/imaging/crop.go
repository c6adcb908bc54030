package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Box is an inclusive pixel rectangle with the confidence of the detection
// that produced it.
type Box struct {
	XMin       int
	YMin       int
	XMax       int
	YMax       int
	Confidence float64
}

// Rect converts the inclusive box to a half-open image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax+1, b.YMax+1)
}

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts the region covered by box from img, optionally rescaled.
//
// The box is expressed relative to the image origin. A scale of 1.0 (or any
// value <= 0) keeps the native resolution; other values resize with a Lanczos
// filter.
func Crop(img image.Image, box Box, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if box.XMin < 0 || box.YMin < 0 || box.XMax >= w || box.YMax >= h {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds %dx%d",
			box.XMin, box.YMin, box.XMax, box.YMax, w, h)
	}
	if box.XMin > box.XMax || box.YMin > box.YMax {
		return nil, fmt.Errorf("invalid crop region: min corner must not exceed max corner")
	}

	cropped := imaging.Crop(img, box.Rect().Add(bounds.Min))

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := EncodePNGBase64(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
