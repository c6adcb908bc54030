package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"time"

	"github.com/pkg/errors"

	"github.com/ironsheep/feature-match-detector/internal/detection"
	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

// annotateThickness is the outline width drawn by detect with annotate set.
const annotateThickness = 2

// === detect ===

type detectParams struct {
	// Exactly one of ImagePath and ImageBase64 must be set.
	ImagePath   string `json:"image_path"`
	ImageBase64 string `json:"image_base64"`

	// Reload bypasses the image cache for ImagePath.
	Reload bool `json:"reload"`

	// TimeoutMs bounds the call; 0 leaves only the detector's own limit.
	TimeoutMs int `json:"timeout_ms"`

	Annotate bool `json:"annotate"`
	Crop     bool `json:"crop"`
}

// DetectResult is the result of the detect method.
type DetectResult struct {
	Detections []detection.Detection `json:"detections"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`

	// AnnotatedBase64 is the query image with detection outlines, as PNG.
	AnnotatedBase64 string `json:"annotated_base64,omitempty"`

	// CropBase64 is the region of the first detection, as PNG.
	CropBase64 string `json:"crop_base64,omitempty"`
}

func (s *Server) handleDetect(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p detectParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	if (p.ImagePath == "") == (p.ImageBase64 == "") {
		return nil, invalidParams(errors.New("exactly one of image_path and image_base64 is required"))
	}
	if p.TimeoutMs < 0 {
		return nil, invalidParams(errors.New("timeout_ms must not be negative"))
	}

	img, rpcErr := s.queryImage(p)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if p.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	dets, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, executionFailed("Detection cancelled", err)
	}

	b := img.Bounds()
	res := &DetectResult{Detections: dets, Width: b.Dx(), Height: b.Dy()}

	boxes := make([]imaging.Box, len(dets))
	for i, d := range dets {
		// Detections are absolute; the imaging helpers work from the origin.
		boxes[i] = imaging.Box{
			XMin:       d.XMin - b.Min.X,
			YMin:       d.YMin - b.Min.Y,
			XMax:       d.XMax - b.Min.X,
			YMax:       d.YMax - b.Min.Y,
			Confidence: d.Confidence,
		}
	}

	if p.Annotate {
		encoded, err := imaging.EncodePNGBase64(imaging.Annotate(img, boxes, annotateThickness))
		if err != nil {
			return nil, executionFailed("Annotation failed", err)
		}
		res.AnnotatedBase64 = encoded
	}
	if p.Crop && len(boxes) > 0 {
		crop, err := imaging.Crop(img, boxes[0], 1.0)
		if err != nil {
			return nil, executionFailed("Crop failed", err)
		}
		res.CropBase64 = crop.ImageBase64
	}
	return res, nil
}

func (s *Server) queryImage(p detectParams) (image.Image, *RPCError) {
	if p.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(p.ImageBase64)
		if err != nil {
			return nil, invalidParams(errors.Wrap(err, "image_base64"))
		}
		img, err := imaging.Decode(data)
		if err != nil {
			return nil, invalidParams(errors.Wrap(err, "image_base64"))
		}
		return img, nil
	}

	if p.Reload {
		s.cache.Evict(p.ImagePath)
	}
	img, err := s.cache.Load(p.ImagePath)
	if err != nil {
		return nil, executionFailed("Image load failed", err)
	}
	return img, nil
}

// === do_command ===

type doCommandParams struct {
	Set []detection.KeyValue `json:"set"`
}

// CommandResult acknowledges a do_command call.
type CommandResult struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Version   uint64 `json:"version"`
}

func (s *Server) handleDoCommand(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p doCommandParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, invalidParams(err)
	}

	cmds, err := detection.ParseSetCommands(p.Set)
	if err != nil {
		return nil, invalidParams(err)
	}

	state, err := s.detector.Apply(ctx, cmds...)
	if err != nil {
		return nil, executionFailed("Reconfiguration failed", err)
	}
	return &CommandResult{
		Response:  "OK",
		Timestamp: s.now().Format(time.RFC3339Nano),
		Version:   state.Version,
	}, nil
}

// === status ===

// StatusResult summarises the active template configuration.
type StatusResult struct {
	StateID         string    `json:"state_id"`
	Version         uint64    `json:"version"`
	SourceImagePath string    `json:"source_image_path"`
	Keypoints       int       `json:"keypoints"`
	TemplateWidth   int       `json:"template_width"`
	TemplateHeight  int       `json:"template_height"`
	MinGoodMatches  int       `json:"min_good_matches"`
	Extractor       string    `json:"extractor"`
	MatchPolicy     string    `json:"match_policy"`
	LoadedAt        time.Time `json:"loaded_at"`
	CachedImages    int       `json:"cached_images"`
}

func (s *Server) handleStatus() *StatusResult {
	st := s.detector.State()
	return &StatusResult{
		StateID:         st.ID.String(),
		Version:         st.Version,
		SourceImagePath: st.SourcePath,
		Keypoints:       st.Features.Len(),
		TemplateWidth:   st.Features.Width(),
		TemplateHeight:  st.Features.Height(),
		MinGoodMatches:  st.MinMatches,
		Extractor:       s.detector.ExtractorName(),
		MatchPolicy:     s.detector.MatchPolicy(),
		LoadedAt:        st.LoadedAt,
		CachedImages:    s.cache.Len(),
	}
}

// unmarshalParams decodes params into v; absent params leave v zero.
func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
