package detection

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/feature-match-detector/internal/features"
	"github.com/ironsheep/feature-match-detector/internal/geometry"
	"github.com/ironsheep/feature-match-detector/internal/imaging"
	"github.com/ironsheep/feature-match-detector/internal/matching"
)

// PoseEstimator fits a homography from template points to query points.
// geometry.RANSAC is the production implementation.
type PoseEstimator interface {
	Estimate(ctx context.Context, src, dst []geometry.Point) (*geometry.Estimate, error)
}

// Settings are the values a Detector is built from.
type Settings struct {
	// SourcePath is the template image. Required.
	SourcePath string

	// MinMatches gates pose estimation; 0 means DefaultMinMatches.
	MinMatches int

	// Extractor names a features strategy; empty means features.ORB.
	Extractor        string
	ExtractorOptions features.Options

	// MatchPolicy names a matching policy; empty means matching.PolicyRatio.
	MatchPolicy  string
	MatchOptions matching.Options

	// RANSAC configures the default estimator. RANSAC.MinInliers also gates
	// the reported detection; 0 there means the current MinMatches.
	RANSAC geometry.RANSAC

	// Normalization is the assembler's confidence divisor.
	Normalization float64

	// Timeout bounds a single Detect call; 0 means no bound.
	Timeout time.Duration
}

// Options injects components. Nil fields are built from Settings.
type Options struct {
	Extractor features.Extractor
	Matcher   matching.Matcher
	Estimator PoseEstimator
	Assembler *Assembler
	Logger    logrus.FieldLogger

	// LoadImage reads a template image; defaults to imaging.LoadImage.
	LoadImage func(path string) (image.Image, error)
}

// Detector locates one template image inside query images.
//
// Detect is safe for concurrent use and takes no locks: it loads the current
// TemplateState once and works against that snapshot. Updates (Apply,
// Reconfigure, UpdateThreshold) are serialised among themselves and publish a
// complete new TemplateState with a single atomic store, so a detection never
// sees the features of one configuration with the threshold of another.
type Detector struct {
	extractor features.Extractor
	matcher   matching.Matcher
	estimator PoseEstimator
	assembler Assembler
	log       logrus.FieldLogger
	load       func(path string) (image.Image, error)
	timeout    time.Duration
	minInliers int

	state atomic.Pointer[TemplateState]
	mu    sync.Mutex // writers only
}

// New builds a Detector and loads its initial template. Any problem with the
// settings or the template is returned as a *ConfigurationError.
func New(ctx context.Context, s Settings, opts Options) (*Detector, error) {
	d := &Detector{
		extractor:  opts.Extractor,
		matcher:    opts.Matcher,
		estimator:  opts.Estimator,
		log:        opts.Logger,
		load:       opts.LoadImage,
		timeout:    s.Timeout,
		minInliers: s.RANSAC.MinInliers,
	}

	if d.extractor == nil {
		name := s.Extractor
		if name == "" {
			name = features.ORB
		}
		ex, err := features.New(name, s.ExtractorOptions)
		if err != nil {
			return nil, configError("extractor", name, err)
		}
		d.extractor = ex
	}
	if d.matcher == nil {
		policy := s.MatchPolicy
		if policy == "" {
			policy = matching.PolicyRatio
		}
		m, err := matching.New(policy, s.MatchOptions)
		if err != nil {
			return nil, configError("match_policy", policy, err)
		}
		d.matcher = m
	}
	if d.estimator == nil {
		d.estimator = s.RANSAC
	}
	if opts.Assembler != nil {
		d.assembler = *opts.Assembler
	} else {
		d.assembler = Assembler{Normalization: s.Normalization}
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	if d.load == nil {
		d.load = imaging.LoadImage
	}
	if s.Timeout < 0 {
		return nil, configError("timeout", s.Timeout, errors.New("must not be negative"))
	}
	if n := s.RANSAC.MinInliers; n < 0 || (n > 0 && n <= geometry.SampleSize) {
		return nil, configError("ransac_min_inliers", n, errors.Errorf("must be 0 or greater than %d", geometry.SampleSize))
	}

	minMatches := s.MinMatches
	if minMatches == 0 {
		minMatches = DefaultMinMatches
	}
	if _, err := d.Apply(ctx, SetSourceImage{Path: s.SourcePath}, SetMinMatches{N: minMatches}); err != nil {
		return nil, err
	}
	return d, nil
}

// State returns the current TemplateState. The caller must not modify it.
func (d *Detector) State() *TemplateState {
	return d.state.Load()
}

// ExtractorName returns the keypoint strategy in use.
func (d *Detector) ExtractorName() string { return d.extractor.Name() }

// MatchPolicy returns the matching policy in use.
func (d *Detector) MatchPolicy() string { return d.matcher.Name() }

// Apply validates every command, folds them into one new TemplateState and
// publishes it. On any error nothing is published and the previous state
// stays active. Template I/O happens here, never in Detect.
func (d *Detector) Apply(ctx context.Context, cmds ...Command) (*TemplateState, error) {
	for _, c := range cmds {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state.Load()
	if len(cmds) == 0 {
		return prev, nil
	}

	next := prev.next()
	for _, c := range cmds {
		if err := c.fold(ctx, d, next); err != nil {
			return nil, err
		}
	}
	if next.Features == nil {
		return nil, configError(KeySourceImagePath, `""`, errors.New("no template image configured"))
	}
	if next.MinMatches == 0 {
		next.MinMatches = DefaultMinMatches
	}

	d.state.Store(next)
	d.log.WithFields(logrus.Fields{
		"version":     next.Version,
		"state_id":    next.ID.String(),
		"source":      next.SourcePath,
		"keypoints":   next.Features.Len(),
		"min_matches": next.MinMatches,
	}).Info("template state published")
	return next, nil
}

// Reconfigure reloads the template from path and sets the threshold in one
// atomic update.
func (d *Detector) Reconfigure(ctx context.Context, path string, minMatches int) error {
	_, err := d.Apply(ctx, SetSourceImage{Path: path}, SetMinMatches{N: minMatches})
	return err
}

// UpdateThreshold changes only the correspondence gate; template features are
// reused.
func (d *Detector) UpdateThreshold(minMatches int) error {
	_, err := d.Apply(context.Background(), SetMinMatches{N: minMatches})
	return err
}

func (d *Detector) loadTemplate(ctx context.Context, path string) (*features.FeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := d.load(path)
	if err != nil {
		return nil, configError(KeySourceImagePath, path, err)
	}
	fs, err := d.extractor.Extract(img)
	if err != nil {
		return nil, configError(KeySourceImagePath, path, errors.Wrap(err, "extract template features"))
	}
	if fs.Len() == 0 {
		return nil, configError(KeySourceImagePath, path, errors.New("template yields no keypoints"))
	}
	return fs, nil
}

// Detect locates the template in img. It returns zero or one detection.
//
// Per-frame failures (no query keypoints, too few correspondences, no
// geometric consensus) are not errors: the result is an empty, non-nil slice.
// Only cancellation or expiry of ctx is returned as an error.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	out := make([]Detection, 0, 1)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	state := d.state.Load()
	log := d.log.WithField("version", state.Version)

	if img == nil || img.Bounds().Empty() {
		log.WithField("reason", "empty_image").Debug("no detection")
		return out, nil
	}

	query, err := d.extractor.Extract(img)
	if err != nil {
		log.WithError(err).WithField("reason", "extract_failed").Debug("no detection")
		return out, nil
	}
	if query.Len() == 0 {
		log.WithField("reason", "no_query_keypoints").Debug("no detection")
		return out, nil
	}

	corr := d.matcher.Match(state.Features, query)
	if len(corr) < state.MinMatches {
		log.WithFields(logrus.Fields{
			"reason":      "too_few_matches",
			"matches":     len(corr),
			"min_matches": state.MinMatches,
		}).Debug("no detection")
		return out, nil
	}

	src := make([]geometry.Point, len(corr))
	dst := make([]geometry.Point, len(corr))
	for i, c := range corr {
		tk := state.Features.Keypoint(c.TemplateIndex)
		qk := query.Keypoint(c.QueryIndex)
		src[i] = geometry.Point{X: tk.X, Y: tk.Y}
		dst[i] = geometry.Point{X: qk.X, Y: qk.Y}
	}

	est, err := d.estimator.Estimate(ctx, src, dst)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		log.WithError(err).WithFields(logrus.Fields{
			"reason":  "no_pose",
			"matches": len(corr),
		}).Debug("no detection")
		return out, nil
	}

	need := d.minInliers
	if need == 0 {
		need = state.MinMatches
	}
	if est.Inliers < need {
		log.WithFields(logrus.Fields{
			"reason":      "too_few_inliers",
			"inliers":     est.Inliers,
			"min_inliers": need,
		}).Debug("no detection")
		return out, nil
	}

	inliers := make([]geometry.Point, 0, est.Inliers)
	for i, in := range est.Mask {
		if in && i < len(dst) {
			inliers = append(inliers, dst[i])
		}
	}

	b := img.Bounds()
	det, ok := d.assembler.Assemble(inliers, len(corr), b.Dx(), b.Dy())
	if !ok {
		log.WithField("reason", "degenerate_transform").Debug("no detection")
		return out, nil
	}
	// Keypoints are relative to the image origin; report absolute pixels.
	det.XMin += b.Min.X
	det.XMax += b.Min.X
	det.YMin += b.Min.Y
	det.YMax += b.Min.Y

	log.WithFields(logrus.Fields{
		"matches":    len(corr),
		"inliers":    len(inliers),
		"confidence": det.Confidence,
	}).Debug("template detected")
	return append(out, det), nil
}

// DetectEncoded decodes an encoded image (PNG, JPEG, GIF, BMP or TIFF) and
// runs Detect on it. Undecodable input is an error.
func (d *Detector) DetectEncoded(ctx context.Context, data []byte) ([]Detection, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode query image")
	}
	return d.Detect(ctx, img)
}
