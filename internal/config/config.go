// Package config loads detector settings from the environment.
//
// Values come from FEATURE_MATCH_* environment variables, optionally seeded
// from a .env file in the working directory. Variables already present in the
// environment take precedence over the file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ironsheep/feature-match-detector/internal/detection"
	"github.com/ironsheep/feature-match-detector/internal/features"
	"github.com/ironsheep/feature-match-detector/internal/geometry"
	"github.com/ironsheep/feature-match-detector/internal/matching"
)

// Prefix is prepended to every variable name.
const Prefix = "FEATURE_MATCH_"

// Variable names, without Prefix.
const (
	EnvSourceImagePath         = "SOURCE_IMAGE_PATH"
	EnvMinGoodMatches          = "MIN_GOOD_MATCHES"
	EnvExtractor               = "EXTRACTOR"
	EnvMatchPolicy             = "MATCH_POLICY"
	EnvRatio                   = "RATIO"
	EnvMaxMatchDistance        = "MAX_MATCH_DISTANCE"
	EnvMaxFeatures             = "MAX_FEATURES"
	EnvReprojectionThreshold   = "REPROJECTION_THRESHOLD"
	EnvRansacMaxTrials         = "RANSAC_MAX_TRIALS"
	EnvRansacConfidence        = "RANSAC_CONFIDENCE"
	EnvRansacSeed              = "RANSAC_SEED"
	EnvRansacMinInliers        = "RANSAC_MIN_INLIERS"
	EnvConfidenceNormalization = "CONFIDENCE_NORMALIZATION"
	EnvDetectTimeout           = "DETECT_TIMEOUT"
	EnvLogLevel                = "LOG_LEVEL"
	EnvLogFormat               = "LOG_FORMAT"
)

// Config holds every tunable of the detector and its host process.
type Config struct {
	SourceImagePath string
	MinGoodMatches  int

	Extractor   string
	MaxFeatures int

	MatchPolicy      string
	Ratio            float64
	MaxMatchDistance float64

	ReprojectionThreshold float64
	RansacMaxTrials       int
	RansacConfidence      float64
	RansacSeed            int64

	// RansacMinInliers is the smallest consensus set reported as a
	// detection. Zero follows MinGoodMatches.
	RansacMinInliers int

	ConfidenceNormalization float64
	DetectTimeout           time.Duration

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when no variable is set. It has no
// SourceImagePath and so does not validate on its own.
func Default() *Config {
	return &Config{
		MinGoodMatches:          detection.DefaultMinMatches,
		Extractor:               features.ORB,
		MaxFeatures:             features.DefaultOptions().MaxFeatures,
		MatchPolicy:             matching.PolicyRatio,
		Ratio:                   matching.DefaultRatio,
		ReprojectionThreshold:   geometry.DefaultThreshold,
		RansacMaxTrials:         geometry.DefaultMaxTrials,
		RansacConfidence:        geometry.DefaultConfidence,
		RansacSeed:              geometry.DefaultSeed,
		ConfidenceNormalization: detection.DefaultNormalization,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// Load reads an optional .env file and then the environment. Malformed
// values are errors naming the variable; call Validate before use.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "read %s", f)
		}
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := Default()
	p := &parser{}

	cfg.SourceImagePath = getEnvOrDefault(EnvSourceImagePath, "")
	cfg.MinGoodMatches = p.intVar(EnvMinGoodMatches, cfg.MinGoodMatches)
	cfg.Extractor = strings.ToLower(getEnvOrDefault(EnvExtractor, cfg.Extractor))
	cfg.MaxFeatures = p.intVar(EnvMaxFeatures, cfg.MaxFeatures)
	cfg.MatchPolicy = strings.ToLower(getEnvOrDefault(EnvMatchPolicy, cfg.MatchPolicy))
	cfg.Ratio = p.floatVar(EnvRatio, cfg.Ratio)
	cfg.MaxMatchDistance = p.floatVar(EnvMaxMatchDistance, cfg.MaxMatchDistance)
	cfg.ReprojectionThreshold = p.floatVar(EnvReprojectionThreshold, cfg.ReprojectionThreshold)
	cfg.RansacMaxTrials = p.intVar(EnvRansacMaxTrials, cfg.RansacMaxTrials)
	cfg.RansacConfidence = p.floatVar(EnvRansacConfidence, cfg.RansacConfidence)
	cfg.RansacSeed = int64(p.intVar(EnvRansacSeed, int(cfg.RansacSeed)))
	cfg.RansacMinInliers = p.intVar(EnvRansacMinInliers, cfg.RansacMinInliers)
	cfg.ConfidenceNormalization = p.floatVar(EnvConfidenceNormalization, cfg.ConfidenceNormalization)
	cfg.DetectTimeout = p.durationVar(EnvDetectTimeout, cfg.DetectTimeout)
	cfg.LogLevel = strings.ToLower(getEnvOrDefault(EnvLogLevel, cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnvOrDefault(EnvLogFormat, cfg.LogFormat))

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate checks ranges and that the template image is readable.
func (c *Config) Validate() error {
	if c.SourceImagePath == "" {
		return errors.Errorf("%s%s is required", Prefix, EnvSourceImagePath)
	}
	f, err := os.Open(c.SourceImagePath)
	if err != nil {
		return errors.Wrapf(err, "%s%s is not readable", Prefix, EnvSourceImagePath)
	}
	f.Close()

	if c.MinGoodMatches < 1 {
		return rangeError(EnvMinGoodMatches, c.MinGoodMatches, "must be >= 1")
	}
	if !contains(features.Names(), c.Extractor) {
		return rangeError(EnvExtractor, c.Extractor, "must be one of "+strings.Join(features.Names(), ", "))
	}
	if c.MaxFeatures < 1 {
		return rangeError(EnvMaxFeatures, c.MaxFeatures, "must be >= 1")
	}
	if c.MatchPolicy != matching.PolicyRatio && c.MatchPolicy != matching.PolicyCrossCheck {
		return rangeError(EnvMatchPolicy, c.MatchPolicy, "must be ratio or crosscheck")
	}
	if c.Ratio <= 0 || c.Ratio >= 1 {
		return rangeError(EnvRatio, c.Ratio, "must be in (0,1)")
	}
	if c.MaxMatchDistance < 0 {
		return rangeError(EnvMaxMatchDistance, c.MaxMatchDistance, "must be >= 0")
	}
	if c.ReprojectionThreshold <= 0 {
		return rangeError(EnvReprojectionThreshold, c.ReprojectionThreshold, "must be > 0")
	}
	if c.RansacMaxTrials < 1 {
		return rangeError(EnvRansacMaxTrials, c.RansacMaxTrials, "must be >= 1")
	}
	if c.RansacConfidence <= 0 || c.RansacConfidence >= 1 {
		return rangeError(EnvRansacConfidence, c.RansacConfidence, "must be in (0,1)")
	}
	if c.RansacMinInliers < 0 || (c.RansacMinInliers > 0 && c.RansacMinInliers <= geometry.SampleSize) {
		return rangeError(EnvRansacMinInliers, c.RansacMinInliers, "must be 0 or > "+strconv.Itoa(geometry.SampleSize))
	}
	if c.ConfidenceNormalization <= 0 {
		return rangeError(EnvConfidenceNormalization, c.ConfidenceNormalization, "must be > 0")
	}
	if c.DetectTimeout < 0 {
		return rangeError(EnvDetectTimeout, c.DetectTimeout, "must be >= 0")
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return rangeError(EnvLogLevel, c.LogLevel, "unknown level")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return rangeError(EnvLogFormat, c.LogFormat, "must be text or json")
	}
	return nil
}

// DetectorSettings maps the configuration onto detection.Settings.
func (c *Config) DetectorSettings() detection.Settings {
	opts := features.DefaultOptions()
	opts.MaxFeatures = c.MaxFeatures

	return detection.Settings{
		SourcePath:       c.SourceImagePath,
		MinMatches:       c.MinGoodMatches,
		Extractor:        c.Extractor,
		ExtractorOptions: opts,
		MatchPolicy:      c.MatchPolicy,
		MatchOptions: matching.Options{
			Ratio:       c.Ratio,
			MaxDistance: c.MaxMatchDistance,
		},
		RANSAC: geometry.RANSAC{
			Threshold:  c.ReprojectionThreshold,
			MaxTrials:  c.RansacMaxTrials,
			Confidence: c.RansacConfidence,
			MinInliers: c.RansacMinInliers,
			Seed:       c.RansacSeed,
		},
		Normalization: c.ConfidenceNormalization,
		Timeout:       c.DetectTimeout,
	}
}

func rangeError(name string, value interface{}, reason string) error {
	return errors.Errorf("invalid %s%s %v: %s", Prefix, name, value, reason)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(Prefix + key)); value != "" {
		return value
	}
	return defaultValue
}

// parser records the first malformed variable it meets.
type parser struct {
	err error
}

func (p *parser) intVar(key string, defaultValue int) int {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) floatVar(key string, defaultValue float64) float64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return f
}

// durationVar accepts Go duration strings ("250ms") or bare milliseconds.
func (p *parser) durationVar(key string, defaultValue time.Duration) time.Duration {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = errors.Wrapf(err, "invalid %s%s %q", Prefix, key, value)
	}
}
