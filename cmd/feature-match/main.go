package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/feature-match-detector/internal/config"
	"github.com/ironsheep/feature-match-detector/internal/detection"
	"github.com/ironsheep/feature-match-detector/internal/imaging"
	"github.com/ironsheep/feature-match-detector/internal/logger"
	"github.com/ironsheep/feature-match-detector/internal/server"
)

// exitInterrupted is returned when a signal cancels startup.
const exitInterrupted = 130

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Fprintf(stdout, "feature-match %s\n", Version)
			fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
			return 0
		case "--help", "-h", "help":
			printHelp(stdout)
			return 0
		case "detect":
			if len(args) != 2 {
				fmt.Fprintln(stderr, "usage: feature-match detect <image|->")
				return 2
			}
		case "serve":
		default:
			fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
			printHelp(stderr)
			return 2
		}
	}

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 1
	}

	// Logs go to stderr: stdout carries results and the command loop.
	log, err := logger.NewWithWriter(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 1
	}
	log.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"commit":     GitCommit,
	}).Debug("feature-match starting")

	d, err := detection.New(ctx, cfg.DetectorSettings(), detection.Options{Logger: log})
	if err != nil {
		if !detection.IsConfigurationError(err) {
			log.WithError(err).Warn("startup interrupted")
			return exitInterrupted
		}
		log.WithError(err).Error("template configuration failed")
		return 1
	}

	if len(args) > 0 && args[0] == "detect" {
		return detectOnce(ctx, d, args[1], stdin, stdout, log)
	}

	srv := server.New(d, log)
	if err := srv.Run(ctx, stdin, stdout); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("server error")
		return 1
	}
	return 0
}

// detectOnce runs a single detection on the image at path, or on encoded
// image bytes read from stdin when path is "-".
func detectOnce(ctx context.Context, d *detection.Detector, path string, stdin io.Reader, stdout io.Writer, log logrus.FieldLogger) int {
	var (
		dets []detection.Detection
		err  error
	)
	if path == "-" {
		data, readErr := io.ReadAll(stdin)
		if readErr != nil {
			log.WithError(readErr).Error("read query image")
			return 1
		}
		dets, err = d.DetectEncoded(ctx, data)
	} else {
		img, loadErr := imaging.LoadImage(path)
		if loadErr != nil {
			log.WithError(loadErr).Error("query image")
			return 1
		}
		dets, err = d.Detect(ctx, img)
	}
	if err != nil {
		log.WithError(err).Error("detection failed")
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dets); err != nil {
		log.WithError(err).Error("write result")
		return 1
	}
	return 0
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "feature-match - locate a template image inside query images")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  feature-match [serve]         Answer JSON-RPC requests on stdin/stdout")
	fmt.Fprintln(w, "  feature-match detect <image>  Print detections for one image as JSON")
	fmt.Fprintln(w, "  feature-match detect -        Same, reading the encoded image from stdin")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables (also read from ./.env):")
	fmt.Fprintln(w, "  FEATURE_MATCH_SOURCE_IMAGE_PATH         Template image (required)")
	fmt.Fprintln(w, "  FEATURE_MATCH_MIN_GOOD_MATCHES          Correspondences needed before pose estimation (15)")
	fmt.Fprintln(w, "  FEATURE_MATCH_EXTRACTOR                 orb | gradient | opencv-orb | opencv-sift (orb)")
	fmt.Fprintln(w, "  FEATURE_MATCH_MATCH_POLICY              ratio | crosscheck (ratio)")
	fmt.Fprintln(w, "  FEATURE_MATCH_RATIO                     Ratio test threshold (0.7)")
	fmt.Fprintln(w, "  FEATURE_MATCH_MAX_MATCH_DISTANCE        Crosscheck distance bound, 0 = 50 bits / 0.7 (0)")
	fmt.Fprintln(w, "  FEATURE_MATCH_MAX_FEATURES              Keypoints kept per image (500)")
	fmt.Fprintln(w, "  FEATURE_MATCH_REPROJECTION_THRESHOLD    RANSAC inlier distance in pixels (5.0)")
	fmt.Fprintln(w, "  FEATURE_MATCH_RANSAC_MAX_TRIALS         RANSAC trial cap (500)")
	fmt.Fprintln(w, "  FEATURE_MATCH_RANSAC_CONFIDENCE         RANSAC early-stop confidence (0.995)")
	fmt.Fprintln(w, "  FEATURE_MATCH_RANSAC_SEED               RANSAC sampling seed, used as given (1)")
	fmt.Fprintln(w, "  FEATURE_MATCH_RANSAC_MIN_INLIERS        Smallest inlier set reported, > 4 (0: follow MIN_GOOD_MATCHES)")
	fmt.Fprintln(w, "  FEATURE_MATCH_CONFIDENCE_NORMALIZATION  Correspondences for confidence 1.0 (40)")
	fmt.Fprintln(w, "  FEATURE_MATCH_DETECT_TIMEOUT            Per-detection limit, e.g. 200ms, 0 = none (0)")
	fmt.Fprintln(w, "  FEATURE_MATCH_LOG_LEVEL                 trace | debug | info | warn | error (info)")
	fmt.Fprintln(w, "  FEATURE_MATCH_LOG_FORMAT                text | json (text)")
}
