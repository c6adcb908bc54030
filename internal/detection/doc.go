// Package detection finds a single template image inside query images.
//
// The Detector ties the pipeline together:
//
//  1. Extraction: keypoints and descriptors are computed for the query image
//     with the configured features.Extractor
//  2. Matching: template descriptors are paired with query descriptors by the
//     configured matching.Matcher
//  3. Gate: fewer correspondences than the TemplateState's MinMatches ends the
//     call with no detection; pose estimation never runs
//  4. Pose: a PoseEstimator (RANSAC) fits a homography from template to query
//     coordinates and marks the inliers. Fewer inliers than
//     Settings.RANSAC.MinInliers (by default the current MinMatches) is no
//     detection
//  5. Assembly: the Assembler boxes the inlier query points and scores the
//     detection from the correspondence count
//
// # Failure Model
//
// Configuration failures (missing or undecodable template, a template with no
// keypoints, an invalid threshold) are returned as *ConfigurationError and
// leave the active TemplateState untouched. Per-frame failures never surface
// as errors: Detect returns an empty list so a perception loop keeps running.
// Only context cancellation is returned from Detect.
//
// # Coordinate System
//
// Detections use inclusive pixel coordinates in the query image, origin
// top-left, X rightward and Y downward.
//
// # Reconfiguration
//
// The template and threshold live in an immutable TemplateState published
// through an atomic pointer. Updates are expressed as typed commands
// (SetSourceImage, SetMinMatches); ParseSetCommands maps the key/value form
// ("source_image_path", "min_good_matches") onto them.
package detection
