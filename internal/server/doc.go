// Package server exposes a Detector over a line-delimited JSON-RPC 2.0 loop.
//
// The loop runs on any reader/writer pair; the binary uses stdin and stdout,
// with logs on stderr:
//   - Input: one JSON-RPC request per line
//   - Output: one JSON-RPC response per line, in request order
//
// Supported methods:
//   - ping: Health check
//   - methods: Enumerate methods and their params
//   - status: Active template summary
//   - detect: Locate the template in a query image given by path or base64,
//     optionally returning an annotated image and a crop of the match
//   - do_command: Reconfigure with {"set":[{"key":...,"value":...}]}; keys are
//     source_image_path (reload the template) and min_good_matches
//     (threshold only). Replies {"response":"OK","timestamp":...}
//
// # Image Caching
//
// Query images given by path are decoded once and cached by path. Pass
// "reload": true to re-read a file that changes between calls. Template
// images never go through the cache.
//
// # Error Handling
//
// Failures are JSON-RPC error responses:
//   - -32700: the line is not valid JSON
//   - -32601: unknown method
//   - -32602: malformed params, undecodable image_base64, or an invalid
//     do_command entry
//   - -32000: the call failed (image unreadable, detection cancelled,
//     template rejected); data carries the Go error string
//
// A detect that simply finds nothing is not an error: it returns an empty
// detections list.
//
// # Usage
//
//	srv := server.New(detector, log)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
