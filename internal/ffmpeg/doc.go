// Package ffmpeg translates a planner.Plan into an encoder command line and
// runs it to a temporary output file.
//
// Files:
//   - builder.go:  BuildVideoArgs / BuildAudioArgs — filter_complex and stream-map contracts
//   - executor.go: Run — spawn, atomic rename, sidecar rename, cache update (the caller holds the lock)
//   - errors.go:   classification of encoder failures for cache processing_error text
package ffmpeg
