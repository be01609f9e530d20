// Package naming implements the in-place filename transforms the pipeline
// applies after a resolution downgrade: rewriting the resolution token in
// the stem, and carrying sidecar files (subtitles, NFOs) along for the ride.
//
// Files:
//   - resolution.go: RewriteResolutionToken, the token regex table
//   - sidecar.go:    RenameSidecars — rename files sharing the old stem
package naming
