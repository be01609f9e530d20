// Package planner implements the decision engine: given a probe and the
// caller's flags, it decides whether a file needs conversion and, if so,
// which streams to select, which tracks to derive, and which filters to run.
//
// Files:
//   - types.go:       Plan and its component types (VideoAction, SurroundSelection, DerivedTrack, ...)
//   - planner.go:     BuildPlan / BuildAudioOnlyPlan entry points
//   - audio.go:       surround selection, 5.1/stereo derivation, titling
//   - subtitle.go:    text-subtitle muxing and PGS sidecar scheduling
//   - filter.go:      resolution downscale and HDR tonemap filter chain
//   - disposition.go: default-stream disposition flags
package planner
