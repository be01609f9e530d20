// Package pipeline orchestrates file discovery, per-file processing, and
// batch summary reporting.
//
// Files:
//   - discover.go: Discover walks a file or directory and filters by media
//     type; SweepStaleTemp removes *.tmp.mp4/*.tmp.mp3 left by an
//     interrupted run.
//   - runner.go:   Run is the top-level batch entry point: probe, plan,
//     execute, accumulate stats, notify the indexer.
//   - stats.go:    RunStats counters and the space-saved summary.
package pipeline
