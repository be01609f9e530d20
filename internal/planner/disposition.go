package planner

import "strconv"

// BuildDispositionArgs marks the primary video stream and first output
// audio stream as default, clearing default on every subsequent output
// audio stream. Used by the filter-graph builder when emitting the encoder
// command line for a Plan.
func BuildDispositionArgs(outputAudioCount int) []string {
	opts := []string{"-disposition:v:0", "default"}

	if outputAudioCount > 0 {
		opts = append(opts, "-disposition:a:0", "default")
		for i := 1; i < outputAudioCount; i++ {
			opts = append(opts, "-disposition:a:"+strconv.Itoa(i), "0")
		}
	}

	return opts
}
