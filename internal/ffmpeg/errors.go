package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regexes for giving a nonzero ffmpeg exit a human-readable
// processing_error string instead of a raw stderr dump. The first matching
// pattern wins; an unrecognized failure falls back to the trimmed tail of
// stderr.
var (
	reNoSpace        = regexp.MustCompile(`(?i)No space left on device`)
	reInputNotFound  = regexp.MustCompile(`(?i)No such file or directory`)
	reInvalidData    = regexp.MustCompile(`(?i)Invalid data found when processing input`)
	reEncoderMissing = regexp.MustCompile(`(?i)Unknown encoder|Encoder not found`)
	reVAAPIInit      = regexp.MustCompile(`(?i)Failed to initial(ise|ize) VAAPI|vaapi_device`)
)

// classifyFailure turns a nonzero ffmpeg exit into a short error suitable
// for cache.Entry.ProcessingError. The underlying exec error is preserved
// via wrapping so callers can still test for *exec.ExitError.
func classifyFailure(runErr error, stderr string) error {
	switch {
	case reNoSpace.MatchString(stderr):
		return fmt.Errorf("no space left on device: %w", runErr)
	case reInputNotFound.MatchString(stderr):
		return fmt.Errorf("input file disappeared during encode: %w", runErr)
	case reInvalidData.MatchString(stderr):
		return fmt.Errorf("source file is corrupt or unreadable: %w", runErr)
	case reEncoderMissing.MatchString(stderr):
		return fmt.Errorf("encoder unavailable: %w", runErr)
	case reVAAPIInit.MatchString(stderr):
		return fmt.Errorf("hardware encode device unavailable: %w", runErr)
	default:
		return fmt.Errorf("%s: %w", tail(stderr, 200), runErr)
	}
}

// tail returns the last n bytes of s, trimmed of surrounding whitespace, so
// a long ffmpeg error dump is cut down to its end, where the failure is
// reported.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
