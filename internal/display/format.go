package display

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes returns a human-readable size (e.g. "1.2 GiB").
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 GiB").
func FormatBytesWithSign(bytes int64) string {
	switch {
	case bytes > 0:
		return "+ " + humanize.IBytes(uint64(bytes))
	case bytes < 0:
		return "- " + humanize.IBytes(uint64(-bytes))
	default:
		return "0 B"
	}
}

// FormatBitrateLabel returns a short label for bitrate in kbps (e.g. "1.2 Mbps").
func FormatBitrateLabel(kbps int64) string {
	if kbps < 1000 {
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}

// FormatDuration renders a duration given in seconds as "H:MM:SS" (or
// "M:SS" for sub-hour runtimes), matching how ffprobe duration fields are
// normally displayed in batch logs.
func FormatDuration(seconds float64) string {
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
