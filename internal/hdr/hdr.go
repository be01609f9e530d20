// Package hdr classifies a video stream's dynamic range from its color
// metadata. It is a pure function over [probe.VideoStream]: no I/O, no
// process spawn, so the decision engine can use it without ffprobe
// fixtures.
package hdr

import (
	"strings"

	"github.com/kesler/mediabox/internal/probe"
)

// Kind enumerates the dynamic-range classifications this system acts on.
type Kind string

const (
	None          Kind = "None"
	HDR10         Kind = "HDR10"
	HLG           Kind = "HLG"
	DolbyVision   Kind = "DolbyVision"
	BT2020Generic Kind = "BT2020Generic"
)

// Info is the derived classification of one video stream. It is never
// persisted; callers recompute it from the probe on every run.
type Info struct {
	IsHDR    bool
	Kind     Kind
	BitDepth int // 8, 10, or 12
}

// Classify applies the detection rules in order: DOVI side-data always wins
// (even over an smpte2084 transfer tag), then the two named transfer
// functions, then a bt2020-primaries-plus-depth fallback for sources that
// signal HDR primaries without a matching named transfer.
func Classify(v *probe.VideoStream) Info {
	if v == nil {
		return Info{Kind: None, BitDepth: 8}
	}

	depth := bitDepth(v.PixFmt)

	if v.HasDOVI {
		return Info{IsHDR: true, Kind: DolbyVision, BitDepth: depth}
	}

	switch v.ColorTransfer {
	case "smpte2084":
		return Info{IsHDR: true, Kind: HDR10, BitDepth: depth}
	case "arib-std-b67":
		return Info{IsHDR: true, Kind: HLG, BitDepth: depth}
	}

	if v.ColorPrimaries == "bt2020" && depth > 8 {
		return Info{IsHDR: true, Kind: BT2020Generic, BitDepth: depth}
	}

	return Info{Kind: None, BitDepth: depth}
}

// bitDepth infers sample bit depth from ffprobe's pixel format name: the
// common 10/12-bit little-endian formats carry the depth in their suffix;
// anything else is assumed 8-bit.
func bitDepth(pixFmt string) int {
	switch {
	case strings.HasSuffix(pixFmt, "12le") || strings.HasSuffix(pixFmt, "p12"):
		return 12
	case strings.HasSuffix(pixFmt, "10le") || strings.HasSuffix(pixFmt, "p10"):
		return 10
	default:
		return 8
	}
}
