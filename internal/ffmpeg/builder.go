package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kesler/mediabox/internal/planner"
)

const (
	channelmapFilter     = "channelmap=0-FL|1-FR|2-FC|3-LFE|4-BL|5-BR:5.1"
	downmix51Filter      = "pan=5.1|c0=c0|c1=c1|c2=c2|c3=c3|c4=c4+0.7*c6|c5=c5+0.7*c7"
	dialogueStereoFilter = "pan=stereo|c0=0.35*c0+0.5*c2+0.25*c4|c1=0.35*c1+0.5*c2+0.25*c5"
	compressorFilter     = "acompressor=level_in=1.5:threshold=0.1:ratio=6:attack=20:release=250"
)

// audioOutput is one finalized slot in the output audio stream order.
type audioOutput struct {
	source   string // "0:N" for a direct map, or "[label]" for a filter_complex output
	isLabel  bool
	copy     bool
	vbr      bool // derived dialogue stereo: -q:a N 2
	layout   string
	title    string
	language string
}

// BuildVideoArgs emits the video-leg arguments: filter chain (if any), codec
// selection, and encoder-specific quality flags.
func BuildVideoArgs(va planner.VideoAction, hwDevice string) []string {
	var args []string

	if va.Encoder == "h264_vaapi" {
		args = append(args, "-init_hw_device", "vaapi=va:"+hwDevice, "-filter_hw_device", "va")
	}

	args = append(args, "-map", "0:v:0")

	filters := va.Filters
	if va.Encoder == "h264_vaapi" {
		filters = append(append([]string{}, filters...), "format=nv12", "hwupload")
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	switch va.Encoder {
	case "h264_vaapi":
		args = append(args, "-c:v", "h264_vaapi", "-qp", strconv.Itoa(va.QP))
	default:
		args = append(args, "-c:v", "libx264", "-crf", strconv.Itoa(va.CRF), "-preset", va.Preset, "-threads", "0")
	}

	return args
}

// BuildAudioArgs emits the filter_complex graph (if any derived tracks are
// needed) and the per-stream map/codec arguments, in the fixed output
// order: [selected_surround?, derived_51?, preserved_stereo?, derived_dialogue_stereo?].
func BuildAudioArgs(plan *planner.Plan) []string {
	filterComplex, downmixLabel, dialogueLabel := buildFilterComplex(plan)
	outputs := assembleAudioOutputs(plan, downmixLabel, dialogueLabel)

	var args []string
	if filterComplex != "" {
		args = append(args, "-filter_complex", filterComplex)
	}

	for i, o := range outputs {
		if o.isLabel {
			args = append(args, "-map", o.source)
		} else {
			args = append(args, "-map", "0:"+o.source)
		}

		idx := strconv.Itoa(i)
		switch {
		case o.copy:
			args = append(args, "-c:a:"+idx, "copy")
		case o.vbr:
			args = append(args, "-c:a:"+idx, "aac", "-q:a:"+idx, "2")
		default:
			args = append(args, "-c:a:"+idx, "aac", "-b:a:"+idx, "192k", "-ch_layout:a:"+idx, o.layout)
		}

		if o.title != "" {
			args = append(args, "-metadata:s:a:"+idx, "title="+o.title)
		}
		args = append(args, "-metadata:s:a:"+idx, "language="+o.language)
	}

	args = append(args, planner.BuildDispositionArgs(len(outputs))...)

	return args
}

// buildFilterComplex assembles the ordered filter graph: channelmap fix,
// then 5.1 derivation (with asplit when the stereo derivation also reads
// from it), then the stereo downmix and compressor. Returns the joined
// filter_complex string plus the output labels for the derived 5.1 and
// dialogue-stereo tracks, if built.
func buildFilterComplex(plan *planner.Plan) (filterComplex, downmixLabel, dialogueLabel string) {
	var parts []string

	var downmixTrack, dialogueTrack *planner.DerivedTrack
	for i := range plan.DerivedTracks {
		t := &plan.DerivedTracks[i]
		switch t.Kind {
		case planner.DerivedDownmix51From71:
			downmixTrack = t
		case planner.DerivedDialogueStereo:
			dialogueTrack = t
		}
	}

	// A named pad can only be consumed once, so any label that is both
	// mapped as an output and read by a downstream filter must be asplit
	// into the output copy and a _feed copy.

	surround := plan.SelectedSurround
	if surround != nil && surround.NeedsChannelmapFix {
		feedsStereo := dialogueTrack != nil && dialogueTrack.Source == "[surround_fixed]"
		if feedsStereo {
			parts = append(parts, inputLabel(surround.InputIndex)+channelmapFilter+"[surround_fixed_raw]")
			parts = append(parts, "[surround_fixed_raw]asplit=2[surround_fixed][surround_fixed_feed]")
		} else {
			parts = append(parts, inputLabel(surround.InputIndex)+channelmapFilter+"[surround_fixed]")
		}
	}

	if downmixTrack != nil {
		feedsStereo := dialogueTrack != nil && dialogueTrack.Source == "[surround_51]"
		if feedsStereo {
			parts = append(parts, downmixTrack.Source+downmix51Filter+"[surround_51_raw]")
			parts = append(parts, "[surround_51_raw]asplit=2[surround_51][surround_51_feed]")
		} else {
			parts = append(parts, downmixTrack.Source+downmix51Filter+"[surround_51]")
		}
		downmixLabel = "[surround_51]"
	}

	if dialogueTrack != nil {
		src := dialogueTrack.Source
		switch src {
		case "[surround_51]":
			src = "[surround_51_feed]"
		case "[surround_fixed]":
			src = "[surround_fixed_feed]"
		}
		parts = append(parts, src+dialogueStereoFilter+"[dialogue_raw]")
		parts = append(parts, "[dialogue_raw]"+compressorFilter+"[dialogue_stereo]")
		dialogueLabel = "[dialogue_stereo]"
	}

	return strings.Join(parts, ";"), downmixLabel, dialogueLabel
}

func assembleAudioOutputs(plan *planner.Plan, downmixLabel, dialogueLabel string) []audioOutput {
	var outs []audioOutput

	if s := plan.SelectedSurround; s != nil {
		if s.NeedsChannelmapFix {
			outs = append(outs, audioOutput{source: "[surround_fixed]", isLabel: true, layout: "5.1", title: s.Title, language: "eng"})
		} else {
			layout := normalizeLayout(s.ChannelLayout)
			out := audioOutput{source: strconv.Itoa(s.InputIndex), layout: layout, title: s.Title, language: "eng"}
			if isUnknownLayout(layout) {
				out.copy = true
			}
			outs = append(outs, out)
		}
	}

	for i := range plan.DerivedTracks {
		t := &plan.DerivedTracks[i]
		if t.Kind == planner.DerivedDownmix51From71 {
			outs = append(outs, audioOutput{source: downmixLabel, isLabel: true, layout: "5.1", title: t.Title, language: t.Language})
		}
	}

	if p := plan.PreservedAudio; p != nil {
		layout := normalizeLayout(p.ChannelLayout)
		out := audioOutput{source: strconv.Itoa(p.InputIndex), layout: layout, title: p.Title, language: p.Language}
		if isUnknownLayout(layout) {
			out.copy = true
		}
		outs = append(outs, out)
	}

	for i := range plan.DerivedTracks {
		t := &plan.DerivedTracks[i]
		if t.Kind == planner.DerivedDialogueStereo {
			outs = append(outs, audioOutput{source: dialogueLabel, isLabel: true, vbr: true, title: t.Title, language: t.Language})
		}
	}

	return outs
}

func inputLabel(streamIndex int) string {
	return "[0:" + strconv.Itoa(streamIndex) + "]"
}

func normalizeLayout(layout string) string {
	switch layout {
	case "5.1(side)":
		return "5.1"
	case "7.1(wide)":
		return "7.1"
	default:
		return layout
	}
}

func isUnknownLayout(layout string) bool {
	return layout == "" || layout == "unknown"
}

// BuildSubtitleArgs emits the mov_text subtitle maps. PGS streams
// are never included here — they're handled as separate sidecar-extraction
// invocations by the executor.
func BuildSubtitleArgs(maps []planner.SubtitleMapping) []string {
	if len(maps) == 0 {
		return nil
	}
	var args []string
	for i, m := range maps {
		args = append(args, "-map", "0:"+strconv.Itoa(m.InputIndex))
		idx := strconv.Itoa(i)
		args = append(args, "-c:s:"+idx, "mov_text", "-metadata:s:s:"+idx, "language="+m.Language)
	}
	return args
}

// BuildContainerArgs emits the fixed MP4 output flags.
func BuildContainerArgs() []string {
	return []string{"-y", "-movflags", "faststart"}
}

// BuildPGSExtractionArgs returns one ffmpeg invocation's arguments per
// extracted PGS stream: a raw copy to the sidecar path, never muxed into
// the MP4 output.
func BuildPGSExtractionArgs(inputPath string, pgs planner.ExtractedPGS, stem string) (args []string, outputPath string) {
	outputPath = stem + "." + pgs.OutputSuffix
	args = []string{
		"ffmpeg", "-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-i", inputPath,
		"-map", fmt.Sprintf("0:%d", pgs.InputIndex),
		"-c", "copy",
		outputPath,
	}
	return args, outputPath
}
