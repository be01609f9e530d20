package planner

import (
	"path/filepath"
	"strings"

	"github.com/kesler/mediabox/internal/check"
	"github.com/kesler/mediabox/internal/hdr"
	"github.com/kesler/mediabox/internal/naming"
	"github.com/kesler/mediabox/internal/probe"
)

var videoContainerExts = map[string]bool{".mp4": true, ".mkv": true}

// BuildPlan runs the video-file decision engine: skip decision,
// stream selection, derived tracks, subtitle handling, resolution/HDR
// filters, and encoder selection.
func BuildPlan(inputPath string, p *probe.Probe, enc check.Encoder, forceStereo, downgradeResolution bool) *Plan {
	plan := &Plan{InputPath: inputPath, OutputKind: OutputVideo}

	v := p.PrimaryVideo()
	audios := p.Audios()
	subs := p.Subtitles()

	if v != nil && len(audios) > 0 && !hasUsableAudio(audios) {
		plan.Skip = true
		plan.SkipReason = "no English or unlabeled audio stream"
		plan.Action = ActionSkip
		plan.VideoAction = VideoAction{Kind: VideoNone}
		return plan
	}

	hdrInfo := hdr.Classify(v)
	surround := selectSurround(audios)
	derived := buildDerivedTracks(audios, surround, forceStereo)
	preserved := selectPreservedAudio(audios, surround)
	subtitleMap, pgs := buildSubtitlePlan(subs)

	plan.SelectedSurround = surround
	plan.DerivedTracks = derived
	plan.PreservedAudio = preserved
	plan.SubtitleMap = subtitleMap
	plan.ExtractedPGS = pgs

	ext := strings.ToLower(filepath.Ext(inputPath))
	reason, needsWork := videoSkipCheck(v, audios, ext, surround, derived, hdrInfo, forceStereo, downgradeResolution)

	width, height := 0, 0
	if v != nil {
		width, height = v.Width, v.Height
	}
	filters := buildVideoFilters(width, height, downgradeResolution, hdrInfo)

	if !needsWork {
		plan.Skip = true
		plan.SkipReason = reason
		plan.Action = ActionSkip
		plan.VideoAction = VideoAction{Kind: VideoCopy}
		return plan
	}

	plan.VideoAction = selectVideoAction(enc, filters, hdrInfo)
	plan.Action = classifyAction(hdrInfo)

	if downgradeResolution && (height > 1080 || width > 1920) {
		plan.OutputPathTransform = naming.RewriteResolutionToken(filepath.Base(inputPath))
	}

	return plan
}

// BuildAudioOnlyPlan decides the audio-file pipeline: a file is skipped iff
// it's already MP3; otherwise it's re-encoded to MP3 320kbps CBR.
func BuildAudioOnlyPlan(inputPath string, codec string) *Plan {
	ext := strings.ToLower(filepath.Ext(inputPath))
	plan := &Plan{InputPath: inputPath, OutputKind: OutputAudio}

	if codec == "mp3" && ext == ".mp3" {
		plan.Skip = true
		plan.SkipReason = "already mp3"
		plan.Action = ActionSkip
		return plan
	}

	plan.Action = ActionNeedsAudio
	return plan
}

// videoSkipCheck reports whether the file needs any work at all. An HDR
// source always disqualifies skip, since a file left untouched would never
// get the tone-mapping the system exists to apply.
func videoSkipCheck(v *probe.VideoStream, audios []probe.AudioStream, ext string, surround *SurroundSelection, derived []DerivedTrack, hdrInfo hdr.Info, forceStereo, downgradeResolution bool) (reason string, needsWork bool) {
	if v == nil {
		return "no video stream", false
	}
	if v.Codec != "h264" {
		return "video codec " + v.Codec + " is not h264", true
	}
	if hdrInfo.IsHDR {
		return "HDR source requires tone mapping", true
	}
	for _, a := range audios {
		if a.Codec != "aac" {
			return "audio codec " + a.Codec + " is not aac", true
		}
	}
	if !videoContainerExts[ext] {
		return "container extension " + ext + " is not mp4/mkv", true
	}
	if len(derived) > 0 {
		return "missing derived audio track", true
	}
	if surround != nil && surround.Channels == 8 && !hasExistingChannelCount(audios, 6) {
		return "needs 5.1 derived from 7.1", true
	}
	for _, a := range audios {
		if a.Language != "" && a.Language != "eng" && a.Language != "und" {
			return "non-English audio stream present", true
		}
	}
	for _, a := range audios {
		if a.Language == "" || a.Language == "und" {
			return "unlabeled audio stream needs metadata fix", true
		}
	}
	if downgradeResolution && (v.Height > 1080 || v.Width > 1920) {
		return "resolution exceeds 1080p", true
	}
	if forceStereo {
		return "force_stereo requested", true
	}
	return "already normalized", false
}

func classifyAction(hdrInfo hdr.Info) Action {
	if hdrInfo.IsHDR {
		return ActionNeedsHDRTonemap
	}
	return ActionNeedsConversion
}

// selectVideoAction picks the encoder: prefer hardware when available and
// not disabled by an HDR tonemap requirement (zscale needs software).
func selectVideoAction(enc check.Encoder, filters []string, hdrInfo hdr.Info) VideoAction {
	if hdrInfo.IsHDR {
		return VideoAction{
			Kind:    VideoReencode,
			Encoder: "libx264",
			CRF:     23,
			Preset:  softwarePreset(enc),
			Filters: filters,
		}
	}
	if enc.HardwareAvailable {
		return VideoAction{
			Kind:    VideoReencode,
			Encoder: "h264_vaapi",
			QP:      23,
			Filters: filters,
		}
	}
	return VideoAction{
		Kind:    VideoReencode,
		Encoder: "libx264",
		CRF:     23,
		Preset:  softwarePreset(enc),
		Filters: filters,
	}
}

// softwarePreset returns "medium" when software encoding was confirmed by
// the capability probe, "fast" when we're falling all the way through
// (hardware failed and the probe never got a clean software confirmation
// either, but we have no other option).
func softwarePreset(enc check.Encoder) string {
	if enc.SoftwareAvailable {
		return "medium"
	}
	return "fast"
}
