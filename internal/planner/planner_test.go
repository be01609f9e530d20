package planner

import (
	"testing"

	"github.com/kesler/mediabox/internal/check"
	"github.com/kesler/mediabox/internal/hdr"
	"github.com/kesler/mediabox/internal/probe"
)

func normalizedProbe() *probe.Probe {
	return &probe.Probe{
		Streams: []probe.Stream{
			{Kind: probe.KindVideo, Video: &probe.VideoStream{Index: 0, Codec: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p"}},
			{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 1, Codec: "aac", Channels: 2, ChannelLayout: "stereo", Language: "eng", Title: preservedStereoTitle}},
		},
	}
}

func TestBuildPlanSkipsAlreadyNormalizedFile(t *testing.T) {
	p := normalizedProbe()
	plan := BuildPlan("/lib/movie.mp4", p, check.Encoder{SoftwareAvailable: true}, false, false)
	if !plan.Skip {
		t.Fatalf("expected skip, got SkipReason=%q Action=%v", plan.SkipReason, plan.Action)
	}
	if plan.Action != ActionSkip {
		t.Errorf("Action = %v, want ActionSkip", plan.Action)
	}
}

func TestBuildPlanReencodesNonH264(t *testing.T) {
	p := &probe.Probe{Streams: []probe.Stream{
		{Kind: probe.KindVideo, Video: &probe.VideoStream{Index: 0, Codec: "hevc", Width: 1920, Height: 1080, PixFmt: "yuv420p"}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 1, Codec: "aac", Channels: 2, Language: "eng"}},
	}}
	plan := BuildPlan("/lib/movie.mkv", p, check.Encoder{HardwareAvailable: true, HardwareDevice: "/dev/dri/renderD128"}, false, false)
	if plan.Skip {
		t.Fatal("expected re-encode, got skip")
	}
	if plan.VideoAction.Kind != VideoReencode {
		t.Errorf("VideoAction.Kind = %v, want VideoReencode", plan.VideoAction.Kind)
	}
	if plan.VideoAction.Encoder != "h264_vaapi" {
		t.Errorf("Encoder = %q, want h264_vaapi (hardware available, no HDR)", plan.VideoAction.Encoder)
	}
}

func TestBuildPlanReencodesWhenForeignAudioPresentAlongsideEnglish(t *testing.T) {
	p := &probe.Probe{Streams: []probe.Stream{
		{Kind: probe.KindVideo, Video: &probe.VideoStream{Index: 0, Codec: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p"}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 1, Codec: "aac", Channels: 2, Language: "eng", Title: preservedStereoTitle}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 2, Codec: "aac", Channels: 2, Language: "fra"}},
	}}
	plan := BuildPlan("/lib/movie.mp4", p, check.Encoder{SoftwareAvailable: true}, false, false)
	if plan.Skip {
		t.Fatal("a foreign-tagged stream must be dropped via re-encode, not left in place")
	}
	if plan.PreservedAudio == nil || plan.PreservedAudio.InputIndex != 1 {
		t.Errorf("expected the English stereo preserved, got %+v", plan.PreservedAudio)
	}
}

func TestBuildPlanSkipsFileWithOnlyForeignAudio(t *testing.T) {
	p := &probe.Probe{Streams: []probe.Stream{
		{Kind: probe.KindVideo, Video: &probe.VideoStream{Index: 0, Codec: "hevc", Width: 1920, Height: 1080, PixFmt: "yuv420p"}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 1, Codec: "ac3", Channels: 6, Language: "fra"}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 2, Codec: "aac", Channels: 2, Language: "jpn"}},
	}}
	plan := BuildPlan("/lib/movie.mkv", p, check.Encoder{SoftwareAvailable: true}, false, false)
	if !plan.Skip {
		t.Fatal("a file with no English or unlabeled audio must be left untouched")
	}
	if plan.SkipReason != "no English or unlabeled audio stream" {
		t.Errorf("SkipReason = %q", plan.SkipReason)
	}
}

func TestBuildPlanForcesHDRToSoftware(t *testing.T) {
	p := &probe.Probe{Streams: []probe.Stream{
		{Kind: probe.KindVideo, Video: &probe.VideoStream{Index: 0, Codec: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p10le", ColorTransfer: "smpte2084"}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 1, Codec: "aac", Channels: 2, Language: "eng"}},
	}}
	plan := BuildPlan("/lib/movie.mp4", p, check.Encoder{HardwareAvailable: true}, false, false)
	if plan.VideoAction.Encoder != "libx264" {
		t.Errorf("HDR must force software encoding, got %q", plan.VideoAction.Encoder)
	}
	if plan.Action != ActionNeedsHDRTonemap {
		t.Errorf("Action = %v, want ActionNeedsHDRTonemap", plan.Action)
	}
	found := false
	for _, f := range plan.VideoAction.Filters {
		if f == tonemapChain {
			found = true
		}
	}
	if !found {
		t.Error("expected tonemap chain in video filters")
	}
}

func TestSelectSurroundPrefersEnglish(t *testing.T) {
	audios := []probe.AudioStream{
		{Index: 1, Channels: 6, Language: "fra"},
		{Index: 2, Channels: 6, Language: "eng"},
	}
	got := selectSurround(audios)
	if got == nil || got.InputIndex != 2 {
		t.Fatalf("expected the eng-tagged stream, got %+v", got)
	}
}

func TestSelectSurroundNeverPicksNonEnglishOnly(t *testing.T) {
	audios := []probe.AudioStream{{Index: 1, Channels: 6, Language: "fra"}}
	if got := selectSurround(audios); got != nil {
		t.Errorf("expected no selection, got %+v", got)
	}
}

func TestSelectSurroundFallsBackToUntagged(t *testing.T) {
	audios := []probe.AudioStream{{Index: 1, Channels: 6, Language: ""}}
	got := selectSurround(audios)
	if got == nil || got.InputIndex != 1 {
		t.Fatalf("expected the untagged stream selected, got %+v", got)
	}
}

func TestSelectSurroundFlagsChannelmapFix(t *testing.T) {
	audios := []probe.AudioStream{{Index: 1, Channels: 6, Language: "eng", ChannelLayout: "unknown"}}
	got := selectSurround(audios)
	if got == nil || !got.NeedsChannelmapFix {
		t.Fatalf("expected needs_channelmap_fix, got %+v", got)
	}
}

func TestBuildDerivedTracksDownmixAndStereo(t *testing.T) {
	audios := []probe.AudioStream{{Index: 1, Channels: 8, Language: "eng"}}
	surround := selectSurround(audios)
	tracks := buildDerivedTracks(audios, surround, false)
	if len(tracks) != 2 {
		t.Fatalf("expected downmix + dialogue stereo, got %d tracks: %+v", len(tracks), tracks)
	}
	if tracks[0].Kind != DerivedDownmix51From71 {
		t.Errorf("tracks[0].Kind = %v, want DerivedDownmix51From71", tracks[0].Kind)
	}
	if tracks[1].Kind != DerivedDialogueStereo {
		t.Errorf("tracks[1].Kind = %v, want DerivedDialogueStereo", tracks[1].Kind)
	}
	if tracks[1].Source != "[surround_51]" {
		t.Errorf("dialogue stereo should read from the derived 5.1, got %q", tracks[1].Source)
	}
}

func TestBuildDerivedTracksSkipsStereoWhenAlreadyEnhanced(t *testing.T) {
	audios := []probe.AudioStream{
		{Index: 1, Channels: 6, Language: "eng"},
		{Index: 2, Channels: 2, Language: "eng", Title: "English Stereo (" + stereoSignature + "-AAC-VBR2)"},
	}
	surround := selectSurround(audios)
	tracks := buildDerivedTracks(audios, surround, false)
	if len(tracks) != 0 {
		t.Errorf("expected no derivation when already enhanced, got %+v", tracks)
	}
}

func TestBuildDerivedTracksForceStereoOverridesEnhanced(t *testing.T) {
	audios := []probe.AudioStream{
		{Index: 1, Channels: 6, Language: "eng"},
		{Index: 2, Channels: 2, Language: "eng", Title: "English Stereo (" + stereoSignature + "-AAC-VBR2)"},
	}
	surround := selectSurround(audios)
	tracks := buildDerivedTracks(audios, surround, true)
	if len(tracks) != 1 || tracks[0].Kind != DerivedDialogueStereo {
		t.Fatalf("force_stereo should still derive dialogue stereo, got %+v", tracks)
	}
	if tracks[0].Title != dialogueStereoTitle(true) {
		t.Errorf("Title = %q, want the forced variant", tracks[0].Title)
	}
}

func TestBuildSubtitlePlanSeparatesTextAndPGS(t *testing.T) {
	subs := []probe.SubtitleStream{
		{Index: 2, Codec: "subrip", Language: "eng"},
		{Index: 3, Codec: "subrip", Language: "fra"},
		{Index: 4, Codec: "subrip", Language: "fra", Forced: true},
		{Index: 5, Codec: "hdmv_pgs_subtitle", Language: "eng"},
	}
	mapped, pgs := buildSubtitlePlan(subs)
	if len(mapped) != 2 {
		t.Fatalf("expected eng + forced text subs mapped, got %+v", mapped)
	}
	if len(pgs) != 1 || pgs[0].OutputSuffix != "eng.sup" {
		t.Fatalf("expected one PGS sidecar, got %+v", pgs)
	}
}

func TestRewriteResolutionTokenAppliedOnDowngrade(t *testing.T) {
	p := &probe.Probe{Streams: []probe.Stream{
		{Kind: probe.KindVideo, Video: &probe.VideoStream{Index: 0, Codec: "hevc", Width: 3840, Height: 2160, PixFmt: "yuv420p"}},
		{Kind: probe.KindAudio, Audio: &probe.AudioStream{Index: 1, Codec: "aac", Channels: 2, Language: "eng"}},
	}}
	plan := BuildPlan("/lib/Movie.2160p.mkv", p, check.Encoder{SoftwareAvailable: true}, false, true)
	if plan.OutputPathTransform != "Movie.1080p.mkv" {
		t.Errorf("OutputPathTransform = %q, want Movie.1080p.mkv", plan.OutputPathTransform)
	}
}

func TestBuildAudioOnlyPlanSkipsMP3(t *testing.T) {
	plan := BuildAudioOnlyPlan("/lib/song.mp3", "mp3")
	if !plan.Skip {
		t.Error("expected mp3-in-.mp3 to skip")
	}
}

func TestBuildAudioOnlyPlanReencodesFlac(t *testing.T) {
	plan := BuildAudioOnlyPlan("/lib/song.flac", "flac")
	if plan.Skip {
		t.Error("expected flac to require re-encode")
	}
	if plan.Action != ActionNeedsAudio {
		t.Errorf("Action = %v, want ActionNeedsAudio", plan.Action)
	}
}

func TestBuildVideoFiltersTonemapBeforeScale(t *testing.T) {
	filters := buildVideoFilters(3840, 2160, true, hdr.Info{IsHDR: true, Kind: hdr.HDR10, BitDepth: 10})
	if len(filters) != 2 {
		t.Fatalf("expected tonemap + scale, got %v", filters)
	}
	if filters[0] != tonemapChain || filters[1] != "scale=-2:1080" {
		t.Errorf("scale must run on the tone-mapped output: %v", filters)
	}
}

func TestBuildVideoFiltersNoScaleWithoutDowngradeFlag(t *testing.T) {
	if filters := buildVideoFilters(3840, 2160, false, hdr.Info{}); len(filters) != 0 {
		t.Errorf("downscale requires the flag, got %v", filters)
	}
}

func TestBuildVideoFiltersWideSource(t *testing.T) {
	filters := buildVideoFilters(2560, 1080, true, hdr.Info{})
	if len(filters) != 1 || filters[0] != "scale=1920:-2" {
		t.Errorf("an over-wide 1080-tall source scales by width, got %v", filters)
	}
}

func TestSelectVideoActionFallsBackToSoftwareWhenHardwareUnavailable(t *testing.T) {
	va := selectVideoAction(check.Encoder{SoftwareAvailable: true}, nil, hdr.Info{})
	if va.Encoder != "libx264" || va.Preset != "medium" {
		t.Errorf("got %+v", va)
	}
}
