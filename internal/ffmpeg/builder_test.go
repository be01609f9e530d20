package ffmpeg

import (
	"strings"
	"testing"

	"github.com/kesler/mediabox/internal/planner"
)

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestBuildVideoArgsSoftwarePath(t *testing.T) {
	va := planner.VideoAction{
		Kind:    planner.VideoReencode,
		Encoder: "libx264",
		CRF:     23,
		Preset:  "medium",
		Filters: []string{"scale=-2:1080"},
	}
	args := BuildVideoArgs(va, "/dev/dri/renderD128")

	if !containsArg(args, "libx264") {
		t.Fatalf("expected libx264 in args, got %v", args)
	}
	if !containsArg(args, "-crf") {
		t.Errorf("expected -crf flag for software encode, got %v", args)
	}
	if containsArg(args, "-init_hw_device") {
		t.Errorf("software path should not init a hw device: %v", args)
	}
}

func TestBuildVideoArgsHardwarePath(t *testing.T) {
	va := planner.VideoAction{
		Kind:    planner.VideoReencode,
		Encoder: "h264_vaapi",
		QP:      23,
	}
	args := BuildVideoArgs(va, "/dev/dri/renderD128")

	if !containsArg(args, "-init_hw_device") {
		t.Errorf("expected -init_hw_device for vaapi path, got %v", args)
	}
	if !containsArg(args, "-qp") {
		t.Errorf("expected -qp flag for hardware encode, got %v", args)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "hwupload") {
		t.Errorf("expected hwupload filter appended for vaapi, got %s", joined)
	}
}

func TestBuildAudioArgsSurroundOnly(t *testing.T) {
	plan := &planner.Plan{
		SelectedSurround: &planner.SurroundSelection{
			InputIndex:    2,
			Channels:      6,
			ChannelLayout: "5.1",
			Title:         "5.1 Surround",
		},
	}
	args := BuildAudioArgs(plan)

	if !containsArg(args, "0:2") {
		t.Fatalf("expected map of input index 2, got %v", args)
	}
	if !containsArg(args, "5.1") {
		t.Errorf("expected ch_layout 5.1 in args, got %v", args)
	}
}

func TestBuildAudioArgsFullOutputOrder(t *testing.T) {
	plan := &planner.Plan{
		SelectedSurround: &planner.SurroundSelection{
			InputIndex:         3,
			Channels:           8,
			ChannelLayout:      "7.1",
			NeedsChannelmapFix: false,
			Title:              "7.1 Surround",
		},
		DerivedTracks: []planner.DerivedTrack{
			{Kind: planner.DerivedDownmix51From71, Source: "[0:3]", Title: "5.1 Surround", Language: "eng"},
			{Kind: planner.DerivedDialogueStereo, Source: "[surround_51]", Title: "English Stereo (Dialogue-C0.5-R6-AAC-VBR2)", Language: "eng"},
		},
	}
	args := BuildAudioArgs(plan)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-filter_complex") {
		t.Fatalf("expected a filter_complex graph, got %s", joined)
	}
	if !strings.Contains(joined, "asplit=2") {
		t.Errorf("5.1 feeds both output and stereo derivation, expected asplit: %s", joined)
	}
	if !containsArg(args, "[dialogue_stereo]") {
		t.Errorf("expected final dialogue stereo map, got %v", args)
	}
	if !containsArg(args, "-q:a:2") {
		t.Errorf("expected VBR quality flag on the third (dialogue stereo) output, got %v", args)
	}
}

// A 6-channel source with an unknown layout gets the channelmap fix, and the
// fixed stream feeds both the surround output and the dialogue-stereo
// derivation. The fixed pad must be asplit: a named pad can only be consumed
// once.
func TestBuildAudioArgsChannelmapFixFeedsStereo(t *testing.T) {
	plan := &planner.Plan{
		SelectedSurround: &planner.SurroundSelection{
			InputIndex:         1,
			Channels:           6,
			ChannelLayout:      "",
			NeedsChannelmapFix: true,
			Title:              "5.1 Surround",
		},
		DerivedTracks: []planner.DerivedTrack{
			{Kind: planner.DerivedDialogueStereo, Source: "[surround_fixed]", Title: "English Stereo (C0.5-R6-AAC-VBR2)", Language: "eng"},
		},
	}
	args := BuildAudioArgs(plan)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "channelmap=0-FL|1-FR|2-FC|3-LFE|4-BL|5-BR:5.1") {
		t.Fatalf("expected the channelmap fix in the graph: %s", joined)
	}
	if !strings.Contains(joined, "asplit=2[surround_fixed][surround_fixed_feed]") {
		t.Errorf("fixed surround feeds both an output and the stereo pan, expected an asplit: %s", joined)
	}
	if !strings.Contains(joined, "[surround_fixed_feed]pan=stereo") {
		t.Errorf("dialogue stereo must read the _feed copy, not the mapped pad: %s", joined)
	}
	if !containsArg(args, "[surround_fixed]") {
		t.Errorf("expected the fixed surround mapped as an output: %v", args)
	}
	// Every named label must be consumed at most once.
	fc := extractFilterComplex(t, args)
	assertPadsSingleUse(t, fc)
}

// extractFilterComplex returns the -filter_complex argument value.
func extractFilterComplex(t *testing.T, args []string) string {
	t.Helper()
	for i, a := range args {
		if a == "-filter_complex" && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatal("no -filter_complex in args")
	return ""
}

// assertPadsSingleUse checks that within a filter_complex graph every named
// pad produced by one chain is consumed by at most one later chain.
func assertPadsSingleUse(t *testing.T, fc string) {
	t.Helper()
	consumed := map[string]int{}
	for _, chain := range strings.Split(fc, ";") {
		end := strings.Index(chain, "]")
		for strings.HasPrefix(chain, "[") && end > 0 {
			label := chain[:end+1]
			if strings.HasPrefix(label, "[0:") {
				break // input stream specifier, consumable freely
			}
			consumed[label]++
			chain = chain[end+1:]
			end = strings.Index(chain, "]")
		}
	}
	for label, n := range consumed {
		if n > 1 {
			t.Errorf("pad %s consumed %d times in %q", label, n, fc)
		}
	}
}

func TestBuildAudioArgsPreservedStereoOnly(t *testing.T) {
	plan := &planner.Plan{
		PreservedAudio: &planner.PreservedAudio{
			InputIndex:    1,
			ChannelLayout: "stereo",
			Title:         "English Stereo (AAC-CBR192k)",
			Language:      "eng",
		},
	}
	args := BuildAudioArgs(plan)
	if !containsArg(args, "0:1") {
		t.Fatalf("expected map of preserved input, got %v", args)
	}
	if !containsArg(args, "192k") {
		t.Errorf("expected CBR 192k for a preserved stereo track, got %v", args)
	}
}

func TestBuildAudioArgsUnknownLayoutFallsBackToCopy(t *testing.T) {
	plan := &planner.Plan{
		PreservedAudio: &planner.PreservedAudio{
			InputIndex:    1,
			ChannelLayout: "unknown",
			Title:         "English Stereo (AAC-CBR192k)",
			Language:      "eng",
		},
	}
	args := BuildAudioArgs(plan)
	if !containsArg(args, "copy") {
		t.Errorf("expected a copy codec when layout is unfixable, got %v", args)
	}
}

func TestBuildSubtitleArgsEmpty(t *testing.T) {
	if args := BuildSubtitleArgs(nil); args != nil {
		t.Errorf("expected nil args for no subtitles, got %v", args)
	}
}

func TestBuildSubtitleArgsMovText(t *testing.T) {
	args := BuildSubtitleArgs([]planner.SubtitleMapping{{InputIndex: 4, Language: "eng"}})
	if !containsArg(args, "mov_text") {
		t.Errorf("expected mov_text codec, got %v", args)
	}
	if !containsArg(args, "0:4") {
		t.Errorf("expected map of subtitle input index, got %v", args)
	}
}

func TestBuildContainerArgs(t *testing.T) {
	args := BuildContainerArgs()
	if !containsArg(args, "faststart") {
		t.Errorf("expected faststart movflag, got %v", args)
	}
}
