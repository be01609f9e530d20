package planner

// Action is the decision tag stored in the cache and surfaced in logs.
type Action string

const (
	ActionSkip             Action = "skip"
	ActionNeedsConversion  Action = "needs_conversion"
	ActionNeedsAudio       Action = "needs_audio"
	ActionNeedsVideo       Action = "needs_video"
	ActionNeedsHDRTonemap  Action = "needs_hdr_tonemap"
	ActionReplaced         Action = "replaced"
	ActionPending          Action = "pending"
	ActionUnknown          Action = "unknown"
)

// OutputKind distinguishes the video and audio normalization pipelines.
type OutputKind int

const (
	OutputVideo OutputKind = iota
	OutputAudio
)

// VideoActionKind discriminates VideoAction's variants.
type VideoActionKind int

const (
	VideoNone VideoActionKind = iota
	VideoCopy
	VideoReencode
)

// VideoAction describes what, if anything, happens to the video stream.
type VideoAction struct {
	Kind     VideoActionKind
	Encoder  string // "h264_vaapi" or "libx264"
	CRF      int    // software path only
	QP       int    // hardware path only
	Preset   string
	Filters  []string // ordered -vf entries (tonemap chain first, then scale)
}

// SurroundSelection is the audio stream chosen as the canonical surround
// source.
type SurroundSelection struct {
	InputIndex         int
	Channels           int
	ChannelLayout      string
	NeedsChannelmapFix bool
	Title              string
}

// DerivedKind discriminates the two kinds of synthesized audio track.
type DerivedKind int

const (
	DerivedDownmix51From71 DerivedKind = iota
	DerivedDialogueStereo
)

// DerivedTrack is a synthesized audio stream, built from a filter graph
// rather than copied or simply re-encoded from one source stream.
type DerivedTrack struct {
	Kind     DerivedKind
	Source   string // filter-graph label this track reads from, e.g. "[0:2]" or "[surround_51]"
	Title    string
	Language string
}

// PreservedAudio is an existing stream mapped through largely as-is (stereo
// passthrough, or any stream that isn't surround and isn't dropped).
type PreservedAudio struct {
	InputIndex    int
	ChannelLayout string
	Title         string
	Language      string
	Derived       bool // true when this "preserved" slot is actually the derived dialogue stereo
}

// SubtitleMapping is one included text subtitle, always re-encoded to
// mov_text.
type SubtitleMapping struct {
	InputIndex int
	Language   string
	Forced     bool
}

// ExtractedPGS is a bitmap subtitle stream scheduled for sidecar extraction
// instead of muxing.
type ExtractedPGS struct {
	InputIndex   int
	OutputSuffix string // "<lang>.sup" or "forced.<lang>.sup"
}

// Plan is the Decision Engine's output: everything the Filter-Graph Builder
// and Transcode Executor need to act on one file.
type Plan struct {
	InputPath  string
	OutputKind OutputKind

	Skip       bool
	SkipReason string
	Action     Action

	VideoAction VideoAction

	SelectedSurround *SurroundSelection
	DerivedTracks    []DerivedTrack
	PreservedAudio   *PreservedAudio

	SubtitleMap  []SubtitleMapping
	ExtractedPGS []ExtractedPGS

	// OutputPathTransform, when non-empty, is the rewritten basename the
	// Executor should rename the final output to (resolution-token swap).
	OutputPathTransform string

	// When OutputKind is OutputAudio (see BuildAudioOnlyPlan) only
	// Skip/SkipReason/Action apply; the video and stream fields are unused.
}
