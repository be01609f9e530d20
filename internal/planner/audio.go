package planner

import (
	"strconv"
	"strings"

	"github.com/kesler/mediabox/internal/probe"
)

// stereoSignature is the filter-parameter fingerprint embedded in a derived
// dialogue-stereo track's title tag. Its presence marks the track as already
// "enhanced" by the current filter settings; its absence marks it upgradable.
const stereoSignature = "C0.5-R6"

// normalizeLayout collapses ffprobe's side/wide channel-layout spellings to
// the plain form the encoder's -ch_layout option expects.
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

// selectSurround picks the canonical surround source: candidates are audio streams with
// channels >= 6; prefer an eng-tagged one, then an untagged one, and never a
// non-English surround.
func selectSurround(audios []probe.AudioStream) *SurroundSelection {
	var untagged *probe.AudioStream
	for i := range audios {
		a := &audios[i]
		if a.Channels < 6 {
			continue
		}
		if a.Language == "eng" {
			return surroundFrom(a)
		}
		if untagged == nil && (a.Language == "" || a.Language == "und") {
			untagged = a
		}
	}
	if untagged != nil {
		return surroundFrom(untagged)
	}
	return nil
}

func surroundFrom(a *probe.AudioStream) *SurroundSelection {
	return &SurroundSelection{
		InputIndex:         a.Index,
		Channels:           a.Channels,
		ChannelLayout:      a.ChannelLayout,
		NeedsChannelmapFix: a.Channels == 6 && isUnknownLayout(a.ChannelLayout),
		Title:              surroundTitle(a.Channels),
	}
}

// hasExistingChannelCount reports whether any audio stream already carries
// exactly n channels — used to decide whether a 5.1 still needs deriving
// from a 7.1 source.
func hasExistingChannelCount(audios []probe.AudioStream, n int) bool {
	for _, a := range audios {
		if a.Channels == n {
			return true
		}
	}
	return false
}

// hasEnhancedStereo reports whether any audio stream's title already carries
// the current dialogue-stereo filter signature.
func hasEnhancedStereo(audios []probe.AudioStream) bool {
	for _, a := range audios {
		if strings.Contains(a.Title, stereoSignature) {
			return true
		}
	}
	return false
}

// hasUsableAudio reports whether at least one audio stream is English or
// unlabeled. A file with only foreign-tagged audio is left untouched:
// transcoding it would drop every audio stream and produce a silent output.
func hasUsableAudio(audios []probe.AudioStream) bool {
	for _, a := range audios {
		if a.Language == "" || a.Language == "eng" || a.Language == "und" {
			return true
		}
	}
	return false
}

// surroundTitle names a preserved (non-derived) surround track.
func surroundTitle(channels int) string {
	switch channels {
	case 6:
		return "5.1 Surround"
	case 8:
		return "7.1 Surround"
	default:
		return "Surround"
	}
}

// dialogueStereoTitle names the derived dialogue-stereo track. The forced
// variant marks a downmix the operator requested over an existing stereo.
func dialogueStereoTitle(forceStereo bool) string {
	if forceStereo {
		return "English Stereo (Dialogue-" + stereoSignature + "-AAC-VBR2)"
	}
	return "English Stereo (" + stereoSignature + "-AAC-VBR2)"
}

// preservedStereoTitle is applied to an existing stereo track mapped
// through untouched.
const preservedStereoTitle = "English Stereo (AAC-CBR192k)"

// buildDerivedTracks plans the 7.1-to-5.1 downmix (if needed) and the
// dialogue-boosted stereo derivation (if needed or forced).
func buildDerivedTracks(audios []probe.AudioStream, surround *SurroundSelection, forceStereo bool) []DerivedTrack {
	if surround == nil {
		return nil
	}

	var tracks []DerivedTrack
	stereoSource := surroundSourceLabel(surround)

	if surround.Channels == 8 && !hasExistingChannelCount(audios, 6) {
		tracks = append(tracks, DerivedTrack{
			Kind:     DerivedDownmix51From71,
			Source:   stereoSource,
			Title:    surroundTitle(6),
			Language: "eng",
		})
		stereoSource = "[surround_51]"
	}

	if !hasEnhancedStereo(audios) || forceStereo {
		tracks = append(tracks, DerivedTrack{
			Kind:     DerivedDialogueStereo,
			Source:   stereoSource,
			Title:    dialogueStereoTitle(forceStereo),
			Language: "eng",
		})
	}

	return tracks
}

func surroundSourceLabel(s *SurroundSelection) string {
	if s.NeedsChannelmapFix {
		return "[surround_fixed]"
	}
	return inputAudioLabel(s.InputIndex)
}

func inputAudioLabel(streamIndex int) string {
	return "[0:" + strconv.Itoa(streamIndex) + "]"
}

// selectPreservedAudio picks the fallback stereo/passthrough stream mapped
// alongside any surround selection. It prefers an existing stereo (2-channel)
// eng/und track; a non-English stream is never preserved: it must be
// dropped, not carried through.
func selectPreservedAudio(audios []probe.AudioStream, surround *SurroundSelection) *PreservedAudio {
	for i := range audios {
		a := &audios[i]
		if surround != nil && a.Index == surround.InputIndex {
			continue
		}
		if a.Channels != 2 {
			continue
		}
		if a.Language != "" && a.Language != "eng" && a.Language != "und" {
			continue
		}
		return &PreservedAudio{
			InputIndex:    a.Index,
			ChannelLayout: normalizeLayout(a.ChannelLayout),
			Title:         preservedStereoTitle,
			Language:      "eng",
		}
	}
	return nil
}
