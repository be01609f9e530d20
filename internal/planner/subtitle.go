package planner

import "github.com/kesler/mediabox/internal/probe"

var textSubtitleCodecs = map[string]bool{
	"subrip":   true,
	"srt":      true,
	"ass":      true,
	"ssa":      true,
	"mov_text": true,
}

// buildSubtitlePlan splits the subtitle streams: every eng-or-forced text
// subtitle is muxed in as mov_text; every PGS stream is scheduled for
// sidecar extraction instead, since bitmap subs are never carried in MP4.
func buildSubtitlePlan(subs []probe.SubtitleStream) ([]SubtitleMapping, []ExtractedPGS) {
	var mapped []SubtitleMapping
	var pgs []ExtractedPGS

	for _, s := range subs {
		switch {
		case s.Codec == "hdmv_pgs_subtitle":
			pgs = append(pgs, ExtractedPGS{
				InputIndex:   s.Index,
				OutputSuffix: pgsSuffix(s),
			})
		case textSubtitleCodecs[s.Codec]:
			if s.Language == "eng" || s.Forced {
				lang := s.Language
				if lang == "" {
					lang = "eng"
				}
				mapped = append(mapped, SubtitleMapping{
					InputIndex: s.Index,
					Language:   lang,
					Forced:     s.Forced,
				})
			}
		}
	}

	return mapped, pgs
}

func pgsSuffix(s probe.SubtitleStream) string {
	lang := s.Language
	if lang == "" {
		lang = "und"
	}
	if s.Forced {
		return "forced." + lang + ".sup"
	}
	return lang + ".sup"
}
