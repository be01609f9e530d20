package naming

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	tokenUHD   = regexp.MustCompile(`(?i)\b(4K|UHD|2160p?)\b`)
	token1440  = regexp.MustCompile(`(?i)\b1440p?\b`)
	tokenOther = regexp.MustCompile(`(?i)\b(1800p?|1620p?|1200p?)\b`)
	token1080  = regexp.MustCompile(`(?i)\b1080p?\b`)

	qualityTag = regexp.MustCompile(`(?i)\b(WEB-DL|WEBDL|BluRay|BDRip|DVDRip|HDRip)\b`)
)

// RewriteResolutionToken replaces any above-1080p resolution token in name's
// stem with "1080p", case-insensitively, first matching rule wins. If no
// token is found but the stem lacks an existing 1080p tag, "1080p" is
// inserted before the first quality tag, or appended to the stem if none is
// present. Already-normalized names (already carrying a 1080p token) are
// returned unchanged, so repeated application is a no-op.
func RewriteResolutionToken(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for _, re := range []*regexp.Regexp{tokenUHD, token1440, tokenOther} {
		if re.MatchString(stem) {
			return re.ReplaceAllString(stem, "1080p") + ext
		}
	}

	if token1080.MatchString(stem) {
		return name
	}

	if loc := qualityTag.FindStringIndex(stem); loc != nil {
		return stem[:loc[0]] + "1080p " + stem[loc[0]:] + ext
	}

	return stem + " 1080p" + ext
}
