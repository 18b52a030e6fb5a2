package journal

import (
	"strings"
	"unicode"
)

// NormalizeTags trims, lowercases and de-duplicates tags, keeping first
// occurrence order and dropping blanks.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ImageTokens derives the searchable token set of a list of images: every
// tag plus every alphanumeric word of every caption, lowercased and
// de-duplicated.
func ImageTokens(images []Image) []string {
	var raw []string
	for _, im := range images {
		raw = append(raw, im.Tags...)
		raw = append(raw, strings.FieldsFunc(im.Caption, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}
	return NormalizeTags(raw)
}
