package normalize

import "strings"

// Release-version suffixes libraries append to otherwise identical titles.
var versionSuffixes = []string{
	" - bonus track",
	" - remix",
	" - extended",
	" - radio edit",
	" - single edit",
	" - radio version",
	" - single version",
	" - album version",
	" - edit",
	" - version",
	" - live",
	" - acoustic",
	" - instrumental",
	" - demo",
	" - original mix",
	" - club mix",
	" - clean",
	" - explicit",
	" - bonus",
	" - track",
	" - remastered",
	" - from the soundtrack",
	" - soundtrack version",
	" - film version",
	" - movie version",
	" (bonus track)",
	" (remix)",
	" (extended)",
	" (radio edit)",
	" (single edit)",
	" (radio version)",
	" (single version)",
	" (album version)",
	" (edit)",
	" (version)",
	" (live)",
	" (acoustic)",
	" (instrumental)",
	" (demo)",
	" (original mix)",
	" (club mix)",
	" (clean)",
	" (explicit)",
	" (bonus)",
	" (track)",
	" (remastered)",
	" (from the soundtrack)",
	" (soundtrack version)",
	" (film version)",
	" (movie version)",
}

// Soundtrack credits with free text after them, e.g. ` - From "Jesus Revolution"`.
var soundtrackMarkers = []string{
	" - from the motion picture",
	" - from the film",
	" - from the movie",
	" - love theme from",
	" - from \"",
	"(from the motion picture",
	"(from the film",
	"(from the movie",
	"(love theme from",
}

// StripVersionSuffix removes a trailing " - Radio Edit" style suffix,
// preserving the case of what remains.
func StripVersionSuffix(s string) string {
	s = foldPunctuation(s)

	for _, suffix := range versionSuffixes {
		if len(s) > len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
			result := strings.TrimSpace(s[:len(s)-len(suffix)])
			return strings.TrimSpace(strings.TrimSuffix(result, "-"))
		}
	}

	lower := strings.ToLower(s)
	if len(lower) != len(s) {
		return s
	}
	for _, marker := range soundtrackMarkers {
		if i := strings.Index(lower, marker); i > 0 {
			result := strings.TrimSpace(s[:i])
			return strings.TrimSpace(strings.TrimSuffix(result, "-"))
		}
	}

	return s
}
