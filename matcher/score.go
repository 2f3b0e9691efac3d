package matcher

import (
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/grrywlsn/radioplex/normalize"
)

const scoreEpsilon = 1e-9

var levenshtein = metrics.NewLevenshtein()

// Score returns the title and artist similarity between a key and a library
// candidate, each in [0,1]. The candidate is normalized the same way as the
// key. Titles are also compared with release suffixes like " - Radio Edit"
// removed, and artists are compared per credited name so "Lauren Daigle"
// matches "Lauren Daigle & Jason Ingram".
func Score(key normalize.Key, c Candidate) (title, artist float64) {
	candidateTitle := normalize.Field(c.Title)
	candidateArtist := normalize.Field(c.Artist)

	title = fieldScore(key.Title, candidateTitle)
	if stripped := normalize.Field(normalize.StripVersionSuffix(c.Title)); stripped != candidateTitle {
		title = max(title, fieldScore(key.Title, stripped))
	}

	artist = fieldScore(key.Artist, candidateArtist)
	for _, part := range credits(candidateArtist) {
		artist = max(artist, fieldScore(key.Artist, part))
	}
	for _, part := range credits(key.Artist) {
		artist = max(artist, fieldScore(part, candidateArtist))
	}
	return title, artist
}

// fieldScore is the larger of the Levenshtein similarity and the word overlap.
// Both grow with shared characters or words, so the score does too.
func fieldScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return max(strutil.Similarity(a, b, levenshtein), tokenOverlap(a, b))
}

// tokenOverlap is the Jaccard index of the word sets of a and b.
func tokenOverlap(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	shared := 0
	for w := range wordsA {
		if wordsB[w] {
			shared++
		}
	}
	union := len(wordsA) + len(wordsB) - shared
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// credits splits a normalized multi-artist credit into its names.
func credits(artist string) []string {
	parts := strings.Split(artist, " and ")
	if len(parts) < 2 {
		return nil
	}
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// better reports whether candidate a with confidence ca beats the current best
// b with confidence cb: higher confidence, then the library artist closest to
// the artist the station printed, then the lowest library ID.
func better(a Candidate, ca float64, b Candidate, cb float64, rawArtist string) bool {
	if ca > cb+scoreEpsilon {
		return true
	}
	if ca < cb-scoreEpsilon {
		return false
	}

	// Case counts: the comparison is against the text as printed.
	raw := strings.TrimSpace(rawArtist)
	da := levenshtein.Distance(strings.TrimSpace(a.Artist), raw)
	db := levenshtein.Distance(strings.TrimSpace(b.Artist), raw)
	if da != db {
		return da < db
	}
	return lessID(a.ID, b.ID)
}

// lessID orders library IDs numerically when both are numbers.
func lessID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
