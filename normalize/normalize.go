// Package normalize derives the comparison key for a scraped play.
//
// Normalization is a pure function: the same artist and title always give the
// same Key. Keys are for matching and deduplication only; Display keeps the
// text the station printed.
package normalize

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/grrywlsn/radioplex/station"
)

// ErrEmptyKey is returned when the artist or title is empty after normalization.
var ErrEmptyKey = errors.New("empty artist or title after normalization")

// Key is the canonical comparison form of a play.
type Key struct {
	Artist string
	Title  string
}

// String returns "artist|title", the form used to store missing songs.
func (k Key) String() string {
	return k.Artist + "|" + k.Title
}

// IsZero reports whether either half of the key is empty.
func (k Key) IsZero() bool {
	return k.Artist == "" || k.Title == ""
}

var (
	trailingBracket = regexp.MustCompile(`\s*(\([^()]*\)|\[[^\[\]]*\]|\{[^{}]*\})\s*$`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// Featured-artist markers. The text from the marker on is dropped.
var featuring = []string{
	" featuring ",
	" feat. ",
	" feat ",
	" ft. ",
	" ft ",
	" w/ ",
}

// Normalize derives the Key of a raw entry.
func Normalize(e station.RawEntry) (Key, error) {
	return Strings(e.Artist, e.Title)
}

// Strings normalizes an artist and title pair. It is used for scraped plays
// and library candidates alike so both sides compare in the same form.
func Strings(artist, title string) (Key, error) {
	k := Key{
		Artist: Field(artist),
		Title:  Field(title),
	}
	if k.IsZero() {
		return k, ErrEmptyKey
	}
	return k, nil
}

// Field applies the normalization rules to one string: lowercase, trim, drop
// featured-artist clauses and trailing bracketed text, fold "&" and "+" into
// "and", strip punctuation except internal apostrophes, collapse whitespace.
func Field(s string) string {
	s = foldPunctuation(s)
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = removeFeaturing(s)
	s = removeTrailingBrackets(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "+", " and ")
	s = stripPunctuation(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Display renders an entry as the station printed it, for logs and reports.
func Display(e station.RawEntry) string {
	return collapse(e.Artist) + " - " + collapse(e.Title)
}

// removeFeaturing cuts the string at the earliest featured-artist marker.
func removeFeaturing(s string) string {
	cut := -1
	for _, pattern := range featuring {
		if i := strings.Index(s, pattern); i > 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	// "(feat. X)" and "[ft. X]" open a bracket right before the marker
	for _, open := range []string{"(feat", "[feat", "(ft.", "[ft.", "(with ", "[with "} {
		if i := strings.Index(s, open); i > 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return s
	}
	return strings.TrimSpace(s[:cut])
}

// removeTrailingBrackets drops bracketed groups at the end of the string. A
// string that is nothing but brackets keeps its contents.
func removeTrailingBrackets(s string) string {
	for {
		stripped := trailingBracket.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		if strings.TrimSpace(stripped) == "" {
			return strings.Trim(s, "()[]{} ")
		}
		s = stripped
	}
	// An unclosed bracket left by a truncated station page
	if i := strings.LastIndexAny(s, "([{"); i > 0 && !strings.ContainsAny(s[i:], ")]}") {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// stripPunctuation keeps letters, digits, spaces and apostrophes between two
// alphanumerics. Dashes and slashes separate words; other marks are removed.
func stripPunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '\'':
			if i > 0 && i < len(runes)-1 && isAlnum(runes[i-1]) && isAlnum(runes[i+1]) {
				b.WriteRune(r)
			}
		case r == '-' || r == '/' || r == '_' || r == ':' || r == ',' || r == ';':
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldPunctuation maps typographic variants to their ASCII forms.
func foldPunctuation(s string) string {
	return punctuationFolder.Replace(s)
}

var punctuationFolder = strings.NewReplacer(
	"‐", "-", // hyphen
	"–", "-", // en dash
	"—", "-", // em dash
	"―", "-", // horizontal bar
	"×", "x", // multiplication sign, "Chloe × Halle"
	"’", "'",
	"‘", "'",
	"`", "'",
	"′", "'",
	"“", "\"",
	"”", "\"",
)
