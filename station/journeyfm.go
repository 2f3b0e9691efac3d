package station

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var playTimePattern = regexp.MustCompile(`\d{1,2}:\d{2}\s?[AaPp][Mm]`)

// Page chrome that matches the play-time pattern on some layouts.
var journeyNoise = map[string]bool{
	"by":              true,
	"recently played": true,
	"now playing:":    true,
	"now playing":     true,
	"search":          true,
}

// JourneyFMSource scrapes the Journey FM recently played HTML page.
type JourneyFMSource struct {
	URL     string
	Fetcher Fetcher
}

// NewJourneyFM creates a Journey FM source. An empty url uses the default page.
func NewJourneyFM(url string, fetcher Fetcher) *JourneyFMSource {
	if url == "" {
		url = DefaultJourneyFMURL
	}
	return &JourneyFMSource{URL: url, Fetcher: fetcher}
}

// ID implements Source.
func (s *JourneyFMSource) ID() ID { return JourneyFM }

// Fetch implements Source.
func (s *JourneyFMSource) Fetch(ctx context.Context) ([]RawEntry, error) {
	body, err := s.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, unavailable(JourneyFM, err)
	}

	entries, err := ParseJourneyFM(body)
	if err != nil {
		return nil, unavailable(JourneyFM, err)
	}
	return entries, nil
}

// ParseJourneyFM extracts plays from the recently played page. Each play is the
// innermost div, li or p whose text carries a play time like "3:45 PM". Its
// spans hold title, artist and time in that order; layouts without spans fall
// back to "<title> by <artist> <time>" text.
func ParseJourneyFM(body []byte) ([]RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	hasTime := func(_ int, sel *goquery.Selection) bool {
		return playTimePattern.MatchString(sel.Text())
	}

	var entries []RawEntry
	doc.Find("div, li, p").FilterFunction(hasTime).Each(func(_ int, sel *goquery.Selection) {
		// Containers of several plays also match; only the innermost element is one play.
		if sel.Find("div, li, p").FilterFunction(hasTime).Length() > 0 {
			return
		}

		entry, ok := parseJourneyElement(sel)
		if !ok {
			return
		}
		entries = append(entries, entry)
	})

	// The page always lists recent plays; none at all means the layout changed.
	if len(entries) == 0 {
		return nil, fmt.Errorf("no plays found in page")
	}

	return number(JourneyFM, entries), nil
}

func parseJourneyElement(sel *goquery.Selection) (RawEntry, bool) {
	var entry RawEntry

	spans := sel.Find("span")
	if spans.Length() >= 3 {
		entry.Title = cleanText(spans.Eq(0).Text())
		entry.Artist = cleanText(spans.Eq(1).Text())
		entry.PlayedAt = cleanText(spans.Eq(2).Text())
	} else {
		text := cleanText(sel.Text())
		loc := playTimePattern.FindStringIndex(text)
		if loc == nil {
			return entry, false
		}
		entry.PlayedAt = text[loc[0]:loc[1]]

		before := strings.TrimSpace(text[:loc[0]])
		idx := strings.Index(strings.ToLower(before), " by ")
		if idx < 0 {
			return entry, false
		}
		entry.Title = strings.TrimSpace(before[:idx])
		entry.Artist = strings.TrimSpace(before[idx+len(" by "):])
	}

	if !looksLikeSong(entry.Title, entry.Artist) {
		return entry, false
	}
	return entry, true
}

func looksLikeSong(title, artist string) bool {
	if title == "" || artist == "" {
		return false
	}
	if len([]rune(title)) < 3 {
		return false
	}
	return !journeyNoise[strings.ToLower(title)]
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
