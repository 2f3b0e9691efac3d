package station

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
)

// DefaultSpiritFMDelimiter separates fields in the Spirit FM feed.
const DefaultSpiritFMDelimiter = "|"

// SpiritFMSource reads the Spirit FM recently played text feed. Each line is
// one play, newest first, as "time|artist|title" or "artist|title".
type SpiritFMSource struct {
	URL       string
	Delimiter string
	Fetcher   Fetcher
}

// NewSpiritFM creates a Spirit FM source. Empty url or delimiter use the defaults.
func NewSpiritFM(url, delimiter string, fetcher Fetcher) *SpiritFMSource {
	if url == "" {
		url = DefaultSpiritFMURL
	}
	if delimiter == "" {
		delimiter = DefaultSpiritFMDelimiter
	}
	return &SpiritFMSource{URL: url, Delimiter: delimiter, Fetcher: fetcher}
}

// ID implements Source.
func (s *SpiritFMSource) ID() ID { return SpiritFM }

// Fetch implements Source.
func (s *SpiritFMSource) Fetch(ctx context.Context) ([]RawEntry, error) {
	body, err := s.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, unavailable(SpiritFM, err)
	}

	entries, err := ParseSpiritFM(body, s.Delimiter)
	if err != nil {
		return nil, unavailable(SpiritFM, err)
	}
	return entries, nil
}

// ParseSpiritFM parses the delimited feed. Blank lines and lines starting with
// '#' are ignored; a line with the wrong number of fields makes the whole feed
// malformed.
func ParseSpiritFM(body []byte, delimiter string) ([]RawEntry, error) {
	if delimiter == "" {
		delimiter = DefaultSpiritFMDelimiter
	}
	if bytes.Contains(bytes.ToLower(body[:min(len(body), 512)]), []byte("<html")) {
		return nil, fmt.Errorf("expected a text feed, got html")
	}

	var entries []RawEntry
	scanner := bufio.NewScanner(bytes.NewReader(body))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, delimiter)
		for i := range fields {
			fields[i] = cleanText(fields[i])
		}

		var entry RawEntry
		switch len(fields) {
		case 2:
			entry.Artist, entry.Title = fields[0], fields[1]
		case 3:
			entry.PlayedAt, entry.Artist, entry.Title = fields[0], fields[1], fields[2]
		default:
			return nil, fmt.Errorf("line %d: expected 2 or 3 fields separated by %q, got %d", lineNo, delimiter, len(fields))
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("feed has no plays")
	}

	return number(SpiritFM, entries), nil
}
