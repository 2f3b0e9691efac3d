// Package matcher finds the library track that best matches a scraped play.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/grrywlsn/radioplex/normalize"
	"github.com/grrywlsn/radioplex/station"
)

const (
	// DefaultThreshold is the minimum per-field score for a match.
	DefaultThreshold = 0.8
	// DefaultSearchTimeout bounds a single library query.
	DefaultSearchTimeout = 15 * time.Second

	titleWeight  = 0.7
	artistWeight = 0.3

	// Compilations credit "Various Artists"; accept them on a near-exact title.
	variousArtists         = "various artists"
	variousArtistsMinTitle = 0.9
)

// Candidate is one track returned by a library search.
type Candidate struct {
	ID     string
	Artist string
	Title  string
	Album  string
}

// Library is the search capability of the music library.
type Library interface {
	SearchTracks(ctx context.Context, query string) ([]Candidate, error)
}

// Result is the outcome of matching one play. Track is nil when nothing in
// the library cleared the threshold; that is a normal outcome, not an error.
type Result struct {
	Track       *Candidate
	Confidence  float64
	TitleScore  float64
	ArtistScore float64
	Query       string
}

// Matched reports whether a library track was found.
func (r Result) Matched() bool {
	return r.Track != nil
}

// Matcher queries a Library and scores its candidates.
type Matcher struct {
	library       Library
	threshold     float64
	searchTimeout time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the per-field acceptance threshold.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

// WithSearchTimeout bounds each library query.
func WithSearchTimeout(timeout time.Duration) Option {
	return func(m *Matcher) {
		if timeout > 0 {
			m.searchTimeout = timeout
		}
	}
}

// WithRateLimit caps library queries per second. Zero or less disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(m *Matcher) {
		if perSecond <= 0 {
			m.limiter = nil
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Matcher over the given library.
func New(library Library, opts ...Option) *Matcher {
	m := &Matcher{
		library:       library,
		threshold:     DefaultThreshold,
		searchTimeout: DefaultSearchTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured per-field threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match searches the library for the play and returns the best accepted
// candidate. Queries run in order: "title artist", title, artist; the first
// query with an accepted candidate wins. Only library errors are returned.
func (m *Matcher) Match(ctx context.Context, entry station.RawEntry, key normalize.Key) (Result, error) {
	for _, query := range queryPlan(key) {
		candidates, err := m.search(ctx, query)
		if err != nil {
			return Result{}, fmt.Errorf("search %q: %w", query, err)
		}

		result := m.Best(key, entry.Artist, candidates)
		m.logger.Debug("library search",
			"query", query,
			"candidates", len(candidates),
			"matched", result.Matched(),
			"confidence", result.Confidence)
		if result.Matched() {
			result.Query = query
			return result, nil
		}
	}
	return Result{}, nil
}

func (m *Matcher) search(ctx context.Context, query string) ([]Candidate, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.searchTimeout)
	defer cancel()
	return m.library.SearchTracks(ctx, query)
}

// Best scores candidates against the key and returns the winner. rawArtist is
// the artist as the station printed it and breaks confidence ties.
func (m *Matcher) Best(key normalize.Key, rawArtist string, candidates []Candidate) Result {
	var best Result
	for i := range candidates {
		c := candidates[i]
		titleScore, artistScore := Score(key, c)
		if !m.accept(c, titleScore, artistScore) {
			continue
		}

		confidence := titleWeight*titleScore + artistWeight*artistScore
		if best.Track == nil || better(c, confidence, *best.Track, best.Confidence, rawArtist) {
			best = Result{
				Track:       &c,
				Confidence:  confidence,
				TitleScore:  titleScore,
				ArtistScore: artistScore,
			}
		}
	}
	return best
}

// accept requires artist and title to clear the threshold independently.
func (m *Matcher) accept(c Candidate, titleScore, artistScore float64) bool {
	if titleScore < m.threshold {
		return false
	}
	if artistScore >= m.threshold {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(c.Artist), variousArtists) && titleScore >= variousArtistsMinTitle
}

// queryPlan lists the distinct search strings for a key.
func queryPlan(key normalize.Key) []string {
	plan := []string{key.Title + " " + key.Artist, key.Title, key.Artist}
	seen := make(map[string]bool, len(plan))
	queries := plan[:0]
	for _, q := range plan {
		if q = strings.TrimSpace(q); q != "" && !seen[q] {
			seen[q] = true
			queries = append(queries, q)
		}
	}
	return queries
}
