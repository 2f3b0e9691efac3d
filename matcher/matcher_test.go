package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grrywlsn/radioplex/normalize"
	"github.com/grrywlsn/radioplex/station"
)

type libraryFunc func(ctx context.Context, query string) ([]Candidate, error)

func (f libraryFunc) SearchTracks(ctx context.Context, query string) ([]Candidate, error) {
	return f(ctx, query)
}

func mustKey(t *testing.T, artist, title string) normalize.Key {
	t.Helper()
	k, err := normalize.Strings(artist, title)
	require.NoError(t, err)
	return k
}

func TestBestFeaturedArtistStripped(t *testing.T) {
	m := New(nil)
	key := mustKey(t, "TobyMac", "Feel It (feat. Mortanda)")

	result := m.Best(key, "TobyMac", []Candidate{
		{ID: "102", Artist: "TobyMac", Title: "Feel It Again"},
		{ID: "101", Artist: "tobyMac", Title: "Feel It"},
	})

	require.True(t, result.Matched())
	assert.Equal(t, "101", result.Track.ID)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestBestThreshold(t *testing.T) {
	m := New(nil)

	tests := []struct {
		name       string
		key        normalize.Key
		candidates []Candidate
		wantID     string
	}{
		{
			name:       "exact",
			key:        mustKey(t, "Switchfoot", "Dare You to Move"),
			candidates: []Candidate{{ID: "1", Artist: "Switchfoot", Title: "Dare You to Move"}},
			wantID:     "1",
		},
		{
			name:       "same artist different song",
			key:        mustKey(t, "Switchfoot", "Dare You to Move"),
			candidates: []Candidate{{ID: "2", Artist: "Switchfoot", Title: "Meant to Live"}},
		},
		{
			name:       "same title different artist",
			key:        mustKey(t, "Hillsong UNITED", "Oceans (Where Feet May Fail)"),
			candidates: []Candidate{{ID: "3", Artist: "Some Cover Band", Title: "Oceans"}},
		},
		{
			name:       "various artists compilation",
			key:        mustKey(t, "Lauren Daigle", "You Say"),
			candidates: []Candidate{{ID: "4", Artist: "Various Artists", Title: "You Say"}},
			wantID:     "4",
		},
		{
			name:       "library radio edit",
			key:        mustKey(t, "Switchfoot", "Dare You to Move"),
			candidates: []Candidate{{ID: "5", Artist: "Switchfoot", Title: "Dare You to Move - Radio Edit"}},
			wantID:     "5",
		},
		{
			name:       "library lists both credited artists",
			key:        mustKey(t, "Lauren Daigle", "Thank God I Do"),
			candidates: []Candidate{{ID: "6", Artist: "Lauren Daigle & Jason Ingram", Title: "Thank God I Do"}},
			wantID:     "6",
		},
		{
			name:       "no candidates",
			key:        mustKey(t, "Switchfoot", "Dare You to Move"),
			candidates: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.Best(tt.key, tt.key.Artist, tt.candidates)
			if tt.wantID == "" {
				assert.False(t, result.Matched())
				return
			}
			require.True(t, result.Matched())
			assert.Equal(t, tt.wantID, result.Track.ID)
		})
	}
}

func TestBestTieBreak(t *testing.T) {
	m := New(nil)

	t.Run("closest raw artist", func(t *testing.T) {
		key := mustKey(t, "for KING & COUNTRY", "God Only Knows")
		result := m.Best(key, "for KING & COUNTRY", []Candidate{
			{ID: "1", Artist: "for KING and COUNTRY", Title: "God Only Knows"},
			{ID: "2", Artist: "for KING & COUNTRY", Title: "God Only Knows"},
		})
		require.True(t, result.Matched())
		assert.Equal(t, "2", result.Track.ID)
	})

	t.Run("raw artist case", func(t *testing.T) {
		key := mustKey(t, "TobyMac", "Feel It")
		result := m.Best(key, "TobyMac", []Candidate{
			{ID: "1", Artist: "TOBYMAC", Title: "Feel It"},
			{ID: "2", Artist: "TobyMac", Title: "Feel It"},
		})
		require.True(t, result.Matched())
		assert.Equal(t, "2", result.Track.ID)
	})

	t.Run("lowest numeric id", func(t *testing.T) {
		key := mustKey(t, "MercyMe", "I Can Only Imagine")
		candidates := []Candidate{
			{ID: "20", Artist: "MercyMe", Title: "I Can Only Imagine"},
			{ID: "7", Artist: "MercyMe", Title: "I Can Only Imagine"},
		}
		result := m.Best(key, "MercyMe", candidates)
		require.True(t, result.Matched())
		assert.Equal(t, "7", result.Track.ID)

		// Order of search results does not change the winner.
		reversed := m.Best(key, "MercyMe", []Candidate{candidates[1], candidates[0]})
		assert.Equal(t, "7", reversed.Track.ID)
	})
}

func TestThresholdOption(t *testing.T) {
	key := mustKey(t, "Switchfoot", "Dare You to Move")
	candidates := []Candidate{{ID: "1", Artist: "Switchfoot", Title: "Dare You to Moove"}}

	assert.True(t, New(nil).Best(key, "Switchfoot", candidates).Matched())
	assert.False(t, New(nil, WithThreshold(1)).Best(key, "Switchfoot", candidates).Matched())

	// Out of range values keep the default.
	assert.Equal(t, DefaultThreshold, New(nil, WithThreshold(1.5)).Threshold())
}

func TestFieldScoreMonotonic(t *testing.T) {
	target := "dare you to move"
	prev := 0.0
	for _, s := range []string{"x", "dare", "dare you", "dare you to", "dare you to move"} {
		score := fieldScore(target, s)
		assert.GreaterOrEqual(t, score, prev, "score for %q", s)
		prev = score
	}
	assert.Equal(t, 1.0, prev)
}

func TestMatchQueryOrder(t *testing.T) {
	var queries []string
	lib := libraryFunc(func(_ context.Context, query string) ([]Candidate, error) {
		queries = append(queries, query)
		if query == "feel it" {
			return []Candidate{{ID: "101", Artist: "tobyMac", Title: "Feel It"}}, nil
		}
		return nil, nil
	})

	m := New(lib, WithRateLimit(1000), WithSearchTimeout(time.Second))
	entry := station.RawEntry{Artist: "TobyMac", Title: "Feel It (feat. Mortanda)"}
	key := mustKey(t, entry.Artist, entry.Title)

	result, err := m.Match(context.Background(), entry, key)
	require.NoError(t, err)
	require.True(t, result.Matched())
	assert.Equal(t, "101", result.Track.ID)
	assert.Equal(t, "feel it", result.Query)
	assert.Equal(t, []string{"feel it tobymac", "feel it"}, queries)
}

func TestMatchNoMatchIsNotAnError(t *testing.T) {
	calls := 0
	lib := libraryFunc(func(context.Context, string) ([]Candidate, error) {
		calls++
		return []Candidate{{ID: "9", Artist: "Someone", Title: "Something Else"}}, nil
	})

	key := mustKey(t, "Switchfoot", "Dare You to Move")
	result, err := New(lib).Match(context.Background(), station.RawEntry{Artist: "Switchfoot"}, key)
	require.NoError(t, err)
	assert.False(t, result.Matched())
	assert.Equal(t, 3, calls)
}

func TestMatchLibraryError(t *testing.T) {
	errDown := errors.New("connection refused")
	lib := libraryFunc(func(context.Context, string) ([]Candidate, error) {
		return nil, errDown
	})

	key := mustKey(t, "Switchfoot", "Dare You to Move")
	_, err := New(lib).Match(context.Background(), station.RawEntry{}, key)
	assert.ErrorIs(t, err, errDown)
}

func TestMatchSearchTimeout(t *testing.T) {
	lib := libraryFunc(func(ctx context.Context, _ string) ([]Candidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	key := mustKey(t, "Switchfoot", "Dare You to Move")
	_, err := New(lib, WithSearchTimeout(10*time.Millisecond)).Match(context.Background(), station.RawEntry{}, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueryPlanDedupes(t *testing.T) {
	assert.Equal(t, []string{"a b", "a", "b"}, queryPlan(normalize.Key{Artist: "b", Title: "a"}))
	assert.Equal(t, []string{"x x", "x"}, queryPlan(normalize.Key{Artist: "x", Title: "x"}))
}
