package station

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.body, f.err
}

const journeyPage = `<html><body>
<h1>Recently Played</h1>
<div class="plays">
  <div class="play"><span>Feel It (feat. Mortanda)</span><span>TobyMac</span><span>3:45 PM</span></div>
  <div class="play"><span>Dare You to Move</span><span>Switchfoot</span><span>3:41 PM</span></div>
  <div class="play"><span>Hi</span><span>Somebody</span><span>3:38 PM</span></div>
  <div class="play"><span>Search</span><span>Nav</span><span>3:30 PM</span></div>
</div>
</body></html>`

func TestParseJourneyFMSpans(t *testing.T) {
	entries, err := ParseJourneyFM([]byte(journeyPage))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, RawEntry{
		Artist:   "TobyMac",
		Title:    "Feel It (feat. Mortanda)",
		Station:  JourneyFM,
		Position: 0,
		PlayedAt: "3:45 PM",
	}, entries[0])
	assert.Equal(t, "Switchfoot", entries[1].Artist)
	assert.Equal(t, "Dare You to Move", entries[1].Title)
	assert.Equal(t, 1, entries[1].Position)
}

func TestParseJourneyFMByFallback(t *testing.T) {
	page := `<html><body><ul>
<li>Gratitude by Brandon Lake 10:02 AM</li>
<li>Firm Foundation (He Won't) by Cody Carnes 9:58am</li>
<li>no time here by nobody</li>
</ul></body></html>`

	entries, err := ParseJourneyFM([]byte(page))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Gratitude", entries[0].Title)
	assert.Equal(t, "Brandon Lake", entries[0].Artist)
	assert.Equal(t, "10:02 AM", entries[0].PlayedAt)
	assert.Equal(t, "Firm Foundation (He Won't)", entries[1].Title)
	assert.Equal(t, "Cody Carnes", entries[1].Artist)
}

func TestParseJourneyFMNoPlays(t *testing.T) {
	_, err := ParseJourneyFM([]byte(`<html><body><p>Maintenance</p></body></html>`))
	assert.Error(t, err)
}

func TestJourneyFMSourceFetch(t *testing.T) {
	fetcher := &fakeFetcher{body: []byte(journeyPage)}
	src := NewJourneyFM("", fetcher)

	entries, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, []string{DefaultJourneyFMURL}, fetcher.urls)
	assert.Equal(t, JourneyFM, src.ID())
}

func TestJourneyFMSourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
	}{
		{"fetch error", &fakeFetcher{err: errors.New("connection refused")}},
		{"layout changed", &fakeFetcher{body: []byte("<html><body></body></html>")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJourneyFM("http://example.test", tt.fetcher).Fetch(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSourceUnavailable)
		})
	}
}
