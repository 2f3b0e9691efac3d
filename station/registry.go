package station

import (
	"errors"
	"fmt"
)

// Options configures the sources built by New.
type Options struct {
	Selected          []ID
	JourneyFMURL      string
	SpiritFMURL       string
	SpiritFMDelimiter string
	SpotifyPlaylistID string

	Fetcher Fetcher
	Spotify PlaylistReader // required only when Spotify is selected
}

// New builds the selected sources in the configured processing order.
func New(opts Options) ([]Source, error) {
	if len(opts.Selected) == 0 {
		return nil, errors.New("no stations selected")
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(DefaultTimeout)
	}

	seen := make(map[ID]bool, len(opts.Selected))
	sources := make([]Source, 0, len(opts.Selected))
	for _, id := range opts.Selected {
		if seen[id] {
			continue
		}
		seen[id] = true

		switch id {
		case JourneyFM:
			sources = append(sources, NewJourneyFM(opts.JourneyFMURL, opts.Fetcher))
		case SpiritFM:
			sources = append(sources, NewSpiritFM(opts.SpiritFMURL, opts.SpiritFMDelimiter, opts.Fetcher))
		case Spotify:
			if opts.Spotify == nil || opts.SpotifyPlaylistID == "" {
				return nil, errors.New("spotify station needs a playlist ID and Spotify credentials")
			}
			sources = append(sources, NewSpotify(opts.SpotifyPlaylistID, opts.Spotify))
		default:
			return nil, fmt.Errorf("unknown station %q", id)
		}
	}
	return sources, nil
}
