package station

import (
	"context"
	"fmt"

	"github.com/grrywlsn/radioplex/spotify"
)

// PlaylistReader lists the songs of a Spotify playlist in playlist order.
type PlaylistReader interface {
	GetPlaylistSongs(ctx context.Context, playlistID string) ([]spotify.Song, error)
}

// SpotifySource treats a Spotify playlist that mirrors a station's airplay as
// a station. Mirrors append new plays at the end, so the list is reversed.
type SpotifySource struct {
	PlaylistID string
	Reader     PlaylistReader
}

// NewSpotify creates a source over the given playlist.
func NewSpotify(playlistID string, reader PlaylistReader) *SpotifySource {
	return &SpotifySource{PlaylistID: playlistID, Reader: reader}
}

// ID implements Source.
func (s *SpotifySource) ID() ID { return Spotify }

// Fetch implements Source.
func (s *SpotifySource) Fetch(ctx context.Context) ([]RawEntry, error) {
	songs, err := s.Reader.GetPlaylistSongs(ctx, s.PlaylistID)
	if err != nil {
		return nil, unavailable(Spotify, err)
	}
	if len(songs) == 0 {
		return nil, unavailable(Spotify, fmt.Errorf("playlist %s is empty", s.PlaylistID))
	}

	entries := make([]RawEntry, 0, len(songs))
	for i := len(songs) - 1; i >= 0; i-- {
		song := songs[i]
		if song.Name == "" || song.Artist == "" {
			continue
		}
		entries = append(entries, RawEntry{
			Artist: song.Artist,
			Title:  song.Name,
			ISRC:   song.ISRC,
		})
	}
	return number(Spotify, entries), nil
}
