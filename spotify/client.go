package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// pageSize is the maximum number of playlist items Spotify returns per page.
const pageSize = 100

// Client wraps the Spotify API client
type Client struct {
	client *spotify.Client
}

// Song represents a track from a Spotify playlist
type Song struct {
	ID     string
	Name   string
	Artist string
	Album  string
	URI    string
	ISRC   string
}

// NewClient creates a Spotify client authenticated with the client credentials
// flow, which needs no user interaction and can read public playlists.
func NewClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify client ID and secret are required")
	}

	return newClient(ctx, &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	})
}

// newClient builds the API client over a token source that fetches a new
// client credentials token whenever the current one expires. Client
// credentials tokens carry no refresh token, so a long running watch needs
// the source, not a single token.
func newClient(ctx context.Context, creds *clientcredentials.Config, opts ...spotify.ClientOption) (*Client, error) {
	tokens := creds.TokenSource(ctx)

	// Fail early on bad credentials instead of on the first station fetch
	if _, err := tokens.Token(); err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}

	return &Client{client: spotify.New(oauth2.NewClient(ctx, tokens), opts...)}, nil
}

// GetPlaylistSongs fetches all songs from a Spotify playlist in playlist order
func (c *Client) GetPlaylistSongs(ctx context.Context, playlistID string) ([]Song, error) {
	var songs []Song
	page := 1

	for {
		playlistTracks, err := c.client.GetPlaylistTracks(ctx, spotify.ID(playlistID), spotify.Offset((page-1)*pageSize), spotify.Limit(pageSize))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist tracks (page %d): %w", page, err)
		}

		for _, item := range playlistTracks.Tracks {
			songs = append(songs, convertTrackToSong(item.Track))
		}

		if len(playlistTracks.Tracks) < pageSize {
			break
		}
		page++
	}

	return songs, nil
}

// GetPlaylistName returns the display name of a playlist
func (c *Client) GetPlaylistName(ctx context.Context, playlistID string) (string, error) {
	playlist, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return "", fmt.Errorf("playlist not found or not accessible: %w", err)
	}
	return playlist.Name, nil
}

// convertTrackToSong converts a Spotify track to our Song struct
func convertTrackToSong(track spotify.FullTrack) Song {
	// Radio mirrors credit the lead artist first
	artist := ""
	if len(track.Artists) > 0 {
		artist = track.Artists[0].Name
	}

	return Song{
		ID:     string(track.ID),
		Name:   track.Name,
		Artist: artist,
		Album:  track.Album.Name,
		URI:    string(track.URI),
		ISRC:   track.ExternalIDs["isrc"],
	}
}
