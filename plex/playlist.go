package plex

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FindPlaylist returns the audio playlist with the given title, or nil when
// the server has none. Smart playlists are never returned.
func (c *Client) FindPlaylist(ctx context.Context, title string) (*Playlist, error) {
	params := url.Values{}
	params.Add("playlistType", "audio")

	var resp mediaContainer
	if err := c.getXML(ctx, "/playlists", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, p := range resp.Playlists {
		if p.Title == title && !p.Smart {
			playlist := p
			return &playlist, nil
		}
	}
	return nil, nil
}

// PlaylistItems returns the tracks of a playlist in playlist order.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]Track, error) {
	var resp mediaContainer
	if err := c.getXML(ctx, "/playlists/"+url.PathEscape(playlistID)+"/items", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}
	return resp.Tracks, nil
}

// CreatePlaylist creates an audio playlist holding the given tracks. Plex does
// not create empty audio playlists, so at least one track is required.
func (c *Client) CreatePlaylist(ctx context.Context, title string, trackIDs []string) (*Playlist, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("cannot create playlist %q without tracks", title)
	}

	uri, err := c.metadataURI(ctx, trackIDs)
	if err != nil {
		return nil, err
	}

	// Add parameters to URL query string (matching Plex Web behavior)
	params := url.Values{}
	params.Add("type", "audio")
	params.Add("title", title)
	params.Add("smart", "0")
	params.Add("uri", uri)

	body, err := c.do(ctx, http.MethodPost, "/playlists", params, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	// Parse the JSON response to get the created playlist
	var playlistResp struct {
		MediaContainer struct {
			Metadata []struct {
				ID         string `json:"ratingKey"`
				Title      string `json:"title"`
				Summary    string `json:"summary"`
				TrackCount int    `json:"leafCount"`
			} `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	if err := json.Unmarshal(body, &playlistResp); err != nil {
		return nil, fmt.Errorf("failed to decode playlist creation response: %w", err)
	}
	if len(playlistResp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("no playlist returned from creation request")
	}

	created := playlistResp.MediaContainer.Metadata[0]
	c.logger.Info("created playlist", "title", created.Title, "id", created.ID, "tracks", len(trackIDs))

	return &Playlist{
		ID:           created.ID,
		Title:        created.Title,
		Summary:      created.Summary,
		PlaylistType: "audio",
		TrackCount:   created.TrackCount,
	}, nil
}

// AddItems appends tracks to a playlist in one request and returns how many
// the server reports as added.
func (c *Client) AddItems(ctx context.Context, playlistID string, trackIDs []string) (int, error) {
	if len(trackIDs) == 0 {
		return 0, nil
	}

	uri, err := c.metadataURI(ctx, trackIDs)
	if err != nil {
		return 0, err
	}

	params := url.Values{}
	params.Add("uri", uri)

	body, err := c.do(ctx, http.MethodPut, "/playlists/"+url.PathEscape(playlistID)+"/items", params, "application/xml")
	if err != nil {
		return 0, fmt.Errorf("failed to add tracks to playlist: %w", err)
	}

	var resp mediaContainer
	if err := xml.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode add response: %w", err)
	}

	// Older servers omit leafCountAdded; trust the 200 in that case.
	added := len(trackIDs)
	if resp.LeafCountAdded != nil {
		added = *resp.LeafCountAdded
	}
	if added == 0 {
		return 0, fmt.Errorf("server added none of %d tracks to playlist %s; check that the token has write permissions", len(trackIDs), playlistID)
	}

	c.logger.Debug("added tracks", "playlist", playlistID, "requested", len(trackIDs), "added", added)
	return added, nil
}

// metadataURI builds the server:// URI Plex expects for a batch of tracks.
func (c *Client) metadataURI(ctx context.Context, trackIDs []string) (string, error) {
	serverID, err := c.GetServerID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", serverID, strings.Join(trackIDs, ",")), nil
}
