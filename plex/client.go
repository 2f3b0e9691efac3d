package plex

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grrywlsn/radioplex/config"
)

// Constants for Plex API
const (
	// Plex API constants
	PlexMusicTrackType = "10"
	musicSectionType   = "artist"

	// HTTP timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// Search parameters
	SearchLimit = 50

	maxResponseBytes = 16 << 20
)

var (
	// ErrUnauthorized is returned when the server rejects the token.
	ErrUnauthorized = errors.New("plex rejected the token")
	// ErrNoMusicSection is returned when no music library can be found.
	ErrNoMusicSection = errors.New("no music library section found")
)

// Client wraps the Plex API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	sectionID int
	serverID  string
}

// Track represents a track from Plex
type Track struct {
	ID       string `xml:"ratingKey,attr"`
	Title    string `xml:"title,attr"`
	Artist   string `xml:"grandparentTitle,attr"`
	Album    string `xml:"parentTitle,attr"`
	Duration int    `xml:"duration,attr"`
	AddedAt  int64  `xml:"addedAt,attr"`
}

// Playlist represents a Plex playlist
type Playlist struct {
	ID           string `xml:"ratingKey,attr"`
	Title        string `xml:"title,attr"`
	Summary      string `xml:"summary,attr"`
	PlaylistType string `xml:"playlistType,attr"`
	Smart        bool   `xml:"smart,attr"`
	TrackCount   int    `xml:"leafCount,attr"`
}

// Section represents a library section
type Section struct {
	Key   string `xml:"key,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// ServerInfo represents server information from Plex API
type ServerInfo struct {
	XMLName           xml.Name `xml:"MediaContainer"`
	FriendlyName      string   `xml:"friendlyName,attr"`
	MachineIdentifier string   `xml:"machineIdentifier,attr"`
	Version           string   `xml:"version,attr"`
	Platform          string   `xml:"platform,attr"`
}

// mediaContainer is the XML envelope of most Plex responses
type mediaContainer struct {
	XMLName        xml.Name   `xml:"MediaContainer"`
	Size           int        `xml:"size,attr"`
	LeafCountAdded *int       `xml:"leafCountAdded,attr"`
	Tracks         []Track    `xml:"Track"`
	Playlists      []Playlist `xml:"Playlist"`
	Sections       []Section  `xml:"Directory"`
}

// NewClient creates a new Plex client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	// Per-call contexts carry the search and write timeouts; the client
	// timeout only backstops calls without one and must not undercut them.
	httpClient := &http.Client{
		Timeout: max(DefaultHTTPTimeout, cfg.Match.SearchTimeout, cfg.Playlist.WriteTimeout),
	}

	if cfg.Plex.SkipTLSVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.Plex.URL, "/"),
		token:      cfg.Plex.Token,
		sectionID:  cfg.Plex.LibrarySectionID,
		serverID:   cfg.Plex.ServerID,
		httpClient: httpClient,
		logger:     logger.With("component", "plex"),
	}
}

// SetServerID updates the server ID in the client
func (c *Client) SetServerID(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverID = serverID
}

// GetServerInfo retrieves server information from the Plex API
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var serverInfo ServerInfo
	if err := c.getXML(ctx, "/", nil, &serverInfo); err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}
	return &serverInfo, nil
}

// GetServerID returns the server's machine identifier, discovering it on first use.
func (c *Client) GetServerID(ctx context.Context) (string, error) {
	c.mu.Lock()
	serverID := c.serverID
	c.mu.Unlock()
	if serverID != "" {
		return serverID, nil
	}

	serverInfo, err := c.GetServerInfo(ctx)
	if err != nil {
		return "", err
	}
	if serverInfo.MachineIdentifier == "" {
		return "", fmt.Errorf("server info response does not contain machine identifier")
	}

	c.logger.Debug("discovered server", "name", serverInfo.FriendlyName, "machine_id", serverInfo.MachineIdentifier)
	c.SetServerID(serverInfo.MachineIdentifier)
	return serverInfo.MachineIdentifier, nil
}

// Sections lists the library sections on the server.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var resp mediaContainer
	if err := c.getXML(ctx, "/library/sections", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list library sections: %w", err)
	}
	return resp.Sections, nil
}

// MusicSectionID returns the configured music section, or the first music
// section on the server when none was configured.
func (c *Client) MusicSectionID(ctx context.Context) (int, error) {
	c.mu.Lock()
	sectionID := c.sectionID
	c.mu.Unlock()
	if sectionID != 0 {
		return sectionID, nil
	}

	sections, err := c.Sections(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range sections {
		if s.Type != musicSectionType {
			continue
		}
		id, err := strconv.Atoi(s.Key)
		if err != nil {
			continue
		}
		c.logger.Debug("discovered music section", "id", id, "title", s.Title)
		c.mu.Lock()
		c.sectionID = id
		c.mu.Unlock()
		return id, nil
	}
	return 0, ErrNoMusicSection
}

// SearchTracks searches the music library for tracks matching the query.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]Track, error) {
	sectionID, err := c.MusicSectionID(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("type", PlexMusicTrackType) // Type 10 = music tracks
	params.Add("X-Plex-Container-Start", "0")
	params.Add("X-Plex-Container-Size", strconv.Itoa(SearchLimit))

	var resp mediaContainer
	if err := c.getXML(ctx, fmt.Sprintf("/library/sections/%d/search", sectionID), params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search library: %w", err)
	}

	c.logger.Debug("search", "query", query, "results", len(resp.Tracks))
	return resp.Tracks, nil
}

// getXML issues a GET and decodes the XML response into v.
func (c *Client) getXML(ctx context.Context, path string, params url.Values, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, params, "application/xml")
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends an authenticated request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, accept string) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("X-Plex-Token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w (status %d)", method, path, ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
