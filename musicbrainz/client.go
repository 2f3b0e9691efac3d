package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the MusicBrainz web service root.
	DefaultBaseURL = "https://musicbrainz.org/ws/2"

	userAgent = "radioplex/1.0 (https://github.com/grrywlsn/radioplex)"

	// minSearchScore drops weak full-text search hits.
	minSearchScore = 90
)

// ErrNotFound is returned when MusicBrainz has no recording for the lookup.
var ErrNotFound = errors.New("no matching recording")

// Client wraps the MusicBrainz API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Recording represents a MusicBrainz recording
type Recording struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Score int    `json:"score"`
}

// isrcResponse represents the response from the ISRC lookup API
type isrcResponse struct {
	Recordings []Recording `json:"recordings"`
}

// searchResponse represents the response from the recording search API
type searchResponse struct {
	Recordings []Recording `json:"recordings"`
}

// NewClient creates a new MusicBrainz client. Requests are limited to one
// per second, the rate MusicBrainz allows anonymous clients.
func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL creates a client against another MusicBrainz mirror.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		userAgent: userAgent,
	}
}

// GetMusicBrainzIDByISRC looks up a recording by ISRC and returns its MusicBrainz ID
func (c *Client) GetMusicBrainzIDByISRC(ctx context.Context, isrc string) (string, error) {
	if isrc == "" {
		return "", fmt.Errorf("ISRC cannot be empty")
	}

	var resp isrcResponse
	if err := c.get(ctx, "/isrc/"+url.PathEscape(isrc), nil, &resp); err != nil {
		return "", err
	}

	if len(resp.Recordings) == 0 {
		return "", fmt.Errorf("ISRC %s: %w", isrc, ErrNotFound)
	}
	return resp.Recordings[0].ID, nil
}

// GetMusicBrainzIDByArtistAndTitle searches for a recording by artist and title
func (c *Client) GetMusicBrainzIDByArtistAndTitle(ctx context.Context, artist, title string) (string, error) {
	if artist == "" || title == "" {
		return "", fmt.Errorf("artist and title cannot be empty")
	}

	query := fmt.Sprintf("artist:\"%s\" AND recording:\"%s\"",
		strings.ReplaceAll(artist, "\"", "\\\""),
		strings.ReplaceAll(title, "\"", "\\\""))

	params := url.Values{}
	params.Add("query", query)
	params.Add("limit", "5")

	var resp searchResponse
	if err := c.get(ctx, "/recording/", params, &resp); err != nil {
		return "", err
	}

	for _, r := range resp.Recordings {
		if r.Score >= minSearchScore {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%s - %s: %w", artist, title, ErrNotFound)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set required headers for MusicBrainz API
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("MusicBrainz API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
