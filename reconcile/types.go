// Package reconcile runs the update pipeline: scrape every station, normalize
// and match the plays, drop what the playlist already holds, and append the
// rest in one batch.
//
// A run never adds a track ID that is already in the playlist. The playlist is
// read fresh at the start of every run, so candidates from a failed commit are
// retried by the next run instead of being lost.
package reconcile

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grrywlsn/radioplex/matcher"
	"github.com/grrywlsn/radioplex/normalize"
	"github.com/grrywlsn/radioplex/station"
)

var (
	// ErrPlaylistUpdateFailed is returned when the playlist cannot be read or
	// written. The run is aborted and nothing is marked as committed.
	ErrPlaylistUpdateFailed = errors.New("playlist update failed")
	// ErrRunInProgress is returned when another run holds the run lock.
	ErrRunInProgress = errors.New("run already in progress")
)

// PlaylistUpdateFailed is the name RunRecord.Error gives a failed playlist
// read or write, so stored runs can be filtered on it.
const PlaylistUpdateFailed = "PlaylistUpdateFailed"

// Order is the playlist ordering preference for newly added tracks.
type Order string

// Orderings.
const (
	// OrderRecentLast appends the most recent play last, so the playlist's
	// tail reflects true recency.
	OrderRecentLast Order = "recent_last"
	// OrderRecentFirst appends in scrape order, most recent play first.
	OrderRecentFirst Order = "recent_first"
)

// MatchResult is the outcome of matching one play. TrackID is empty when no
// library track cleared the threshold.
type MatchResult struct {
	TrackID    string
	Confidence float64
	Entry      station.RawEntry
	Key        normalize.Key
	Track      *matcher.Candidate
}

// Matched reports whether the play was found in the library.
func (m MatchResult) Matched() bool {
	return m.TrackID != ""
}

// MissingKey is the key an unmatched play is recorded under. A play whose
// key normalized to empty falls back to its lowercased display text.
func (m MatchResult) MissingKey() string {
	if m.Key.IsZero() {
		return strings.ToLower(normalize.Display(m.Entry))
	}
	return m.Key.String()
}

// PlaylistHandle identifies a playlist on the media server.
type PlaylistHandle struct {
	ID   string
	Name string
}

// PlaylistState is the playlist's contents at the start of a run. Handle is
// nil when the playlist does not exist yet.
type PlaylistState struct {
	Handle   *PlaylistHandle
	TrackIDs []string
}

// Contains returns a set of the track IDs in the playlist.
func (s PlaylistState) Contains() map[string]bool {
	set := make(map[string]bool, len(s.TrackIDs))
	for _, id := range s.TrackIDs {
		set[id] = true
	}
	return set
}

// SongRef is a play listed in a run record.
type SongRef struct {
	Station station.ID `json:"station"`
	Artist  string     `json:"artist"`
	Title   string     `json:"title"`
	TrackID string     `json:"track_id,omitempty"`
}

// RunRecord summarizes one pipeline run. Records are append-only.
type RunRecord struct {
	ID           uuid.UUID
	RunAt        time.Time
	Stations     []station.ID
	SongsScraped int
	SongsMatched int
	SongsAdded   int
	SongsMissing int
	Error        string
	Added        []SongRef
	Missing      []SongRef
}

// MissingSong is a play that did not match the library, deduplicated by Key.
type MissingSong struct {
	Key           string
	Artist        string
	Title         string
	Station       station.ID
	ISRC          string
	FirstSeen     time.Time
	LastSeen      time.Time
	TimesSeen     int
	MusicBrainzID string
}

// BuyURL is a digital-music store search for the song.
func (m MissingSong) BuyURL() string {
	return BuyURL(m.Artist, m.Title)
}

// BuyURL builds an Amazon digital-music search URL for artist and title.
func BuyURL(artist, title string) string {
	return "https://www.amazon.com/s?k=" + url.QueryEscape(artist+" "+title) + "&i=digital-music"
}

// Matcher finds the library track for a normalized play.
type Matcher interface {
	Match(ctx context.Context, entry station.RawEntry, key normalize.Key) (matcher.Result, error)
}

// PlaylistService is the media server's playlist capability.
type PlaylistService interface {
	FindPlaylist(ctx context.Context, name string) (*PlaylistHandle, error)
	PlaylistTrackIDs(ctx context.Context, handle PlaylistHandle) ([]string, error)
	CreatePlaylist(ctx context.Context, name string, trackIDs []string) (*PlaylistHandle, error)
	AddToPlaylist(ctx context.Context, handle PlaylistHandle, trackIDs []string) error
}

// HistoryStore persists run records.
type HistoryStore interface {
	AppendRun(ctx context.Context, rec RunRecord) error
}

// MissingStore persists songs that did not match the library.
type MissingStore interface {
	// RecordMissing upserts the songs and returns the ones recorded as new:
	// never seen, or first seen longer than maxAge ago. maxAge zero never
	// expires a record.
	RecordMissing(ctx context.Context, songs []MissingSong, now time.Time, maxAge time.Duration) ([]MissingSong, error)
	SetMusicBrainzID(ctx context.Context, key, mbid string) error
}

// Enricher looks up MusicBrainz recording IDs for missing songs.
type Enricher interface {
	GetMusicBrainzIDByISRC(ctx context.Context, isrc string) (string, error)
	GetMusicBrainzIDByArtistAndTitle(ctx context.Context, artist, title string) (string, error)
}
