// Package station fetches "recently played" song lists from radio stations.
//
// Every station is a variant of ID dispatched through the Source interface, so
// adding a station means adding an ID and a Source implementation; nothing in
// the pipeline branches on which station it is talking to.
package station

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ID identifies a configured station.
type ID string

// Known stations.
const (
	JourneyFM ID = "journey_fm"
	SpiritFM  ID = "spirit_fm"
	Spotify   ID = "spotify"
)

// Default page locations.
const (
	DefaultJourneyFMURL = "https://www.myjourneyfm.com/recently-played/"
	DefaultSpiritFMURL  = "https://www.spiritfm.com/recently-played.txt"
)

// Known returns every station ID the registry can build.
func Known() []ID {
	return []ID{JourneyFM, SpiritFM, Spotify}
}

// ParseID converts a configured station name into an ID.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Known() {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown station %q", s)
}

// ErrSourceUnavailable is returned when a station page cannot be fetched or parsed.
var ErrSourceUnavailable = errors.New("source unavailable")

// RawEntry is one scraped play before normalization.
type RawEntry struct {
	Artist   string
	Title    string
	Station  ID
	Position int    // rank in the scraped list, 0 = most recent
	PlayedAt string // as printed by the station, may be empty
	ISRC     string // only set by sources that expose it
}

// Source fetches a station's recently played list, most recent first.
type Source interface {
	ID() ID
	Fetch(ctx context.Context) ([]RawEntry, error)
}

func unavailable(id ID, err error) error {
	return fmt.Errorf("%s: %w: %v", id, ErrSourceUnavailable, err)
}

// number assigns Position and Station in list order.
func number(id ID, entries []RawEntry) []RawEntry {
	for i := range entries {
		entries[i].Station = id
		entries[i].Position = i
	}
	return entries
}
