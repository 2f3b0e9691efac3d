package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/grrywlsn/radioplex/plex"
)

var exportHeader = []string{"artist", "title", "album", "added_date"}

// ExportPlaylist writes the target playlist to w as CSV and returns the number
// of tracks written. added_date is when a run first added the track; it is
// empty for tracks added outside radioplex.
func (app *Application) ExportPlaylist(ctx context.Context, w io.Writer) (int, error) {
	playlist, err := app.plexClient.FindPlaylist(ctx, app.config.Playlist.Name)
	if err != nil {
		return 0, err
	}
	if playlist == nil {
		return 0, fmt.Errorf("playlist %q not found", app.config.Playlist.Name)
	}

	tracks, err := app.plexClient.PlaylistItems(ctx, playlist.ID)
	if err != nil {
		return 0, err
	}
	added, err := app.store.AddedDates(ctx)
	if err != nil {
		return 0, err
	}

	if err := writePlaylistCSV(w, tracks, added); err != nil {
		return 0, err
	}
	return len(tracks), nil
}

func writePlaylistCSV(w io.Writer, tracks []plex.Track, added map[string]time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tracks {
		date := ""
		if at, ok := added[t.ID]; ok {
			date = at.Local().Format(time.DateOnly)
		}
		if err := cw.Write([]string{t.Artist, t.Title, t.Album, date}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Check reports the Plex server, its music library and the target playlist.
func (app *Application) Check(ctx context.Context, w io.Writer) error {
	info, err := app.plexClient.GetServerInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ Connected to %s (Plex %s on %s)\n", info.FriendlyName, info.Version, info.Platform)
	fmt.Fprintf(w, "   Server ID: %s\n", info.MachineIdentifier)

	sectionID, err := app.plexClient.MusicSectionID(ctx)
	if err != nil {
		return err
	}
	sections, err := app.plexClient.Sections(ctx)
	if err != nil {
		return err
	}
	for _, s := range sections {
		if s.Key == fmt.Sprint(sectionID) {
			fmt.Fprintf(w, "✅ Music library: %s (section %d)\n", s.Title, sectionID)
		}
	}

	playlist, err := app.plexClient.FindPlaylist(ctx, app.config.Playlist.Name)
	if err != nil {
		return err
	}
	if playlist == nil {
		fmt.Fprintf(w, "ℹ️  Playlist %q does not exist yet; the first update creates it\n", app.config.Playlist.Name)
		return nil
	}
	fmt.Fprintf(w, "✅ Playlist %q has %d track(s)\n", playlist.Title, playlist.TrackCount)
	return nil
}
