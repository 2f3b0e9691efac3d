package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grrywlsn/radioplex/history"
	"github.com/grrywlsn/radioplex/reconcile"
)

// Constants for display formatting
const (
	separatorLine   = "="
	separatorLength = 80
	timeFormat      = "2006-01-02 15:04"
)

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat(separatorLine, separatorLength))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat(separatorLine, separatorLength))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// displayRunSummary displays the outcome of one run
func displayRunSummary(w io.Writer, rec reconcile.RunRecord) {
	printHeader(w, "SUMMARY")
	fmt.Fprintf(w, "Run: %s at %s\n", rec.ID, rec.RunAt.Local().Format(timeFormat))
	fmt.Fprintf(w, "Stations: %s\n", joinIDs(rec.Stations))
	fmt.Fprintf(w, "Songs scraped: %d\n", rec.SongsScraped)
	fmt.Fprintf(w, "Matched: %d (%.1f%%)\n", rec.SongsMatched, percent(rec.SongsMatched, rec.SongsScraped))
	fmt.Fprintf(w, "Missing: %d\n", rec.SongsMissing)
	fmt.Fprintf(w, "Added to playlist: %d\n", rec.SongsAdded)

	if len(rec.Added) > 0 {
		fmt.Fprintln(w)
		for i, song := range rec.Added {
			fmt.Fprintf(w, "%3d. ✅ %s - %s (%s)\n", i+1, song.Artist, song.Title, song.Station)
		}
	} else if rec.Error == "" {
		fmt.Fprintln(w, "\n✅ Playlist already up to date")
	}

	if rec.Error != "" {
		fmt.Fprintf(w, "\n⚠️  %s\n", rec.Error)
	}
}

// displayRuns lists runs, optionally with their songs
func displayRuns(w io.Writer, runs []reconcile.RunRecord, verbose bool) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet")
		return
	}

	printHeader(w, fmt.Sprintf("RUN HISTORY (%d runs)", len(runs)))
	for _, rec := range runs {
		status := "✅"
		if rec.Error != "" {
			status = "⚠️ "
		}
		fmt.Fprintf(w, "%s %s  scraped %3d  matched %3d  added %3d  missing %3d  [%s]\n",
			status,
			rec.RunAt.Local().Format(timeFormat),
			rec.SongsScraped,
			rec.SongsMatched,
			rec.SongsAdded,
			rec.SongsMissing,
			joinIDs(rec.Stations))
		if rec.Error != "" {
			fmt.Fprintf(w, "     error: %s\n", rec.Error)
		}
		if !verbose {
			continue
		}
		for _, song := range rec.Added {
			fmt.Fprintf(w, "     + %s - %s\n", song.Artist, song.Title)
		}
		for _, song := range rec.Missing {
			fmt.Fprintf(w, "     ? %s - %s\n", song.Artist, song.Title)
		}
	}
}

// displayStats displays totals, averages and the top artists
func displayStats(w io.Writer, stats history.Stats, artists []history.ArtistCount) {
	printHeader(w, "STATISTICS")
	if stats.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs recorded yet")
		return
	}

	fmt.Fprintf(w, "Runs: %d (%d with errors)\n", stats.TotalRuns, stats.FailedRuns)
	fmt.Fprintf(w, "First run: %s\n", stats.FirstRun.Local().Format(timeFormat))
	fmt.Fprintf(w, "Last run: %s\n", stats.LastRun.Local().Format(timeFormat))
	fmt.Fprintf(w, "Songs scraped: %d\n", stats.TotalScraped)
	fmt.Fprintf(w, "Songs added: %d (%.1f per run)\n", stats.TotalAdded, stats.AvgAddedPerRun)
	fmt.Fprintf(w, "Songs missing: %d (%d on the missing list)\n", stats.TotalMissing, stats.MissingSongs)

	if len(artists) == 0 {
		return
	}
	fmt.Fprintln(w, "\nTop artists:")
	for i, a := range artists {
		fmt.Fprintf(w, "%3d. %s (%d)\n", i+1, a.Artist, a.Count)
	}
}

// displayMissingSongs displays songs that were not found in the library
func displayMissingSongs(w io.Writer, songs []reconcile.MissingSong) {
	if len(songs) == 0 {
		fmt.Fprintln(w, "🎉 No missing songs")
		return
	}

	printHeader(w, "MISSING SONGS")
	fmt.Fprintf(w, "Songs not found in Plex library (%d total):\n", len(songs))
	fmt.Fprintln(w, strings.Repeat("-", separatorLength))

	for i, song := range songs {
		fmt.Fprintf(w, "%3d. %s - %s\n", i+1, song.Artist, song.Title)
		fmt.Fprintf(w, "     Heard on %s, first %s, %d time(s)\n", song.Station, song.FirstSeen.Local().Format(time.DateOnly), song.TimesSeen)
		fmt.Fprintf(w, "     Key: %s\n", song.Key)
		if song.MusicBrainzID != "" {
			fmt.Fprintf(w, "     MusicBrainz ID: %s - https://musicbrainz.org/recording/%s\n", song.MusicBrainzID, song.MusicBrainzID)
		}
		fmt.Fprintf(w, "     Buy: %s\n", song.BuyURL())
		if i < len(songs)-1 {
			fmt.Fprintln(w)
		}
	}
}
