// Package history stores run records and the missing-songs list in SQLite.
//
// Runs are append-only. Missing songs are keyed by their normalized
// "artist|title" key and keep the date they were first seen.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/grrywlsn/radioplex/history/migrations"
	"github.com/grrywlsn/radioplex/reconcile"
	"github.com/grrywlsn/radioplex/station"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Config drives Store construction.
type Config struct {
	Path string
}

// Store persists runs and missing songs.
type Store struct {
	db *sql.DB
}

// New opens the database and applies migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite DB: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendRun inserts a run and its added and missing songs.
func (s *Store) AppendRun(ctx context.Context, rec reconcile.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertRunSQL,
		rec.ID.String(),
		formatTime(rec.RunAt),
		joinStations(rec.Stations),
		rec.SongsScraped,
		rec.SongsMatched,
		rec.SongsAdded,
		rec.SongsMissing,
		rec.Error,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRunSongSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	songs := map[string][]reconcile.SongRef{"added": rec.Added, "missing": rec.Missing}
	for _, kind := range []string{"added", "missing"} {
		for i, ref := range songs[kind] {
			if _, err := stmt.ExecContext(ctx, rec.ID.String(), kind, i, string(ref.Station), ref.Artist, ref.Title, ref.TrackID); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert %s song: %w", kind, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Filter narrows QueryRuns. Zero fields do not filter.
type Filter struct {
	Since         time.Time
	Until         time.Time
	Station       station.ID
	ErrorsOnly    bool
	// ErrorContains keeps runs whose error text contains it, such as
	// reconcile.PlaylistUpdateFailed.
	ErrorContains string
	Limit         int
}

// QueryRuns returns matching runs, newest first, with their songs loaded.
func (s *Store) QueryRuns(ctx context.Context, f Filter) ([]reconcile.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "run_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "run_at < ?")
		args = append(args, formatTime(f.Until))
	}
	if f.Station != "" {
		where = append(where, "(',' || stations || ',') LIKE ?")
		args = append(args, "%,"+string(f.Station)+",%")
	}
	if f.ErrorsOnly {
		where = append(where, "error <> ''")
	}
	if f.ErrorContains != "" {
		where = append(where, "instr(error, ?) > 0")
		args = append(args, f.ErrorContains)
	}

	query := selectRunsSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY run_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []reconcile.RunRecord
	for rows.Next() {
		var (
			rec      reconcile.RunRecord
			id       string
			runAt    string
			stations string
		)
		if err := rows.Scan(&id, &runAt, &stations, &rec.SongsScraped, &rec.SongsMatched, &rec.SongsAdded, &rec.SongsMissing, &rec.Error); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		if rec.RunAt, err = parseTime(runAt); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Stations = splitStations(stations)
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	// The pool has one connection, so songs load after the run rows close.
	for i := range runs {
		if err := s.loadSongs(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) loadSongs(ctx context.Context, rec *reconcile.RunRecord) error {
	rows, err := s.db.QueryContext(ctx, selectRunSongsSQL, rec.ID.String())
	if err != nil {
		return fmt.Errorf("query run songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			ref  reconcile.SongRef
			stn  string
		)
		if err := rows.Scan(&kind, &stn, &ref.Artist, &ref.Title, &ref.TrackID); err != nil {
			return fmt.Errorf("scan run song: %w", err)
		}
		ref.Station = station.ID(stn)
		if kind == "added" {
			rec.Added = append(rec.Added, ref)
		} else {
			rec.Missing = append(rec.Missing, ref)
		}
	}
	return rows.Err()
}

// Stats summarizes the run history.
type Stats struct {
	TotalRuns      int
	FailedRuns     int
	TotalScraped   int
	TotalAdded     int
	TotalMissing   int
	AvgAddedPerRun float64
	FirstRun       time.Time
	LastRun        time.Time
	MissingSongs   int
}

// Stats computes totals and averages over every run.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st       Stats
		firstRun sql.NullString
		lastRun  sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, statsSQL).Scan(
		&st.TotalRuns,
		&st.FailedRuns,
		&st.TotalScraped,
		&st.TotalAdded,
		&st.TotalMissing,
		&firstRun,
		&lastRun,
	); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	if st.TotalRuns > 0 {
		st.AvgAddedPerRun = float64(st.TotalAdded) / float64(st.TotalRuns)
	}

	var err error
	if firstRun.Valid {
		if st.FirstRun, err = parseTime(firstRun.String); err != nil {
			return Stats{}, err
		}
	}
	if lastRun.Valid {
		if st.LastRun, err = parseTime(lastRun.String); err != nil {
			return Stats{}, err
		}
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM missing_songs`).Scan(&st.MissingSongs); err != nil {
		return Stats{}, fmt.Errorf("count missing songs: %w", err)
	}
	return st, nil
}

// ArtistCount is an artist and how many of their songs were added.
type ArtistCount struct {
	Artist string
	Count  int
}

// TopArtists returns the n artists with the most added songs.
func (s *Store) TopArtists(ctx context.Context, n int) ([]ArtistCount, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, topArtistsSQL, n)
	if err != nil {
		return nil, fmt.Errorf("query top artists: %w", err)
	}
	defer rows.Close()

	var out []ArtistCount
	for rows.Next() {
		var ac ArtistCount
		if err := rows.Scan(&ac.Artist, &ac.Count); err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

// AddedDates maps each added track ID to the first run that added it.
func (s *Store) AddedDates(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, addedDatesSQL)
	if err != nil {
		return nil, fmt.Errorf("query added dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]time.Time)
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan added date: %w", err)
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, err
		}
		dates[id] = t
	}
	return dates, rows.Err()
}

// RecordMissing upserts the songs. A song already on the list keeps its first
// seen date and has its sighting counted; once the record is older than
// maxAge it is replaced and reported as new. maxAge zero never expires.
func (s *Store) RecordMissing(ctx context.Context, songs []reconcile.MissingSong, now time.Time, maxAge time.Duration) ([]reconcile.MissingSong, error) {
	if len(songs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	var fresh []reconcile.MissingSong
	for _, song := range songs {
		var firstSeen string
		err := tx.QueryRowContext(ctx, `SELECT first_seen FROM missing_songs WHERE key = ?`, song.Key).Scan(&firstSeen)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			tx.Rollback()
			return nil, fmt.Errorf("lookup missing song %q: %w", song.Key, err)
		default:
			first, err := parseTime(firstSeen)
			if err != nil {
				tx.Rollback()
				return nil, err
			}
			if maxAge <= 0 || now.Sub(first) <= maxAge {
				if _, err := tx.ExecContext(ctx, touchMissingSQL, formatTime(now), song.Key); err != nil {
					tx.Rollback()
					return nil, fmt.Errorf("update missing song %q: %w", song.Key, err)
				}
				continue
			}
		}

		song.FirstSeen = now
		song.LastSeen = now
		song.TimesSeen = 1
		if _, err := tx.ExecContext(ctx, upsertMissingSQL,
			song.Key,
			song.Artist,
			song.Title,
			string(song.Station),
			song.ISRC,
			formatTime(now),
			formatTime(now),
			song.MusicBrainzID,
		); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("insert missing song %q: %w", song.Key, err)
		}
		fresh = append(fresh, song)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return fresh, nil
}

// ListMissing returns missing songs, oldest first. A non-empty search keeps
// songs whose artist or title contains it, ignoring case.
func (s *Store) ListMissing(ctx context.Context, search string) ([]reconcile.MissingSong, error) {
	query := selectMissingSQL
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		query += " WHERE lower(artist) LIKE ? OR lower(title) LIKE ?"
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY first_seen, key"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query missing songs: %w", err)
	}
	defer rows.Close()

	var out []reconcile.MissingSong
	for rows.Next() {
		var (
			song        reconcile.MissingSong
			stn         string
			first, last string
		)
		if err := rows.Scan(&song.Key, &song.Artist, &song.Title, &stn, &song.ISRC, &first, &last, &song.TimesSeen, &song.MusicBrainzID); err != nil {
			return nil, fmt.Errorf("scan missing song: %w", err)
		}
		song.Station = station.ID(stn)
		if song.FirstSeen, err = parseTime(first); err != nil {
			return nil, err
		}
		if song.LastSeen, err = parseTime(last); err != nil {
			return nil, err
		}
		out = append(out, song)
	}
	return out, rows.Err()
}

// ClearMissing removes the given keys, or every missing song when none are
// given. It returns how many were removed.
func (s *Store) ClearMissing(ctx context.Context, keys ...string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if len(keys) == 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM missing_songs`)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k
		}
		res, err = s.db.ExecContext(ctx, `DELETE FROM missing_songs WHERE key IN (`+placeholders+`)`, args...)
	}
	if err != nil {
		return 0, fmt.Errorf("clear missing songs: %w", err)
	}
	return res.RowsAffected()
}

// SetMusicBrainzID stores the recording ID found for a missing song.
func (s *Store) SetMusicBrainzID(ctx context.Context, key, mbid string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE missing_songs SET musicbrainz_id = ? WHERE key = ?`, mbid, key); err != nil {
		return fmt.Errorf("set musicbrainz id: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func joinStations(ids []station.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func splitStations(s string) []station.ID {
	if s == "" {
		return nil
	}
	var ids []station.ID
	for _, part := range strings.Split(s, ",") {
		ids = append(ids, station.ID(part))
	}
	return ids
}
