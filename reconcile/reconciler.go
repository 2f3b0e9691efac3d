package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/grrywlsn/radioplex/normalize"
	"github.com/grrywlsn/radioplex/station"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultFetchTimeout     = 30 * time.Second
	DefaultWriteTimeout     = 30 * time.Second
	DefaultMatchConcurrency = 4
)

// Config holds the run settings.
type Config struct {
	PlaylistName     string
	Order            Order
	FetchTimeout     time.Duration
	WriteTimeout     time.Duration
	MatchConcurrency int
	// MissingMaxAge is how long a missing song stays recorded before a new
	// sighting records it again. Zero means never.
	MissingMaxAge time.Duration
}

// Dependencies groups the collaborators a Reconciler needs. Missing and
// Enricher are optional.
type Dependencies struct {
	Sources   []station.Source
	Matcher   Matcher
	Playlists PlaylistService
	History   HistoryStore
	Missing   MissingStore
	Enricher  Enricher
	Lock      *RunLock
	Logger    *slog.Logger
}

// Reconciler grows the playlist from the stations' recently played lists.
type Reconciler struct {
	cfg     Config
	deps    Dependencies
	updater *Updater
	lock    *RunLock
	logger  *slog.Logger
	now     func() time.Time
}

// New validates the settings and builds a Reconciler.
func New(cfg Config, deps Dependencies) (*Reconciler, error) {
	if strings.TrimSpace(cfg.PlaylistName) == "" {
		return nil, errors.New("playlist name is required")
	}
	if deps.Matcher == nil {
		return nil, errors.New("matcher is required")
	}
	if deps.Playlists == nil {
		return nil, errors.New("playlist service is required")
	}
	if deps.History == nil {
		return nil, errors.New("history store is required")
	}

	switch cfg.Order {
	case "":
		cfg.Order = OrderRecentLast
	case OrderRecentLast, OrderRecentFirst:
	default:
		return nil, fmt.Errorf("unknown playlist order %q", cfg.Order)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MatchConcurrency <= 0 {
		cfg.MatchConcurrency = DefaultMatchConcurrency
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lock := deps.Lock
	if lock == nil {
		lock = &RunLock{}
	}

	return &Reconciler{
		cfg:     cfg,
		deps:    deps,
		updater: NewUpdater(deps.Playlists, logger),
		lock:    lock,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run executes one pipeline run. The returned RunRecord has been appended to
// the history store. The error is ErrRunInProgress when another run holds the
// lock, wraps ErrPlaylistUpdateFailed when the playlist could not be read or
// written, or reports a cancelled context.
func (r *Reconciler) Run(ctx context.Context) (RunRecord, error) {
	release, err := r.lock.TryAcquire()
	if err != nil {
		return RunRecord{}, err
	}
	defer release()

	rec := RunRecord{
		ID:    uuid.New(),
		RunAt: r.now().UTC(),
	}
	for _, src := range r.deps.Sources {
		rec.Stations = append(rec.Stations, src.ID())
	}
	var problems []string

	r.logger.Info("starting run", "run_id", rec.ID, "stations", len(rec.Stations), "playlist", r.cfg.PlaylistName)

	// Scraped
	entries, scrapeProblems := r.scrape(ctx)
	problems = append(problems, scrapeProblems...)
	rec.SongsScraped = len(entries)
	if err := ctx.Err(); err != nil {
		return r.finish(ctx, rec, problems, err)
	}

	// Normalized, Matched
	results, matchProblems, err := r.match(ctx, entries)
	problems = append(problems, matchProblems...)
	if err != nil {
		return r.finish(ctx, rec, problems, err)
	}

	var matched []MatchResult
	var missing []MatchResult
	for _, res := range results {
		if res.Matched() {
			matched = append(matched, res)
		} else {
			missing = append(missing, res)
		}
	}
	rec.SongsMatched = len(matched)
	rec.Missing = r.recordMissing(ctx, missing, &problems)
	rec.SongsMissing = len(rec.Missing)

	// Filtered
	state, err := r.updater.State(ctx, r.cfg.PlaylistName)
	if err != nil {
		return r.finish(ctx, rec, problems, err)
	}
	additions := Filter(state, matched)
	additions = Arrange(additions, r.cfg.Order)

	// Committed
	ids := make([]string, len(additions))
	for i, res := range additions {
		ids[i] = res.TrackID
	}
	if len(ids) > 0 {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
		err = r.updater.Commit(writeCtx, state, r.cfg.PlaylistName, ids)
		cancel()
		if err != nil {
			return r.finish(ctx, rec, problems, err)
		}
	}

	rec.SongsAdded = len(additions)
	for _, res := range additions {
		rec.Added = append(rec.Added, SongRef{
			Station: res.Entry.Station,
			Artist:  res.Entry.Artist,
			Title:   res.Entry.Title,
			TrackID: res.TrackID,
		})
	}
	return r.finish(ctx, rec, problems, nil)
}

// finish stores the record. Storage failures are logged and joined to err.
func (r *Reconciler) finish(ctx context.Context, rec RunRecord, problems []string, err error) (RunRecord, error) {
	if err != nil {
		problems = append(problems, describe(err))
	}
	rec.Error = strings.Join(problems, "; ")

	if appendErr := r.deps.History.AppendRun(context.WithoutCancel(ctx), rec); appendErr != nil {
		r.logger.Error("failed to record run", "run_id", rec.ID, "error", appendErr)
		err = errors.Join(err, fmt.Errorf("record run: %w", appendErr))
	}

	r.logger.Info("run finished",
		"run_id", rec.ID,
		"scraped", rec.SongsScraped,
		"matched", rec.SongsMatched,
		"added", rec.SongsAdded,
		"missing", rec.SongsMissing,
		"error", rec.Error)
	return rec, err
}

// describe renders err for RunRecord.Error, naming playlist failures by
// PlaylistUpdateFailed.
func describe(err error) string {
	if !errors.Is(err, ErrPlaylistUpdateFailed) {
		return err.Error()
	}
	cause := strings.TrimPrefix(err.Error(), ErrPlaylistUpdateFailed.Error())
	return PlaylistUpdateFailed + cause
}

// scrape fetches every station concurrently. A station that fails contributes
// no entries. Entries come back in station order, each station's list most
// recent first.
func (r *Reconciler) scrape(ctx context.Context) ([]station.RawEntry, []string) {
	lists := make([][]station.RawEntry, len(r.deps.Sources))
	failures := make([]error, len(r.deps.Sources))

	var g errgroup.Group
	for i, src := range r.deps.Sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
			defer cancel()

			entries, err := src.Fetch(fetchCtx)
			if err != nil {
				failures[i] = err
				r.logger.Warn("station unavailable", "station", src.ID(), "error", err)
				return nil
			}
			r.logger.Info("scraped station", "station", src.ID(), "entries", len(entries))
			lists[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	var entries []station.RawEntry
	var problems []string
	for i := range lists {
		if failures[i] != nil {
			problems = append(problems, failures[i].Error())
			continue
		}
		entries = append(entries, lists[i]...)
	}
	return entries, problems
}

// match normalizes and matches the entries in parallel. Results keep the
// entries' order. Entries with an empty key are rejected unmatched and go to
// the missing list. A library error skips that entry and is reported as a
// problem; only cancellation aborts.
func (r *Reconciler) match(ctx context.Context, entries []station.RawEntry) ([]MatchResult, []string, error) {
	results := make([]*MatchResult, len(entries))
	var (
		mu       sync.Mutex
		problems []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MatchConcurrency)
	for i, entry := range entries {
		key, err := normalize.Normalize(entry)
		if err != nil {
			r.logger.Debug("rejecting entry", "station", entry.Station, "entry", normalize.Display(entry), "error", err)
			results[i] = &MatchResult{Entry: entry, Key: key}
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.deps.Matcher.Match(gctx, entry, key)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.logger.Warn("library search failed", "entry", normalize.Display(entry), "error", err)
				mu.Lock()
				problems = append(problems, fmt.Sprintf("match %s: %v", normalize.Display(entry), err))
				mu.Unlock()
				return nil
			}

			out := &MatchResult{Entry: entry, Key: key}
			if res.Matched() {
				out.TrackID = res.Track.ID
				out.Confidence = res.Confidence
				out.Track = res.Track
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, problems, err
	}
	if err := ctx.Err(); err != nil {
		return nil, problems, err
	}

	ordered := make([]MatchResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			ordered = append(ordered, *res)
		}
	}
	return ordered, problems, nil
}

// recordMissing stores the unmatched plays and enriches the newly recorded
// ones. It returns one reference per distinct key seen this run.
func (r *Reconciler) recordMissing(ctx context.Context, missing []MatchResult, problems *[]string) []SongRef {
	var refs []SongRef
	var songs []MissingSong
	seen := make(map[string]bool)
	now := r.now().UTC()
	for _, res := range missing {
		key := res.MissingKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, SongRef{Station: res.Entry.Station, Artist: res.Entry.Artist, Title: res.Entry.Title})
		songs = append(songs, MissingSong{
			Key:       key,
			Artist:    res.Entry.Artist,
			Title:     res.Entry.Title,
			Station:   res.Entry.Station,
			ISRC:      res.Entry.ISRC,
			FirstSeen: now,
			LastSeen:  now,
			TimesSeen: 1,
		})
	}
	if len(songs) == 0 || r.deps.Missing == nil {
		return refs
	}

	fresh, err := r.deps.Missing.RecordMissing(ctx, songs, now, r.cfg.MissingMaxAge)
	if err != nil {
		r.logger.Error("failed to record missing songs", "error", err)
		*problems = append(*problems, fmt.Sprintf("record missing: %v", err))
		return refs
	}
	r.logger.Info("recorded missing songs", "seen", len(songs), "new", len(fresh))

	if r.deps.Enricher != nil {
		r.enrich(ctx, fresh)
	}
	return refs
}

// enrich looks up MusicBrainz IDs for newly missing songs. Failures are only
// logged.
func (r *Reconciler) enrich(ctx context.Context, songs []MissingSong) {
	for _, song := range songs {
		if ctx.Err() != nil {
			return
		}

		var (
			mbid string
			err  error
		)
		if song.ISRC != "" {
			mbid, err = r.deps.Enricher.GetMusicBrainzIDByISRC(ctx, song.ISRC)
		}
		if mbid == "" {
			mbid, err = r.deps.Enricher.GetMusicBrainzIDByArtistAndTitle(ctx, song.Artist, song.Title)
		}
		if err != nil || mbid == "" {
			r.logger.Debug("no musicbrainz id", "song", song.Artist+" - "+song.Title, "error", err)
			continue
		}

		if err := r.deps.Missing.SetMusicBrainzID(ctx, song.Key, mbid); err != nil {
			r.logger.Warn("failed to store musicbrainz id", "key", song.Key, "error", err)
		}
	}
}

// Filter drops matches whose track is already in the playlist or already
// taken earlier in the list. Order is preserved.
func Filter(state PlaylistState, matched []MatchResult) []MatchResult {
	taken := state.Contains()
	var out []MatchResult
	for _, res := range matched {
		if !res.Matched() || taken[res.TrackID] {
			continue
		}
		taken[res.TrackID] = true
		out = append(out, res)
	}
	return out
}

// Arrange puts the additions in playlist order. Processing order is most
// recent first; OrderRecentLast reverses it so the newest play lands at the
// end of the playlist.
func Arrange(additions []MatchResult, order Order) []MatchResult {
	out := slices.Clone(additions)
	if order == OrderRecentLast {
		slices.Reverse(out)
	}
	return out
}
