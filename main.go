package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/grrywlsn/radioplex/config"
	"github.com/grrywlsn/radioplex/history"
	"github.com/grrywlsn/radioplex/matcher"
	"github.com/grrywlsn/radioplex/musicbrainz"
	"github.com/grrywlsn/radioplex/plex"
	"github.com/grrywlsn/radioplex/reconcile"
	"github.com/grrywlsn/radioplex/spotify"
	"github.com/grrywlsn/radioplex/station"
)

// Version information - set during build
var version = "dev"

// Exit codes
const (
	exitCodeSuccess      = 0
	exitCodeFailure      = 1
	exitCodeConfigError  = 2
	exitCodeUpdateFailed = 3
)

// Application wires the pipeline to Plex, the stations and the history store
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	plexClient *plex.Client
	store      *history.Store
	reconciler *reconcile.Reconciler
}

// NewApplication creates a new application instance
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	plexClient := plex.NewClient(cfg, logger)

	opts := station.Options{
		Selected:          cfg.Stations.Selected,
		JourneyFMURL:      cfg.Stations.JourneyFMURL,
		SpiritFMURL:       cfg.Stations.SpiritFMURL,
		SpiritFMDelimiter: cfg.Stations.SpiritFMDelimiter,
		SpotifyPlaylistID: cfg.Spotify.PlaylistID,
		Fetcher:           station.NewFetcher(cfg.Stations.BrowserBinary, cfg.Stations.FetchTimeout),
	}
	if slices.Contains(cfg.Stations.Selected, station.Spotify) {
		spotifyClient, err := spotify.NewClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create Spotify client: %w", err)
		}
		opts.Spotify = spotifyClient
	}

	sources, err := station.New(opts)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build stations: %w", err)
	}

	trackMatcher := matcher.New(plexLibrary{client: plexClient},
		matcher.WithThreshold(cfg.Match.ConfidenceThreshold),
		matcher.WithSearchTimeout(cfg.Match.SearchTimeout),
		matcher.WithRateLimit(cfg.Match.SearchRate),
		matcher.WithLogger(logger),
	)

	deps := reconcile.Dependencies{
		Sources:   sources,
		Matcher:   trackMatcher,
		Playlists: plexPlaylists{client: plexClient},
		History:   store,
		Missing:   store,
		Logger:    logger,
	}
	if cfg.Match.MusicBrainzLookup {
		deps.Enricher = musicbrainz.NewClient()
	}

	reconciler, err := reconcile.New(reconcile.Config{
		PlaylistName:     cfg.Playlist.Name,
		Order:            reconcile.Order(cfg.Playlist.Order),
		FetchTimeout:     cfg.Stations.FetchTimeout,
		WriteTimeout:     cfg.Playlist.WriteTimeout,
		MatchConcurrency: cfg.Match.Concurrency,
		MissingMaxAge:    cfg.History.MissingMaxAge,
	}, deps)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		plexClient: plexClient,
		store:      store,
		reconciler: reconciler,
	}, nil
}

// RunUpdate executes one pipeline run. It is the single entry point used by
// both the one-shot and the scheduled commands.
func (app *Application) RunUpdate(ctx context.Context) (reconcile.RunRecord, error) {
	if err := app.discoverServerID(ctx); err != nil {
		app.logger.Warn("failed to auto-discover server ID, set PLEX_SERVER_ID if playlist writes fail", "error", err)
	}
	return app.reconciler.Run(ctx)
}

// Close releases the history store
func (app *Application) Close() error {
	return app.store.Close()
}

// discoverServerID attempts to auto-discover the Plex server ID. The client
// caches it, so only the first run asks the server.
func (app *Application) discoverServerID(ctx context.Context) error {
	if app.config.Plex.ServerID != "" {
		return nil // Already set
	}

	serverID, err := app.plexClient.GetServerID(ctx)
	if err != nil {
		return err
	}
	app.logger.Debug("using discovered server ID", "server_id", serverID)
	return nil
}

// openStore opens the history database, creating its directory if needed
func openStore(cfg *config.Config) (*history.Store, error) {
	path, err := filepath.Abs(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	store, err := history.New(history.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	return nil
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitCodeSuccess
	case errors.Is(err, config.ErrConfigInvalid):
		return exitCodeConfigError
	case errors.Is(err, reconcile.ErrPlaylistUpdateFailed):
		return exitCodeUpdateFailed
	default:
		return exitCodeFailure
	}
}

func main() {
	if err := Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(exitCode(err))
	}
}
