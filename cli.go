package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grrywlsn/radioplex/config"
	"github.com/grrywlsn/radioplex/history"
	"github.com/grrywlsn/radioplex/logging"
	"github.com/grrywlsn/radioplex/reconcile"
	"github.com/grrywlsn/radioplex/spotify"
	"github.com/grrywlsn/radioplex/station"
)

// overrideFlags map CLI flags onto configuration keys.
var overrideFlags = []struct {
	name  string
	key   string
	usage string
}{
	{"plex-url", "PLEX_URL", "Plex server URL"},
	{"plex-token", "PLEX_TOKEN", "Plex authentication token"},
	{"playlist", "PLAYLIST_NAME", "Target Plex playlist name"},
	{"order", "PLAYLIST_ORDER", "Order of new tracks: recent_last or recent_first"},
	{"stations", "SELECTED_STATIONS", "Comma-separated stations to scrape in order (journey_fm, spirit_fm, spotify)"},
	{"threshold", "MATCH_CONFIDENCE_THRESHOLD", "Minimum similarity for a library match (0-1]"},
	{"browser", "BROWSER_BINARY", "Headless browser used to render station pages"},
	{"history-db", "HISTORY_DB", "Path of the run history database"},
	{"log-level", "LOG_LEVEL", "Log level: debug, info, warn, error"},
	{"log-format", "LOG_FORMAT", "Log format: text or json"},
	{"log-file", "LOG_FILE", "Also append logs to this file"},
}

type options struct {
	configFile string
	envFile    string
	debug      bool
	overrides  map[string]*string

	stderr io.Writer
}

func newOptions() *options {
	return &options{
		overrides: make(map[string]*string, len(overrideFlags)),
		stderr:    os.Stderr,
	}
}

// overrideValues returns the flags that were set, keyed like the env vars.
func (o *options) overrideValues() map[string]string {
	values := make(map[string]string)
	for key, value := range o.overrides {
		if value != nil && *value != "" {
			values[key] = *value
		}
	}
	if o.debug {
		values["LOG_LEVEL"] = "debug"
	}
	return values
}

// load reads the configuration and builds the logger. strict validates that
// everything needed to talk to Plex is present.
func (o *options) load(strict bool) (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigFile:     o.configFile,
		EnvFile:        o.envFile,
		Overrides:      o.overrideValues(),
		SkipValidation: !strict,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File, o.stderr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

// Execute runs the root CLI command.
func Execute() error {
	rootCmd := newRootCmd(newOptions())
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	return rootCmd.Execute()
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "radioplex",
		Short:         "Grow a Plex playlist from radio stations' recently played songs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file (or "+config.EnvConfigFile+")")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file to load")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug output (detailed matching and similarity information)")
	for _, f := range overrideFlags {
		value := new(string)
		opts.overrides[f.key] = value
		flags.StringVar(value, f.name, "", f.usage+" (or "+f.key+")")
	}

	cmd.AddCommand(
		newUpdateCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newMissingCmd(opts),
		newExportCmd(opts),
		newCheckCmd(opts),
		newStationsCmd(opts),
		newLogsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// withApplication loads a strict configuration and builds the application.
func withApplication(ctx context.Context, opts *options, fn func(*Application) error) error {
	cfg, logger, closeLog, err := opts.load(true)
	if err != nil {
		return err
	}
	defer closeLog()

	app, err := NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// withStore loads the configuration without validation and opens the history
// store, for commands that only read local state.
func withStore(opts *options, fn func(*history.Store) error) error {
	cfg, _, closeLog, err := opts.load(false)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Scrape the stations once and add new matches to the playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApplication(ctx, opts, func(app *Application) error {
				rec, err := app.RunUpdate(ctx)
				if rec.ID != uuid.Nil {
					displayRunSummary(cmd.OutOrStdout(), rec)
				}
				return err
			})
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Update now and then every UPDATE_INTERVAL UPDATE_UNIT until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApplication(ctx, opts, func(app *Application) error {
				if !app.config.Schedule.AutoUpdate && !force {
					return errors.New("automatic updates are disabled; set AUTO_UPDATE=true or pass --force")
				}
				interval := app.config.Interval()
				app.logger.Info("watching stations", "interval", interval.String(), "playlist", app.config.Playlist.Name)
				return runWatch(ctx, interval, app.RunUpdate, app.logger, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Run even when AUTO_UPDATE is false")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		since      time.Duration
		stationArg string
		errorsOnly bool
		errorText  string
		limit      int
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{ErrorsOnly: errorsOnly, ErrorContains: errorText, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			if stationArg != "" {
				id, err := station.ParseID(stationArg)
				if err != nil {
					return err
				}
				filter.Station = id
			}

			return withStore(opts, func(store *history.Store) error {
				runs, err := store.QueryRuns(cmd.Context(), filter)
				if err != nil {
					return err
				}
				displayRuns(cmd.OutOrStdout(), runs, verbose)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only runs within this long ago (e.g. 24h)")
	cmd.Flags().StringVar(&stationArg, "station", "", "Only runs that scraped this station")
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "Only runs that recorded an error")
	cmd.Flags().StringVar(&errorText, "error", "", "Only runs whose error contains this text (e.g. "+reconcile.PlaylistUpdateFailed+")")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show (0 = all)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List the songs added and missed by each run")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals, averages and the most added artists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(store *history.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				artists, err := store.TopArtists(cmd.Context(), top)
				if err != nil {
					return err
				}
				displayStats(cmd.OutOrStdout(), stats, artists)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "Number of top artists to show")
	return cmd
}

func newMissingCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missing",
		Short: "Songs heard on the radio that are not in the library",
	}

	var search string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List missing songs with a link to buy each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(store *history.Store) error {
				songs, err := store.ListMissing(cmd.Context(), search)
				if err != nil {
					return err
				}
				displayMissingSongs(cmd.OutOrStdout(), songs)
				return nil
			})
		},
	}
	listCmd.Flags().StringVarP(&search, "search", "s", "", "Only songs whose artist or title contains this text")

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear [key...]",
		Short: "Remove songs from the missing list so they are recorded again when next heard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("name the keys to clear or pass --all")
			}
			if len(args) > 0 && all {
				return errors.New("--all does not take keys")
			}
			return withStore(opts, func(store *history.Store) error {
				n, err := store.ClearMissing(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d missing song(s)\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "Clear every missing song")

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the playlist to CSV (artist, title, album, added_date)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(app *Application) error {
				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					w = f
				}

				n, err := app.ExportPlaylist(cmd.Context(), w)
				if err != nil {
					return err
				}
				app.logger.Info("exported playlist", "playlist", app.config.Playlist.Name, "tracks", n, "output", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the Plex connection, music library and target playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(app *Application) error {
				return app.Check(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}

func newStationsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "List the configured stations in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := opts.load(false)
			if err != nil {
				return err
			}
			defer closeLog()

			out := cmd.OutOrStdout()
			for i, id := range cfg.Stations.Selected {
				fmt.Fprintf(out, "%d. %s  %s\n", i+1, id, stationSource(cmd.Context(), cfg, id, logger))
			}
			if !slices.Contains(cfg.Stations.Selected, station.Spotify) {
				fmt.Fprintf(out, "\nAvailable: %s\n", joinIDs(station.Known()))
			}
			return nil
		},
	}
}

// stationSource describes where a station's plays come from.
func stationSource(ctx context.Context, cfg *config.Config, id station.ID, logger *slog.Logger) string {
	switch id {
	case station.JourneyFM:
		return cfg.Stations.JourneyFMURL
	case station.SpiritFM:
		return cfg.Stations.SpiritFMURL
	case station.Spotify:
		desc := "spotify:playlist:" + cfg.Spotify.PlaylistID
		client, err := spotify.NewClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
		if err != nil {
			logger.Debug("spotify unavailable", "error", err)
			return desc
		}
		name, err := client.GetPlaylistName(ctx, cfg.Spotify.PlaylistID)
		if err != nil {
			logger.Debug("failed to read playlist name", "error", err)
			return desc
		}
		return fmt.Sprintf("%s (%s)", desc, name)
	}
	return ""
}

func joinIDs(ids []station.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func newLogsCmd(opts *options) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the end of LOG_FILE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(config.LoadOptions{
				ConfigFile:     opts.configFile,
				EnvFile:        opts.envFile,
				Overrides:      opts.overrideValues(),
				SkipValidation: true,
			})
			if err != nil {
				return err
			}
			if cfg.Log.File == "" {
				return errors.New("no log file configured; set LOG_FILE or --log-file")
			}

			tail, err := logging.Tail(cfg.Log.File, lines)
			if err != nil {
				return fmt.Errorf("read log file: %w", err)
			}
			for _, line := range tail {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "radioplex version %s\n", version)
		},
	}
}
