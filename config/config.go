package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/grrywlsn/radioplex/station"
)

// ErrConfigInvalid is returned when required values are missing or malformed.
var ErrConfigInvalid = errors.New("invalid configuration")

// Playlist ordering preferences.
const (
	OrderRecentLast  = "recent_last"
	OrderRecentFirst = "recent_first"
)

// Update interval units.
const (
	UnitMinutes = "Minutes"
	UnitHours   = "Hours"
	UnitDays    = "Days"
)

// EnvConfigFile names the environment variable that points at a YAML config file.
const EnvConfigFile = "RADIOPLEX_CONFIG"

// Config holds all configuration values
type Config struct {
	Plex     PlexConfig
	Playlist PlaylistConfig
	Stations StationConfig
	Spotify  SpotifyConfig
	Match    MatchConfig
	Schedule ScheduleConfig
	History  HistoryConfig
	Log      LogConfig

	// problems found while parsing values, reported by Validate
	parseErrors []string
}

// PlexConfig holds Plex server configuration
type PlexConfig struct {
	URL              string
	Token            string
	LibrarySectionID int // 0 = first music section
	ServerID         string
	SkipTLSVerify    bool
}

// PlaylistConfig holds the target playlist settings
type PlaylistConfig struct {
	Name         string
	Order        string
	WriteTimeout time.Duration
}

// StationConfig holds station selection and page locations
type StationConfig struct {
	Selected          []station.ID
	JourneyFMURL      string
	SpiritFMURL       string
	SpiritFMDelimiter string
	BrowserBinary     string
	FetchTimeout      time.Duration
}

// SpotifyConfig holds credentials for the optional Spotify mirror station
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	PlaylistID   string
}

// MatchConfig holds library matching settings
type MatchConfig struct {
	ConfidenceThreshold float64
	Concurrency         int
	SearchRate          float64 // queries per second, 0 = unlimited
	SearchTimeout       time.Duration
	MusicBrainzLookup   bool
}

// ScheduleConfig holds the periodic update settings
type ScheduleConfig struct {
	AutoUpdate bool
	Interval   int
	Unit       string
}

// HistoryConfig holds the run history store settings
type HistoryConfig struct {
	DBPath        string
	MissingMaxAge time.Duration // 0 = missing songs are never re-recorded
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// LoadOptions selects the optional sources Load reads.
type LoadOptions struct {
	ConfigFile string            // YAML file; defaults to $RADIOPLEX_CONFIG
	EnvFile    string            // defaults to ".env"
	Overrides  map[string]string // CLI flag values keyed like the env vars
	// SkipValidation loads without checking required values, for commands
	// that only read local state.
	SkipValidation bool
}

// Load loads configuration following the specified order:
// 1. Built-in defaults
// 2. YAML config file (only if configured)
// 3. OS environment variables (only if they exist)
// 4. .env file (only if it exists and values exist)
// 5. CLI flag overrides (only if they exist)
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOverrides loads configuration and applies CLI flag overrides
func LoadWithOverrides(overrides map[string]string) (*Config, error) {
	return LoadWithOptions(LoadOptions{Overrides: overrides})
}

// LoadWithOptions loads configuration from every layer and validates it.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	config := &Config{}

	// Step 1: Initialize with default values
	config.initializeDefaults()

	// Step 2: Load from the YAML file
	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = os.Getenv(EnvConfigFile)
	}
	if configFile != "" {
		if err := config.loadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	// Step 3: Load from OS environment variables (only if they exist)
	config.loadFromOSEnv()

	// Step 4: Load from .env file (only if it exists and values exist)
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	config.loadFromEnvFile(envFile)

	// Step 5: Apply CLI flag overrides (only if they exist)
	config.applyOverrides(opts.Overrides)

	if opts.SkipValidation {
		return config, nil
	}

	// Validate required configuration after all sources have been loaded
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// initializeDefaults sets up the initial configuration with default values
func (c *Config) initializeDefaults() {
	c.Plex = PlexConfig{
		LibrarySectionID: 0,  // auto-discovered
		ServerID:         "", // auto-discovered
	}
	c.Playlist = PlaylistConfig{
		Name:         "Radio Recently Played",
		Order:        OrderRecentLast,
		WriteTimeout: 30 * time.Second,
	}
	c.Stations = StationConfig{
		Selected:          []station.ID{station.JourneyFM, station.SpiritFM},
		JourneyFMURL:      station.DefaultJourneyFMURL,
		SpiritFMURL:       station.DefaultSpiritFMURL,
		SpiritFMDelimiter: station.DefaultSpiritFMDelimiter,
		FetchTimeout:      30 * time.Second,
	}
	c.Match = MatchConfig{
		ConfidenceThreshold: 0.8,
		Concurrency:         4,
		SearchRate:          5,
		SearchTimeout:       15 * time.Second,
	}
	c.Schedule = ScheduleConfig{
		Interval: 15,
		Unit:     UnitMinutes,
	}
	c.History = HistoryConfig{
		DBPath:        "radioplex.db",
		MissingMaxAge: 30 * 24 * time.Hour,
	}
	c.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// keys lists every recognized variable. SERVER_IP precedes PLEX_URL so an
// explicit URL wins when both appear in the same layer.
var keys = []string{
	"SERVER_IP",
	"PLEX_URL",
	"PLEX_TOKEN",
	"PLEX_LIBRARY_SECTION_ID",
	"PLEX_SERVER_ID",
	"PLEX_SKIP_TLS_VERIFY",
	"PLAYLIST_NAME",
	"PLAYLIST_ORDER",
	"WRITE_TIMEOUT",
	"SELECTED_STATIONS",
	"JOURNEY_FM_URL",
	"SPIRIT_FM_URL",
	"SPIRIT_FM_DELIMITER",
	"BROWSER_BINARY",
	"FETCH_TIMEOUT",
	"SPOTIFY_CLIENT_ID",
	"SPOTIFY_CLIENT_SECRET",
	"SPOTIFY_PLAYLIST_ID",
	"MATCH_CONFIDENCE_THRESHOLD",
	"MATCH_CONCURRENCY",
	"SEARCH_RATE",
	"SEARCH_TIMEOUT",
	"MUSICBRAINZ_LOOKUP",
	"AUTO_UPDATE",
	"UPDATE_INTERVAL",
	"UPDATE_UNIT",
	"HISTORY_DB",
	"MISSING_MAX_AGE",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"LOG_FILE",
}

// Keys returns the recognized configuration variable names.
func Keys() []string {
	return append([]string(nil), keys...)
}

// loadFromFile reads a YAML file of KEY: value pairs using the env var names.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", ErrConfigInvalid, err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%w: failed to parse config file %s: %v", ErrConfigInvalid, path, err)
	}

	normalized := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			continue
		}
		normalized[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	c.applyLayer(normalized)
	return nil
}

// loadFromOSEnv loads configuration from OS environment variables (only if they exist)
func (c *Config) loadFromOSEnv() {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		values[key] = os.Getenv(key)
	}
	c.applyLayer(values)
}

// loadFromEnvFile loads configuration from .env file (only if it exists and values exist)
func (c *Config) loadFromEnvFile(path string) {
	values, err := godotenv.Read(path)
	if err != nil {
		// .env file doesn't exist, skip this step
		return
	}
	c.applyLayer(values)
}

// applyOverrides applies CLI flag overrides to the configuration (only if they exist)
func (c *Config) applyOverrides(overrides map[string]string) {
	c.applyLayer(overrides)
}

// applyLayer sets every recognized key with a non-empty value, in key order.
func (c *Config) applyLayer(values map[string]string) {
	for _, key := range keys {
		value := strings.TrimSpace(values[key])
		if value == "" {
			continue
		}
		if err := c.set(key, value); err != nil {
			c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s: %v", key, err))
		}
	}
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "SERVER_IP":
		c.Plex.URL = serverURL(value)
	case "PLEX_URL":
		c.Plex.URL = strings.TrimRight(value, "/")
	case "PLEX_TOKEN":
		c.Plex.Token = value
	case "PLEX_LIBRARY_SECTION_ID":
		c.Plex.LibrarySectionID, err = parseLibrarySectionID(value)
	case "PLEX_SERVER_ID":
		c.Plex.ServerID = value
	case "PLEX_SKIP_TLS_VERIFY":
		c.Plex.SkipTLSVerify, err = parseBool(value)
	case "PLAYLIST_NAME":
		c.Playlist.Name = value
	case "PLAYLIST_ORDER":
		c.Playlist.Order = strings.ToLower(value)
	case "WRITE_TIMEOUT":
		c.Playlist.WriteTimeout, err = time.ParseDuration(value)
	case "SELECTED_STATIONS":
		c.Stations.Selected, err = parseStations(value)
	case "JOURNEY_FM_URL":
		c.Stations.JourneyFMURL = value
	case "SPIRIT_FM_URL":
		c.Stations.SpiritFMURL = value
	case "SPIRIT_FM_DELIMITER":
		c.Stations.SpiritFMDelimiter = value
	case "BROWSER_BINARY":
		c.Stations.BrowserBinary = value
	case "FETCH_TIMEOUT":
		c.Stations.FetchTimeout, err = time.ParseDuration(value)
	case "SPOTIFY_CLIENT_ID":
		c.Spotify.ClientID = value
	case "SPOTIFY_CLIENT_SECRET":
		c.Spotify.ClientSecret = value
	case "SPOTIFY_PLAYLIST_ID":
		c.Spotify.PlaylistID = value
	case "MATCH_CONFIDENCE_THRESHOLD":
		c.Match.ConfidenceThreshold, err = strconv.ParseFloat(value, 64)
	case "MATCH_CONCURRENCY":
		c.Match.Concurrency, err = strconv.Atoi(value)
	case "SEARCH_RATE":
		c.Match.SearchRate, err = strconv.ParseFloat(value, 64)
	case "SEARCH_TIMEOUT":
		c.Match.SearchTimeout, err = time.ParseDuration(value)
	case "MUSICBRAINZ_LOOKUP":
		c.Match.MusicBrainzLookup, err = parseBool(value)
	case "AUTO_UPDATE":
		c.Schedule.AutoUpdate, err = parseBool(value)
	case "UPDATE_INTERVAL":
		c.Schedule.Interval, err = strconv.Atoi(value)
	case "UPDATE_UNIT":
		c.Schedule.Unit, err = parseUnit(value)
	case "HISTORY_DB":
		c.History.DBPath = value
	case "MISSING_MAX_AGE":
		c.History.MissingMaxAge, err = time.ParseDuration(value)
	case "LOG_LEVEL":
		c.Log.Level = strings.ToLower(value)
	case "LOG_FORMAT":
		c.Log.Format = strings.ToLower(value)
	case "LOG_FILE":
		c.Log.File = value
	}
	return err
}

// serverURL turns a bare server address into a Plex URL.
func serverURL(value string) string {
	if strings.Contains(value, "://") {
		return strings.TrimRight(value, "/")
	}
	if !strings.Contains(value, ":") {
		value += ":32400"
	}
	return "http://" + value
}

// parseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings
func parseCommaSeparatedList(input string) []string {
	if input == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(input, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

func parseStations(value string) ([]station.ID, error) {
	var ids []station.ID
	for _, name := range parseCommaSeparatedList(value) {
		id, err := station.ParseID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseLibrarySectionID parses the library section ID from string
func parseLibrarySectionID(value string) (int, error) {
	if value == "0" || value == "your_music_library_section_id" {
		return 0, nil
	}

	sectionID, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid section ID '%s': %w", value, err)
	}

	return sectionID, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean '%s'", value)
}

func parseUnit(value string) (string, error) {
	for _, unit := range []string{UnitMinutes, UnitHours, UnitDays} {
		if strings.EqualFold(value, unit) {
			return unit, nil
		}
	}
	return "", fmt.Errorf("invalid unit '%s', expected Minutes, Hours or Days", value)
}

// Validate checks that all required configuration values are present and
// well formed. Every problem is reported in one error wrapping ErrConfigInvalid.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.parseErrors...)

	if c.Plex.Token == "" {
		problems = append(problems, "PLEX_TOKEN is required")
	}
	if c.Plex.URL == "" {
		problems = append(problems, "PLEX_URL (or SERVER_IP) is required")
	}
	if strings.TrimSpace(c.Playlist.Name) == "" {
		problems = append(problems, "PLAYLIST_NAME is required")
	}
	if c.Playlist.Order != OrderRecentLast && c.Playlist.Order != OrderRecentFirst {
		problems = append(problems, fmt.Sprintf("PLAYLIST_ORDER must be %s or %s", OrderRecentLast, OrderRecentFirst))
	}
	if len(c.Stations.Selected) == 0 {
		problems = append(problems, "SELECTED_STATIONS must name at least one station")
	}
	for _, id := range c.Stations.Selected {
		if id == station.Spotify && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.PlaylistID == "") {
			problems = append(problems, "spotify station needs SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_PLAYLIST_ID")
		}
	}
	if c.Match.ConfidenceThreshold <= 0 || c.Match.ConfidenceThreshold > 1 {
		problems = append(problems, "MATCH_CONFIDENCE_THRESHOLD must be in (0, 1]")
	}
	if c.Match.Concurrency < 1 {
		problems = append(problems, "MATCH_CONCURRENCY must be at least 1")
	}
	if c.Match.SearchRate < 0 {
		problems = append(problems, "SEARCH_RATE must not be negative")
	}
	if c.Schedule.Interval <= 0 {
		problems = append(problems, "UPDATE_INTERVAL must be positive")
	}
	if _, err := parseUnit(c.Schedule.Unit); err != nil {
		problems = append(problems, "UPDATE_UNIT must be Minutes, Hours or Days")
	}
	if c.History.MissingMaxAge < 0 {
		problems = append(problems, "MISSING_MAX_AGE must not be negative")
	}
	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"FETCH_TIMEOUT", c.Stations.FetchTimeout},
		{"SEARCH_TIMEOUT", c.Match.SearchTimeout},
		{"WRITE_TIMEOUT", c.Playlist.WriteTimeout},
	}
	for _, timeout := range timeouts {
		if timeout.value <= 0 {
			problems = append(problems, timeout.name+" must be positive")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n%s\n\nSet these values via environment variables, .env file, config file, or CLI flags", ErrConfigInvalid, strings.Join(problems, "\n"))
	}

	return nil
}

// Interval returns the period between scheduled updates.
func (c *Config) Interval() time.Duration {
	unit := time.Minute
	switch c.Schedule.Unit {
	case UnitHours:
		unit = time.Hour
	case UnitDays:
		unit = 24 * time.Hour
	}
	return time.Duration(c.Schedule.Interval) * unit
}
