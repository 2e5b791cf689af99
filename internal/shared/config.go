package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Every field can be overridden by the environment variables the original
// deployment used (BEATPORT_URLS, SCHEDULE_RATE_MINUTES, GENERATE_COVER_IMAGE,
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, SPOTIFY_AUTH_CODE, SPOTIFY_REDIRECT_URI).
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Beatport BeatportConfig `toml:"beatport"`
	Schedule ScheduleConfig `toml:"schedule"`
	Cover    CoverConfig    `toml:"cover"`
	Storage  StorageConfig  `toml:"storage"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	// AuthCode is the out-of-band authorization code supplied after a
	// manual authorization round trip. Never persisted.
	AuthCode string `toml:"auth_code"`
}

// BeatportConfig contains the chart sources to synchronize.
type BeatportConfig struct {
	URLs []string `toml:"urls"`
}

// ScheduleConfig contains the sync cycle cadence.
type ScheduleConfig struct {
	RateMinutes int `toml:"rate_minutes"`
}

// CoverConfig controls cover image generation.
type CoverConfig struct {
	Generate bool `toml:"generate"`
}

// StorageConfig contains persistent state locations.
type StorageConfig struct {
	// DataDir holds one file per persistent value (tokens) and the
	// line-oriented track match cache.
	DataDir string `toml:"data_dir"`
	// DatabasePath is the sqlite sync history database.
	DatabasePath string `toml:"database_path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded
// example config, with environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can drive a sync cycle.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	}
	if len(c.Beatport.URLs) == 0 {
		return fmt.Errorf("%w: at least one beatport URL is required", ErrInvalidConfig)
	}
	if c.Schedule.RateMinutes <= 0 {
		return fmt.Errorf("%w: schedule rate must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Spotify.RedirectURI = v
	}
	if v := os.Getenv("SPOTIFY_AUTH_CODE"); v != "" {
		c.Spotify.AuthCode = v
	}
	if v := os.Getenv("BEATPORT_URLS"); v != "" {
		urls := []string{}
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		c.Beatport.URLs = urls
	}
	if v := os.Getenv("SCHEDULE_RATE_MINUTES"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil {
			c.Schedule.RateMinutes = rate
		}
	}
	if v := os.Getenv("GENERATE_COVER_IMAGE"); v != "" {
		if generate, err := strconv.ParseBool(v); err == nil {
			c.Cover.Generate = generate
		}
	}
	if v := os.Getenv("BEATSYNC_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
}
