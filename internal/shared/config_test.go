package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REDIRECT_URI",
		"SPOTIFY_AUTH_CODE", "BEATPORT_URLS", "SCHEDULE_RATE_MINUTES",
		"GENERATE_COVER_IMAGE", "BEATSYNC_DATA_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaultConfig(t *testing.T) {
	clearConfigEnv(t)

	config := DefaultConfig()

	if config.Schedule.RateMinutes != 1440 {
		t.Errorf("rate_minutes = %d, want 1440", config.Schedule.RateMinutes)
	}
	if !config.Cover.Generate {
		t.Error("cover generation should default on")
	}
	if config.Storage.DataDir != "./data" {
		t.Errorf("data_dir = %q", config.Storage.DataDir)
	}
	if config.Storage.DatabasePath != "./data/beatsync.db" {
		t.Errorf("database_path = %q", config.Storage.DatabasePath)
	}
	if len(config.Beatport.URLs) != 0 {
		t.Errorf("urls = %v, want empty", config.Beatport.URLs)
	}
}

func TestLoadConfig(t *testing.T) {
	clearConfigEnv(t)

	t.Run("Parses A TOML File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[spotify]
client_id = "id-123"
client_secret = "secret-456"

[beatport]
urls = ["https://www.beatport.com/genre/techno/6/top-100"]

[schedule]
rate_minutes = 60
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if config.Spotify.ClientID != "id-123" || config.Spotify.ClientSecret != "secret-456" {
			t.Errorf("spotify = %+v", config.Spotify)
		}
		if len(config.Beatport.URLs) != 1 || config.Schedule.RateMinutes != 60 {
			t.Errorf("config = %+v", config)
		}
	})

	t.Run("Missing File Fails", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Malformed File Fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[spotify\nbroken"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)

	t.Run("Credentials And Schedule", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
		t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
		t.Setenv("SCHEDULE_RATE_MINUTES", "15")
		t.Setenv("GENERATE_COVER_IMAGE", "false")
		t.Setenv("BEATSYNC_DATA_DIR", "/var/lib/beatsync")

		config := DefaultConfig()
		if config.Spotify.ClientID != "env-id" || config.Spotify.ClientSecret != "env-secret" {
			t.Errorf("spotify = %+v", config.Spotify)
		}
		if config.Schedule.RateMinutes != 15 {
			t.Errorf("rate_minutes = %d", config.Schedule.RateMinutes)
		}
		if config.Cover.Generate {
			t.Error("cover generation should be off")
		}
		if config.Storage.DataDir != "/var/lib/beatsync" {
			t.Errorf("data_dir = %q", config.Storage.DataDir)
		}
	})

	t.Run("URL List Is Split And Trimmed", func(t *testing.T) {
		t.Setenv("BEATPORT_URLS", " https://a.example/top-100 , https://b.example/top-100 ,")

		config := DefaultConfig()
		want := []string{"https://a.example/top-100", "https://b.example/top-100"}
		if len(config.Beatport.URLs) != len(want) {
			t.Fatalf("urls = %v", config.Beatport.URLs)
		}
		for i := range want {
			if config.Beatport.URLs[i] != want[i] {
				t.Errorf("urls[%d] = %q, want %q", i, config.Beatport.URLs[i], want[i])
			}
		}
	})

	t.Run("Invalid Numeric Override Is Ignored", func(t *testing.T) {
		t.Setenv("SCHEDULE_RATE_MINUTES", "soon")

		config := DefaultConfig()
		if config.Schedule.RateMinutes != 1440 {
			t.Errorf("rate_minutes = %d, want default 1440", config.Schedule.RateMinutes)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Spotify:  SpotifyConfig{ClientID: "id", ClientSecret: "secret"},
			Beatport: BeatportConfig{URLs: []string{"https://example.com/top-100"}},
			Schedule: ScheduleConfig{RateMinutes: 60},
		}
	}

	t.Run("Valid Config Passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("Missing Credentials Fail", func(t *testing.T) {
		config := valid()
		config.Spotify.ClientSecret = ""
		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("No Sources Fail", func(t *testing.T) {
		config := valid()
		config.Beatport.URLs = nil
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Nonpositive Rate Fails", func(t *testing.T) {
		config := valid()
		config.Schedule.RateMinutes = 0
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestCreateConfigFile(t *testing.T) {
	t.Run("Writes The Example Config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("CreateConfigFile failed: %v", err)
		}

		clearConfigEnv(t)
		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if config.Schedule.RateMinutes != 1440 {
			t.Errorf("rate_minutes = %d", config.Schedule.RateMinutes)
		}
	})

	t.Run("Refuses To Overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("CreateConfigFile failed: %v", err)
		}
		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error for existing file")
		}
	})
}
