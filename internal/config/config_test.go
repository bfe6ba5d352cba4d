// Verifies the configuration loading logic using Viper.

package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults when no config file", func(t *testing.T) {
		// Ensure no config file exists for this test
		os.Remove("config.yml")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}

		if cfg.Port != 8080 {
			t.Errorf("Expected default port 8080, got %d", cfg.Port)
		}
		if cfg.Database.Path != "./spotdl.db" {
			t.Errorf("Expected default db path './spotdl.db', got '%s'", cfg.Database.Path)
		}
		if cfg.Downloader.Threads != 4 {
			t.Errorf("Expected default threads 4, got %d", cfg.Downloader.Threads)
		}
		if cfg.Downloader.Format != "mp3" {
			t.Errorf("Expected default format 'mp3', got '%s'", cfg.Downloader.Format)
		}
		if cfg.Spotify.MaxRetries != 3 {
			t.Errorf("Expected default max retries 3, got %d", cfg.Spotify.MaxRetries)
		}
		if cfg.Spotify.CacheTTL != 24*time.Hour {
			t.Errorf("Expected default cache ttl 24h, got %s", cfg.Spotify.CacheTTL)
		}
	})

	t.Run("Loads from config file", func(t *testing.T) {
		configContent := `
port: 9999
database:
  path: "/tmp/test.db"
downloader:
  threads: 8
  format: "flac"
  output: "/tmp/music"
sync:
  interval: 30
  queries:
    - "https://open.spotify.com/playlist/abc"
unknown_setting: "should be ignored"
`
		// Viper looks in the CWD, so t.TempDir() is not used here.
		configPath := "config.yml"
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write test config file: %v", err)
		}
		defer os.Remove(configPath)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}

		if cfg.Port != 9999 {
			t.Errorf("Expected port 9999, got %d", cfg.Port)
		}
		if cfg.Downloader.Threads != 8 {
			t.Errorf("Expected threads 8, got %d", cfg.Downloader.Threads)
		}
		if cfg.Downloader.Format != "flac" {
			t.Errorf("Expected format 'flac', got '%s'", cfg.Downloader.Format)
		}
		if cfg.Downloader.Bitrate != "128k" {
			t.Errorf("Expected default bitrate '128k', got '%s'", cfg.Downloader.Bitrate)
		}
		if cfg.Sync.Interval != 30 || len(cfg.Sync.Queries) != 1 {
			t.Errorf("Unexpected sync config: %+v", cfg.Sync)
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		os.Remove("config.yml")
		t.Setenv("SPOTDL_DOWNLOADER_THREADS", "2")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}
		if cfg.Downloader.Threads != 2 {
			t.Errorf("Expected threads 2 from env, got %d", cfg.Downloader.Threads)
		}
	})

	t.Run("Rejects zero threads", func(t *testing.T) {
		os.Remove("config.yml")
		t.Setenv("SPOTDL_DOWNLOADER_THREADS", "0")

		_, err := Load()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestDownloaderConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *DownloaderConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(d *DownloaderConfig) {}},
		{name: "negative threads", mutate: func(d *DownloaderConfig) { d.Threads = -1 }, wantErr: true},
		{name: "unknown format", mutate: func(d *DownloaderConfig) { d.Format = "xyz" }, wantErr: true},
		{name: "unknown overwrite", mutate: func(d *DownloaderConfig) { d.Overwrite = "metadata" }, wantErr: true},
		{name: "no audio provider", mutate: func(d *DownloaderConfig) { d.AudioProvider = "" }, wantErr: true},
		{name: "force overwrite", mutate: func(d *DownloaderConfig) { d.Overwrite = "force" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DefaultDownloader()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
