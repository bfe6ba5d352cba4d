// This file defines the configuration structure for the application.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Formats the converter knows how to produce.
var supportedFormats = map[string]bool{
	"mp3": true, "flac": true, "ogg": true, "opus": true, "m4a": true, "wav": true,
}

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Spotify    SpotifyConfig    `mapstructure:"spotify"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Sync       SyncConfig       `mapstructure:"sync"`
}

// SpotifyConfig configures the metadata client.
type SpotifyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	MaxRetries   int           `mapstructure:"max_retries"`
	NoCache      bool          `mapstructure:"no_cache"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// DownloaderConfig replaces the loosely typed settings map of the download
// pipeline. Threads bounds both URL resolution and downloads.
type DownloaderConfig struct {
	Threads                  int    `mapstructure:"threads"`
	Format                   string `mapstructure:"format"`
	Bitrate                  string `mapstructure:"bitrate"`
	Output                   string `mapstructure:"output"`
	YTMData                  bool   `mapstructure:"ytm_data"`
	PlaylistNumbering        bool   `mapstructure:"playlist_numbering"`
	AlbumType                string `mapstructure:"album_type"`
	PlaylistRetainTrackCover bool   `mapstructure:"playlist_retain_track_cover"`
	Overwrite                string `mapstructure:"overwrite"` // "skip" or "force"
	AudioProvider            string `mapstructure:"audio_provider"`
	Proxy                    string `mapstructure:"proxy"`
	YtdlpPath                string `mapstructure:"ytdlp_path"`
	FFmpegPath               string `mapstructure:"ffmpeg_path"`
	MinYtdlpVersion          string `mapstructure:"min_ytdlp_version"`
}

// SyncConfig drives the scheduled re-download of a fixed query list.
type SyncConfig struct {
	Interval int      `mapstructure:"interval"` // minutes, 0 disables
	Queries  []string `mapstructure:"queries"`
}

// DefaultDownloader returns the documented downloader defaults.
func DefaultDownloader() DownloaderConfig {
	return DownloaderConfig{
		Threads:         4,
		Format:          "mp3",
		Bitrate:         "128k",
		Output:          "./downloads",
		Overwrite:       "skip",
		AudioProvider:   "youtube",
		YtdlpPath:       "yt-dlp",
		FFmpegPath:      "ffmpeg",
		MinYtdlpVersion: "2023.1.6",
	}
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")
	v.AddConfigPath(".")

	// e.g., SPOTDL_DOWNLOADER_THREADS will override the `downloader.threads` key.
	v.SetEnvPrefix("SPOTDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultDownloader()
	v.SetDefault("port", 8080)
	v.SetDefault("database.path", "./spotdl.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.max_retries", 3)
	v.SetDefault("spotify.no_cache", false)
	v.SetDefault("spotify.cache_ttl", "24h")
	v.SetDefault("downloader.threads", d.Threads)
	v.SetDefault("downloader.format", d.Format)
	v.SetDefault("downloader.bitrate", d.Bitrate)
	v.SetDefault("downloader.output", d.Output)
	v.SetDefault("downloader.ytm_data", false)
	v.SetDefault("downloader.playlist_numbering", false)
	v.SetDefault("downloader.album_type", "")
	v.SetDefault("downloader.playlist_retain_track_cover", false)
	v.SetDefault("downloader.overwrite", d.Overwrite)
	v.SetDefault("downloader.audio_provider", d.AudioProvider)
	v.SetDefault("downloader.proxy", "")
	v.SetDefault("downloader.ytdlp_path", d.YtdlpPath)
	v.SetDefault("downloader.ffmpeg_path", d.FFmpegPath)
	v.SetDefault("downloader.min_ytdlp_version", d.MinYtdlpVersion)
	v.SetDefault("sync.interval", 0)
	v.SetDefault("sync.queries", []string{})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports configuration errors that must stop startup.
func (c *Config) Validate() error {
	return c.Downloader.Validate()
}

// Validate checks the downloader settings.
func (d DownloaderConfig) Validate() error {
	if d.Threads <= 0 {
		return fmt.Errorf("%w: downloader.threads must be at least 1, got %d", ErrInvalidConfig, d.Threads)
	}
	if !supportedFormats[d.Format] {
		return fmt.Errorf("%w: unsupported output format %q", ErrInvalidConfig, d.Format)
	}
	if d.AudioProvider == "" {
		return fmt.Errorf("%w: downloader.audio_provider must be set", ErrInvalidConfig)
	}
	switch d.Overwrite {
	case "skip", "force":
	default:
		return fmt.Errorf("%w: downloader.overwrite must be \"skip\" or \"force\", got %q", ErrInvalidConfig, d.Overwrite)
	}
	return nil
}

// ResolveOptions are the metadata resolver hints derived from the settings.
func (d DownloaderConfig) ResolveOptions() models.ResolveOptions {
	return models.ResolveOptions{
		Threads:                  d.Threads,
		UseYTMData:               d.YTMData,
		PlaylistNumbering:        d.PlaylistNumbering,
		PlaylistRetainTrackCover: d.PlaylistRetainTrackCover,
		AlbumType:                d.AlbumType,
	}
}
