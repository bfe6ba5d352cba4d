package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/config"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/core"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/db"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers/youtube"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/logger"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/orchestrator"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "spotdl",
	Short:         "Download Spotify songs, albums and playlists",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	registerFlags(rootCmd)
	rootCmd.AddCommand(downloadCmd, searchCmd, urlsCmd)
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.String("client-id", "", "spotify client id")
	flags.String("client-secret", "", "spotify client secret")
	flags.Bool("no-cache", false, "do not cache spotify responses")
	flags.IntP("threads", "t", 0, "number of songs processed at once")
	flags.StringP("format", "f", "", "output format (mp3, flac, ogg, opus, m4a, wav)")
	flags.String("bitrate", "", "output bitrate (e.g. 128k)")
	flags.StringP("output", "o", "", "output directory")
	flags.String("overwrite", "", "what to do with existing files (skip|force)")
	flags.String("audio-provider", "", "audio provider id")
	flags.String("proxy", "", "proxy URL (http, https, socks5)")
	flags.Bool("ytm-data", false, "use YouTube Music metadata")
	flags.Bool("playlist-numbering", false, "number songs by playlist position")
	flags.Bool("playlist-retain-track-cover", false, "keep each track's own album cover when numbering playlists")
	flags.String("album-type", "", "only keep songs from albums of this type")
	flags.String("db-path", "", "database path used for the metadata cache and history")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
}

// loadConfig reads config.yml and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	str("client-id", &cfg.Spotify.ClientID)
	str("client-secret", &cfg.Spotify.ClientSecret)
	boolean("no-cache", &cfg.Spotify.NoCache)
	if flags.Changed("threads") {
		cfg.Downloader.Threads, _ = flags.GetInt("threads")
	}
	str("format", &cfg.Downloader.Format)
	str("bitrate", &cfg.Downloader.Bitrate)
	str("output", &cfg.Downloader.Output)
	str("overwrite", &cfg.Downloader.Overwrite)
	str("audio-provider", &cfg.Downloader.AudioProvider)
	str("proxy", &cfg.Downloader.Proxy)
	boolean("ytm-data", &cfg.Downloader.YTMData)
	boolean("playlist-numbering", &cfg.Downloader.PlaylistNumbering)
	boolean("playlist-retain-track-cover", &cfg.Downloader.PlaylistRetainTrackCover)
	str("album-type", &cfg.Downloader.AlbumType)
	str("db-path", &cfg.Database.Path)
	str("log-level", &cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is everything a command needs; close releases it.
type session struct {
	cfg    *config.Config
	spotdl *orchestrator.Spotdl
	logger *log.Logger
	close  func()
}

func newSession(cmd *cobra.Command, observer progress.Observer) (context.Context, *session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	l := logger.New(os.Stderr, cfg.Log.Level)
	log.SetDefault(l)
	ctx := log.WithContext(cmd.Context(), l)

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	if err := core.CheckYtdlp(ctx, cfg.Downloader, l); err != nil {
		database.Close()
		return nil, nil, err
	}
	providers.Register(youtube.New(cfg.Downloader.YtdlpPath, cfg.Downloader.Proxy))

	sp, err := orchestrator.New(orchestrator.Options{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Spotify:      cfg.Spotify,
		Downloader:   cfg.Downloader,
		Observer:     observer,
		Store:        store.New(database),
		Logger:       l,
	})
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	return ctx, &session{
		cfg:    cfg,
		spotdl: sp,
		logger: l,
		close: func() {
			if err := sp.Close(); err != nil {
				l.Warn("error while closing", "err", err)
			}
			database.Close()
		},
	}, nil
}
