// Package orchestrator is the entry point for embedding applications: it
// wires metadata resolution, the download pipeline and progress reporting
// together behind one type.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/config"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/ffmpeg"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/spotify"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
)

// ErrMissingCredentials is returned by New when neither an authenticated
// client nor a client id and secret pair was supplied.
var ErrMissingCredentials = spotify.ErrMissingCredentials

// Options configures a Spotdl. Exactly one way of reaching Spotify is
// needed: Resolver, SpotifyClient, or ClientID with ClientSecret.
type Options struct {
	ClientID      string
	ClientSecret  string
	SpotifyClient *http.Client
	Resolver      models.MetadataResolver

	Spotify    config.SpotifyConfig
	Downloader config.DownloaderConfig

	// Fetcher defaults to the registered provider named by
	// Downloader.AudioProvider, Converter to ffmpeg.
	Fetcher   models.Fetcher
	Converter models.Converter

	Observer progress.Observer
	Store    *store.Store
	Logger   *log.Logger

	SpotifyBaseURL string
}

// Spotdl searches for songs and downloads them.
type Spotdl struct {
	cfg        config.DownloaderConfig
	resolver   models.MetadataResolver
	client     *spotify.Client
	downloader *downloader.Downloader
	progress   *progress.Handler
	store      *store.Store
	root       *log.Logger
	logger     *log.Logger
}

// New validates opts and builds a ready Spotdl. Every error it returns is a
// configuration error.
func New(opts Options) (*Spotdl, error) {
	l := opts.Logger
	if l == nil {
		l = log.Default()
	}
	if err := opts.Downloader.Validate(); err != nil {
		return nil, err
	}

	s := &Spotdl{cfg: opts.Downloader, resolver: opts.Resolver, store: opts.Store, root: l, logger: l.WithPrefix("spotdl")}

	if s.resolver == nil {
		client, err := spotify.New(spotify.Options{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			HTTPClient:   opts.SpotifyClient,
			MaxRetries:   opts.Spotify.MaxRetries,
			NoCache:      opts.Spotify.NoCache,
			CacheTTL:     opts.Spotify.CacheTTL,
			Proxy:        opts.Downloader.Proxy,
			BaseURL:      opts.SpotifyBaseURL,
			Logger:       l,
		})
		if err != nil {
			return nil, err
		}
		s.client = client
		s.resolver = spotify.NewResolver(client)
		s.loadCache(opts.Spotify)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		p, ok := providers.Get(opts.Downloader.AudioProvider)
		if !ok {
			s.closeClient()
			return nil, fmt.Errorf("%w: unknown audio provider %q", config.ErrInvalidConfig, opts.Downloader.AudioProvider)
		}
		fetcher = p
	}
	converter := opts.Converter
	if converter == nil {
		converter = ffmpeg.New(opts.Downloader.FFmpegPath)
	}

	handlerOpts := []progress.Option{progress.WithLogger(l)}
	if opts.Observer != nil {
		handlerOpts = append(handlerOpts, progress.WithObserver(opts.Observer))
	}
	s.progress = progress.NewHandler(handlerOpts...)

	var dlOpts []downloader.Option
	if opts.Store != nil {
		dlOpts = append(dlOpts, downloader.WithHistory(opts.Store))
	}
	dl, err := downloader.New(opts.Downloader, fetcher, converter, s.progress, dlOpts...)
	if err != nil {
		s.progress.Close()
		s.closeClient()
		return nil, err
	}
	s.downloader = dl
	return s, nil
}

func (s *Spotdl) loadCache(cfg config.SpotifyConfig) {
	if s.store == nil || cfg.NoCache {
		return
	}
	entries, err := s.store.LoadCacheEntries(cfg.CacheTTL)
	if err != nil {
		s.logger.Warn("failed to load metadata cache", "err", err)
		return
	}
	s.client.LoadCache(entries)
}

// withLogger makes the session logger available to the collaborators unless
// the caller already put one in ctx.
func (s *Spotdl) withLogger(ctx context.Context) context.Context {
	if _, ok := ctx.Value(log.ContextKey).(*log.Logger); ok {
		return ctx
	}
	return log.WithContext(ctx, s.root)
}

// Search resolves queries into songs using the configured thread count.
func (s *Spotdl) Search(ctx context.Context, queries []string) ([]*models.Song, error) {
	return s.resolver.Resolve(s.withLogger(ctx), queries, s.cfg.ResolveOptions())
}

// GetDownloadURLs returns one entry per song; nil where no URL was found.
func (s *Spotdl) GetDownloadURLs(ctx context.Context, songs []*models.Song) ([]*string, error) {
	return s.downloader.SearchURLs(s.withLogger(ctx), songs)
}

// Download fetches, converts and tags one song.
func (s *Spotdl) Download(ctx context.Context, song *models.Song) models.DownloadResult {
	return s.downloader.DownloadSong(s.withLogger(ctx), song)
}

// DownloadSongs downloads a batch. Results are in input order.
func (s *Spotdl) DownloadSongs(ctx context.Context, songs []*models.Song) ([]models.DownloadResult, error) {
	return s.downloader.DownloadSongs(s.withLogger(ctx), songs)
}

// Progress returns the counters of the current or last batch.
func (s *Spotdl) Progress() progress.Snapshot {
	return s.progress.Snapshot()
}

// OutputDir is where finished songs are written.
func (s *Spotdl) OutputDir() string {
	return s.downloader.OutputDir()
}

// SaveCache persists the cached track lookups.
func (s *Spotdl) SaveCache() error {
	if s.store == nil || s.client == nil {
		return nil
	}
	entries := s.client.CacheEntries()
	if err := s.store.SaveCacheEntries(entries); err != nil {
		return fmt.Errorf("failed to save metadata cache: %w", err)
	}
	s.logger.Debug("saved metadata cache", "entries", len(entries))
	return nil
}

// Close saves the metadata cache and stops the progress handler.
func (s *Spotdl) Close() error {
	err := s.SaveCache()
	s.progress.Close()
	s.closeClient()
	return err
}

func (s *Spotdl) closeClient() {
	if s.client != nil {
		s.client.Close()
	}
}
