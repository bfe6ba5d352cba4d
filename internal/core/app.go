package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/config"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/db"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers/youtube"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/jobs"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/logger"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/orchestrator"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	config     *config.Config
	db         *sql.DB
	store      *store.Store
	wsHub      *websocket.Hub
	jobManager *jobs.JobManager
	spotdl     *orchestrator.Spotdl
	version    string
	logger     *log.Logger

	batch atomic.Value // string, id of the batch being broadcast
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, running migrations
// and registering the audio providers.
func New(version string) (*App, error) {
	// Load configuration from config.yml
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l := logger.New(os.Stdout, cfg.Log.Level)
	log.SetDefault(l)

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	if err := CheckYtdlp(context.Background(), cfg.Downloader, l); err != nil {
		database.Close()
		return nil, err
	}
	providers.Register(youtube.New(cfg.Downloader.YtdlpPath, cfg.Downloader.Proxy))

	app, err := Assemble(cfg, database, orchestrator.Options{Logger: l}, version)
	if err != nil {
		database.Close()
		return nil, err
	}
	l.Info("Core application setup complete.")
	return app, nil
}

// CheckYtdlp refuses a yt-dlp older than the configured minimum. A binary
// that cannot be run is only warned about; downloads will report it.
func CheckYtdlp(ctx context.Context, cfg config.DownloaderConfig, l *log.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	v, err := youtube.CheckVersion(ctx, cfg.YtdlpPath, cfg.MinYtdlpVersion)
	switch {
	case errors.Is(err, youtube.ErrOutdated):
		return err
	case err != nil:
		l.Warn("could not determine yt-dlp version", "path", cfg.YtdlpPath, "err", err)
	default:
		l.Debug("found yt-dlp", "version", v)
	}
	return nil
}

// Assemble builds an App around an already migrated database. opts is
// completed from cfg; fields already set in opts win.
func Assemble(cfg *config.Config, database *sql.DB, opts orchestrator.Options, version string) (*App, error) {
	l := opts.Logger
	if l == nil {
		l = log.Default()
	}

	a := &App{
		config:  cfg,
		db:      database,
		store:   store.New(database),
		wsHub:   websocket.NewHub(),
		version: version,
		logger:  l,
	}
	a.batch.Store("")

	if opts.ClientID == "" && opts.ClientSecret == "" {
		opts.ClientID = cfg.Spotify.ClientID
		opts.ClientSecret = cfg.Spotify.ClientSecret
	}
	opts.Spotify = cfg.Spotify
	opts.Downloader = cfg.Downloader
	opts.Store = a.store
	opts.Logger = l
	if opts.Observer == nil {
		opts.Observer = a.broadcastProgress
	}

	sp, err := orchestrator.New(opts)
	if err != nil {
		return nil, err
	}
	a.spotdl = sp

	a.jobManager = jobs.NewManager(a)
	jobs.RegisterJobs(a.jobManager)

	go a.wsHub.Run()
	return a, nil
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) DB() *sql.DB                  { return a.db }
func (a *App) Store() *store.Store          { return a.store }
func (a *App) WsHub() *websocket.Hub        { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager { return a.jobManager }
func (a *App) Spotdl() *orchestrator.Spotdl { return a.spotdl }
func (a *App) Version() string              { return a.version }
func (a *App) BeginBatch(id string)         { a.batch.Store(id) }
func (a *App) CurrentBatch() string         { return a.batch.Load().(string) }

// broadcastProgress forwards every tracker update to websocket clients.
func (a *App) broadcastProgress(t *progress.Tracker, label string) {
	song := t.Song()
	overall := t.Overall()
	update := models.ProgressUpdate{
		JobID:            a.CurrentBatch(),
		Message:          song.DisplayName(),
		Progress:         float64(t.Progress()),
		Status:           label,
		Done:             t.State().Terminal(),
		OverallProgress:  overall.OverallProgress,
		OverallTotal:     overall.OverallTotal,
		OverallCompleted: overall.OverallCompleted,
		SongCount:        overall.SongCount,
	}
	if song != nil {
		update.ItemID = song.ID
	}
	a.wsHub.BroadcastJSON(update)
}

// Close stops background work and releases the application's resources.
func (a *App) Close() {
	if a.jobManager != nil {
		a.jobManager.Shutdown()
	}
	if a.spotdl != nil {
		if err := a.spotdl.Close(); err != nil {
			a.logger.Warn("error while closing", "err", err)
		}
	}
	if a.wsHub != nil {
		a.wsHub.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
}
