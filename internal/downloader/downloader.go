// Package downloader drives the per-song fetch, convert and tag pipeline
// and reports every stage through a progress tracker.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/config"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/dispatch"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/util"
)

var (
	ErrNoDownloadURL = errors.New("no download url found")
	ErrNilSong       = errors.New("song is nil")
)

// History records the outcome of every song.
type History interface {
	RecordDownload(rec models.DownloadRecord) error
}

// Downloader owns the progress handler for its batches. Batches run one
// at a time; songs within a batch run on cfg.Threads goroutines.
type Downloader struct {
	cfg       config.DownloaderConfig
	outputDir string
	fetcher   models.Fetcher
	converter models.Converter
	progress  *progress.Handler
	history   History

	batchMu sync.Mutex
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHistory records every outcome in h.
func WithHistory(h History) Option {
	return func(d *Downloader) { d.history = h }
}

// New validates cfg, prepares the output directory and returns a
// downloader reporting to handler.
func New(cfg config.DownloaderConfig, fetcher models.Fetcher, converter models.Converter, handler *progress.Handler, opts ...Option) (*Downloader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || converter == nil || handler == nil {
		return nil, fmt.Errorf("%w: fetcher, converter and progress handler are required", config.ErrInvalidConfig)
	}
	outputDir, err := util.PrepareOutputDir(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	d := &Downloader{
		cfg:       cfg,
		outputDir: outputDir,
		fetcher:   fetcher,
		converter: converter,
		progress:  handler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Progress returns the handler the downloader reports to.
func (d *Downloader) Progress() *progress.Handler { return d.progress }

// OutputDir is the absolute directory finished songs are written to.
func (d *Downloader) OutputDir() string { return d.outputDir }

// SearchURLs finds a download URL for every song. The result has one entry
// per song, in order; nil marks a song whose search failed.
func (d *Downloader) SearchURLs(ctx context.Context, songs []*models.Song) ([]*string, error) {
	results, err := dispatch.RunBounded(ctx, songs, d.cfg.Threads, songName,
		func(ctx context.Context, song *models.Song) (string, error) {
			return d.findURL(ctx, song)
		})
	if err != nil {
		return nil, err
	}

	urls := make([]*string, len(results))
	for i, res := range results {
		if res.OK() && res.Value != "" {
			url := res.Value
			urls[i] = &url
		}
	}
	return urls, nil
}

// DownloadSong runs the pipeline for a single song as a batch of one.
func (d *Downloader) DownloadSong(ctx context.Context, song *models.Song) models.DownloadResult {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()

	d.progress.Reset(1)
	path, err := d.download(ctx, song)
	if err != nil {
		dispatch.LogFailure(log.FromContext(ctx).WithPrefix("downloader"), songName(song), err)
	}
	return models.DownloadResult{Song: song, Path: path, Err: err}
}

// DownloadSongs registers all songs with the progress handler and runs
// their pipelines on cfg.Threads goroutines. Results are in input order;
// a failed song has an empty Path and its error in Err.
func (d *Downloader) DownloadSongs(ctx context.Context, songs []*models.Song) ([]models.DownloadResult, error) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()

	d.progress.Reset(len(songs))
	results, err := dispatch.RunBounded(ctx, songs, d.cfg.Threads, songName, d.download)
	if err != nil {
		return nil, err
	}

	out := make([]models.DownloadResult, len(results))
	for i, res := range results {
		out[i] = models.DownloadResult{Song: res.Item, Path: res.Value, Err: res.Err}
	}
	return out, nil
}

func songName(song *models.Song) string {
	if song == nil {
		return "<nil song>"
	}
	return song.DisplayName()
}

func (d *Downloader) findURL(ctx context.Context, song *models.Song) (string, error) {
	if song == nil {
		return "", ErrNilSong
	}
	if song.DownloadURL != "" {
		return song.DownloadURL, nil
	}
	url, err := d.fetcher.Search(ctx, song)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", ErrNoDownloadURL
	}
	return url, nil
}

// OutputPath is where the finished file for song goes.
func (d *Downloader) OutputPath(song *models.Song) string {
	name := util.SanitizeFileName(song.DisplayName())
	if name == "" {
		name = song.ID
	}
	return filepath.Join(d.outputDir, name+"."+d.cfg.Format)
}

// download is the pipeline for one song. Every exit, including a panic in a
// collaborator, leaves the tracker terminal.
func (d *Downloader) download(ctx context.Context, song *models.Song) (path string, err error) {
	tr := d.progress.NewTracker(song)

	defer func() {
		if r := recover(); r != nil {
			err = &dispatch.PanicError{Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			path = ""
			tr.NotifyError(err.Error(), err, false)
			d.record(ctx, song, "", models.DownloadStatusFailed, err.Error())
		}
	}()

	if song == nil {
		return "", ErrNilSong
	}

	output := d.OutputPath(song)
	if d.cfg.Overwrite == "skip" && d.alreadyDownloaded(ctx, output, song) {
		tr.NotifyDownloadSkip("")
		d.record(ctx, song, output, models.DownloadStatusSkipped, "")
		return output, nil
	}

	url, err := d.findURL(ctx, song)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	workDir, err := os.MkdirTemp(d.outputDir, ".spotdl-")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	raw, err := d.fetcher.Fetch(ctx, url, workDir, tr.NetworkProgress)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	tr.NotifyDownloadComplete("")

	converted := filepath.Join(workDir, "converted."+d.cfg.Format)
	req := models.ConvertRequest{
		Input:   raw,
		Output:  converted,
		Format:  d.cfg.Format,
		Bitrate: d.cfg.Bitrate,
		Song:    song,
	}
	if err := d.converter.Convert(ctx, req, tr.ConversionProgress); err != nil {
		return "", fmt.Errorf("convert: %w", err)
	}
	tr.NotifyConversionComplete("")

	if err := os.Rename(converted, output); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", filepath.Base(output), err)
	}
	tr.NotifyComplete("")
	d.record(ctx, song, output, models.DownloadStatusDone, "")
	return output, nil
}

func (d *Downloader) record(ctx context.Context, song *models.Song, path, status, message string) {
	if d.history == nil || song == nil {
		return
	}
	rec := models.DownloadRecord{
		SongID:      song.ID,
		DisplayName: song.DisplayName(),
		Path:        path,
		Status:      status,
		Message:     message,
		UpdatedAt:   time.Now(),
	}
	if err := d.history.RecordDownload(rec); err != nil {
		log.FromContext(ctx).WithPrefix("downloader").Warn("failed to record download", "song", rec.DisplayName, "err", err)
	}
}
