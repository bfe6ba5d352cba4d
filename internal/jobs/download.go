package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

var ErrNoQueries = errors.New("no queries given")

// SubmitDownload starts a background batch for queries and returns its id,
// which tags every progress broadcast of the batch.
func SubmitDownload(app JobContext, queries []string) (string, error) {
	if len(queries) == 0 {
		return "", ErrNoQueries
	}
	batchID := uuid.NewString()
	err := app.JobManager().Start(DownloadJobID, "Download", app, func(ctx context.Context, app JobContext) error {
		return runBatch(ctx, app, DownloadJobID, batchID, queries)
	})
	if err != nil {
		return "", err
	}
	return batchID, nil
}

// RunSync downloads the configured sync queries. Songs already on disk are
// skipped by the downloader, so repeated runs only fetch new tracks.
func RunSync(ctx context.Context, app JobContext) error {
	queries := app.Config().Sync.Queries
	if len(queries) == 0 {
		return ErrNoQueries
	}
	return runBatch(ctx, app, SyncJobID, uuid.NewString(), queries)
}

// runBatch resolves queries and downloads the songs as one batch. Songs
// that fail are reported in the final message; the run only fails when
// nothing could be resolved or every song failed.
func runBatch(ctx context.Context, app JobContext, jobID, batchID string, queries []string) error {
	app.BeginBatch(batchID)
	hub := app.WsHub()
	sp := app.Spotdl()
	logger := log.FromContext(ctx).WithPrefix("jobs").With("batch", batchID)

	hub.BroadcastJSON(models.ProgressUpdate{
		JobID:   batchID,
		Message: fmt.Sprintf("Resolving %d queries", len(queries)),
		Status:  "Resolving",
	})
	songs, err := sp.Search(ctx, queries)
	if err != nil {
		return fmt.Errorf("failed to resolve queries: %w", err)
	}
	if len(songs) == 0 {
		hub.BroadcastJSON(models.ProgressUpdate{JobID: batchID, Message: "No songs found", Status: "Done", Done: true})
		return fmt.Errorf("none of the %d queries matched a song", len(queries))
	}

	logger.Info("Downloading batch", "songs", len(songs))
	results, err := sp.DownloadSongs(ctx, songs)
	if err != nil {
		return err
	}

	var failed int
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	snap := sp.Progress()
	message := fmt.Sprintf("Downloaded %d of %d songs", len(results)-failed, len(results))
	hub.BroadcastJSON(models.ProgressUpdate{
		JobID:            batchID,
		Message:          message,
		Progress:         100,
		Status:           "Done",
		Done:             true,
		OverallProgress:  snap.OverallProgress,
		OverallTotal:     snap.OverallTotal,
		OverallCompleted: snap.OverallCompleted,
		SongCount:        snap.SongCount,
	})
	app.JobManager().SetMessage(jobID, message)

	if err := sp.SaveCache(); err != nil {
		logger.Warn("Could not persist metadata cache", "err", err)
	}
	if failed == len(results) {
		return fmt.Errorf("all %d downloads failed", failed)
	}
	return nil
}

// RunPruneCache drops persisted metadata older than the cache TTL.
func RunPruneCache(ctx context.Context, app JobContext) error {
	ttl := app.Config().Spotify.CacheTTL
	if ttl <= 0 {
		return nil
	}
	removed, err := app.Store().PruneCache(time.Now().Add(-ttl))
	if err != nil {
		return fmt.Errorf("failed to prune metadata cache: %w", err)
	}
	message := fmt.Sprintf("Removed %d cached responses", removed)
	log.FromContext(ctx).WithPrefix("jobs").Info(message)
	app.JobManager().SetMessage(CachePruneJobID, message)
	return nil
}
