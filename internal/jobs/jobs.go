package jobs

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron"
)

const (
	SyncJobID       = "spotify-sync"
	CachePruneJobID = "cache-prune"
	DownloadJobID   = "download"
)

// RegisterJobs adds the jobs that can be triggered by id.
func RegisterJobs(jm *JobManager) {
	jm.Register(SyncJobID, "Spotify Sync", RunSync)
	jm.Register(CachePruneJobID, "Prune Metadata Cache", RunPruneCache)
}

// StartJobs starts the background job scheduler. The caller stops it.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startSyncJob(s, app)
	startCachePruneJob(s, app)

	log.Info("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func startSyncJob(s *gocron.Scheduler, app JobContext) {
	cfg := app.Config().Sync
	if cfg.Interval == 0 {
		log.Info("Sync interval is 0, scheduled sync is disabled.")
		return
	}
	if len(cfg.Queries) == 0 {
		log.Warn("Sync interval is set but sync.queries is empty, scheduled sync is disabled.")
		return
	}

	log.Info("Scheduling job", "id", SyncJobID, "every_minutes", cfg.Interval)
	_, err := s.Every(cfg.Interval).Minutes().Do(func() {
		log.Info("Scheduler is triggering job", "id", SyncJobID)
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered downloads.
		if err := app.JobManager().RunScheduled(SyncJobID); err != nil {
			log.Warn("Scheduled job could not start", "id", SyncJobID, "err", err)
		}
	})
	if err != nil {
		log.Error("Error scheduling job", "id", SyncJobID, "err", err)
	}
}

func startCachePruneJob(s *gocron.Scheduler, app JobContext) {
	cfg := app.Config().Spotify
	if cfg.NoCache || cfg.CacheTTL <= 0 {
		return
	}

	_, err := s.Every(cfg.CacheTTL).Do(func() {
		if err := app.JobManager().RunScheduled(CachePruneJobID); err != nil {
			log.Warn("Scheduled job could not start", "id", CachePruneJobID, "err", err)
		}
	})
	if err != nil {
		log.Error("Error scheduling job", "id", CachePruneJobID, "err", err)
	}
}
