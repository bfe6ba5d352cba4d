package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/config"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/orchestrator"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/websocket"
)

var (
	ErrJobRunning  = errors.New("a job is already running")
	ErrJobNotFound = errors.New("job not found")
)

// JobContext is an interface that provides the necessary dependencies for a job to run.
// The core.App struct will implement this interface.
type JobContext interface {
	Config() *config.Config
	Store() *store.Store
	WsHub() *websocket.Hub
	JobManager() *JobManager
	Spotdl() *orchestrator.Spotdl
	// BeginBatch tags the progress broadcasts that follow with id.
	BeginBatch(id string)
}

// Task is the body of a job. A returned error marks the run as failed. ctx
// is cancelled when the manager shuts down.
type Task func(ctx context.Context, app JobContext) error

const startMessage = "Job started..."

type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed"
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

type registeredJob struct {
	name string
	task Task
}

// JobManager runs at most one job at a time. Downloads share a single
// progress handler, so overlapping batches would mix their counters.
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]registeredJob
	status  map[string]*JobStatus
	running bool
	appCtx  JobContext // used by scheduled runs
	wg      sync.WaitGroup
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(appCtx JobContext) *JobManager {
	ctx, cancel := context.WithCancel(log.WithContext(context.Background(), log.Default()))
	return &JobManager{
		jobs:   make(map[string]registeredJob),
		status: make(map[string]*JobStatus),
		appCtx: appCtx,
		logger: log.Default().WithPrefix("jobs"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job that can later be started by id.
func (jm *JobManager) Register(id, name string, task Task) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[id] = registeredJob{name: name, task: task}
	jm.status[id] = &JobStatus{ID: id, Name: name, Status: "idle"}
}

// RunJob starts the registered job id in the background.
func (jm *JobManager) RunJob(id string, ctx JobContext) error {
	jm.mu.Lock()
	job, ok := jm.jobs[id]
	jm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrJobNotFound, id)
	}
	return jm.Start(id, job.name, ctx, job.task)
}

// RunScheduled starts job id with the context the manager was built with.
func (jm *JobManager) RunScheduled(id string) error {
	return jm.RunJob(id, jm.appCtx)
}

// Start runs an ad-hoc task under id, sharing the one-at-a-time guard with
// registered jobs. Its status is reported next to theirs.
func (jm *JobManager) Start(id, name string, ctx JobContext, task Task) error {
	jm.mu.Lock()
	if jm.ctx.Err() != nil {
		jm.mu.Unlock()
		return jm.ctx.Err()
	}
	if jm.running {
		jm.mu.Unlock()
		return ErrJobRunning
	}
	status, ok := jm.status[id]
	if !ok {
		status = &JobStatus{ID: id, Name: name}
		jm.status[id] = status
	}
	jm.running = true
	status.Status = "running"
	status.StartTime = time.Now()
	status.EndTime = time.Time{}
	status.Message = startMessage
	jm.wg.Add(1)
	jm.mu.Unlock()

	jm.logger.Info("Starting job", "id", id)
	go func() {
		var err error
		defer func() {
			defer jm.wg.Done()
			r := recover()

			jm.mu.Lock()
			defer jm.mu.Unlock()
			status.EndTime = time.Now()
			switch {
			case r != nil:
				jm.logger.Error("Job panicked", "id", id, "panic", r)
				status.Status = "failed"
				status.Message = fmt.Sprintf("Job panicked: %v", r)
			case err != nil:
				jm.logger.Error("Job failed", "id", id, "err", err)
				status.Status = "failed"
				status.Message = err.Error()
			default:
				status.Status = "success"
				if status.Message == startMessage {
					status.Message = "Job completed successfully."
				}
			}
			jm.running = false
			jm.logger.Info("Finished job", "id", id, "status", status.Status)
		}()

		err = task(jm.ctx, ctx)
	}()
	return nil
}

// SetMessage updates the status message of a running job.
func (jm *JobManager) SetMessage(id, message string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if s, ok := jm.status[id]; ok {
		s.Message = message
	}
}

// GetStatus returns a copy of every job status, sorted by id.
func (jm *JobManager) GetStatus() []JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jm.status))
	for _, s := range jm.status {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// Wait blocks until every started job has finished.
func (jm *JobManager) Wait() {
	jm.wg.Wait()
}

// Shutdown cancels running jobs, refuses new ones and waits for the
// running one to return.
func (jm *JobManager) Shutdown() {
	jm.mu.Lock()
	jm.cancel()
	jm.mu.Unlock()
	jm.wg.Wait()
}
