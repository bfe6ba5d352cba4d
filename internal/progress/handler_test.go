package progress_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
)

func newHandler(t *testing.T, opts ...progress.Option) *progress.Handler {
	t.Helper()
	h := progress.NewHandler(opts...)
	t.Cleanup(h.Close)
	return h
}

func song(i int) *models.Song {
	return &models.Song{ID: fmt.Sprintf("id-%d", i), Name: fmt.Sprintf("Song %d", i), Artists: []string{"Artist"}}
}

// runPipeline drives a tracker through a full fetch/convert/tag cycle using
// byte counts that do not divide evenly.
func runPipeline(tr *progress.Tracker, fail bool) {
	for _, done := range []int64{7, 333, 501, 999} {
		tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 1001, DownloadedBytes: done})
	}
	if fail {
		tr.NotifyError("fetch failed", errors.New("connection reset"), false)
		return
	}
	tr.NotifyDownloadComplete("")
	for _, pct := range []int{13, 37, 71, 99} {
		tr.ConversionProgress(pct)
	}
	tr.NotifyConversionComplete("")
	tr.NotifyComplete("")
}

func TestHandler_RegisterRecomputesTotal(t *testing.T) {
	h := newHandler(t)

	s := h.Register(3)
	assert.Equal(t, 3, s.SongCount)
	assert.Equal(t, 300, s.OverallTotal)

	// Registering more songs extends the batch instead of replacing it.
	s = h.Register(2)
	assert.Equal(t, 5, s.SongCount)
	assert.Equal(t, 500, s.OverallTotal)

	s = h.SetSongs([]*models.Song{song(1)})
	assert.Equal(t, 1, s.SongCount)
	assert.Equal(t, 100, s.OverallTotal)

	s = h.AddSong(song(2))
	assert.Equal(t, 2, s.SongCount)
	assert.Equal(t, 200, s.OverallTotal)
}

func TestHandler_AllSucceed(t *testing.T) {
	h := newHandler(t)
	h.Register(3)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPipeline(h.NewTracker(song(i)), false)
		}()
	}
	wg.Wait()

	s := h.Snapshot()
	assert.Equal(t, 300, s.OverallProgress)
	assert.Equal(t, 3, s.OverallCompleted)
}

func TestHandler_ErrorCountsAsTerminal(t *testing.T) {
	h := newHandler(t)
	h.Register(3)

	runPipeline(h.NewTracker(song(1)), false)
	runPipeline(h.NewTracker(song(2)), true)

	s := h.Snapshot()
	assert.Equal(t, 2, s.OverallCompleted)
	assert.Less(t, s.OverallProgress, 300)

	runPipeline(h.NewTracker(song(3)), false)

	s = h.Snapshot()
	assert.Equal(t, 3, s.OverallCompleted)
	assert.Equal(t, 300, s.OverallProgress, "total is forced once every song is terminal")
}

func TestHandler_ProgressIsMonotonic(t *testing.T) {
	var (
		mu      sync.Mutex
		overall = map[string][]int{}
		perSong = map[string][]int{}
	)
	observer := func(tr *progress.Tracker, _ string) {
		mu.Lock()
		defer mu.Unlock()
		id := tr.Song().ID
		overall[id] = append(overall[id], tr.Overall().OverallProgress)
		perSong[id] = append(perSong[id], tr.Progress())
	}
	h := newHandler(t, progress.WithObserver(observer))
	h.Register(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPipeline(h.NewTracker(song(i)), i == 2)
		}()
	}
	wg.Wait()

	// Each tracker sees its own updates in aggregation order, so both its own
	// value and the batch value it observed must never go down.
	for id, values := range perSong {
		for i := 1; i < len(values); i++ {
			assert.GreaterOrEqual(t, values[i], values[i-1], "song %s progress decreased", id)
		}
	}
	for id, values := range overall {
		for i := 1; i < len(values); i++ {
			assert.GreaterOrEqual(t, values[i], values[i-1], "batch progress decreased during %s", id)
		}
	}
	assert.Equal(t, 400, h.Snapshot().OverallProgress)
}

func TestTracker_ProgressNeverDecreases(t *testing.T) {
	h := newHandler(t)
	h.Register(1)
	tr := h.NewTracker(song(1))

	tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: 80})
	assert.Equal(t, 40, tr.Progress())

	tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: 20})
	assert.Equal(t, 40, tr.Progress())

	tr.ConversionProgress(10)
	assert.Equal(t, 54, tr.Progress())

	// Fetch events after conversion started belong to an earlier stage.
	tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: 100})
	assert.Equal(t, 54, tr.Progress())
	assert.Equal(t, progress.StateConverting, tr.State())
	assert.Equal(t, 54, h.Snapshot().OverallProgress)
}

func TestHandler_ObserverDoesNotChangeNumbers(t *testing.T) {
	run := func(opts ...progress.Option) progress.Snapshot {
		h := progress.NewHandler(opts...)
		defer h.Close()
		h.Register(3)
		for i := 0; i < 3; i++ {
			runPipeline(h.NewTracker(song(i)), i == 1)
		}
		return h.Snapshot()
	}

	var calls int
	withObserver := run(progress.WithObserver(func(*progress.Tracker, string) { calls++ }))
	without := run()

	assert.Equal(t, without, withObserver)
	assert.Positive(t, calls)
}

func TestHandler_ObserverPanicIsContained(t *testing.T) {
	h := newHandler(t, progress.WithObserver(func(*progress.Tracker, string) {
		panic("ui went away")
	}))
	h.Register(1)

	tr := h.NewTracker(song(1))
	require.NotPanics(t, func() { runPipeline(tr, false) })

	s := h.Snapshot()
	assert.Equal(t, 100, s.OverallProgress)
	assert.Equal(t, 1, s.OverallCompleted)
}

func TestHandler_ExtraCompletionIsRejected(t *testing.T) {
	h := newHandler(t)
	h.Register(1)

	h.NewTracker(song(1)).NotifyComplete("")
	// A tracker for a song that was never registered.
	h.NewTracker(song(2)).NotifyComplete("")

	s := h.Snapshot()
	assert.Equal(t, 1, s.OverallCompleted)
	assert.Equal(t, 100, s.OverallProgress)
}

func TestHandler_ConcurrencyInvariant(t *testing.T) {
	const n = 40
	run := func(workers int) progress.Snapshot {
		h := progress.NewHandler()
		defer h.Close()
		h.Register(n)

		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer func() { <-sem; wg.Done() }()
				runPipeline(h.NewTracker(song(i)), i%7 == 0)
			}()
		}
		wg.Wait()
		return h.Snapshot()
	}

	serial := run(1)
	assert.Equal(t, progress.Snapshot{SongCount: n, OverallTotal: n * 100, OverallCompleted: n, OverallProgress: n * 100}, serial)
	assert.Equal(t, serial, run(8))
	assert.Equal(t, serial, run(n))
}

func TestHandler_CloseReturnsFinalSnapshot(t *testing.T) {
	h := progress.NewHandler()
	h.Register(2)
	h.NewTracker(song(1)).NotifyComplete("")
	h.Close()
	h.Close()

	s := h.Snapshot()
	assert.Equal(t, 2, s.SongCount)
	assert.Equal(t, 1, s.OverallCompleted)
	assert.Equal(t, 100, s.OverallProgress)
}

func TestHandler_ResetStartsNewBatch(t *testing.T) {
	h := newHandler(t)
	h.Register(2)
	for i := range 2 {
		h.NewTracker(song(i)).NotifyComplete("")
	}
	require.Equal(t, 200, h.Snapshot().OverallProgress)

	s := h.Reset(3)
	assert.Equal(t, progress.Snapshot{SongCount: 3, OverallTotal: 300}, s)

	tr := h.NewTracker(song(9))
	tr.NotifyDownloadComplete("")
	assert.Equal(t, 50, h.Snapshot().OverallProgress)
}
