package progress_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
)

func TestTracker_StageBands(t *testing.T) {
	h := newHandler(t)
	h.Register(1)
	tr := h.NewTracker(song(1))
	assert.Equal(t, progress.StatePending, tr.State())

	tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: 25})
	assert.Equal(t, 12, tr.Progress(), "floor of 12.5")
	assert.Equal(t, progress.StatusDownloading, tr.Status())
	assert.Equal(t, progress.StateFetching, tr.State())

	tr.ConversionProgress(80)
	assert.Equal(t, 86, tr.Progress())
	assert.Equal(t, progress.StatusConverting, tr.Status())
	assert.Equal(t, progress.StateConverting, tr.State())

	tr.NotifyConversionComplete("")
	assert.Equal(t, 95, tr.Progress())
	assert.Equal(t, progress.StatusEmbedding, tr.Status())
	assert.Equal(t, progress.StateFinalizing, tr.State())

	tr.NotifyComplete("")
	assert.Equal(t, 100, tr.Progress())
	assert.Equal(t, progress.StatusDone, tr.Status())
	assert.Equal(t, progress.StateDone, tr.State())

	s := h.Snapshot()
	assert.Equal(t, 100, s.OverallProgress)
	assert.Equal(t, 1, s.OverallCompleted)
}

func TestTracker_NetworkProgress(t *testing.T) {
	tests := []struct {
		name       string
		data       models.NetworkProgress
		want       int
		wantStatus string
	}{
		{
			name:       "known size",
			data:       models.NetworkProgress{Status: "downloading", TotalBytes: 200, DownloadedBytes: 100},
			want:       25,
			wantStatus: progress.StatusDownloading,
		},
		{
			name:       "estimate used when total is missing",
			data:       models.NetworkProgress{Status: "downloading", TotalBytesEstimate: 1000, DownloadedBytes: 999},
			want:       49,
			wantStatus: progress.StatusDownloading,
		},
		{
			name:       "unknown size reports the midpoint",
			data:       models.NetworkProgress{Status: "downloading", DownloadedBytes: 4096},
			want:       50,
			wantStatus: progress.StatusDownloading,
		},
		{
			name:       "nothing downloaded yet with a known total is zero",
			data:       models.NetworkProgress{Status: "downloading", TotalBytes: 4096},
			want:       0,
			wantStatus: progress.StatusDownloading,
		},
		{
			name: "other statuses are ignored",
			data: models.NetworkProgress{Status: "finished", TotalBytes: 100, DownloadedBytes: 100},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t)
			h.Register(1)
			tr := h.NewTracker(song(1))

			tr.NetworkProgress(tt.data)
			assert.Equal(t, tt.want, tr.Progress())
			assert.Equal(t, tt.wantStatus, tr.Status())
			assert.Equal(t, tt.want, h.Snapshot().OverallProgress)
		})
	}
}

func TestTracker_NetworkProgressFollowsBytes(t *testing.T) {
	h := newHandler(t)
	h.Register(1)
	tr := h.NewTracker(song(1))

	steps := []struct {
		downloaded int64
		want       int
	}{
		{0, 0},
		{25, 12},
		{50, 25},
		{100, 50},
	}
	for _, step := range steps {
		tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: step.downloaded})
		assert.Equal(t, step.want, tr.Progress(), "downloaded %d", step.downloaded)
	}
	assert.Equal(t, 50, h.Snapshot().OverallProgress)
}

func TestTracker_ConversionProgress(t *testing.T) {
	tests := []struct {
		percent int
		want    int
	}{
		{0, 50},
		{1, 50},
		{3, 51},
		{50, 72},
		{99, 94},
		{100, 95},
		{150, 95},
	}
	for _, tt := range tests {
		h := newHandler(t)
		h.Register(1)
		tr := h.NewTracker(song(1))
		tr.ConversionProgress(tt.percent)
		assert.Equal(t, tt.want, tr.Progress(), "percent %d", tt.percent)
	}
}

func TestTracker_Skip(t *testing.T) {
	h := newHandler(t)
	h.Register(2)
	tr := h.NewTracker(song(1))

	tr.NotifyDownloadSkip("")
	assert.Equal(t, 100, tr.Progress())
	assert.Equal(t, progress.StatusSkipped, tr.Status())
	assert.True(t, tr.State().Terminal())

	s := h.Snapshot()
	assert.Equal(t, 1, s.OverallCompleted)
	assert.Equal(t, 100, s.OverallProgress)
}

func TestTracker_ErrorKeepsProgress(t *testing.T) {
	h := newHandler(t)
	h.Register(2)
	tr := h.NewTracker(song(1))

	tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: 60})
	tr.NotifyError("download failed", errors.New("boom"), false)

	assert.Equal(t, 30, tr.Progress())
	assert.Equal(t, progress.StatusError, tr.Status())
	assert.Equal(t, progress.StateErrored, tr.State())

	s := h.Snapshot()
	assert.Equal(t, 1, s.OverallCompleted)
	assert.Equal(t, 30, s.OverallProgress)
}

func TestTracker_ErrorWithFinish(t *testing.T) {
	h := newHandler(t)
	h.Register(2)
	tr := h.NewTracker(song(1))

	tr.NetworkProgress(models.NetworkProgress{Status: "downloading", TotalBytes: 100, DownloadedBytes: 60})
	tr.NotifyError("download failed", errors.New("boom"), true)

	assert.Equal(t, 100, tr.Progress())
	assert.Equal(t, 30, h.Snapshot().OverallProgress, "finish only affects the tracker's own value")
}

func TestTracker_TerminalIsAbsorbing(t *testing.T) {
	h := newHandler(t)
	h.Register(2)
	tr := h.NewTracker(song(1))

	var labels []string
	tr2 := progress.NewHandler(progress.WithObserver(func(_ *progress.Tracker, label string) {
		labels = append(labels, label)
	}))
	defer tr2.Close()
	tr2.Register(1)
	watched := tr2.NewTracker(song(2))

	for _, x := range []*progress.Tracker{tr, watched} {
		x.NotifyComplete("")
		x.NotifyComplete("")
		x.NotifyError("late failure", errors.New("late"), true)
		x.NetworkProgress(models.NetworkProgress{Status: "downloading"})
		x.ConversionProgress(40)
		x.NotifyDownloadSkip("")
		x.Update("Anything")
	}

	assert.Equal(t, progress.StateDone, tr.State())
	assert.Equal(t, progress.StatusDone, tr.Status())
	assert.Equal(t, 1, h.Snapshot().OverallCompleted)
	assert.Equal(t, []string{progress.StatusDone}, labels)
}
