package progress

import (
	"fmt"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/logger"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// Tracker turns the stage callbacks of one song's pipeline into a 0-100
// value and reports the change to its Handler. It is owned by the goroutine
// driving the song; once terminal it is read-only.
type Tracker struct {
	handler *Handler
	song    *models.Song

	progress    int
	oldProgress int
	status      string
	state       State
	overall     Snapshot
}

func (t *Tracker) Song() *models.Song { return t.song }
func (t *Tracker) Progress() int      { return t.progress }
func (t *Tracker) Status() string     { return t.status }
func (t *Tracker) State() State       { return t.state }

// Overall is the batch snapshot produced by this tracker's last update.
func (t *Tracker) Overall() Snapshot { return t.overall }

// advance moves to stage `to` and raises progress to p. Going back a stage,
// lowering progress or leaving a terminal state is refused.
func (t *Tracker) advance(to State, p int) bool {
	if t.state.Terminal() || to < t.state {
		return false
	}
	t.state = to
	if p > t.progress {
		t.progress = p
	}
	return true
}

// Update reports the current progress under label. Reaching 100 or the Error
// label makes the tracker terminal and counts the song as completed, exactly
// once.
func (t *Tracker) Update(label string) {
	if t.state.Terminal() {
		return
	}

	oldStatus := t.status
	t.status = label
	delta := t.progress - t.oldProgress

	completed := false
	switch {
	case label == StatusError:
		t.state = StateErrored
		completed = true
	case t.progress >= 100:
		t.state = StateDone
		completed = true
	}

	t.overall = t.handler.apply(delta, completed)
	t.oldProgress = t.progress

	t.handler.notify(t, label)

	if oldStatus != label {
		t.handler.log.Info(label, "song", t.song.DisplayName())
	}
}

// NetworkProgress handles a fetcher progress event. Only "downloading"
// events count; the first half of the band follows the byte ratio when the
// total size is known and sits at the midpoint otherwise.
func (t *Tracker) NetworkProgress(data models.NetworkProgress) {
	if data.Status != "downloading" {
		return
	}

	total := data.TotalBytes
	if total == 0 {
		total = data.TotalBytesEstimate
	}

	// A known total with nothing transferred yet is 0, not "unknown".
	p := 50
	if total > 0 {
		p = int(max(data.DownloadedBytes, 0) * 50 / total)
	}
	if p > 50 {
		p = 50
	}

	if t.advance(StateFetching, p) {
		t.Update(StatusDownloading)
	}
}

// ConversionProgress handles the converter's own 0-100 percentage.
func (t *Tracker) ConversionProgress(percent int) {
	percent = max(0, min(percent, 100))
	if t.advance(StateConverting, 50+percent*45/100) {
		t.Update(StatusConverting)
	}
}

// NotifyDownloadComplete marks the end of the fetch stage.
func (t *Tracker) NotifyDownloadComplete(status string) {
	if status == "" {
		status = StatusConverting
	}
	if t.advance(StateConverting, 50) {
		t.Update(status)
	}
}

// NotifyConversionComplete marks the end of the convert stage.
func (t *Tracker) NotifyConversionComplete(status string) {
	if status == "" {
		status = StatusEmbedding
	}
	if t.advance(StateFinalizing, 95) {
		t.Update(status)
	}
}

// NotifyComplete finishes the song.
func (t *Tracker) NotifyComplete(status string) {
	if status == "" {
		status = StatusDone
	}
	t.finish(status)
}

// NotifyDownloadSkip finishes a song that needed no work.
func (t *Tracker) NotifyDownloadSkip(status string) {
	if status == "" {
		status = StatusSkipped
	}
	t.finish(status)
}

func (t *Tracker) finish(status string) {
	if t.state.Terminal() {
		return
	}
	t.progress = 100
	t.Update(status)
}

// NotifyError makes the tracker terminal with the Error label. The
// aggregated progress is left where it was; with finish set the tracker's own
// progress shows 100 afterwards. The full error is only logged at debug level,
// callers log the error class and message.
func (t *Tracker) NotifyError(message string, err error, finish bool) {
	t.Update(StatusError)
	if finish && t.state == StateErrored {
		t.progress = 100
	}

	if logger.IsDebug(t.handler.log) {
		t.handler.log.Debug(message, "song", t.song.DisplayName(), "err", fmt.Sprintf("%+v", err))
	}
}
