// Package progress folds per-song progress callbacks into one batch-wide
// completion metric.
package progress

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// Snapshot is a consistent view of the batch counters.
type Snapshot struct {
	SongCount        int `json:"song_count"`
	OverallTotal     int `json:"overall_total"`
	OverallCompleted int `json:"overall_completed"`
	OverallProgress  int `json:"overall_progress"`
}

// Observer is called after every tracker update, on the goroutine driving
// that tracker. It must not assume it can change any counter.
type Observer func(t *Tracker, label string)

// Option configures a Handler.
type Option func(*Handler)

// WithObserver installs the external observer.
func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observer = o }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Handler) { h.log = l.WithPrefix("progress") }
}

type opKind int

const (
	opRegister opKind = iota
	opSetCount
	opReset
	opApply
	opSnapshot
)

type message struct {
	kind      opKind
	n         int
	delta     int
	completed bool
	reply     chan Snapshot
}

// Handler owns the batch counters. A single goroutine applies every mutation
// in the order the messages arrive; producers never touch the counters.
type Handler struct {
	messages  chan message
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	observer Observer
	log      *log.Logger

	// final is written by the loop before done is closed.
	final Snapshot
}

// NewHandler starts the aggregation loop. Call Close when the session ends.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		messages: make(chan message),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log.Default().WithPrefix("progress"),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

func (h *Handler) run() {
	var state Snapshot
	defer func() {
		h.final = state
		close(h.done)
	}()

	for {
		select {
		case <-h.quit:
			return
		case m := <-h.messages:
			switch m.kind {
			case opRegister:
				state.SongCount += m.n
				state.OverallTotal = 100 * state.SongCount
			case opSetCount:
				state.SongCount = m.n
				state.OverallTotal = 100 * state.SongCount
				if state.OverallCompleted > state.SongCount {
					state.OverallCompleted = state.SongCount
				}
			case opReset:
				state = Snapshot{SongCount: m.n, OverallTotal: 100 * m.n}
			case opApply:
				state = h.aggregate(state, m.delta, m.completed)
			}
			m.reply <- state
		}
	}
}

// aggregate is the only place the progress counters change.
func (h *Handler) aggregate(s Snapshot, delta int, completed bool) Snapshot {
	if completed {
		if s.OverallCompleted >= s.SongCount {
			h.log.Error("completion reported for more songs than registered",
				"completed", s.OverallCompleted, "songs", s.SongCount)
		} else {
			s.OverallCompleted++
		}
	}

	// Per-song progress is integer rounded, so the running sum can drift by a
	// few units. Once every song is terminal the exact total is forced.
	if s.OverallCompleted == s.SongCount {
		s.OverallProgress = s.SongCount * 100
	} else {
		s.OverallProgress += delta
	}
	return s
}

func (h *Handler) send(m message) Snapshot {
	m.reply = make(chan Snapshot, 1)
	select {
	case h.messages <- m:
		return <-m.reply
	case <-h.done:
		return h.final
	}
}

// Register declares n more songs for the batch. It must be called before
// trackers for those songs report anything.
func (h *Handler) Register(n int) Snapshot {
	if n < 0 {
		h.log.Warn("ignoring negative song registration", "n", n)
		return h.Snapshot()
	}
	return h.send(message{kind: opRegister, n: n})
}

// SetSongs sets the song count to len(songs), replacing the previous count.
func (h *Handler) SetSongs(songs []*models.Song) Snapshot {
	return h.SetSongCount(len(songs))
}

// SetSongCount replaces the song count.
func (h *Handler) SetSongCount(n int) Snapshot {
	if n < 0 {
		n = 0
	}
	return h.send(message{kind: opSetCount, n: n})
}

// Reset starts a new batch of n songs with all counters cleared. Trackers
// from the previous batch must be terminal.
func (h *Handler) Reset(n int) Snapshot {
	if n < 0 {
		n = 0
	}
	return h.send(message{kind: opReset, n: n})
}

// AddSong registers a single song.
func (h *Handler) AddSong(*models.Song) Snapshot {
	return h.Register(1)
}

// Snapshot returns the current counters.
func (h *Handler) Snapshot() Snapshot {
	return h.send(message{kind: opSnapshot})
}

func (h *Handler) apply(delta int, completed bool) Snapshot {
	return h.send(message{kind: opApply, delta: delta, completed: completed})
}

// NewTracker returns a tracker for one song. The caller owns it exclusively.
func (h *Handler) NewTracker(song *models.Song) *Tracker {
	return &Tracker{handler: h, song: song}
}

func (h *Handler) notify(t *Tracker, label string) {
	if h.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("progress observer panicked", "song", t.song.DisplayName(), "panic", r)
		}
	}()
	h.observer(t, label)
}

// Close stops the aggregation loop. Later calls return the final snapshot.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done
}
