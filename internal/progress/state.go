package progress

// Labels announced by a Tracker. Downstream consumers match on these.
const (
	StatusDownloading = "Downloading"
	StatusConverting  = "Converting"
	StatusEmbedding   = "Embedding metadata"
	StatusDone        = "Done"
	StatusSkipped     = "Skipped"
	StatusError       = "Error"
)

// State is the stage a Tracker is in. Stages only move forward and Done and
// Errored are absorbing.
type State int

const (
	StatePending    State = iota // 0
	StateFetching                // 0-50
	StateConverting              // 50-95
	StateFinalizing              // 95-99
	StateDone                    // 100
	StateErrored
)

// Terminal reports whether no further updates are accepted.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateConverting:
		return "converting"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}
