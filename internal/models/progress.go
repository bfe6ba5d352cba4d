package models

// ProgressUpdate is broadcast to websocket clients on every tracker update.
type ProgressUpdate struct {
	JobID    string  `json:"jobId"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	ItemID   string  `json:"item_id"`
	Status   string  `json:"status"` // e.g. "Downloading", "Converting", "Done", "Error"
	Done     bool    `json:"done"`

	OverallProgress  int `json:"overall_progress"`
	OverallTotal     int `json:"overall_total"`
	OverallCompleted int `json:"overall_completed"`
	SongCount        int `json:"song_count"`
}
