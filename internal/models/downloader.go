package models

import "time"

const (
	DownloadStatusDone    = "done"
	DownloadStatusSkipped = "skipped"
	DownloadStatusFailed  = "failed"
)

// DownloadRecord is one row of the download history.
type DownloadRecord struct {
	SongID      string    `json:"song_id"`
	DisplayName string    `json:"display_name"`
	Path        string    `json:"path"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	UpdatedAt   time.Time `json:"updated_at"`
}
