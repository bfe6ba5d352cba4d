package models

import (
	"fmt"
	"strings"
)

// Song is one resolved track. It is treated as read-only once the metadata
// resolver hands it over; only DownloadURL may be filled in before dispatch.
type Song struct {
	ID           string   `json:"song_id"`
	Name         string   `json:"name"`
	Artists      []string `json:"artists"`
	Artist       string   `json:"artist"`
	AlbumName    string   `json:"album_name"`
	AlbumArtist  string   `json:"album_artist"`
	AlbumType    string   `json:"album_type"`
	TrackNumber  int      `json:"track_number"`
	TracksCount  int      `json:"tracks_count"`
	DiscNumber   int      `json:"disc_number"`
	Year         int      `json:"year"`
	Date         string   `json:"date"`
	Duration     int      `json:"duration"` // seconds
	ISRC         string   `json:"isrc,omitempty"`
	URL          string   `json:"url"`
	CoverURL     string   `json:"cover_url,omitempty"`
	ListName     string   `json:"list_name,omitempty"`
	ListPosition int      `json:"list_position,omitempty"`
	ListLength   int      `json:"list_length,omitempty"`
	DownloadURL  string   `json:"download_url,omitempty"`
}

// DisplayName is the "Artist - Title" form used in logs and file names.
func (s *Song) DisplayName() string {
	if s == nil {
		return ""
	}
	artists := strings.Join(s.Artists, ", ")
	if artists == "" {
		artists = s.Artist
	}
	return fmt.Sprintf("%s - %s", artists, s.Name)
}

func (s *Song) String() string {
	return s.DisplayName()
}

// DownloadResult pairs a song with the produced file. Path is empty when the
// pipeline for that song did not produce anything.
type DownloadResult struct {
	Song *Song  `json:"song"`
	Path string `json:"path,omitempty"`
	Err  error  `json:"-"`
}

// OK reports whether the song ended up on disk.
func (r DownloadResult) OK() bool {
	return r.Err == nil && r.Path != ""
}
