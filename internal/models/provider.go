package models

import "context"

// ResolveOptions carries the settings the metadata resolver needs from the
// downloader configuration.
type ResolveOptions struct {
	Threads                  int
	UseYTMData               bool
	PlaylistNumbering        bool
	PlaylistRetainTrackCover bool
	AlbumType                string
}

// MetadataResolver turns free-text queries, URLs and URIs into songs. A query
// that cannot be resolved is logged and skipped; it never fails the batch.
type MetadataResolver interface {
	Resolve(ctx context.Context, queries []string, opts ResolveOptions) ([]*Song, error)
}

// NetworkProgress is what a fetcher reports while bytes are in flight.
// Zero byte counts mean "unknown".
type NetworkProgress struct {
	Status             string `json:"status"`
	TotalBytes         int64  `json:"total_bytes,omitempty"`
	TotalBytesEstimate int64  `json:"total_bytes_estimate,omitempty"`
	DownloadedBytes    int64  `json:"downloaded_bytes,omitempty"`
}

// Fetcher locates and downloads the source audio for a song.
type Fetcher interface {
	// Search returns the URL the song should be fetched from.
	Search(ctx context.Context, song *Song) (string, error)
	// Fetch downloads url into dir and returns the path of the raw file.
	Fetch(ctx context.Context, url, dir string, hook func(NetworkProgress)) (string, error)
}

// ConvertRequest describes one transcode + tag job.
type ConvertRequest struct {
	Input   string
	Output  string
	Format  string
	Bitrate string
	Song    *Song
}

// Converter transcodes a fetched file and embeds the song metadata. hook
// receives the converter's own 0-100 percentage.
type Converter interface {
	Convert(ctx context.Context, req ConvertRequest, hook func(percent int)) error
}

// ProviderInfo identifies an audio provider.
type ProviderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AudioProvider is a Fetcher that can be selected by ID in the configuration.
type AudioProvider interface {
	Fetcher
	GetInfo() ProviderInfo
}
