package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

type artistObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type imageObject struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type albumObject struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	AlbumType   string               `json:"album_type"`
	Artists     []artistObject       `json:"artists"`
	Images      []imageObject        `json:"images"`
	ReleaseDate string               `json:"release_date"`
	TotalTracks int                  `json:"total_tracks"`
	Tracks      *paging[trackObject] `json:"tracks,omitempty"`
}

type trackObject struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Artists     []artistObject `json:"artists"`
	Album       *albumObject   `json:"album,omitempty"`
	TrackNumber int            `json:"track_number"`
	DiscNumber  int            `json:"disc_number"`
	DurationMS  int            `json:"duration_ms"`
	IsLocal     bool           `json:"is_local"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type playlistItem struct {
	Track   *trackObject `json:"track"`
	IsLocal bool         `json:"is_local"`
}

type playlistObject struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Images []imageObject        `json:"images"`
	Tracks paging[playlistItem] `json:"tracks"`
}

type paging[T any] struct {
	Items []T    `json:"items"`
	Next  string `json:"next"`
	Total int    `json:"total"`
}

type searchResponse struct {
	Tracks paging[trackObject] `json:"tracks"`
}

// Playlist is a resolved playlist with its songs in playlist order.
type Playlist struct {
	ID       string
	Name     string
	CoverURL string
	Songs    []*models.Song
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

// Track fetches a single track.
func (c *Client) Track(ctx context.Context, id string) (*models.Song, error) {
	var t trackObject
	if err := c.getJSON(ctx, "tracks/"+id, nil, &t); err != nil {
		return nil, err
	}
	return t.toSong(t.Album), nil
}

// AlbumTracks fetches every track of an album in album order.
func (c *Client) AlbumTracks(ctx context.Context, id string) ([]*models.Song, error) {
	var a albumObject
	if err := c.getJSON(ctx, "albums/"+id, nil, &a); err != nil {
		return nil, err
	}
	if a.Tracks == nil {
		return []*models.Song{}, nil
	}

	page := *a.Tracks
	songs := make([]*models.Song, 0, page.Total)
	for {
		for i := range page.Items {
			songs = append(songs, page.Items[i].toSong(&a))
		}
		if page.Next == "" {
			break
		}
		next := paging[trackObject]{}
		if err := c.getJSON(ctx, page.Next, nil, &next); err != nil {
			return nil, err
		}
		page = next
	}
	return songs, nil
}

// Playlist fetches a playlist and all of its tracks. Local files and
// removed tracks are skipped; list positions count only real tracks.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	var p playlistObject
	if err := c.getJSON(ctx, "playlists/"+id, nil, &p); err != nil {
		return nil, err
	}

	pl := &Playlist{ID: p.ID, Name: p.Name, CoverURL: largestImage(p.Images)}
	page := p.Tracks
	for {
		for _, item := range page.Items {
			if item.Track == nil || item.IsLocal || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			pl.Songs = append(pl.Songs, item.Track.toSong(item.Track.Album))
		}
		if page.Next == "" {
			break
		}
		next := paging[playlistItem]{}
		if err := c.getJSON(ctx, page.Next, nil, &next); err != nil {
			return nil, err
		}
		page = next
	}

	for i, song := range pl.Songs {
		song.ListName = pl.Name
		song.ListPosition = i + 1
		song.ListLength = len(pl.Songs)
	}
	return pl, nil
}

// SearchTrack returns the first track matching query.
func (c *Client) SearchTrack(ctx context.Context, query string) (*models.Song, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", "1")

	var res searchResponse
	if err := c.getJSON(ctx, "search", params, &res); err != nil {
		return nil, err
	}
	if len(res.Tracks.Items) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	t := res.Tracks.Items[0]
	return t.toSong(t.Album), nil
}

func (t *trackObject) toSong(album *albumObject) *models.Song {
	song := &models.Song{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     artistNames(t.Artists),
		TrackNumber: t.TrackNumber,
		DiscNumber:  t.DiscNumber,
		Duration:    t.DurationMS / 1000,
		ISRC:        t.ExternalIDs.ISRC,
		URL:         t.ExternalURLs.Spotify,
	}
	if len(song.Artists) > 0 {
		song.Artist = song.Artists[0]
	}
	if song.URL == "" && t.ID != "" {
		song.URL = "https://open.spotify.com/track/" + t.ID
	}
	if album != nil {
		song.AlbumName = album.Name
		song.AlbumType = album.AlbumType
		song.TracksCount = album.TotalTracks
		song.Date = album.ReleaseDate
		song.Year = releaseYear(album.ReleaseDate)
		song.CoverURL = largestImage(album.Images)
		if len(album.Artists) > 0 {
			song.AlbumArtist = album.Artists[0].Name
		}
	}
	return song
}

func artistNames(artists []artistObject) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

func largestImage(images []imageObject) string {
	best := -1
	for i, img := range images {
		if best == -1 || img.Width*img.Height > images[best].Width*images[best].Height {
			best = i
		}
	}
	if best == -1 {
		return ""
	}
	return images[best].URL
}

// releaseYear handles the "2006", "2006-03" and "2006-03-17" precisions.
func releaseYear(date string) int {
	year, _, _ := strings.Cut(date, "-")
	y, err := strconv.Atoi(year)
	if err != nil {
		return 0
	}
	return y
}
