package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/dispatch"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("empty query")

// Resolver implements models.MetadataResolver on top of a Client.
type Resolver struct {
	client *Client
}

// NewResolver returns a resolver backed by c.
func NewResolver(c *Client) *Resolver {
	return &Resolver{client: c}
}

// Resolve resolves every query with at most opts.Threads lookups in flight.
// Songs come back in query order with duplicates removed. A query that
// fails is logged by the dispatcher and contributes nothing.
func (r *Resolver) Resolve(ctx context.Context, queries []string, opts models.ResolveOptions) ([]*models.Song, error) {
	l := log.FromContext(ctx).WithPrefix("spotify")
	if opts.UseYTMData {
		l.Debug("ytm_data requested; metadata still comes from spotify")
	}

	results, err := dispatch.RunBounded(ctx, queries, opts.Threads,
		func(q string) string { return q },
		func(ctx context.Context, q string) ([]*models.Song, error) {
			return r.resolveQuery(ctx, q, opts)
		})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	songs := []*models.Song{}
	for _, res := range results {
		for _, song := range res.Value {
			if song.ID != "" && seen[song.ID] {
				continue
			}
			if opts.AlbumType != "" && song.AlbumType != opts.AlbumType {
				continue
			}
			seen[song.ID] = true
			songs = append(songs, song)
		}
	}
	l.Debug("resolved queries", "queries", len(queries), "songs", len(songs))
	return songs, nil
}

func (r *Resolver) resolveQuery(ctx context.Context, raw string, opts models.ResolveOptions) ([]*models.Song, error) {
	q := ParseQuery(raw)
	switch q.Kind {
	case QueryTrack:
		song, err := r.client.Track(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		return []*models.Song{song}, nil

	case QueryAlbum:
		return r.client.AlbumTracks(ctx, q.ID)

	case QueryPlaylist:
		pl, err := r.client.Playlist(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if opts.PlaylistNumbering {
			applyPlaylistNumbering(pl, opts.PlaylistRetainTrackCover)
		}
		return pl.Songs, nil

	default:
		if q.Text == "" {
			return nil, ErrEmptyQuery
		}
		song, err := r.client.SearchTrack(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q.Text, err)
		}
		return []*models.Song{song}, nil
	}
}

// applyPlaylistNumbering makes the playlist look like an album to taggers:
// album name and artist become the playlist name and the track number
// becomes the playlist position.
func applyPlaylistNumbering(pl *Playlist, retainTrackCover bool) {
	for _, song := range pl.Songs {
		song.AlbumName = pl.Name
		song.AlbumArtist = pl.Name
		song.TrackNumber = song.ListPosition
		song.TracksCount = song.ListLength
		song.DiscNumber = 1
		if !retainTrackCover && pl.CoverURL != "" {
			song.CoverURL = pl.CoverURL
		}
	}
}
