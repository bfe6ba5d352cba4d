package testutil

import (
	"context"
	"strings"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// StaticResolver resolves every query to one song without any network
// access. Queries starting with "missing" resolve to nothing.
type StaticResolver struct{}

func (StaticResolver) Resolve(_ context.Context, queries []string, _ models.ResolveOptions) ([]*models.Song, error) {
	songs := make([]*models.Song, 0, len(queries))
	for _, q := range queries {
		if strings.HasPrefix(q, "missing") {
			continue
		}
		songs = append(songs, SongFor(q))
	}
	return songs, nil
}

// SongFor is the song StaticResolver returns for query.
func SongFor(query string) *models.Song {
	return &models.Song{
		ID:      strings.ReplaceAll(strings.ToLower(query), " ", "-"),
		Name:    query,
		Artists: []string{"Test Artist"},
		Artist:  "Test Artist",
	}
}
