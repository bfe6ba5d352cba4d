package downloader

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// alreadyDownloaded reports whether path holds song. A file whose tags
// cannot be read is trusted by name; one tagged with another title is not.
func (d *Downloader) alreadyDownloaded(ctx context.Context, path string, song *models.Song) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		log.FromContext(ctx).WithPrefix("downloader").Debug("existing file has no readable tags", "path", path, "err", err)
		return true
	}
	return m.Title() == "" || strings.EqualFold(strings.TrimSpace(m.Title()), strings.TrimSpace(song.Name))
}
