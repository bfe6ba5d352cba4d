// Package youtube fetches song audio from YouTube through yt-dlp.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// ErrNoResults is returned when a search finds nothing to download.
var ErrNoResults = errors.New("no matching video found")

const progressInterval = 250 * time.Millisecond

// Provider implements models.AudioProvider with yt-dlp.
type Provider struct {
	executable string
	proxy      string
}

// New returns a provider running executable ("yt-dlp" when empty), routing
// traffic through proxy when set.
func New(executable, proxy string) *Provider {
	if executable == "" {
		executable = "yt-dlp"
	}
	return &Provider{executable: executable, proxy: proxy}
}

func (p *Provider) GetInfo() models.ProviderInfo {
	return models.ProviderInfo{ID: "youtube", Name: "YouTube"}
}

func (p *Provider) command() *ytdlp.Command {
	cmd := ytdlp.New().SetExecutable(p.executable)
	if p.proxy != "" {
		cmd.Proxy(p.proxy)
	}
	return cmd
}

// SearchQuery is the text searched for a song.
func SearchQuery(song *models.Song) string {
	return song.DisplayName() + " audio"
}

// Search returns the page URL of the best match for song.
func (p *Provider) Search(ctx context.Context, song *models.Song) (string, error) {
	query := SearchQuery(song)
	res, err := p.command().
		NoPlaylist().
		Print("webpage_url").
		Run(ctx, "ytsearch1:"+query)
	if err != nil {
		return "", fmt.Errorf("yt-dlp search %q: %w", query, err)
	}
	url := firstLine(res.Stdout)
	if url == "" {
		return "", fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	return url, nil
}

// Fetch downloads the best audio stream of url into dir.
func (p *Provider) Fetch(ctx context.Context, url, dir string, hook func(models.NetworkProgress)) (string, error) {
	cmd := p.command().
		Format("bestaudio/best").
		NoPlaylist().
		ForceOverwrites().
		Output(filepath.Join(dir, "%(id)s.%(ext)s"))

	if hook != nil {
		cmd.ProgressFunc(progressInterval, func(u ytdlp.ProgressUpdate) {
			hook(models.NetworkProgress{
				Status:          string(u.Status),
				TotalBytes:      int64(u.TotalBytes),
				DownloadedBytes: int64(u.DownloadedBytes),
			})
		})
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("yt-dlp download %s: %w", url, err)
	}

	if res != nil {
		if info, err := res.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
			if _, err := os.Stat(*info[0].Filename); err == nil {
				return *info[0].Filename, nil
			}
		}
	}
	return newestFile(dir)
}

// newestFile finds the download when yt-dlp did not report a file name.
// The directory is private to one song, so the newest file is the one.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest   string
		newestAt time.Time
	)
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".part") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest, newestAt = filepath.Join(dir, e.Name()), info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("yt-dlp produced no file in %s", dir)
	}
	return newest, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
