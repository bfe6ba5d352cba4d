// A mock audio provider for development and testing purposes. It simulates
// searching, downloading and converting without network calls or external
// binaries.
package mocktube

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

const (
	baseURL   = "https://mocktube.test/watch"
	fileBytes = 1001
)

// Provider implements models.AudioProvider and models.Converter.
type Provider struct {
	delay time.Duration

	mu          sync.Mutex
	searchFails map[string]error
	fetchFails  map[string]error
	panics      map[string]bool
	fetched     []string
}

// Option configures a Provider.
type Option func(*Provider)

// WithDelay sleeps between simulated progress steps.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithSearchError makes Search fail for the song with id.
func WithSearchError(id string, err error) Option {
	return func(p *Provider) { p.searchFails[id] = err }
}

// WithFetchError makes Fetch fail halfway for the song with id.
func WithFetchError(id string, err error) Option {
	return func(p *Provider) { p.fetchFails[id] = err }
}

// WithConvertPanic makes Convert panic for the song with id.
func WithConvertPanic(id string) Option {
	return func(p *Provider) { p.panics[id] = true }
}

func New(opts ...Option) *Provider {
	p := &Provider{
		searchFails: map[string]error{},
		fetchFails:  map[string]error{},
		panics:      map[string]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) GetInfo() models.ProviderInfo {
	return models.ProviderInfo{ID: "mocktube", Name: "MockTube"}
}

// Fetched returns the ids fetched so far, in call order.
func (p *Provider) Fetched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fetched...)
}

func (p *Provider) Search(ctx context.Context, song *models.Song) (string, error) {
	if err := p.searchFails[song.ID]; err != nil {
		return "", err
	}
	return URLFor(song.ID), nil
}

// URLFor is the download URL Search returns for a song id.
func URLFor(id string) string {
	return baseURL + "?v=" + url.QueryEscape(id)
}

func (p *Provider) Fetch(ctx context.Context, rawURL, dir string, hook func(models.NetworkProgress)) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	id := u.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("mocktube: no video id in %q", rawURL)
	}

	p.mu.Lock()
	p.fetched = append(p.fetched, id)
	p.mu.Unlock()

	for _, done := range []int64{250, 500, 750, fileBytes} {
		if err := p.wait(ctx); err != nil {
			return "", err
		}
		if done >= fileBytes/2 {
			if err := p.fetchFails[id]; err != nil {
				return "", err
			}
		}
		if hook != nil {
			hook(models.NetworkProgress{Status: "downloading", TotalBytes: fileBytes, DownloadedBytes: done})
		}
	}
	if hook != nil {
		hook(models.NetworkProgress{Status: "finished", TotalBytes: fileBytes, DownloadedBytes: fileBytes})
	}

	path := filepath.Join(dir, id+".webm")
	if err := os.WriteFile(path, make([]byte, fileBytes), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Provider) Convert(ctx context.Context, req models.ConvertRequest, hook func(percent int)) error {
	if _, err := os.Stat(req.Input); err != nil {
		return fmt.Errorf("mocktube: missing input: %w", err)
	}
	if req.Song != nil && p.panics[req.Song.ID] {
		panic("mocktube: converter crashed on " + req.Song.ID)
	}

	for _, pct := range []int{10, 33, 66, 100} {
		if err := p.wait(ctx); err != nil {
			return err
		}
		if hook != nil {
			hook(pct)
		}
	}

	title, artist := "", ""
	if req.Song != nil {
		title, artist = req.Song.Name, strings.Join(req.Song.Artists, ", ")
	}
	return os.WriteFile(req.Output, TaggedAudio(title, artist), 0o644)
}

func (p *Provider) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay):
		return nil
	}
}

// TaggedAudio returns bytes holding an ID3v2.3 tag with title and artist
// followed by some silence, enough for tag readers to identify the song.
func TaggedAudio(title, artist string) []byte {
	var frames bytes.Buffer
	writeTextFrame(&frames, "TIT2", title)
	writeTextFrame(&frames, "TPE1", artist)

	var buf bytes.Buffer
	buf.WriteString("ID3")
	buf.Write([]byte{3, 0, 0})
	buf.Write(synchsafe(uint32(frames.Len())))
	buf.Write(frames.Bytes())
	buf.Write(make([]byte, 128))
	return buf.Bytes()
}

func writeTextFrame(buf *bytes.Buffer, id, text string) {
	buf.WriteString(id)
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(text)+1))
	buf.Write(size)
	buf.Write([]byte{0, 0}) // flags
	buf.WriteByte(0)        // ISO-8859-1
	buf.WriteString(text)
}

func synchsafe(n uint32) []byte {
	return []byte{
		byte(n>>21) & 0x7f,
		byte(n>>14) & 0x7f,
		byte(n>>7) & 0x7f,
		byte(n) & 0x7f,
	}
}
