// Package ffmpeg transcodes fetched audio and embeds song metadata and
// cover art by driving the ffmpeg binary.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// ErrUnsupportedFormat is returned for an output format without a codec.
var ErrUnsupportedFormat = errors.New("unsupported output format")

var codecs = map[string]string{
	"mp3":  "libmp3lame",
	"flac": "flac",
	"ogg":  "libvorbis",
	"opus": "libopus",
	"m4a":  "aac",
	"wav":  "pcm_s16le",
}

// Lossless formats ignore the bitrate.
var lossless = map[string]bool{"flac": true, "wav": true}

// Formats whose muxer stores an attached picture.
var coverArt = map[string]bool{"mp3": true, "m4a": true, "flac": true}

// Converter implements models.Converter.
type Converter struct {
	executable string
}

// New returns a converter running executable ("ffmpeg" when empty).
func New(executable string) *Converter {
	if executable == "" {
		executable = "ffmpeg"
	}
	return &Converter{executable: executable}
}

// Convert runs ffmpeg and reports its progress as a 0-100 percentage of
// the song duration. A cover that ffmpeg cannot read does not fail the
// song; the conversion is retried without it.
func (c *Converter) Convert(ctx context.Context, req models.ConvertRequest, hook func(percent int)) error {
	err := c.run(ctx, req, hook)
	if err == nil || !hasCover(req) || ctx.Err() != nil {
		return err
	}
	log.FromContext(ctx).WithPrefix("ffmpeg").Warn("embedding cover failed, converting without it",
		"song", req.Song.DisplayName(), "cover", req.Song.CoverURL, "err", err)
	return c.run(ctx, withoutCover(req), hook)
}

func (c *Converter) run(ctx context.Context, req models.ConvertRequest, hook func(percent int)) error {
	args, err := BuildArgs(req)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, c.executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	duration := 0
	if req.Song != nil {
		duration = req.Song.Duration
	}
	scanProgress(stdout, duration, hook)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, lastLines(stderr.String(), 5))
	}
	return nil
}

func scanProgress(r io.Reader, duration int, hook func(int)) {
	scanner := bufio.NewScanner(r)
	last := -1
	for scanner.Scan() {
		pct, ok := ParseProgress(scanner.Text(), duration)
		if !ok || pct == last || hook == nil {
			continue
		}
		last = pct
		hook(pct)
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// ParseProgress reads one line of ffmpeg's -progress output. It returns the
// percentage of durationSec converted so far; "progress=end" is 100.
func ParseProgress(line string, durationSec int) (int, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "progress":
		if value == "end" {
			return 100, true
		}
		return 0, false
	case "out_time_us", "out_time_ms":
		// Both are microseconds despite the name.
		if durationSec <= 0 {
			return 0, false
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		pct := int(us * 100 / (int64(durationSec) * 1_000_000))
		return min(pct, 100), true
	}
	return 0, false
}

// BuildArgs returns the ffmpeg arguments for req.
func BuildArgs(req models.ConvertRequest) ([]string, error) {
	codec, ok := codecs[req.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}

	args := []string{"-y", "-hide_banner", "-nostats", "-loglevel", "error", "-i", req.Input}
	if hasCover(req) {
		args = append(args, "-i", req.Song.CoverURL,
			"-map", "0:a", "-map", "1:v", "-c:v", "copy", "-disposition:v", "attached_pic")
	} else {
		args = append(args, "-vn")
	}
	args = append(args, "-map_metadata", "-1", "-c:a", codec)
	if req.Bitrate != "" && !lossless[req.Format] {
		args = append(args, "-b:a", req.Bitrate)
	}
	if req.Format == "mp3" {
		args = append(args, "-id3v2_version", "3")
		if hasCover(req) {
			args = append(args, "-metadata:s:v", "title=Album cover", "-metadata:s:v", "comment=Cover (front)")
		}
	}
	for _, kv := range metadata(req.Song) {
		args = append(args, "-metadata", kv)
	}
	args = append(args, "-progress", "pipe:1", "-f", muxer(req.Format), req.Output)
	return args, nil
}

func hasCover(req models.ConvertRequest) bool {
	return req.Song != nil && req.Song.CoverURL != "" && coverArt[req.Format]
}

func withoutCover(req models.ConvertRequest) models.ConvertRequest {
	song := *req.Song
	song.CoverURL = ""
	req.Song = &song
	return req
}

func muxer(format string) string {
	if format == "m4a" {
		return "ipod"
	}
	return format
}

func metadata(song *models.Song) []string {
	if song == nil {
		return nil
	}
	var kv []string
	add := func(key, value string) {
		if value != "" {
			kv = append(kv, key+"="+value)
		}
	}
	add("title", song.Name)
	add("artist", strings.Join(song.Artists, "/"))
	add("album", song.AlbumName)
	add("album_artist", song.AlbumArtist)
	add("date", song.Date)
	if song.TrackNumber > 0 {
		track := strconv.Itoa(song.TrackNumber)
		if song.TracksCount > 0 {
			track += "/" + strconv.Itoa(song.TracksCount)
		}
		add("track", track)
	}
	if song.DiscNumber > 0 {
		add("disc", strconv.Itoa(song.DiscNumber))
	}
	add("isrc", song.ISRC)
	add("comment", song.URL)
	return kv
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
