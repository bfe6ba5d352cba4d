package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers/mocktube"
)

// CreateTestMP3 writes a file holding an ID3v2.3 tag with the given title
// and artist. It's useful for testing skip detection of existing downloads.
func CreateTestMP3(t *testing.T, dir, name, title, artist string) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, mocktube.TaggedAudio(title, artist), 0o644); err != nil {
		t.Fatalf("Failed to create test mp3 file: %v", err)
	}
	return filePath
}
