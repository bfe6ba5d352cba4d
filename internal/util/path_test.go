package util

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Rick Astley - Never Gonna Give You Up", "Rick Astley - Never Gonna Give You Up"},
		{"invalid characters", `AC/DC - Who Made Who?`, "AC-DC - Who Made Who"},
		{"control characters", "Song\x00Name\x1f", "SongName"},
		{"trailing dots and spaces", "  Intro...  ", "Intro"},
		{"repeated separators", "A :: B", "A - B"},
		{"reserved windows name", "con", "con_"},
		{"only invalid characters", `<>:"|?*`, ""},
		{"unicode is kept", "Sigur Rós - Hoppípolla", "Sigur Rós - Hoppípolla"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPrepareOutputDir(t *testing.T) {
	base := t.TempDir()

	t.Run("creates missing nested directory", func(t *testing.T) {
		target := filepath.Join(base, "music", "playlists")
		got, err := PrepareOutputDir(target)
		if err != nil {
			t.Fatalf("PrepareOutputDir failed: %v", err)
		}
		if info, err := os.Stat(got); err != nil || !info.IsDir() {
			t.Errorf("Expected %s to be a directory", got)
		}
	})

	t.Run("existing directory leaves no probe file", func(t *testing.T) {
		got, err := PrepareOutputDir(base)
		if err != nil {
			t.Fatalf("PrepareOutputDir failed: %v", err)
		}
		entries, _ := os.ReadDir(got)
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".spotdl_write_check") {
				t.Errorf("Unexpected leftover file %s", e.Name())
			}
		}
	})

	t.Run("file in the way", func(t *testing.T) {
		file := filepath.Join(base, "not-a-dir")
		if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := PrepareOutputDir(file); err == nil {
			t.Error("Expected error for a regular file")
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := PrepareOutputDir("  "); !errors.Is(err, ErrEmptyPath) {
			t.Errorf("Expected ErrEmptyPath, got %v", err)
		}
	})
}
