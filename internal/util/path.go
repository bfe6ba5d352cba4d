package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	invalidChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	repeatDashes = regexp.MustCompile(`-{2,}`)
	repeatSpaces = regexp.MustCompile(`\s{2,}`)

	reservedNames = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}
)

// ErrEmptyPath is returned when an output directory is not configured.
var ErrEmptyPath = errors.New("path cannot be empty")

// SanitizeFileName removes characters that cannot be used in file names on
// Windows, macOS or Linux. Use it for a single path component.
func SanitizeFileName(name string) string {
	safe := controlChars.ReplaceAllString(name, "")
	safe = invalidChars.ReplaceAllString(safe, "-")
	safe = repeatDashes.ReplaceAllString(safe, "-")
	safe = repeatSpaces.ReplaceAllString(safe, " ")

	// Windows doesn't allow leading or trailing spaces and dots.
	safe = strings.Trim(safe, " .-")

	if reservedNames[strings.ToUpper(safe)] {
		safe += "_"
	}
	return safe
}

// PrepareOutputDir makes sure dir exists, is a directory and is writable,
// creating it if needed. It returns the cleaned absolute path.
func PrepareOutputDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", ErrEmptyPath
	}
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", fmt.Errorf("cannot resolve output path: %w", err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("path exists but is not a directory: %s", abs)
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("cannot access path: %w", err)
	}

	if err := checkWritePermission(abs); err != nil {
		return "", fmt.Errorf("no write permission for output directory: %w", err)
	}
	return abs, nil
}

func checkWritePermission(dir string) error {
	f, err := os.CreateTemp(dir, ".spotdl_write_check")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
