package youtube

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrOutdated is returned when the installed yt-dlp is older than required.
var ErrOutdated = errors.New("yt-dlp is outdated")

// ParseVersion turns a yt-dlp date version such as "2024.08.06" or the
// nightly "2024.08.06.232045" into a semantic version.
func ParseVersion(raw string) (*semver.Version, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) < 3 {
		return nil, fmt.Errorf("unexpected yt-dlp version %q", raw)
	}
	nums := make([]string, 3)
	for i := range nums {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return nil, fmt.Errorf("unexpected yt-dlp version %q: %w", raw, err)
		}
		nums[i] = strconv.Itoa(n)
	}
	return semver.NewVersion(strings.Join(nums, "."))
}

// CheckVersion runs `executable --version` and fails with ErrOutdated when it
// is older than minimum. An empty minimum skips the comparison.
func CheckVersion(ctx context.Context, executable, minimum string) (*semver.Version, error) {
	out, err := exec.CommandContext(ctx, executable, "--version").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run %s --version: %w", executable, err)
	}
	return compareVersion(string(out), minimum)
}

func compareVersion(installed, minimum string) (*semver.Version, error) {
	v, err := ParseVersion(installed)
	if err != nil {
		return nil, err
	}
	if minimum == "" {
		return v, nil
	}
	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum yt-dlp version %q: %w", minimum, err)
	}
	if !constraint.Check(v) {
		return v, fmt.Errorf("%w: have %s, need at least %s", ErrOutdated, v, minimum)
	}
	return v, nil
}
