package youtube

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"2024.08.06", "2024.8.6", false},
		{"2024.08.06\n", "2024.8.6", false},
		{"2023.12.30.232045", "2023.12.30", false},
		{"nightly", "", true},
		{"2024.aa.01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseVersion(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) failed: %v", tt.raw, err)
			}
			if v.String() != tt.want {
				t.Errorf("ParseVersion(%q) = %s, want %s", tt.raw, v, tt.want)
			}
		})
	}
}

func TestCompareVersion(t *testing.T) {
	if _, err := compareVersion("2024.08.06", "2023.1.6"); err != nil {
		t.Errorf("Expected newer version to pass, got %v", err)
	}
	if _, err := compareVersion("2022.11.11", "2023.1.6"); !errors.Is(err, ErrOutdated) {
		t.Errorf("Expected ErrOutdated, got %v", err)
	}
	if _, err := compareVersion("2022.11.11", ""); err != nil {
		t.Errorf("Expected empty minimum to skip the check, got %v", err)
	}
}
