package storage

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildStorageKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := uuid.MustParse("0123abcd-4567-89ef-0123-456789abcdef")

	tests := []struct {
		name         string
		originalName string
		mimeType     string
		want         string
	}{
		{"keeps safe extension", "My Song.MP3", "audio/mpeg", "1700000000123-0123abcd4567.mp3"},
		{"strips directories", "../../etc/passwd.wav", "audio/wav", "1700000000123-0123abcd4567.wav"},
		{"windows path", `C:\music\track.flac`, "audio/flac", "1700000000123-0123abcd4567.flac"},
		{"falls back to mime", "noext", "audio/ogg", "1700000000123-0123abcd4567.ogg"},
		{"rejects odd extension", "x.m p3", "audio/mpeg", "1700000000123-0123abcd4567.mp3"},
		{"rejects long extension", "x.averyverylongext", "audio/unknown", "1700000000123-0123abcd4567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildStorageKey(now, id, tt.originalName, tt.mimeType)
			if got != tt.want {
				t.Errorf("buildStorageKey() = %q, want %q", got, tt.want)
			}
			if err := ValidateKey(got); err != nil {
				t.Errorf("generated key %q does not validate: %v", got, err)
			}
		})
	}
}

func TestNewStorageKey_Unique(t *testing.T) {
	shape := regexp.MustCompile(`^\d+-[0-9a-f]{12}\.mp3$`)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		k := NewStorageKey("a.mp3", "audio/mpeg")
		if !shape.MatchString(k) {
			t.Fatalf("key %q has unexpected shape", k)
		}
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestValidateKey(t *testing.T) {
	bad := []string{"", ".hidden", "../x", "a/b", `a\b`, "a..b", "a b", strings.Repeat("a", 129)}
	for _, k := range bad {
		if err := ValidateKey(k); err == nil {
			t.Errorf("ValidateKey(%q) = nil, want error", k)
		}
	}
	if err := ValidateKey("1700000000123-0123abcd4567.mp3"); err != nil {
		t.Errorf("ValidateKey(valid) = %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.00 KB",
		1536:    "1.50 KB",
		5 << 20: "5.00 MB",
	}
	for in, want := range cases {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
