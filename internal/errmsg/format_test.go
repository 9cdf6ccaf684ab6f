//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpLastfmScrobble,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpLastfmScrobble,
			err:      errors.New("connection refused"),
			expected: "Failed to scrobble: connection refused",
		},
		{
			name:     "presence operation",
			op:       OpPresenceConnect,
			err:      errors.New("no socket"),
			expected: "Failed to connect to Discord: no socket",
		},
		{
			name:     "media operation",
			op:       OpMediaQuery,
			err:      errors.New("bus closed"),
			expected: "Failed to query media player: bus closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpArtworkUpload,
			context:  "catbox",
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with context",
			op:       OpArtworkUpload,
			context:  "catbox",
			err:      errors.New("status 500"),
			expected: "Failed to upload artwork 'catbox': status 500",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpArtworkUpload,
			context:  "",
			err:      errors.New("status 500"),
			expected: "Failed to upload artwork: status 500",
		},
		{
			name:     "config with path context",
			op:       OpConfigLoad,
			context:  "/home/user/.config/listenbridge/config.toml",
			err:      errors.New("invalid toml"),
			expected: "Failed to load config '/home/user/.config/listenbridge/config.toml': invalid toml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	if got := Status(nil); got != "" {
		t.Errorf("Status(nil) = %q, want empty", got)
	}
	if got := Status(errors.New("boom")); got != "Error: boom" {
		t.Errorf("Status = %q, want %q", got, "Error: boom")
	}
}

func TestOpConstants(t *testing.T) {
	ops := []Op{
		OpMediaQuery,
		OpPresenceConnect, OpPresenceUpdate, OpPresenceClear,
		OpLastfmAuth, OpLastfmScrobble, OpLastfmNowPlaying, OpLastfmLookup,
		OpCatalogSearch, OpArtworkUpload, OpArtworkPrepare,
		OpConfigLoad, OpConfigReload, OpStateOpen,
		OpHistorySave, OpHistoryLoad, OpStatsRecord, OpStatsLoad,
		OpInitialize,
	}

	testErr := errors.New("test error")

	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			if op == "" {
				t.Error("Op constant should not be empty")
			}

			expected := "Failed to " + string(op) + ": test error"
			if result := Format(op, testErr); result != expected {
				t.Errorf("Format = %q, want %q", result, expected)
			}
		})
	}
}
