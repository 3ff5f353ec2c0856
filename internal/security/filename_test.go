package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain id passes through",
			input: "ped_042",
			want:  "ped_042",
		},
		{
			name:  "dots and dashes kept",
			input: "cam-3.north",
			want:  "cam-3.north",
		},
		{
			name:  "path separators replaced",
			input: "../../etc/passwd",
			want:  "etc_passwd",
		},
		{
			name:  "runs of junk collapse to one underscore",
			input: "track #7 (rerun)",
			want:  "track_7_rerun",
		},
		{
			name:  "unicode replaced",
			input: "fußgänger",
			want:  "fu_g_nger",
		},
		{
			name:  "empty becomes unknown",
			input: "",
			want:  "unknown",
		},
		{
			name:  "only junk becomes unknown",
			input: "///???",
			want:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SanitizeFilename(long)
	if len(got) > 128 {
		t.Errorf("SanitizeFilename length = %d, want <= 128", len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Errorf("truncated output %q is not a prefix of input", got)
	}
}
