package envdiscover

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLocate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix environment layout")
	}

	prefix := t.TempDir()
	if err := os.MkdirAll(filepath.Join(prefix, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VIRTUAL_ENV", prefix)
	got, err := Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != prefix {
		t.Errorf("got %q, want %q", got, prefix)
	}
}

func TestLocateUnset(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "")
	if _, err := Locate(); err == nil {
		t.Fatal("expected an error with VIRTUAL_ENV unset")
	}
}

func TestLocateBadTargets(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix environment layout")
	}

	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "gone")
			},
		},
		{
			name: "regular file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "file")
				if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				return path
			},
		},
		{
			name: "no launcher directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VIRTUAL_ENV", tt.setup(t))
			if _, err := Locate(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
