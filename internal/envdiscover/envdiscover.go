// Package envdiscover locates the currently active virtual environment.
package envdiscover

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Locate returns the root of the active virtual environment, as advertised
// by the VIRTUAL_ENV variable an activation script exports.
func Locate() (string, error) {
	prefix := os.Getenv("VIRTUAL_ENV")
	if prefix == "" {
		return "", fmt.Errorf("current environment is not a virtual environment (VIRTUAL_ENV not set)")
	}

	info, err := os.Stat(prefix)
	if err != nil {
		return "", fmt.Errorf("VIRTUAL_ENV points at %q: %w", prefix, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("VIRTUAL_ENV points at %q: not a directory", prefix)
	}

	// Sanity-check the expected internal layout before handing the path on.
	binDir := "bin"
	if runtime.GOOS == "windows" {
		binDir = "Scripts"
	}
	if info, err := os.Stat(filepath.Join(prefix, binDir)); err != nil || !info.IsDir() {
		return "", fmt.Errorf("VIRTUAL_ENV points at %q: missing %s directory", prefix, binDir)
	}

	return prefix, nil
}
