// Package logging configures the hclog loggers used by venvpack.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// NewLogger creates a new hclog logger with standard settings.
//
// The level string may carry a "json" or "json:<level>" prefix to request
// JSON output (setting VENVPACK_JSON_LOG=1 has the same effect). When
// VENVPACK_LOG_PATH is set, output is appended to that file instead of
// stderr.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	jsonFormat := os.Getenv("VENVPACK_JSON_LOG") == "1"

	actualLevel := level
	if strings.HasPrefix(level, "json") {
		jsonFormat = true
		if _, rest, ok := strings.Cut(level, ":"); ok {
			actualLevel = rest
		} else {
			actualLevel = "info"
		}
	}

	if output == nil {
		output = os.Stderr
		if logPath := os.Getenv("VENVPACK_LOG_PATH"); logPath != "" {
			if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				output = file
			}
		}
	}

	// Add prefix for non-JSON output
	if !jsonFormat {
		output = NewPrefixWriter("🐍 ", output)
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(actualLevel),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts)
}

// GetLogLevel returns the configured log level from environment
func GetLogLevel() string {
	level := os.Getenv("VENVPACK_LOG_LEVEL")
	if level == "" {
		level = "warn" // Default to warn for production safety
	}
	return level
}
