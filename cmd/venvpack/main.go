package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/provide-io/venvpack/pkg"
	"github.com/provide-io/venvpack/pkg/archive"
	"github.com/provide-io/venvpack/pkg/logging"
	"github.com/provide-io/venvpack/pkg/venv"
)

const version = "0.2.0"

// Exit codes. Archive warnings in non-strict mode still exit 0; the
// warnings are reported on stderr.
const (
	exitOK         = 0
	exitValidation = 1
	exitFatalIO    = 2
)

var (
	prefixPath    string
	outputPath    string
	formatName    string
	pythonPrefix  string
	compressLevel int
	zipSymlinks   bool
	force         bool
	strict        bool
	quiet         bool
	logLevel      string
	versionFlag   bool
	filters       []venv.Filter
	rootCmd       *cobra.Command
)

// filterFlag appends include/exclude patterns into one ordered list so the
// filters apply in the order given on the command line.
type filterFlag struct {
	kind string
}

func (f *filterFlag) String() string { return "" }
func (f *filterFlag) Type() string   { return "pattern" }
func (f *filterFlag) Set(v string) error {
	filters = append(filters, venv.Filter{Kind: f.kind, Pattern: v})
	return nil
}

func getBuildTimestamp() string {
	// Try to get vcs.time from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "venvpack",
		Short: "Package a virtual environment into a relocatable archive",
		Long: `Package an existing Python virtual environment (venv or virtualenv)
into a relocatable archive that can be extracted and used at any path on
another machine of the same OS family.`,
		Run: runPack,
	}

	rootCmd.Flags().StringVarP(&prefixPath, "prefix", "p", "", "Path to the environment to pack (default: the active environment)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output archive path (default: <env name>.tar.gz)")
	rootCmd.Flags().StringVar(&formatName, "format", "infer", "Archive format: infer, zip, tar.gz, tgz, tar.bz2, tbz2, tar")
	rootCmd.Flags().StringVar(&pythonPrefix, "python-prefix", "", "New prefix path for linking python in the packed environment")
	rootCmd.Flags().IntVar(&compressLevel, "compress-level", archive.DefaultCompressLevel, "Compression level (1-9) for tar archives")
	rootCmd.Flags().BoolVar(&zipSymlinks, "zip-symlinks", false, "Store symlink entries in zip archives instead of copies")
	rootCmd.Flags().BoolVar(&force, "force", false, "Overwrite any existing archive at the output path")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Abort on any per-entry anomaly instead of skipping with a warning")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not report progress")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")
	rootCmd.Flags().Var(&filterFlag{kind: "exclude"}, "exclude", "Exclude files matching this pattern (may repeat)")
	rootCmd.Flags().Var(&filterFlag{kind: "include"}, "include", "Re-add excluded files matching this pattern (may repeat)")
}

func main() {
	// Handle --version or -V before cobra parses other flags
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("venvpack %s\n", version)
		fmt.Printf("Built: %s\n", getBuildTimestamp())
		os.Exit(exitOK)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitValidation)
	}
}

func runPack(cmd *cobra.Command, args []string) {
	if versionFlag {
		fmt.Printf("venvpack %s\n", version)
		fmt.Printf("Built: %s\n", getBuildTimestamp())
		return
	}

	level := logLevel
	if level == "" {
		level = logging.GetLogLevel()
	}
	logger := logging.NewLogger("venvpack", level, nil)

	out, warnings, err := pkg.Pack(prefixPath, filters, venv.PackOptions{
		Output:        outputPath,
		Format:        formatName,
		PythonPrefix:  pythonPrefix,
		CompressLevel: compressLevel,
		ZipSymlinks:   zipSymlinks,
		Force:         force,
		Strict:        strict,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("❌ Packing failed", "error", err)
		fmt.Fprintf(os.Stderr, "VenvPackError: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	if !quiet {
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		fmt.Println(out)
	}
}

// exitCodeFor maps the error taxonomy onto process exit codes: validation
// failures surface before any archive I/O, everything else is an I/O or
// rewrite failure discovered mid-stream.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, venv.ErrEnvMissing),
		errors.Is(err, venv.ErrNotVirtualEnv),
		errors.Is(err, venv.ErrNoActiveEnv),
		errors.Is(err, venv.ErrOutputExists),
		errors.Is(err, venv.ErrEditablePkgs),
		errors.Is(err, venv.ErrRelPythonPath),
		errors.Is(err, venv.ErrUnknownFilter),
		errors.Is(err, archive.ErrUnknownFormat),
		errors.Is(err, archive.ErrUnknownExtension):
		return exitValidation
	default:
		return exitFatalIO
	}
}
