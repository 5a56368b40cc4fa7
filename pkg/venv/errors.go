package venv

import (
	"errors"
	"fmt"
)

var (
	// Root validation errors, surfaced before any archive I/O begins.
	ErrNoActiveEnv    = errors.New("current environment is not a virtual environment")
	ErrEnvMissing     = errors.New("environment path does not exist")
	ErrNotVirtualEnv  = errors.New("not a valid virtual environment")
	ErrOutputExists   = errors.New("output file already exists")
	ErrUnknownFilter  = errors.New("unknown filter kind")
	ErrEditablePkgs   = errors.New("cannot pack an environment with editable packages installed")
	ErrRelPythonPath  = errors.New("python-prefix must be an absolute path")
	ErrMultiplePython = errors.New("multiple versions of python found in prefix")
	ErrNoPython       = errors.New("no version of python found in prefix")
)

// DanglingSymlinkError reports a non-interpreter symlink whose resolved
// target no longer exists at pack time. Fatal in strict mode; otherwise the
// entry is skipped and recorded as a warning.
type DanglingSymlinkError struct {
	Path   string // path relative to the environment root
	Target string // raw link target
}

func (e *DanglingSymlinkError) Error() string {
	return fmt.Sprintf("symlink %q points at missing target %q", e.Path, e.Target)
}

// RewriteError reports a file that looks like a recognized activation script
// or shebang carrier but whose content cannot be safely patched. Fatal in
// strict mode; falls back to copy-verbatim with a warning otherwise.
type RewriteError struct {
	Path   string
	Reason string
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("cannot rewrite %q: %s", e.Path, e.Reason)
}

// Warning kinds attached to non-fatal per-entry anomalies.
const (
	WarnDanglingSymlink = "dangling-symlink"
	WarnDanglingPython  = "dangling-interpreter-symlink"
	WarnUnknownActivate = "unrecognized-activation-script"
	WarnMissingPython   = "missing-interpreter-symlink"
	WarnSkippedEntry    = "skipped-entry"
)

// Warning is a non-fatal per-entry anomaly recorded during a pack run.
// Every skipped entry produces exactly one warning.
type Warning struct {
	Kind   string
	Path   string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Kind, w.Path, w.Detail)
}
