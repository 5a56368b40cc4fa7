// Package venv implements the core of venvpack: discovery and validation of
// Python virtual environments, and packing them into relocatable archives.
package venv

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Kind identifies which tool created the virtual environment at a prefix.
type Kind string

const (
	KindVenv       Kind = "venv"       // created by the stdlib venv module
	KindVirtualenv Kind = "virtualenv" // created by the virtualenv package
)

var onWin = runtime.GOOS == "windows"

// BinDir returns the launcher directory name for the host platform.
func BinDir() string {
	if onWin {
		return "Scripts"
	}
	return "bin"
}

// Environment is a validated virtual environment ready for packing.
//
// Prefix is absolute, symlink-resolved and carries no trailing separator.
// PyLib and PyInclude are relative to Prefix (e.g. "lib/python3.11").
type Environment struct {
	Prefix     string
	Kind       Kind
	OrigPrefix string
	PyLib      string
	PyInclude  string

	files    []Entry
	excluded []Entry
	warnings []Warning
}

// Discover resolves and validates an environment root and enumerates its
// files. An empty prefix requests auto-detection of the currently active
// environment via the locate collaborator.
func Discover(prefix string, locate func() (string, error)) (*Environment, error) {
	if prefix == "" {
		if locate == nil {
			return nil, ErrNoActiveEnv
		}
		detected, err := locate()
		if err != nil {
			return nil, err
		}
		prefix = detected
	}

	prefix, err := filepath.Abs(prefix)
	if err != nil {
		return nil, fmt.Errorf("resolving prefix: %w", err)
	}
	prefix = filepath.Clean(prefix)

	info, err := os.Stat(prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEnvMissing, prefix)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotVirtualEnv, prefix)
	}

	env, err := checkVenv(prefix)
	if err != nil {
		env, err = checkVirtualenv(prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotVirtualEnv, prefix)
	}

	if err := env.checkNoEditablePackages(); err != nil {
		return nil, err
	}
	env.checkInterpreterLink()

	if err := env.loadFiles(); err != nil {
		return nil, err
	}
	return env, nil
}

// checkVenv recognizes a stdlib venv by its pyvenv.cfg file. The "home" key
// records the directory holding the original interpreter binary, so the
// original installation prefix is its parent.
func checkVenv(prefix string) (*Environment, error) {
	cfg := filepath.Join(prefix, "pyvenv.cfg")
	data, err := os.ReadFile(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: missing pyvenv.cfg", ErrNotVirtualEnv)
	}

	var home string
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.ToLower(strings.TrimSpace(key)) == "home" {
			home = strings.TrimSpace(val)
			break
		}
	}
	if home == "" {
		return nil, fmt.Errorf("%w: pyvenv.cfg has no home key", ErrNotVirtualEnv)
	}

	pyLib, pyInclude, err := findPythonLibInclude(prefix)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Prefix:     prefix,
		Kind:       KindVenv,
		OrigPrefix: filepath.Dir(home),
		PyLib:      pyLib,
		PyInclude:  pyInclude,
	}, nil
}

// checkVirtualenv recognizes a legacy virtualenv by the orig-prefix.txt file
// it records inside the python lib directory.
func checkVirtualenv(prefix string) (*Environment, error) {
	pyLib, pyInclude, err := findPythonLibInclude(prefix)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(prefix, pyLib, "orig-prefix.txt"))
	if err != nil {
		return nil, fmt.Errorf("%w: missing orig-prefix.txt", ErrNotVirtualEnv)
	}

	return &Environment{
		Prefix:     prefix,
		Kind:       KindVirtualenv,
		OrigPrefix: strings.TrimSpace(string(data)),
		PyLib:      pyLib,
		PyInclude:  pyInclude,
	}, nil
}

// findPythonLibInclude locates the versioned python lib and include
// directories relative to the prefix. Exactly one python version must be
// installed in the environment.
func findPythonLibInclude(prefix string) (string, string, error) {
	if onWin {
		return "Lib", "Include", nil
	}

	pythons, err := filepath.Glob(filepath.Join(prefix, "lib", "python*"))
	if err != nil {
		return "", "", err
	}
	if len(pythons) > 1 {
		return "", "", fmt.Errorf("%w: %s", ErrMultiplePython, prefix)
	}
	if len(pythons) == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrNoPython, prefix)
	}

	ver := filepath.Base(pythons[0])
	return filepath.Join("lib", ver), filepath.Join("include", ver), nil
}

// checkNoEditablePackages rejects environments with editable installs
// (pip install -e): their .pth files point outside the prefix and cannot
// survive relocation.
func (env *Environment) checkNoEditablePackages() error {
	pthFiles, err := filepath.Glob(filepath.Join(env.Prefix, env.PyLib, "site-packages", "*.pth"))
	if err != nil {
		return err
	}

	editable := map[string]struct{}{}
	for _, pth := range pthFiles {
		data, err := os.ReadFile(pth)
		if err != nil {
			continue
		}
		dir := filepath.Dir(pth)
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "import") {
				continue
			}
			line = strings.TrimRight(line, " \t\r")
			if line == "" {
				continue
			}
			location := line
			if !filepath.IsAbs(location) {
				location = filepath.Join(dir, location)
			}
			location = filepath.Clean(location)
			if !pathWithin(env.Prefix, location) {
				editable[line] = struct{}{}
			}
		}
	}

	if len(editable) == 0 {
		return nil
	}
	names := make([]string, 0, len(editable))
	for p := range editable {
		names = append(names, p)
	}
	sort.Strings(names)
	return fmt.Errorf("%w:\n- %s", ErrEditablePkgs, strings.Join(names, "\n- "))
}

// checkInterpreterLink warns when the conventional interpreter symlink is
// missing, which usually means the prefix is an extracted copy that was never
// re-linked. The environment is still packable.
func (env *Environment) checkInterpreterLink() {
	if len(env.interpreterLinkNames()) > 0 {
		return
	}
	env.warnings = append(env.warnings, Warning{
		Kind:   WarnMissingPython,
		Path:   filepath.ToSlash(filepath.Join(BinDir(), "python*")),
		Detail: "no interpreter symlink found; environment may be an extracted copy",
	})
}

// interpreterLinkNames returns the names of the python launcher symlinks
// present in the environment's bin directory.
func (env *Environment) interpreterLinkNames() []string {
	entries, err := os.ReadDir(filepath.Join(env.Prefix, BinDir()))
	if err != nil {
		return nil
	}
	var names []string
	for _, ent := range entries {
		if ent.Type()&os.ModeSymlink == 0 {
			continue
		}
		if isInterpreterName(ent.Name()) {
			names = append(names, ent.Name())
		}
	}
	return names
}

// isInterpreterName reports whether a launcher name designates the python
// interpreter itself (python, python3, python3.11, pypy3, ...).
func isInterpreterName(name string) bool {
	if onWin {
		name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	}
	for _, stem := range []string{"python", "pypy"} {
		if rest, ok := strings.CutPrefix(name, stem); ok {
			if rest == "" {
				return true
			}
			return strings.IndexFunc(rest, func(r rune) bool {
				return (r < '0' || r > '9') && r != '.'
			}) < 0
		}
	}
	return false
}

// isInterpreterLink reports whether the relative path designates one of the
// environment's interpreter symlinks.
func (env *Environment) isInterpreterLink(rel string) bool {
	dir, base := filepath.Split(filepath.FromSlash(rel))
	if filepath.Clean(dir) != BinDir() {
		return false
	}
	return isInterpreterName(base)
}

// Name returns the nominal environment name, used as the archive's top-level
// directory.
func (env *Environment) Name() string {
	return filepath.Base(env.Prefix)
}

// InterpreterPaths returns the absolute paths a shebang may reference to
// invoke this environment's interpreter.
func (env *Environment) InterpreterPaths() map[string]struct{} {
	paths := map[string]struct{}{}
	for _, name := range env.interpreterLinkNames() {
		paths[filepath.ToSlash(filepath.Join(env.Prefix, BinDir(), name))] = struct{}{}
	}
	return paths
}

// pathWithin reports whether path lies at or below root. Both must be
// absolute and cleaned.
func pathWithin(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
