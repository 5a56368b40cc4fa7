package venv

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// EntryKind classifies one filesystem object found under the environment
// root.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDir
	EntrySymlink
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDir:
		return "directory"
	case EntrySymlink:
		return "symlink"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is a single archive record discovered during traversal.
//
// Target is the archive-internal name relative to the prefix, always using
// forward slashes. LinkTarget holds the raw, unresolved readlink value for
// symlinks.
type Entry struct {
	Source     string
	Target     string
	Kind       EntryKind
	Mode       fs.FileMode
	Size       int64
	ModTime    time.Time
	LinkTarget string
}

// alwaysDropped is the fixed deny list evaluated before any other
// classification. Editor backup files and Finder droppings have no place in
// a relocatable archive; bytecode caches are rebuilt on first import.
func alwaysDropped(name string, isDir bool) bool {
	if isDir {
		return name == "__pycache__"
	}
	return strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".DS_STORE")
}

// loadFiles enumerates every object under the prefix in lexical order.
// Symlinks are never followed; empty directories are kept.
func (env *Environment) loadFiles() error {
	var entries []Entry

	err := filepath.WalkDir(env.Prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == env.Prefix {
			return nil
		}

		rel, err := filepath.Rel(env.Prefix, path)
		if err != nil {
			return err
		}
		target := filepath.ToSlash(rel)

		if alwaysDropped(d.Name(), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info() // lstat, not stat
		if err != nil {
			return err
		}

		entry := Entry{
			Source:  path,
			Target:  target,
			Mode:    info.Mode(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			entry.Kind = EntrySymlink
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entry.LinkTarget = link
		case info.IsDir():
			entry.Kind = EntryDir
		default:
			entry.Kind = EntryFile
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking environment: %w", err)
	}

	env.files = entries
	return nil
}

// Files returns the entries currently selected for packing, in lexical
// order by archive name.
func (env *Environment) Files() []Entry {
	return env.files
}

// Exclude returns a new environment with all entries matching pattern
// removed. Patterns use shell-style wildcards where `*` crosses path
// separators, applied against the slash-separated relative name.
func (env *Environment) Exclude(pattern string) *Environment {
	re := compilePattern(pattern)
	out := env.copyShallow()
	for _, f := range env.files {
		if re.MatchString(f.Target) {
			out.excluded = append(out.excluded, f)
		} else {
			out.files = append(out.files, f)
		}
	}
	return out
}

// Include returns a new environment with previously excluded entries
// matching pattern restored.
func (env *Environment) Include(pattern string) *Environment {
	re := compilePattern(pattern)
	out := env.copyShallow()
	out.excluded = nil
	out.files = append(out.files, env.files...)
	for _, f := range env.excluded {
		if re.MatchString(f.Target) {
			out.files = append(out.files, f)
		} else {
			out.excluded = append(out.excluded, f)
		}
	}
	return out
}

// Filter is one include/exclude pattern applied during environment loading.
type Filter struct {
	Kind    string // "exclude" or "include"
	Pattern string
}

// ApplyFilters applies filters in caller order, mirroring the CLI surface.
func (env *Environment) ApplyFilters(filters []Filter) (*Environment, error) {
	for _, f := range filters {
		switch f.Kind {
		case "exclude":
			env = env.Exclude(f.Pattern)
		case "include":
			env = env.Include(f.Pattern)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, f.Kind)
		}
	}
	return env, nil
}

func (env *Environment) copyShallow() *Environment {
	out := *env
	out.files = nil
	out.excluded = append([]Entry(nil), env.excluded...)
	return &out
}

// matchPattern implements fnmatch-style matching: `*` and `?` match any
// characters including path separators, and the pattern must cover the whole
// name.
func matchPattern(name, pattern string) bool {
	return compilePattern(pattern).MatchString(name)
}

func compilePattern(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString(`\A`)
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`\z`)
	return regexp.MustCompile(sb.String())
}
