package venv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/venvpack/pkg/archive"
)

// PackOptions controls a single pack run.
type PackOptions struct {
	// Output is the archive path. Empty means "<env name>.<format>" in
	// the working directory.
	Output string

	// Format is one of zip, tar.gz, tgz, tar.bz2, tbz2, tar, or "infer"
	// (the default) to derive it from the output extension.
	Format string

	// PythonPrefix, when set, relinks the interpreter against a new
	// installation prefix on the destination machine.
	PythonPrefix string

	// CompressLevel is the tar.gz/tar.bz2 compression level (1-9);
	// zero means the default.
	CompressLevel int

	// ZipSymlinks stores symlink entries in zip archives instead of
	// materializing their targets.
	ZipSymlinks bool

	// Force overwrites an existing archive at the output path.
	Force bool

	// Strict aborts the run on any per-entry anomaly instead of
	// recording a warning and skipping.
	Strict bool

	Logger hclog.Logger
}

// Pack packages the environment into a relocatable archive and returns the
// output path together with the non-fatal warnings collected along the way.
//
// The archive is assembled in a temporary file next to the destination and
// renamed into place only on full success, so an aborted run never leaves a
// partial artifact behind.
func (env *Environment) Pack(opts PackOptions) (string, []Warning, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	format := opts.Format
	if format == "" {
		format = "infer"
	}
	format, err := archive.InferFormat(opts.Output, format)
	if err != nil {
		return "", nil, err
	}

	output := opts.Output
	if output == "" {
		output = env.Name() + "." + format
	}
	if _, err := os.Lstat(output); err == nil && !opts.Force {
		return "", nil, fmt.Errorf("%w: %q", ErrOutputExists, output)
	}

	pythonPrefix, rewrites, err := checkPythonPrefix(opts.PythonPrefix, env)
	if err != nil {
		return "", nil, err
	}

	outputAbs, err := filepath.Abs(output)
	if err != nil {
		return "", nil, err
	}

	p := &packer{
		env:          env,
		opts:         opts,
		format:       format,
		pythonPrefix: pythonPrefix,
		rewrites:     rewrites,
		outputAbs:    outputAbs,
		logger:       logger,
		warnings:     append([]Warning(nil), env.warnings...),
	}

	logger.Info("📦 Packing environment", "prefix", env.Prefix, "output", output, "format", format, "files", len(env.files))

	tmp, err := os.CreateTemp(filepath.Dir(outputAbs), ".venvpack-")
	if err != nil {
		return "", nil, fmt.Errorf("creating temporary archive: %w", err)
	}
	p.tempAbs = tmp.Name()

	if err := p.run(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("closing temporary archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputAbs); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("finalizing archive: %w", err)
	}

	for _, w := range p.warnings {
		logger.Warn("⚠️ "+w.Kind, "path", w.Path, "detail", w.Detail)
	}
	logger.Info("✅ Packed environment", "output", output, "warnings", len(p.warnings))

	return output, p.warnings, nil
}

type packer struct {
	env          *Environment
	opts         PackOptions
	format       string
	pythonPrefix string
	rewrites     []prefixRewrite
	outputAbs    string
	tempAbs      string
	logger       hclog.Logger
	warnings     []Warning
}

// run streams every selected entry into the archive sink in lexical order.
func (p *packer) run(sink io.Writer) error {
	arc, err := archive.New(sink, p.format, archive.Options{
		CompressLevel: p.opts.CompressLevel,
		ZipSymlinks:   p.opts.ZipSymlinks,
	})
	if err != nil {
		return err
	}

	entries := append([]Entry(nil), p.env.files...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Target < entries[j].Target })

	for _, e := range entries {
		// Never pack our own output or scratch file if nested in the root.
		if e.Source == p.outputAbs || e.Source == p.tempAbs {
			continue
		}
		rule, err := p.ruleFor(e)
		if err != nil {
			return err
		}
		if rule.Warning != nil {
			p.warnings = append(p.warnings, *rule.Warning)
		}
		if rule.Action == ActionSkip {
			continue
		}
		p.logger.Trace("adding entry", "target", e.Target, "action", rule.Action.String())
		if err := p.apply(arc, e, rule); err != nil {
			return err
		}
	}

	return arc.Close()
}

// ruleFor selects the single action applied to an entry. The decision
// depends only on the entry's path, kind, link target and a bounded peek at
// its head.
func (p *packer) ruleFor(e Entry) (Rule, error) {
	switch e.Kind {
	case EntrySymlink:
		return resolveSymlink(e, p.env, p.rewrites, p.opts.Strict)
	case EntryDir:
		return Rule{Action: ActionCopy}, nil
	}

	if p.env.isInstallRecord(e.Target) {
		return Rule{Action: ActionRewriteRecord}, nil
	}
	if p.env.isActivationScript(e.Target) {
		return Rule{Action: ActionRewriteActivate}, nil
	}
	if p.env.isUnknownActivate(e.Target) {
		return Rule{Action: ActionCopy, Warning: &Warning{
			Kind:   WarnUnknownActivate,
			Path:   e.Target,
			Detail: "unrecognized activation script variant copied verbatim",
		}}, nil
	}
	if strings.HasPrefix(e.Target, BinDir()+"/") {
		peek, err := readHead(e.Source, shebangPeekSize)
		if err != nil {
			return Rule{}, fmt.Errorf("reading %q: %w", e.Target, err)
		}
		if hasShebangPrefix(peek) {
			return Rule{Action: ActionRewriteShebang}, nil
		}
	}
	return Rule{Action: ActionCopy}, nil
}

// apply performs one entry's transformation and writes exactly one record
// (or, for materialized directory targets, one record per contained file).
func (p *packer) apply(arc archive.Writer, e Entry, rule Rule) error {
	name := p.env.Name() + "/" + e.Target

	switch rule.Action {
	case ActionCopy:
		if e.Kind == EntryDir {
			return arc.WriteDir(name, e.Mode, e.ModTime)
		}
		return p.streamFile(arc, name, e)

	case ActionRewriteShebang:
		data, err := os.ReadFile(e.Source)
		if err != nil {
			return fmt.Errorf("reading %q: %w", e.Target, err)
		}
		out, changed, err := rewriteShebang(data, p.env)
		if err != nil {
			if fallback, ferr := p.rewriteFallback(e, err); ferr != nil {
				return ferr
			} else if fallback {
				out, changed = data, false
			}
		}
		if changed {
			p.logger.Debug("✍️ Rewrote shebang", "target", e.Target)
		}
		return arc.WriteFile(name, e.Mode, e.ModTime, int64(len(out)), bytes.NewReader(out))

	case ActionRewriteActivate:
		data, err := os.ReadFile(e.Source)
		if err != nil {
			return fmt.Errorf("reading %q: %w", e.Target, err)
		}
		out, changed, err := rewriteActivate(e.Target, data, p.env)
		if err != nil {
			if fallback, ferr := p.rewriteFallback(e, err); ferr != nil {
				return ferr
			} else if fallback {
				out = data
			}
		}
		if changed {
			p.logger.Debug("✍️ Patched activation script", "target", e.Target)
		}
		return arc.WriteFile(name, e.Mode, e.ModTime, int64(len(out)), bytes.NewReader(out))

	case ActionRewriteRecord:
		out, err := p.rewriteRecord(e)
		if err != nil {
			return err
		}
		return arc.WriteFile(name, e.Mode, e.ModTime, int64(len(out)), bytes.NewReader(out))

	case ActionPreserveLink:
		if !archive.SupportsSymlinks(p.format, archive.Options{ZipSymlinks: p.opts.ZipSymlinks}) {
			// Zip without symlink entries: store the resolved target's
			// content instead, mirroring what unzip would produce.
			return p.materialize(arc, e)
		}
		return arc.WriteSymlink(name, e.Mode, e.ModTime, rule.LinkTarget)

	case ActionMaterialize:
		return p.materialize(arc, e)
	}

	return fmt.Errorf("unhandled action %s for %q", rule.Action, e.Target)
}

// rewriteFallback decides what a failed rewrite means: fatal in strict
// mode, copy-verbatim plus a warning otherwise. The bool result reports
// whether the caller should fall back to the original bytes.
func (p *packer) rewriteFallback(e Entry, err error) (bool, error) {
	var rw *RewriteError
	if errors.As(err, &rw) {
		rw.Path = e.Target
		if p.opts.Strict {
			return false, rw
		}
		p.warnings = append(p.warnings, Warning{
			Kind:   WarnSkippedEntry,
			Path:   e.Target,
			Detail: "copied verbatim: " + rw.Reason,
		})
		return true, nil
	}
	return false, err
}

// rewriteRecord handles the installation-path records the environment kinds
// carry: pyvenv.cfg for venv, orig-prefix.txt for virtualenv. Without
// --python-prefix they pass through unchanged.
func (p *packer) rewriteRecord(e Entry) ([]byte, error) {
	data, err := os.ReadFile(e.Source)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", e.Target, err)
	}
	if p.pythonPrefix == "" {
		return data, nil
	}
	if p.env.Kind == KindVenv {
		return []byte(strings.ReplaceAll(string(data), p.env.OrigPrefix, p.pythonPrefix)), nil
	}
	return []byte(p.pythonPrefix), nil
}

// isInstallRecord reports whether target is the per-kind installation record.
func (env *Environment) isInstallRecord(target string) bool {
	if env.Kind == KindVenv {
		return target == "pyvenv.cfg"
	}
	return target == filepath.ToSlash(filepath.Join(env.PyLib, "orig-prefix.txt"))
}

// streamFile copies one regular file into the archive without buffering it.
func (p *packer) streamFile(arc archive.Writer, name string, e Entry) error {
	f, err := os.Open(e.Source)
	if err != nil {
		return fmt.Errorf("opening %q: %w", e.Target, err)
	}
	defer f.Close()
	return arc.WriteFile(name, e.Mode, e.ModTime, e.Size, f)
}

// materialize replaces a symlink entry with an independent copy of its
// resolved target. Directory targets are walked and every contained file is
// stored under the link's own name, matching the shape an extraction of the
// followed link would have.
func (p *packer) materialize(arc archive.Writer, e Entry) error {
	info, err := os.Stat(e.Source)
	if err != nil {
		dangling := &DanglingSymlinkError{Path: e.Target, Target: e.LinkTarget}
		if p.opts.Strict {
			return dangling
		}
		p.warnings = append(p.warnings, Warning{
			Kind:   WarnDanglingSymlink,
			Path:   e.Target,
			Detail: dangling.Error(),
		})
		return nil
	}

	name := p.env.Name() + "/" + e.Target
	if info.IsDir() {
		return p.materializeTree(arc, name, e.Source, e)
	}

	f, err := os.Open(e.Source)
	if err != nil {
		return fmt.Errorf("opening target of %q: %w", e.Target, err)
	}
	defer f.Close()
	return arc.WriteFile(name, info.Mode(), info.ModTime(), info.Size(), f)
}

// materializeTree copies a directory target file by file, following nested
// symlinks the way a plain recursive copy would.
func (p *packer) materializeTree(arc archive.Writer, name, dir string, e Entry) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading target of %q: %w", e.Target, err)
	}
	if len(children) == 0 {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		return arc.WriteDir(name, info.Mode(), info.ModTime())
	}
	for _, child := range children {
		childPath := filepath.Join(dir, child.Name())
		info, err := os.Stat(childPath)
		if err != nil {
			dangling := &DanglingSymlinkError{Path: e.Target + "/" + child.Name(), Target: childPath}
			if p.opts.Strict {
				return dangling
			}
			p.warnings = append(p.warnings, Warning{
				Kind:   WarnDanglingSymlink,
				Path:   e.Target + "/" + child.Name(),
				Detail: dangling.Error(),
			})
			continue
		}
		childName := name + "/" + child.Name()
		if info.IsDir() {
			if err := p.materializeTree(arc, childName, childPath, e); err != nil {
				return err
			}
			continue
		}
		f, err := os.Open(childPath)
		if err != nil {
			return fmt.Errorf("opening %q: %w", childPath, err)
		}
		if err := arc.WriteFile(childName, info.Mode(), info.ModTime(), info.Size(), f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	return nil
}

// readHead reads at most n bytes from the start of a file.
func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf[:read], err
}
