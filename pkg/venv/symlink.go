package venv

import (
	"fmt"
	"os"
	"path/filepath"
)

// Action tags the single transformation applied to an entry. Selection is a
// pure function of the entry's path, kind, target and a bounded content
// peek; traversal order never matters.
type Action int

const (
	ActionCopy Action = iota
	ActionRewriteShebang
	ActionRewriteActivate
	ActionRewriteRecord // pyvenv.cfg / orig-prefix.txt installation records
	ActionPreserveLink
	ActionMaterialize
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionCopy:
		return "copy-verbatim"
	case ActionRewriteShebang:
		return "rewrite-shebang"
	case ActionRewriteActivate:
		return "rewrite-activation-script"
	case ActionRewriteRecord:
		return "rewrite-install-record"
	case ActionPreserveLink:
		return "preserve-symlink"
	case ActionMaterialize:
		return "materialize-symlink-as-copy"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Rule is the decision computed for one entry.
type Rule struct {
	Action     Action
	LinkTarget string   // replacement link target for ActionPreserveLink
	Warning    *Warning // populated for ActionSkip and dangling-interpreter notices
}

// prefixRewrite replaces a build-time path prefix in symlink targets with a
// destination-machine prefix.
type prefixRewrite struct {
	old string
	new string
}

// checkPythonPrefix validates the --python-prefix option and derives the
// link-target rewrites it implies. For a venv only the interpreter links
// need relinking; a virtualenv additionally links lib and include trees out
// of the original installation.
func checkPythonPrefix(pythonPrefix string, env *Environment) (string, []prefixRewrite, error) {
	if pythonPrefix == "" {
		return "", nil, nil
	}
	if !filepath.IsAbs(pythonPrefix) {
		return "", nil, fmt.Errorf("%w: %q", ErrRelPythonPath, pythonPrefix)
	}
	pythonPrefix = filepath.Clean(pythonPrefix)

	if env.Kind == KindVenv {
		exe := filepath.Join(env.OrigPrefix, BinDir(), "python")
		var newExe string
		if onWin {
			newExe = filepath.Join(pythonPrefix, BinDir(), "python")
		} else {
			newExe = filepath.Join(pythonPrefix, BinDir(), filepath.Base(env.PyLib))
		}
		return pythonPrefix, []prefixRewrite{{old: exe, new: newExe}}, nil
	}

	sep := string(filepath.Separator)
	return pythonPrefix, []prefixRewrite{
		{
			old: filepath.Join(env.OrigPrefix, env.PyLib) + sep,
			new: filepath.Join(pythonPrefix, env.PyLib) + sep,
		},
		{
			old: filepath.Join(env.OrigPrefix, env.PyInclude),
			new: filepath.Join(pythonPrefix, env.PyInclude),
		},
	}, nil
}

// resolveSymlink decides, per symlink, whether to preserve it or materialize
// it as a copy. Priority order:
//
//  1. targets being relinked by --python-prefix are preserved with the
//     rewritten target
//  2. the interpreter symlink is preserved pointing at the original system
//     interpreter (the archive never vendors python)
//  3. targets inside the environment are preserved as links relative to the
//     symlink's own directory so they survive extraction anywhere
//  4. anything else would dangle after relocation and is materialized
func resolveSymlink(e Entry, env *Environment, rewrites []prefixRewrite, strict bool) (Rule, error) {
	for _, rw := range rewrites {
		if rest, ok := cutPathPrefix(e.LinkTarget, rw.old); ok {
			return Rule{Action: ActionPreserveLink, LinkTarget: rw.new + rest}, nil
		}
	}

	if env.isInterpreterLink(e.Target) && !withinRoot(e, env) {
		rule := Rule{Action: ActionPreserveLink, LinkTarget: e.LinkTarget}
		if _, err := os.Stat(e.Source); err != nil {
			rule.Warning = &Warning{
				Kind:   WarnDanglingPython,
				Path:   e.Target,
				Detail: fmt.Sprintf("interpreter target %q missing; must exist on the extraction host", e.LinkTarget),
			}
		}
		return rule, nil
	}

	if resolved, ok := resolveWithinRoot(e, env); ok {
		rel, err := filepath.Rel(filepath.Dir(e.Source), resolved)
		if err != nil {
			return Rule{}, fmt.Errorf("relativizing %q: %w", e.Target, err)
		}
		return Rule{Action: ActionPreserveLink, LinkTarget: filepath.ToSlash(rel)}, nil
	}

	// Out-of-root target: a preserved link would dangle on the destination.
	if _, err := os.Stat(e.Source); err != nil {
		dangling := &DanglingSymlinkError{Path: e.Target, Target: e.LinkTarget}
		if strict {
			return Rule{}, dangling
		}
		return Rule{
			Action: ActionSkip,
			Warning: &Warning{
				Kind:   WarnDanglingSymlink,
				Path:   e.Target,
				Detail: dangling.Error(),
			},
		}, nil
	}
	return Rule{Action: ActionMaterialize}, nil
}

// resolveWithinRoot resolves a symlink target against the link's own
// directory and reports whether it stays inside the environment.
func resolveWithinRoot(e Entry, env *Environment) (string, bool) {
	resolved := filepath.FromSlash(e.LinkTarget)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(e.Source), resolved)
	}
	resolved = filepath.Clean(resolved)
	return resolved, pathWithin(env.Prefix, resolved)
}

func withinRoot(e Entry, env *Environment) bool {
	_, ok := resolveWithinRoot(e, env)
	return ok
}

// cutPathPrefix is a plain string prefix cut; rewrite prefixes carry their
// own trailing separators where one is required.
func cutPathPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}
