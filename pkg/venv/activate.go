package venv

import (
	"path"
	"regexp"
	"strings"
)

// Activation scripts compute almost everything from their own location, but
// the environment root assignment is baked in at creation time with the
// build-time absolute path. Each recognized script gets a fixed patch that
// recomputes the root from the script's own location; the rest of the file
// is left untouched.
type activatePatch struct {
	assignment *regexp.Regexp
	replace    string
}

// The assignment patterns deliberately avoid consuming the trailing \r so
// the original line endings of the batch and powershell variants survive.
var activatePatches = map[string]activatePatch{
	"activate": {
		assignment: regexp.MustCompile(`(?m)^VIRTUAL_ENV=[^\r\n]*`),
		replace:    `VIRTUAL_ENV="$(cd -- "$(dirname -- "${BASH_SOURCE:-$0}")/.." > /dev/null && pwd)"`,
	},
	"activate.csh": {
		assignment: regexp.MustCompile(`(?m)^setenv VIRTUAL_ENV [^\r\n]*`),
		replace: "set _venv_cmd = ($_)\n" +
			"set _venv_bin = `dirname \"$_venv_cmd[2]\"`\n" +
			"setenv VIRTUAL_ENV `cd \"$_venv_bin/..\" && pwd`\n" +
			"unset _venv_bin\n" +
			"unset _venv_cmd",
	},
	"activate.fish": {
		assignment: regexp.MustCompile(`(?m)^set -gx VIRTUAL_ENV [^\r\n]*`),
		replace:    `set -gx VIRTUAL_ENV (cd (dirname (status -f))/..; and pwd)`,
	},
	"Activate.ps1": {
		assignment: regexp.MustCompile(`(?m)^\$env:VIRTUAL_ENV\s*=[^\r\n]*`),
		replace:    `$env:VIRTUAL_ENV = Split-Path -Parent $PSScriptRoot`,
	},
	"activate.bat": {
		assignment: regexp.MustCompile(`(?m)^set "?VIRTUAL_ENV=[^\r\n"]*"?`),
		replace:    `for %%i in ("%~dp0..") do set "VIRTUAL_ENV=%%~fi"`,
	},
}

// isActivationScript reports whether the relative archive name designates a
// recognized activation script.
func (env *Environment) isActivationScript(target string) bool {
	dir, base := path.Split(target)
	if strings.TrimSuffix(dir, "/") != BinDir() {
		return false
	}
	_, ok := activatePatches[base]
	return ok
}

// isUnknownActivate reports an activate-style script in the launcher
// directory that no patch covers. Such scripts are copied verbatim and keep
// whatever root they have baked in.
func (env *Environment) isUnknownActivate(target string) bool {
	dir, base := path.Split(target)
	if strings.TrimSuffix(dir, "/") != BinDir() {
		return false
	}
	if _, ok := activatePatches[base]; ok {
		return false
	}
	return strings.HasPrefix(base, "activate.")
}

// rewriteActivate applies the per-shell patch for a recognized activation
// script. A recognized script that still references the build-time root
// after patching cannot be safely fixed and yields a RewriteError.
func rewriteActivate(target string, data []byte, env *Environment) ([]byte, bool, error) {
	patch, ok := activatePatches[path.Base(target)]
	if !ok {
		return data, false, nil
	}

	text := string(data)
	patched := patch.assignment.ReplaceAllLiteralString(text, patch.replace)

	if strings.Contains(patched, env.Prefix) {
		return data, false, &RewriteError{
			Path:   target,
			Reason: "hardcoded environment root survives patching",
		}
	}
	if patched == text {
		// Nothing to patch: the script is already self-locating.
		return data, false, nil
	}
	return []byte(patched), true, nil
}
