package venv

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestRewriteShebang(t *testing.T) {
	prefix, _ := newVenv(t)
	env := mustDiscover(t, prefix)
	interp := filepath.Join(prefix, "bin", testPyVer)

	body := "import sys\nsys.exit(main())\n"

	tests := []struct {
		name        string
		input       string
		wantChanged bool
	}{
		{
			name:        "environment interpreter",
			input:       "#!" + interp + "\n" + body,
			wantChanged: true,
		},
		{
			name:        "environment interpreter with options",
			input:       "#!" + interp + " -sE\n" + body,
			wantChanged: true,
		},
		{
			name:        "secondary interpreter link",
			input:       "#!" + filepath.Join(prefix, "bin", "python3") + "\n" + body,
			wantChanged: true,
		},
		{
			name:        "system interpreter",
			input:       "#!/usr/bin/python3\n" + body,
			wantChanged: false,
		},
		{
			name:        "env indirection",
			input:       "#!/usr/bin/env python3\n" + body,
			wantChanged: false,
		},
		{
			name:        "prefix match but different file",
			input:       "#!" + filepath.Join(prefix, "bin", "python3-config") + "\n" + body,
			wantChanged: false,
		},
		{
			name:        "no directive",
			input:       body,
			wantChanged: false,
		},
		{
			name:        "empty directive",
			input:       "#!\n" + body,
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed, err := rewriteShebang([]byte(tt.input), env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changed != tt.wantChanged {
				t.Fatalf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if !changed {
				if string(out) != tt.input {
					t.Error("unchanged rewrite altered content")
				}
				return
			}
			text := string(out)
			if !strings.HasPrefix(text, "#!/bin/sh\n") {
				t.Errorf("rewritten script does not start with sh directive: %q", text)
			}
			if !strings.Contains(text, `"$(dirname -- "$0")/`+testPyVer+`"`) &&
				!strings.Contains(text, `"$(dirname -- "$0")/python3"`) {
				t.Errorf("trampoline does not locate interpreter beside script: %q", text)
			}
			if strings.Contains(text, prefix) {
				t.Errorf("build-time prefix survives rewrite: %q", text)
			}
			if !strings.HasSuffix(text, body) {
				t.Errorf("script body not preserved byte for byte: %q", text)
			}
		})
	}
}

func TestRewriteShebangPreservesOptions(t *testing.T) {
	prefix, _ := newVenv(t)
	env := mustDiscover(t, prefix)
	interp := filepath.Join(prefix, "bin", testPyVer)

	out, changed, err := rewriteShebang([]byte("#!"+interp+" -s -E\npass\n"), env)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	lines := strings.SplitN(string(out), "\n", 3)
	want := `'''exec' "$(dirname -- "$0")/` + testPyVer + `" -s -E "$0" "$@"`
	if lines[1] != want {
		t.Errorf("exec line = %q, want %q", lines[1], want)
	}
	if lines[2] != "' '''\npass\n" {
		t.Errorf("closing literal and body = %q", lines[2])
	}
}

func TestRewriteShebangIdempotent(t *testing.T) {
	prefix, _ := newVenv(t)
	env := mustDiscover(t, prefix)
	interp := filepath.Join(prefix, "bin", testPyVer)

	once, changed, err := rewriteShebang([]byte("#!"+interp+"\npass\n"), env)
	if err != nil || !changed {
		t.Fatalf("first pass: changed=%v err=%v", changed, err)
	}
	twice, changed, err := rewriteShebang(once, env)
	if err != nil {
		t.Fatal(err)
	}
	if changed || string(twice) != string(once) {
		t.Error("second pass was not a no-op")
	}
}

func TestRewriteShebangBinaryContent(t *testing.T) {
	prefix, _ := newVenv(t)
	env := mustDiscover(t, prefix)

	longLine := "#!" + strings.Repeat("x", shebangPeekSize) + "\nrest\n"
	withNul := "#!" + filepath.Join(prefix, "bin", testPyVer) + "\x00junk\npass\n"

	for name, input := range map[string]string{
		"first line exceeds peek window": longLine,
		"nul byte in directive":          withNul,
	} {
		out, changed, err := rewriteShebang([]byte(input), env)
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
		if changed || string(out) != input {
			t.Errorf("%s: binary-looking content was modified", name)
		}
	}
}

func TestRewriteShebangMalformedDirective(t *testing.T) {
	prefix, _ := newVenv(t)
	env := mustDiscover(t, prefix)

	// Unclosed quote referencing the environment root cannot be parsed and
	// cannot be shipped as is.
	input := "#!\"" + filepath.Join(prefix, "bin", testPyVer) + "\npass\n"
	_, _, err := rewriteShebang([]byte(input), env)
	var rw *RewriteError
	if !errors.As(err, &rw) {
		t.Fatalf("expected RewriteError, got %v", err)
	}

	// The same malformation without any root reference passes through.
	out, changed, err := rewriteShebang([]byte("#!\"/usr/bin/python3\npass\n"), env)
	if err != nil || changed {
		t.Fatalf("unrelated malformed directive: changed=%v err=%v", changed, err)
	}
	if string(out) != "#!\"/usr/bin/python3\npass\n" {
		t.Error("content altered")
	}
}

func TestHasShebangPrefix(t *testing.T) {
	if !hasShebangPrefix([]byte("#!/bin/sh\n")) {
		t.Error("directive not detected")
	}
	if hasShebangPrefix([]byte("#comment\n")) || hasShebangPrefix(nil) {
		t.Error("false positive")
	}
}
