package venv

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/provide-io/venvpack/pkg/utils/shellparse"
)

// shebangPeekSize bounds how far into a file we look for the first line.
// Anything without a line terminator inside this window is treated as
// binary and copied verbatim.
const shebangPeekSize = 128

// hasShebangPrefix reports whether a bounded peek at the head of a file
// warrants reading it fully for a shebang rewrite.
func hasShebangPrefix(peek []byte) bool {
	return bytes.HasPrefix(peek, []byte("#!"))
}

// rewriteShebang rewrites the interpreter directive at the head of data when
// it points at one of the environment's interpreter paths (exact match, not
// prefix). The first line is replaced with a trampoline that locates the
// interpreter next to the script at execution time:
//
//	#!/bin/sh
//	'''exec' "$(dirname -- "$0")/python3" "$0" "$@"
//	' '''
//
// Line one re-invokes the script through the environment-local interpreter;
// lines two and three are a no-op string literal once python is running it.
// Every byte after the original first line is preserved unchanged.
func rewriteShebang(data []byte, env *Environment) ([]byte, bool, error) {
	if !hasShebangPrefix(data) {
		return data, false, nil
	}

	peek := data
	if len(peek) > shebangPeekSize {
		peek = peek[:shebangPeekSize]
	}
	lineEnd := bytes.IndexByte(peek, '\n')
	if lineEnd < 0 {
		if len(data) >= shebangPeekSize {
			// First line exceeds the bounded read: binary, leave alone.
			return data, false, nil
		}
		lineEnd = len(data)
	}

	line := data[:lineEnd]
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !utf8.Valid(line) || bytes.IndexByte(line, 0) >= 0 {
		return data, false, nil
	}

	fields, err := shellparse.Split(strings.TrimSpace(string(line[2:])))
	if err != nil || len(fields) == 0 {
		if strings.Contains(string(line), env.Prefix) {
			return data, false, &RewriteError{Path: "", Reason: "malformed interpreter directive"}
		}
		return data, false, nil
	}

	exe := fields[0]
	if _, ok := env.InterpreterPaths()[exe]; !ok {
		return data, false, nil
	}

	options := ""
	if len(fields) > 1 {
		options = " " + shellparse.Join(fields[1:])
	}

	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	sb.WriteString(`'''exec' "$(dirname -- "$0")/`)
	sb.WriteString(path.Base(exe))
	sb.WriteString(`"`)
	sb.WriteString(options)
	sb.WriteString(` "$0" "$@"`)
	sb.WriteString("\n' '''")

	out := make([]byte, 0, sb.Len()+len(data)-lineEnd)
	out = append(out, sb.String()...)
	out = append(out, data[lineEnd:]...)
	return out, true, nil
}
