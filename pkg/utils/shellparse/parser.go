// Package shellparse provides shell-like word splitting that correctly
// handles quoted arguments, spaces, and escapes.
//
// The packer uses it to take interpreter directives and launcher command
// lines apart: a shebang executable path may contain backslash-escaped
// spaces, and option arguments may be quoted.
package shellparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnclosedQuote is returned when a quoted string is not properly closed
	ErrUnclosedQuote = errors.New("unclosed quote in command string")

	// ErrTrailingEscape is returned when a backslash appears at the end of input
	ErrTrailingEscape = errors.New("trailing escape character at end of command")
)

// Split parses a command string into words following POSIX shell splitting
// rules:
//
//   - words are separated by unquoted whitespace
//   - single quotes preserve everything literally
//   - double quotes preserve everything except backslash escapes of ", \, $, `
//   - a backslash outside quotes escapes the next character
//
// An empty input yields an empty slice.
func Split(input string) ([]string, error) {
	var (
		result     []string
		current    strings.Builder
		inSingle   bool
		inDouble   bool
		quotedWord bool // a quoted empty string still forms a word
	)
	runes := []rune(input)

	flush := func() {
		if current.Len() > 0 || quotedWord {
			result = append(result, current.String())
			current.Reset()
			quotedWord = false
		}
	}

	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch {
		case ch == '\\' && !inSingle:
			if i+1 >= len(runes) {
				return nil, ErrTrailingEscape
			}
			i++
			next := runes[i]
			if inDouble && next != '"' && next != '\\' && next != '$' && next != '`' {
				// Not a special char inside double quotes: keep the backslash
				current.WriteRune('\\')
			}
			current.WriteRune(next)

		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			quotedWord = true

		case ch == '"' && !inSingle:
			inDouble = !inDouble
			quotedWord = true

		case unicode.IsSpace(ch) && !inSingle && !inDouble:
			flush()

		default:
			current.WriteRune(ch)
		}
	}

	if inSingle || inDouble {
		kind := "single"
		if inDouble {
			kind = "double"
		}
		return nil, fmt.Errorf("%w: unclosed %s quote", ErrUnclosedQuote, kind)
	}
	flush()

	if result == nil {
		result = []string{}
	}
	return result, nil
}

// Join combines arguments into a shell command string, quoting those that
// need it. It is the inverse of Split for round-trip purposes, not a
// byte-for-byte reconstruction.
func Join(args []string) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

// quote wraps an argument in quotes if it contains special characters.
func quote(arg string) string {
	if arg == "" {
		return "''"
	}

	needsQuote := strings.ContainsAny(arg, `'"\$`+"`") ||
		strings.IndexFunc(arg, unicode.IsSpace) >= 0
	if !needsQuote {
		return arg
	}

	// Single quotes are simplest when the argument has none of its own.
	if !strings.Contains(arg, "'") {
		return "'" + arg + "'"
	}

	var sb strings.Builder
	sb.WriteRune('"')
	for _, ch := range arg {
		if ch == '"' || ch == '\\' || ch == '$' || ch == '`' {
			sb.WriteRune('\\')
		}
		sb.WriteRune(ch)
	}
	sb.WriteRune('"')
	return sb.String()
}
