package shellparse

import (
	"errors"
	"testing"
)

func TestSplit_Basic(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
		{
			name:     "single word",
			input:    "/usr/bin/python3",
			expected: []string{"/usr/bin/python3"},
		},
		{
			name:     "interpreter with option",
			input:    "/opt/env/bin/python3 -sE",
			expected: []string{"/opt/env/bin/python3", "-sE"},
		},
		{
			name:     "multiple words",
			input:    "python3 -I -W ignore",
			expected: []string{"python3", "-I", "-W", "ignore"},
		},
		{
			name:     "leading spaces",
			input:    "  python3 -s",
			expected: []string{"python3", "-s"},
		},
		{
			name:     "trailing spaces",
			input:    "python3 -s  ",
			expected: []string{"python3", "-s"},
		},
		{
			name:     "multiple spaces between words",
			input:    "python3   -s    -E",
			expected: []string{"python3", "-s", "-E"},
		},
		{
			name:     "tabs and spaces",
			input:    "python3\t-s\t  -E",
			expected: []string{"python3", "-s", "-E"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Split(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertEqual(t, result, tt.expected)
		})
	}
}

func TestSplit_Quoting(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "double quoted argument",
			input:    `python3 "with space"`,
			expected: []string{"python3", "with space"},
		},
		{
			name:     "single quoted argument",
			input:    `python3 'with space'`,
			expected: []string{"python3", "with space"},
		},
		{
			name:     "quoted path",
			input:    `"/opt/my env/bin/python3" -s`,
			expected: []string{"/opt/my env/bin/python3", "-s"},
		},
		{
			name:     "empty double quotes form a word",
			input:    `cmd "" tail`,
			expected: []string{"cmd", "", "tail"},
		},
		{
			name:     "empty single quotes form a word",
			input:    `cmd '' tail`,
			expected: []string{"cmd", "", "tail"},
		},
		{
			name:     "adjacent quoted and unquoted",
			input:    `py"thon"3`,
			expected: []string{"python3"},
		},
		{
			name:     "single quotes preserve backslash",
			input:    `cmd 'a\nb'`,
			expected: []string{"cmd", `a\nb`},
		},
		{
			name:     "double quotes preserve unknown escapes",
			input:    `cmd "a\nb"`,
			expected: []string{"cmd", `a\nb`},
		},
		{
			name:     "escaped double quote inside double quotes",
			input:    `cmd "say \"hi\""`,
			expected: []string{"cmd", `say "hi"`},
		},
		{
			name:     "escaped space outside quotes",
			input:    `/opt/my\ env/bin/python3`,
			expected: []string{"/opt/my env/bin/python3"},
		},
		{
			name:     "escaped backslash",
			input:    `cmd a\\b`,
			expected: []string{"cmd", `a\b`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Split(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertEqual(t, result, tt.expected)
		})
	}
}

func TestSplit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "unclosed double quote",
			input:   `cmd "unterminated`,
			wantErr: ErrUnclosedQuote,
		},
		{
			name:    "unclosed single quote",
			input:   `cmd 'unterminated`,
			wantErr: ErrUnclosedQuote,
		},
		{
			name:    "trailing backslash",
			input:   `cmd arg\`,
			wantErr: ErrTrailingEscape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "no args",
			args:     nil,
			expected: "",
		},
		{
			name:     "plain words",
			args:     []string{"python3", "-sE"},
			expected: "python3 -sE",
		},
		{
			name:     "word with space",
			args:     []string{"python3", "with space"},
			expected: "python3 'with space'",
		},
		{
			name:     "empty argument",
			args:     []string{"cmd", ""},
			expected: "cmd ''",
		},
		{
			name:     "argument with single quote",
			args:     []string{"it's"},
			expected: `"it's"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Join(tt.args)
			if got != tt.expected {
				t.Fatalf("Join(%q) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	cases := [][]string{
		{"/opt/env/bin/python3", "-sE"},
		{"python3", "with space", "-W", "ignore"},
		{"cmd", "", "tail"},
		{"cmd", `back\slash`, `quo"te`},
	}

	for _, args := range cases {
		joined := Join(args)
		split, err := Split(joined)
		if err != nil {
			t.Fatalf("Split(%q) returned error: %v", joined, err)
		}
		assertEqual(t, split, args)
	}
}

func assertEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d words %q, want %d words %q", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("word %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
