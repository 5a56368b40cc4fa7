package logging

import (
	"bytes"
	"io"
)

// PrefixWriter wraps an io.Writer and prepends a prefix to every line.
// Partial lines are buffered until their terminating newline arrives.
type PrefixWriter struct {
	prefix  []byte
	writer  io.Writer
	pending bytes.Buffer
}

// NewPrefixWriter creates a new PrefixWriter.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{prefix: []byte(prefix), writer: w}
}

// Write implements io.Writer. Complete lines are flushed to the underlying
// writer with the prefix applied; an unterminated tail stays buffered.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.pending.Write(p)

	for {
		buf := pw.pending.Bytes()
		nl := bytes.IndexByte(buf, '\n')
		if nl < 0 {
			break
		}
		if _, err := pw.writer.Write(pw.prefix); err != nil {
			return 0, err
		}
		if _, err := pw.writer.Write(buf[:nl+1]); err != nil {
			return 0, err
		}
		pw.pending.Next(nl + 1)
	}

	return len(p), nil
}
