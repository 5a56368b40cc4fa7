// Package archive implements the archive-writer collaborator used by the
// packer: a byte sink that records named entries with their permission bits
// and symlink metadata into a tar or zip container.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// Formats accepted by New. "infer" is resolved by InferFormat before a
// writer is constructed.
var knownFormats = map[string]struct{}{
	"zip":     {},
	"tar.gz":  {},
	"tgz":     {},
	"tar.bz2": {},
	"tbz2":    {},
	"tar":     {},
}

var (
	ErrUnknownFormat    = errors.New("unknown archive format")
	ErrUnknownExtension = errors.New("unknown file extension")
	ErrSymlinksDisabled = errors.New("symlink entries are disabled for this archive")
)

// DefaultCompressLevel matches the historical default: a mid-range tradeoff
// between pack time and archive size.
const DefaultCompressLevel = 4

// Writer records archive entries. Implementations stream content straight
// into the container; nothing is buffered beyond one entry.
type Writer interface {
	// WriteFile records a regular-file entry of the given size, reading
	// its content from r.
	WriteFile(name string, mode fs.FileMode, mtime time.Time, size int64, r io.Reader) error

	// WriteSymlink records a symlink entry pointing at target.
	WriteSymlink(name string, mode fs.FileMode, mtime time.Time, target string) error

	// WriteDir records a directory entry.
	WriteDir(name string, mode fs.FileMode, mtime time.Time) error

	// Close finalizes the container. It does not close the underlying
	// byte sink.
	Close() error
}

// Options tunes writer construction.
type Options struct {
	// CompressLevel applies to the tar.gz and tar.bz2 containers.
	// Zero means DefaultCompressLevel; zip ignores it.
	CompressLevel int

	// ZipSymlinks stores symlink entries in zip output. The zip standard
	// has no symlinks, but most unzip implementations understand the
	// convention; when false, WriteSymlink fails and the caller is
	// expected to materialize link targets instead.
	ZipSymlinks bool
}

// InferFormat resolves the archive format from an explicit format name or,
// for "infer", from the output filename extension.
func InferFormat(output, format string) (string, error) {
	if format != "infer" {
		if _, ok := knownFormats[format]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		return format, nil
	}
	if output == "" {
		return "tar.gz", nil
	}
	switch {
	case strings.HasSuffix(output, ".zip"):
		return "zip", nil
	case strings.HasSuffix(output, ".tar.gz"), strings.HasSuffix(output, ".tgz"):
		return "tar.gz", nil
	case strings.HasSuffix(output, ".tar.bz2"), strings.HasSuffix(output, ".tbz2"):
		return "tar.bz2", nil
	case strings.HasSuffix(output, ".tar"):
		return "tar", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExtension, output)
}

// SupportsSymlinks reports whether a writer for the given format will accept
// symlink entries.
func SupportsSymlinks(format string, opts Options) bool {
	if format == "zip" {
		return opts.ZipSymlinks
	}
	return true
}

// New constructs a Writer for the given resolved format over w.
func New(w io.Writer, format string, opts Options) (Writer, error) {
	if opts.CompressLevel == 0 {
		opts.CompressLevel = DefaultCompressLevel
	}
	switch format {
	case "tar":
		return newTarWriter(w, "", opts.CompressLevel)
	case "tar.gz", "tgz":
		return newTarWriter(w, "gzip", opts.CompressLevel)
	case "tar.bz2", "tbz2":
		return newTarWriter(w, "bzip2", opts.CompressLevel)
	case "zip":
		return newZipWriter(w, opts.ZipSymlinks), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
