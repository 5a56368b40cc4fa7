package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/dsnet/compress/bzip2"
)

// tarWriter streams entries into a tar container, optionally behind a
// gzip or bzip2 compressor. The stdlib only reads bzip2, so writing goes
// through dsnet/compress.
type tarWriter struct {
	tw         *tar.Writer
	compressor io.Closer
}

func newTarWriter(w io.Writer, compress string, level int) (*tarWriter, error) {
	var (
		inner      io.Writer = w
		compressor io.Closer
	)
	switch compress {
	case "gzip":
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("creating gzip writer: %w", err)
		}
		inner, compressor = gw, gw
	case "bzip2":
		bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 writer: %w", err)
		}
		inner, compressor = bw, bw
	case "":
	default:
		return nil, fmt.Errorf("%w: compressor %q", ErrUnknownFormat, compress)
	}

	return &tarWriter{tw: tar.NewWriter(inner), compressor: compressor}, nil
}

func (w *tarWriter) WriteFile(name string, mode fs.FileMode, mtime time.Time, size int64, r io.Reader) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(mode.Perm()),
		Size:     size,
		ModTime:  mtime,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %q: %w", name, err)
	}
	if _, err := io.Copy(w.tw, r); err != nil {
		return fmt.Errorf("writing tar data for %q: %w", name, err)
	}
	return nil
}

func (w *tarWriter) WriteSymlink(name string, mode fs.FileMode, mtime time.Time, target string) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeSymlink,
		Name:     name,
		Linkname: target,
		Mode:     int64(mode.Perm()),
		ModTime:  mtime,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar symlink %q: %w", name, err)
	}
	return nil
}

func (w *tarWriter) WriteDir(name string, mode fs.FileMode, mtime time.Time) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     int64(mode.Perm()),
		ModTime:  mtime,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar directory %q: %w", name, err)
	}
	return nil
}

func (w *tarWriter) Close() error {
	if err := w.tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			return fmt.Errorf("closing compressor: %w", err)
		}
	}
	return nil
}
