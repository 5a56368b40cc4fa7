package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// zipWriter streams entries into a zip container. Symlink entries are only
// emitted when enabled; the packer materializes link targets otherwise.
type zipWriter struct {
	zw       *zip.Writer
	symlinks bool
}

func newZipWriter(w io.Writer, symlinks bool) *zipWriter {
	return &zipWriter{zw: zip.NewWriter(w), symlinks: symlinks}
}

func (w *zipWriter) WriteFile(name string, mode fs.FileMode, mtime time.Time, size int64, r io.Reader) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: mtime,
	}
	hdr.SetMode(mode.Perm())
	fw, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating zip entry %q: %w", name, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("writing zip data for %q: %w", name, err)
	}
	return nil
}

// WriteSymlink stores the link target as the entry content with the symlink
// bit set in the unix mode field, the convention most unzip implementations
// understand.
func (w *zipWriter) WriteSymlink(name string, mode fs.FileMode, mtime time.Time, target string) error {
	if !w.symlinks {
		return fmt.Errorf("%w: %q", ErrSymlinksDisabled, name)
	}
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: mtime,
	}
	hdr.SetMode(mode.Perm() | fs.ModeSymlink)
	fw, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating zip symlink %q: %w", name, err)
	}
	if _, err := io.WriteString(fw, target); err != nil {
		return fmt.Errorf("writing zip symlink %q: %w", name, err)
	}
	return nil
}

func (w *zipWriter) WriteDir(name string, mode fs.FileMode, mtime time.Time) error {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: mtime,
	}
	hdr.SetMode(mode.Perm() | fs.ModeDir)
	if _, err := w.zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("creating zip directory %q: %w", name, err)
	}
	return nil
}

func (w *zipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("closing zip writer: %w", err)
	}
	return nil
}
