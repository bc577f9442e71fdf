package ziputils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/internal/pkg/utils/writerutils"
)

var (
	// ErrCorruptArchive is returned when the archive can not be opened or one of its entries fails to decode.
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrUnsafePath is returned for entries which would be written outside the target directory.
	ErrUnsafePath = errors.New("unsafe path in archive")
)

// SkipFunc reports whether the entry with the normalized, slash separated name is left out.
type SkipFunc func(name string) bool

// Stats summarizes an extraction.
type Stats struct {
	Extracted int
	Skipped   int
}

// NormalizeName converts an archive entry name into a clean, slash separated relative path.
// Backslashes are treated as separators so archives created on Windows are handled the same way.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	isDir := strings.HasSuffix(name, "/")
	name = strings.TrimLeft(name, "/")
	name = path.Clean(name)
	if isDir && name != "." {
		name += "/"
	}
	return name
}

// ExtractFile extracts every entry of the zip archive at filename into dir.
// Entries for which skip returns true are not touched at all, existing files are overwritten.
func ExtractFile(dir, filename string, skip SkipFunc) (stats Stats, err error) {
	rc, err := zip.OpenReader(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return stats, err
		}
		return stats, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	defer func() {
		closeErr := rc.Close()
		if err == nil {
			err = closeErr
		}
	}()
	for _, f := range rc.File {
		name := NormalizeName(f.Name)
		if skip != nil && skip(name) {
			log.Debugf("skipping archive entry %q", f.Name)
			stats.Skipped++
			continue
		}
		if err := extractEntry(dir, name, f); err != nil {
			return stats, err
		}
		stats.Extracted++
	}
	return stats, nil
}

func extractEntry(dir, name string, f *zip.File) error {
	rel := strings.TrimSuffix(name, "/")
	if rel == "." {
		return nil
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
	}
	if err := ensureNoSymlink(dir, rel); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.FromSlash(rel))
	if err := removeSymlink(target); err != nil {
		return err
	}
	mode := f.Mode()
	switch {
	case mode.IsDir() || strings.HasSuffix(name, "/"):
		return os.MkdirAll(target, 0755)
	case mode.IsRegular():
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		perm := mode.Perm()
		if perm == 0 {
			perm = 0644
		}
		if err := writeEntry(target, f, perm); err != nil {
			return err
		}
		// Change access time and modification time if possible (error ignored)
		_ = os.Chtimes(target, f.Modified, f.Modified)
		return nil
	default:
		return fmt.Errorf("unsupported file type %v for %q", mode.Type(), f.Name)
	}
}

// ensureNoSymlink makes sure no parent of rel below dir is a symbolic link.
func ensureNoSymlink(dir, rel string) error {
	parent := filepath.Dir(filepath.FromSlash(rel))
	for parent != "." {
		if info, err := os.Lstat(filepath.Join(dir, parent)); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symbolic link %q in path of %q", ErrUnsafePath, parent, rel)
		}
		parent = filepath.Dir(parent)
	}
	return nil
}

// removeSymlink deletes a symbolic link at path so the entry replaces the link instead of writing through it.
func removeSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	log.Debugf("replacing symbolic link %q", path)
	return os.Remove(path)
}

// writeEntry writes the decompressed entry to path and flushes it to the disk.
func writeEntry(path string, f *zip.File, perm os.FileMode) (err error) {
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrCorruptArchive, f.Name, err)
	}
	defer func() {
		_ = r.Close()
	}()
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	w := writerutils.NewSafeFileWriter(file)
	_, err = io.Copy(w, r)
	if isDecodeError(err) {
		err = fmt.Errorf("%w: %q: %w", ErrCorruptArchive, f.Name, err)
	}
	return errors.Join(err, w.Close())
}

func isDecodeError(err error) bool {
	return errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
