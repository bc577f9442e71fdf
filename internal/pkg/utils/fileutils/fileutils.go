package fileutils

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/unbasical/update-agent/internal/pkg/utils/writerutils"
)

// SafeReadYAML strictly decodes the YAML file at the path into the targetPointer.
// Unknown keys are reported as errors.
// Returns true if the file exists and is not empty or an error if an error occurred.
func SafeReadYAML(filePath string, targetPointer any) (yamlAvailable bool, err error) {
	fileBytes, err := SafeReadFile(filePath)
	if err != nil {
		return false, err
	}

	if len(bytes.TrimSpace(fileBytes)) == 0 {
		return false, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(fileBytes))
	decoder.KnownFields(true)
	return true, decoder.Decode(targetPointer)
}

// SafeReadFile reads the file at the provided path into a byte slice.
func SafeReadFile(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %s, %w", filePath, err)
	}

	data, readErr := io.ReadAll(file)
	if err = file.Close(); err != nil {
		logrus.Errorf("Failed to close file: %s", filePath)
	}
	return data, readErr
}

// SafeWriteFile replaces the file at filePath with data.
// The content is written to a sibling temporary file, flushed to the disk and renamed over the target,
// so readers never observe a partially written file. Missing parent directories are created.
func SafeWriteFile(filePath string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := fp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()
	w := writerutils.NewSafeFileWriter(fp)
	_, err = w.Write(data)
	if err = errors.Join(err, w.Close()); err != nil {
		return err
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return ReplaceFile(tmpPath, filePath)
}

func ExistsAndIsDirectory(path string) (exists, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// CopyDirectory recursively copies src into dst, which must not exist yet.
// Regular files keep their permission bits, symbolic links are recreated as links.
// Every copied file is synced to the disk before the function returns.
func CopyDirectory(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", src)
	}
	// directories stay writable while they are filled, their modes are applied afterwards
	type dirMode struct {
		path string
		perm os.FileMode
	}
	var dirs []dirMode
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch mode := info.Mode(); {
		case mode.IsDir():
			dirs = append(dirs, dirMode{path: target, perm: mode.Perm()})
			return os.MkdirAll(target, 0700)
		case mode&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case mode.IsRegular():
			return copyFile(path, target, mode.Perm())
		default:
			return fmt.Errorf("unsupported file type %v at %q", mode.Type(), path)
		}
	})
	if err != nil {
		return err
	}
	// children first, a read-only parent must not block them
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].perm); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDirectory removes path and everything below it.
// Directories without write permission are made writable so their content can be deleted.
func RemoveDirectory(path string) error {
	err := os.RemoveAll(path)
	if err == nil || !errors.Is(err, fs.ErrPermission) {
		return err
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if chmodErr := os.Chmod(p, 0700); chmodErr != nil {
			logrus.WithError(chmodErr).Debugf("failed to make %q writable", p)
		}
		return nil
	})
	return os.RemoveAll(path)
}

func copyFile(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	w := writerutils.NewSafeFileWriter(out)
	_, err = io.Copy(w, in)
	return errors.Join(err, w.Close())
}

// CompareDirectories checks if two directories have the same structure and content.
// Walks both folders and ensures the contents are identical (compares file hashes).
// A mismatch is reported as (false, nil), I/O problems as a non-nil error.
//
//nolint:revive // Disable complexity warning, this function should be understandable enough to people familiar with navigating trees.
func CompareDirectories(dir1, dir2 string) (bool, error) {
	files1, err := hashTree(dir1)
	if err != nil {
		return false, err
	}
	files2, err := hashTree(dir2)
	if err != nil {
		return false, err
	}
	if len(files1) != len(files2) {
		logrus.Debugf("directories differ in size: %d vs %d entries", len(files1), len(files2))
		return false, nil
	}
	for relPath, hash1 := range files1 {
		if hash2, exists := files2[relPath]; !exists || hash1 != hash2 {
			logrus.Debugf("file mismatch: %s", relPath)
			return false, nil
		}
	}
	return true, nil
}

// hashTree maps every regular file below dir to the hash of its content.
// Directories are recorded with a zero hash so empty directories are compared as well.
func hashTree(dir string) (map[string][32]byte, error) {
	files := make(map[string][32]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if d.IsDir() {
			files[filepath.ToSlash(relPath)+"/"] = [32]byte{}
			return nil
		}
		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(relPath)] = hash
		return nil
	})
	return files, err
}

// hashFile computes a SHA-256 hash of the file content
func hashFile(path string) ([32]byte, error) {
	var hash [32]byte
	file, err := os.Open(path)
	if err != nil {
		return hash, err
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	_, err = io.Copy(hasher, file)
	if err != nil {
		return hash, err
	}

	copy(hash[:], hasher.Sum(nil))
	return hash, nil
}
