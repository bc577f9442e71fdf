package fileutils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// getLockFile computes a unique lock file path based on the canonical absolute path of newPath.
func getLockFile(newPath string) string {
	abs, err := filepath.Abs(newPath)
	if err != nil {
		abs = newPath // Fallback to the provided path if an error occurs.
	}
	abs = filepath.Clean(abs)
	hash := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "update_agent_lock_"+hex.EncodeToString(hash[:]))
}

// withLock runs f while holding an exclusive lock that is unique to targetPath.
func withLock(targetPath string, f func() error) error {
	lock := flock.New(getLockFile(targetPath))
	// Block until the lock is acquired
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return f()
}

// ReplaceFile atomically replaces the file at targetPath with the file at currentPath,
// using a unique lock file based on targetPath.
func ReplaceFile(currentPath, targetPath string) error {
	return withLock(targetPath, func() error {
		return os.Rename(currentPath, targetPath)
	})
}

// ReplaceDirectory replaces the directory at targetPath with the directory at currentPath.
// Any existing directory at targetPath is removed entirely first, its content is never merged.
func ReplaceDirectory(currentPath, targetPath string) error {
	return withLock(targetPath, func() error {
		if _, err := os.Lstat(targetPath); err == nil {
			log.Debugf("removing %q", targetPath)
			if err := RemoveDirectory(targetPath); err != nil {
				log.WithError(err).Debug("failed to remove old directory")
				return err
			}
		} else if !os.IsNotExist(err) {
			return err
		}
		return os.Rename(currentPath, targetPath)
	})
}
