package backupmanager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/mod/sumdb/dirhash"

	"github.com/unbasical/update-agent/internal/pkg/utils/fileutils"
)

var ErrBackupSourceMissing = errors.New("backup source does not exist")

// BackupManager snapshots the deployment before it is modified.
type BackupManager interface {
	// Snapshot replaces the content of backup with a full copy of source.
	Snapshot(source, backup string) error
}

type directoryBackup struct{}

// NewDirectoryBackupManager creates a BackupManager which keeps a single plain copy of the deployment.
func NewDirectoryBackupManager() BackupManager {
	return &directoryBackup{}
}

func (d *directoryBackup) Snapshot(source, backup string) (err error) {
	exists, isDir, err := fileutils.ExistsAndIsDirectory(source)
	if err != nil {
		return err
	}
	if !exists || !isDir {
		return fmt.Errorf("%w: %q", ErrBackupSourceMissing, source)
	}
	if err := checkNotNested(source, backup); err != nil {
		return err
	}
	parent := filepath.Dir(filepath.Clean(backup))
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	// stage next to the backup so the final rename does not cross file systems
	staging, err := os.MkdirTemp(parent, ".backup-staging-")
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, fileutils.RemoveDirectory(staging))
	}()
	snapshot := filepath.Join(staging, "snapshot")
	log.Debugf("copying %q to %q", source, snapshot)
	if err := fileutils.CopyDirectory(source, snapshot); err != nil {
		return fmt.Errorf("failed to copy %q: %w", source, err)
	}
	if err := fileutils.ReplaceDirectory(snapshot, backup); err != nil {
		return fmt.Errorf("failed to replace backup %q: %w", backup, err)
	}
	log.Infof("created backup of %q at %q", source, backup)
	return nil
}

func checkNotNested(source, backup string) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	dst, err := filepath.Abs(backup)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(src, dst)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("backup %q must not be located inside of %q", backup, source)
	}
	return nil
}

// Digest hashes the content of dir the same way Go module zips are hashed.
func Digest(dir string) (string, error) {
	return dirhash.HashDir(dir, "", dirhash.Hash1)
}
