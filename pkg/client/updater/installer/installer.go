package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/internal/pkg/utils/ziputils"
	"github.com/unbasical/update-agent/pkg/client/updater/updatefinder"
)

// DefaultProtectedDir is the top-level directory of the deployment which an update never touches.
const DefaultProtectedDir = "Data"

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrCorruptArchive  = errors.New("corrupt package archive")
	ErrUnexpected      = errors.New("unexpected install error")
)

// PackageInstaller applies a downloaded package to the deployment.
type PackageInstaller interface {
	// Install extracts the package at artifactPath and records newVersion as the installed version.
	Install(artifactPath, newVersion string) error
}

type zipInstaller struct {
	deployDir    string
	markerPath   string
	protectedDir string
}

// NewZipInstaller creates a PackageInstaller for zip packages.
// Entries below the top-level protectedDir are never extracted, an empty protectedDir protects nothing.
func NewZipInstaller(deployDir, markerPath, protectedDir string) PackageInstaller {
	return &zipInstaller{
		deployDir:    deployDir,
		markerPath:   markerPath,
		protectedDir: protectedDir,
	}
}

func (z *zipInstaller) Install(artifactPath, newVersion string) error {
	info, err := os.Stat(artifactPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrPackageNotFound, artifactPath)
		}
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", ErrPackageNotFound, artifactPath)
	}
	if err := os.MkdirAll(z.deployDir, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	stats, err := ziputils.ExtractFile(z.deployDir, artifactPath, IsProtected(z.protectedDir))
	if err != nil {
		switch {
		case errors.Is(err, ziputils.ErrCorruptArchive):
			return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %w", ErrPackageNotFound, err)
		default:
			return fmt.Errorf("%w: %w", ErrUnexpected, err)
		}
	}
	log.Infof("extracted %d entries into %q, skipped %d protected entries", stats.Extracted, z.deployDir, stats.Skipped)
	if err := updatefinder.WriteMarker(z.markerPath, newVersion); err != nil {
		return fmt.Errorf("%w: failed to write version marker: %w", ErrUnexpected, err)
	}
	return nil
}

// IsProtected returns a ziputils.SkipFunc matching every normalized entry whose first path segment is protected.
// Matching is case-sensitive.
func IsProtected(protected string) ziputils.SkipFunc {
	return func(name string) bool {
		if protected == "" {
			return false
		}
		first, _, _ := strings.Cut(name, "/")
		return first == protected
	}
}
