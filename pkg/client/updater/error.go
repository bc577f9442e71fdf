package updater

import (
	"errors"
	"fmt"

	"github.com/unbasical/update-agent/pkg/client/updater/backupmanager"
	"github.com/unbasical/update-agent/pkg/client/updater/fetcher"
	"github.com/unbasical/update-agent/pkg/client/updater/installer"
	"github.com/unbasical/update-agent/pkg/client/updater/updatefinder"
	"github.com/unbasical/update-agent/pkg/client/updater/validator"
)

// UpdaterError ties the failure of a run to the stage it happened in.
// errors.Is matches both the kind and the cause.
type UpdaterError struct {
	cause error
	kind  error
}

func (u UpdaterError) Error() string {
	if u.cause == nil {
		return u.kind.Error()
	}
	return fmt.Sprintf("%s: %s", u.kind.Error(), u.cause.Error())
}

func (u UpdaterError) Unwrap() []error {
	if u.cause == nil {
		return []error{u.kind}
	}
	return []error{u.kind, u.cause}
}

// Kind returns the stage error kind.
func (u UpdaterError) Kind() error {
	return u.kind
}

func NewUpdaterError(kind error, cause error) error {
	return UpdaterError{
		cause: cause,
		kind:  kind,
	}
}

// KindOf returns the stage error kind of err, ErrUnexpected if err is not an UpdaterError.
func KindOf(err error) error {
	var u UpdaterError
	if errors.As(err, &u) {
		return u.kind
	}
	return ErrUnexpected
}

// Stage error kinds.
var (
	ErrValidationFailed     = errors.New("validation failed")
	ErrFetchFailed          = errors.New("failed to fetch update")
	ErrFailedChecks         = errors.New("failed checks")
	ErrFailedToCreateBackup = errors.New("failed to create backup")
	ErrFailedToApplyUpdate  = errors.New("failed to apply update")
	ErrFailedHealthChecks   = errors.New("failed health checks")
	ErrAlreadyRunning       = errors.New("another run is in progress")
	ErrUnexpected           = errors.New("unexpected error")
)

// Failure causes reported by the stages.
var (
	ErrConfigInvalid            = validator.ErrConfigInvalid
	ErrConnectivityUnresolvable = validator.ErrConnectivityUnresolvable
	ErrRemoteVersionUnavailable = updatefinder.ErrRemoteVersionUnavailable
	ErrHTTPStatus               = fetcher.ErrHTTPStatus
	ErrConnection               = fetcher.ErrConnection
	ErrTimeout                  = fetcher.ErrTimeout
	ErrPackageNotFound          = installer.ErrPackageNotFound
	ErrCorruptArchive           = installer.ErrCorruptArchive
	ErrBackupSourceMissing      = backupmanager.ErrBackupSourceMissing
)
