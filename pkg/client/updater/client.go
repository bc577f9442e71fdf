package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/configs"
	"github.com/unbasical/update-agent/pkg/client/updater/backupmanager"
	"github.com/unbasical/update-agent/pkg/client/updater/fetcher"
	"github.com/unbasical/update-agent/pkg/client/updater/healthchecker"
	"github.com/unbasical/update-agent/pkg/client/updater/installer"
	"github.com/unbasical/update-agent/pkg/client/updater/statemanager"
	"github.com/unbasical/update-agent/pkg/client/updater/updaterstate"
	"github.com/unbasical/update-agent/pkg/client/updater/updatefinder"
	"github.com/unbasical/update-agent/pkg/client/updater/verifier"
	"github.com/unbasical/update-agent/pkg/client/updater/versioncompare"
	"github.com/unbasical/update-agent/pkg/notifier"
)

// Client runs updates of a single deployment.
type Client struct {
	cfg           configs.AgentConfig
	validator     EnvironmentValidator
	finder        updatefinder.UpdateFinder
	comparator    versioncompare.Policy
	fetcher       fetcher.PackageFetcher
	verifiers     []verifier.ArtifactVerifier
	backup        backupmanager.BackupManager
	installer     installer.PackageInstaller
	health        healthchecker.HealthChecker
	notifier      notifier.Notifier
	notifyTimeout time.Duration
	state         *statemanager.Manager[updaterstate.State]
	now           func() time.Time
}

// Result is the outcome of a run.
type Result struct {
	// Stage is the terminal stage of the run.
	Stage Stage
	// LastStage is the stage that was active when the run failed.
	LastStage     Stage
	LocalVersion  string
	RemoteVersion string
	Artifact      fetcher.Artifact
	BackupDigest  string
	DeployDigest  string
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ExitCode is the process exit code that reports the result.
func (r Result) ExitCode() int {
	if r.Stage.Successful() {
		return 0
	}
	return 1
}

// Run executes one update attempt.
// It never panics, every failure is reported through the returned Result.
func (c *Client) Run(ctx context.Context) (res Result) {
	res = Result{
		Stage:     StageIdle,
		StartedAt: c.now(),
	}
	defer func() {
		res.FinishedAt = c.now()
		c.report(&res)
	}()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stage", res.Stage.String()).Errorf("recovered from panic: %v\n%s", r, debug.Stack())
			res.fail(NewUpdaterError(ErrUnexpected, fmt.Errorf("panic: %v", r)))
		}
	}()
	if err := c.update(ctx, &res); err != nil {
		res.fail(err)
	}
	return res
}

// RunExclusive executes Run while holding the configured lock file.
// If another process holds the lock nothing is touched, the result carries ErrAlreadyRunning
// and the user is told that an update is already in progress.
func (c *Client) RunExclusive(ctx context.Context) Result {
	if c.cfg.LockFile == "" {
		return c.Run(ctx)
	}
	if err := os.MkdirAll(filepath.Dir(c.cfg.LockFile), 0755); err != nil {
		return c.lockFailure(err)
	}
	lock := flock.New(c.cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return c.lockFailure(err)
	}
	if !locked {
		return c.lockFailure(nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.WithError(err).Warnf("failed to release %q", c.cfg.LockFile)
		}
	}()
	return c.Run(ctx)
}

func (c *Client) lockFailure(cause error) Result {
	now := c.now()
	res := Result{
		Stage:      StageFailed,
		LastStage:  StageIdle,
		Err:        NewUpdaterError(ErrAlreadyRunning, cause),
		StartedAt:  now,
		FinishedAt: now,
	}
	log.WithError(res.Err).Errorf("not starting, lock %q is not available", c.cfg.LockFile)
	if err := c.notifier.Notify(c.cfg.AppName, message(&res), c.notifyTimeout); err != nil {
		log.WithError(err).Warn("failed to deliver notification")
	}
	return res
}

// Check validates the environment and compares the versions without changing anything.
func (c *Client) Check(ctx context.Context) (Result, error) {
	res := Result{Stage: StageValidating, StartedAt: c.now()}
	if err := c.validator.Validate(ctx, &c.cfg); err != nil {
		return res, NewUpdaterError(ErrValidationFailed, err)
	}
	res.Stage = StageCheckingVersion
	res.LocalVersion = c.finder.LocalVersion()
	res.RemoteVersion = c.finder.RemoteVersion(ctx)
	if c.comparator.IsNewer(res.RemoteVersion, res.LocalVersion) {
		res.Stage = StageDownloading
	} else {
		res.Stage = StageNoUpdateNeeded
	}
	res.FinishedAt = c.now()
	return res, nil
}

// History returns the recorded runs, oldest first.
func (c *Client) History() ([]updaterstate.RunRecord, error) {
	if c.state == nil {
		return nil, errors.New("no state file configured")
	}
	s, err := c.state.Load()
	if err != nil {
		return nil, err
	}
	return s.Runs, nil
}

// LastInstall returns the most recent run which installed a new version.
func (c *Client) LastInstall() (updaterstate.RunRecord, bool) {
	runs, err := c.History()
	if err != nil {
		log.WithError(err).Debug("no run history available")
		return updaterstate.RunRecord{}, false
	}
	s := updaterstate.State{Runs: runs}
	return s.LastSuccessfulInstall(StageCompleted.String())
}

func (r *Result) fail(err error) {
	if r.Stage != StageFailed {
		r.LastStage = r.Stage
	}
	r.Stage = StageFailed
	r.Err = err
}

// enter moves res to the next stage and logs the transition.
func (c *Client) enter(res *Result, next Stage) {
	log.WithField("stage", next.String()).
		WithField("version", res.RemoteVersion).
		Infof("%s -> %s", res.Stage, next)
	res.Stage = next
}

// report emits the single notification and summary of a finished run and records it.
func (c *Client) report(res *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("failed to report the result: %v", r)
		}
	}()
	if !res.Stage.Terminal() {
		res.fail(NewUpdaterError(ErrUnexpected, fmt.Errorf("run stopped in stage %s", res.Stage)))
	}
	entry := log.WithField("stage", res.Stage.String()).
		WithField("local_version", res.LocalVersion).
		WithField("remote_version", res.RemoteVersion).
		WithField("duration", res.FinishedAt.Sub(res.StartedAt).String())
	if res.Err != nil {
		entry.WithError(res.Err).WithField("failed_stage", res.LastStage.String()).Error("update run failed")
	} else {
		entry.Info("update run finished")
	}
	if err := c.notifier.Notify(c.cfg.AppName, message(res), c.notifyTimeout); err != nil {
		log.WithError(err).Warn("failed to deliver notification")
	}
	c.record(res)
}

func (c *Client) record(res *Result) {
	if c.state == nil {
		return
	}
	r := updaterstate.RunRecord{
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Stage:         res.Stage.String(),
		LocalVersion:  res.LocalVersion,
		RemoteVersion: res.RemoteVersion,
		Artifact:      res.Artifact.Path,
		BackupDigest:  res.BackupDigest,
		DeployDigest:  res.DeployDigest,
	}
	if res.Err != nil {
		r.LastStage = res.LastStage.String()
		r.Error = res.Err.Error()
	}
	err := c.state.ModifyState(func(s *updaterstate.State) error {
		s.AddRun(r)
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("failed to record the run")
	}
}

// message is the user facing text of a terminal result.
func message(res *Result) string {
	switch res.Stage {
	case StageNoUpdateNeeded:
		return "No updates available."
	case StageCompleted:
		return fmt.Sprintf("Update to version %s completed.", res.RemoteVersion)
	}
	switch KindOf(res.Err) {
	case ErrValidationFailed:
		return "Configuration validation failed."
	case ErrFetchFailed:
		return "Failed to download the update package."
	case ErrFailedChecks:
		return "The downloaded update package failed verification."
	case ErrFailedToCreateBackup:
		return "Failed to back up the installation."
	case ErrFailedToApplyUpdate:
		return "Failed to install the new update."
	case ErrFailedHealthChecks:
		return fmt.Sprintf("Version %s was installed but failed the health check.", res.RemoteVersion)
	case ErrAlreadyRunning:
		return "Another update is already in progress."
	default:
		return "Unexpected failure during the update."
	}
}
