package updater

import (
	"context"
	"errors"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/pkg/client/updater/backupmanager"
	"github.com/unbasical/update-agent/pkg/client/updater/verifier"
)

// update walks through the stages of a run and stops at the first failure.
// The deployment is only touched after the package was downloaded, verified and a fresh backup exists.
func (c *Client) update(ctx context.Context, res *Result) error {
	c.enter(res, StageValidating)
	if err := c.validator.Validate(ctx, &c.cfg); err != nil {
		return NewUpdaterError(ErrValidationFailed, err)
	}

	c.enter(res, StageCheckingVersion)
	res.LocalVersion = c.finder.LocalVersion()
	res.RemoteVersion = c.finder.RemoteVersion(ctx)
	if !c.comparator.IsNewer(res.RemoteVersion, res.LocalVersion) {
		log.Infof("installed version %q is up to date (remote %q, policy %s)", res.LocalVersion, res.RemoteVersion, c.comparator.Name())
		c.enter(res, StageNoUpdateNeeded)
		return nil
	}

	c.enter(res, StageDownloading)
	artifact, err := c.fetcher.Fetch(ctx, res.RemoteVersion)
	if err != nil {
		return NewUpdaterError(ErrFetchFailed, err)
	}
	res.Artifact = artifact
	err = errors.Join(lo.Map(c.verifiers, func(v verifier.ArtifactVerifier, _ int) error {
		return v.VerifyArtifact(ctx, res.RemoteVersion, artifact.Path)
	})...)
	if err != nil {
		return NewUpdaterError(ErrFailedChecks, err)
	}

	c.enter(res, StageBackingUp)
	if err := c.backup.Snapshot(c.cfg.DeployFolder, c.cfg.BackupFolder); err != nil {
		return NewUpdaterError(ErrFailedToCreateBackup, err)
	}
	res.BackupDigest = digestOrEmpty(c.cfg.BackupFolder)

	c.enter(res, StageInstalling)
	if err := c.installer.Install(artifact.Path, res.RemoteVersion); err != nil {
		return NewUpdaterError(ErrFailedToApplyUpdate, err)
	}
	if err := c.health.HealthCheck(ctx); err != nil {
		return NewUpdaterError(ErrFailedHealthChecks, err)
	}
	res.DeployDigest = digestOrEmpty(c.cfg.DeployFolder)

	c.enter(res, StageCompleted)
	return nil
}

func digestOrEmpty(dir string) string {
	d, err := backupmanager.Digest(dir)
	if err != nil {
		log.WithError(err).Debugf("failed to hash %q", dir)
		return ""
	}
	return d
}
