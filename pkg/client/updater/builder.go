package updater

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/configs"
	"github.com/unbasical/update-agent/pkg/client/updater/backupmanager"
	"github.com/unbasical/update-agent/pkg/client/updater/fetcher"
	"github.com/unbasical/update-agent/pkg/client/updater/healthchecker"
	"github.com/unbasical/update-agent/pkg/client/updater/inspector"
	"github.com/unbasical/update-agent/pkg/client/updater/installer"
	"github.com/unbasical/update-agent/pkg/client/updater/statemanager"
	"github.com/unbasical/update-agent/pkg/client/updater/updaterstate"
	"github.com/unbasical/update-agent/pkg/client/updater/updatefinder"
	"github.com/unbasical/update-agent/pkg/client/updater/validator"
	"github.com/unbasical/update-agent/pkg/client/updater/verifier"
	"github.com/unbasical/update-agent/pkg/client/updater/versioncompare"
	"github.com/unbasical/update-agent/pkg/notifier"
)

// EnvironmentValidator checks that a run can start.
type EnvironmentValidator interface {
	Validate(ctx context.Context, cfg *configs.AgentConfig) error
}

// NewClient creates an update client for cfg.
// Every collaborator is derived from cfg unless it is replaced with one of the options.
func NewClient(cfg configs.AgentConfig, options ...func(*Client)) *Client {
	client := &Client{
		cfg:           cfg,
		validator:     validator.New(validator.WithLookupTimeout(cfg.VersionTimeout)),
		finder:        updatefinder.NewHTTPFinder(cfg.RemoteVersionURL, cfg.VersionFile, cfg.VersionTimeout),
		comparator:    versioncompare.ForName(cfg.VersionPolicy),
		backup:        backupmanager.NewDirectoryBackupManager(),
		installer:     installer.NewZipInstaller(cfg.DeployFolder, cfg.VersionFile, cfg.ProtectedDir),
		health:        healthchecker.NewShellHealthChecker(cfg.HealthCheck, cfg.DeployFolder, 0),
		notifier:      notifier.New(cfg.Notify),
		notifyTimeout: notifier.DefaultTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
	client.fetcher = fetcher.NewHTTPFetcher(
		cfg.DownloadURLTemplate,
		cfg.DownloadFolder,
		fetcher.WithTimeout(cfg.DownloadTimeout),
		fetcher.WithInspector(inspector.NewDownloadStatsObserver(cfg.AppName, inspector.DefaultInterval)),
	)
	if cfg.ChecksumURLTemplate != "" {
		client.verifiers = append(client.verifiers, verifier.NewChecksumVerifier(cfg.ChecksumURLTemplate, cfg.DownloadTimeout))
	}
	if cfg.StateFile != "" {
		state, err := statemanager.NewFromDisk(updaterstate.New(), cfg.StateFile)
		if err != nil {
			log.WithError(err).Warnf("run history is not recorded, failed to open %q", cfg.StateFile)
		} else {
			client.state = state
		}
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// WithValidator replaces the environment validation.
func WithValidator(v EnvironmentValidator) func(*Client) {
	return func(c *Client) {
		c.validator = v
	}
}

// WithUpdateFinder replaces how the local and the remote version are determined.
func WithUpdateFinder(f updatefinder.UpdateFinder) func(*Client) {
	return func(c *Client) {
		c.finder = f
	}
}

// WithVersionPolicy replaces the policy which decides whether the remote version is newer.
func WithVersionPolicy(p versioncompare.Policy) func(*Client) {
	return func(c *Client) {
		c.comparator = p
	}
}

// WithFetcher replaces the package download.
func WithFetcher(f fetcher.PackageFetcher) func(*Client) {
	return func(c *Client) {
		c.fetcher = f
	}
}

// WithVerifiers replaces the checks of the downloaded package.
func WithVerifiers(verifiers ...verifier.ArtifactVerifier) func(*Client) {
	return func(c *Client) {
		c.verifiers = verifiers
	}
}

// WithBackupManager replaces how the deployment is backed up.
func WithBackupManager(b backupmanager.BackupManager) func(*Client) {
	return func(c *Client) {
		c.backup = b
	}
}

// WithInstaller replaces how the package is applied.
func WithInstaller(i installer.PackageInstaller) func(*Client) {
	return func(c *Client) {
		c.installer = i
	}
}

// WithHealthChecker replaces the check that runs after an installation.
func WithHealthChecker(h healthchecker.HealthChecker) func(*Client) {
	return func(c *Client) {
		c.health = h
	}
}

// WithNotifier replaces how the outcome of a run is reported to the user.
func WithNotifier(n notifier.Notifier) func(*Client) {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithStateManager replaces where the run history is recorded, nil disables it.
func WithStateManager(m *statemanager.Manager[updaterstate.State]) func(*Client) {
	return func(c *Client) {
		c.state = m
	}
}
