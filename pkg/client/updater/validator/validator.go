package validator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/configs"
	"github.com/unbasical/update-agent/internal/pkg/utils/buildurl"
)

// DefaultLookupTimeout bounds the DNS lookup of the update server.
const DefaultLookupTimeout = 5 * time.Second

var (
	ErrConfigInvalid            = errors.New("invalid configuration")
	ErrConnectivityUnresolvable = errors.New("update server can not be resolved")
)

// Resolver resolves host names, *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// EnvironmentValidator makes sure a run can start: the configuration is valid,
// the working folders exist and the update server is resolvable.
type EnvironmentValidator struct {
	resolver Resolver
	timeout  time.Duration
}

// WithResolver replaces the resolver that is used for the connectivity check.
func WithResolver(r Resolver) func(*EnvironmentValidator) {
	return func(v *EnvironmentValidator) {
		v.resolver = r
	}
}

// WithLookupTimeout sets the timeout of the connectivity check.
func WithLookupTimeout(timeout time.Duration) func(*EnvironmentValidator) {
	return func(v *EnvironmentValidator) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// New creates an EnvironmentValidator which uses the default resolver.
func New(options ...func(*EnvironmentValidator)) *EnvironmentValidator {
	v := &EnvironmentValidator{
		resolver: net.DefaultResolver,
		timeout:  DefaultLookupTimeout,
	}
	for _, option := range options {
		option(v)
	}
	return v
}

// LoadConfig loads the configuration at path and checks its field constraints.
func LoadConfig(path string) (configs.AgentConfig, error) {
	cfg, err := configs.Load(path)
	if err != nil {
		return configs.AgentConfig{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return configs.AgentConfig{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return cfg, nil
}

// Validate checks cfg, creates the working folders and resolves the update server.
func (v *EnvironmentValidator) Validate(ctx context.Context, cfg *configs.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if err := EnsureFolders(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return v.CheckConnectivity(ctx, cfg.RemoteVersionURL)
}

// EnsureFolders creates the download, backup and deploy folders.
func EnsureFolders(cfg *configs.AgentConfig) error {
	folders := lo.Uniq(lo.Compact([]string{cfg.DownloadFolder, cfg.BackupFolder, cfg.DeployFolder}))
	for _, folder := range folders {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create folder %q: %w", folder, err)
		}
		log.Debugf("folder %q is available", folder)
	}
	return nil
}

// CheckConnectivity resolves the host of rawURL.
func (v *EnvironmentValidator) CheckConnectivity(ctx context.Context, rawURL string) error {
	host, err := buildurl.Hostname(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	addrs, err := v.resolver.LookupHost(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectivityUnresolvable, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: no addresses for %q", ErrConnectivityUnresolvable, host)
	}
	log.Debugf("resolved %q to %v", host, addrs)
	return nil
}
