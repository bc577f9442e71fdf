package configs

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/unbasical/update-agent/internal/pkg/utils/buildurl"
	"github.com/unbasical/update-agent/internal/pkg/utils/fileutils"
)

// Version policies supported by the agent.
const (
	VersionPolicyLexicographic = "lexicographic"
	VersionPolicySemver        = "semver"
)

// AgentConfig is the configuration file of the update agent.
// It is treated as immutable for the duration of a run.
type AgentConfig struct {
	RemoteVersionURL    string        `yaml:"remote_version_url" validate:"required,http_url"`
	DownloadURLTemplate string        `yaml:"download_url_template" validate:"required,urltemplate"`
	ChecksumURLTemplate string        `yaml:"checksum_url_template" validate:"omitempty,urltemplate"`
	DownloadFolder      string        `yaml:"download_folder" validate:"required"`
	DeployFolder        string        `yaml:"deploy_folder" validate:"required"`
	BackupFolder        string        `yaml:"backup_folder" validate:"required,nefield=DeployFolder"`
	VersionFile         string        `yaml:"version_file" validate:"required"`
	ProtectedDir        string        `yaml:"protected_dir" validate:"required,excludesall=/\\,ne=.,ne=.."`
	Notify              bool          `yaml:"notify"`
	AppName             string        `yaml:"app_name"`
	VersionPolicy       string        `yaml:"version_policy" validate:"oneof=lexicographic semver"`
	VersionTimeout      time.Duration `yaml:"version_timeout" validate:"gt=0"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" validate:"gt=0"`
	HealthCheck         []string      `yaml:"health_check"`
	LockFile            string        `yaml:"lock_file"`
	StateFile           string        `yaml:"state_file"`
	LogFile             string        `yaml:"log_file"`
}

// Default returns the configuration values that apply when a key is missing from the file.
func Default() AgentConfig {
	return AgentConfig{
		ProtectedDir:    "Data",
		Notify:          true,
		AppName:         "Update Agent",
		VersionPolicy:   VersionPolicyLexicographic,
		VersionTimeout:  10 * time.Second,
		DownloadTimeout: 30 * time.Second,
	}
}

// Load reads the YAML configuration at path on top of Default.
// Unknown keys are rejected. The result is not validated.
func Load(path string) (AgentConfig, error) {
	cfg := Default()
	available, err := fileutils.SafeReadYAML(path, &cfg)
	if err != nil {
		return AgentConfig{}, err
	}
	if !available {
		return AgentConfig{}, fmt.Errorf("config file %q is empty", path)
	}
	return cfg, nil
}

// Validate checks the configuration against its field constraints.
func (c *AgentConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("urltemplate", func(fl validator.FieldLevel) bool {
		template := fl.Field().String()
		if !buildurl.HasPlaceholder(template) {
			return false
		}
		_, err := buildurl.Expand(template, "0.0.0")
		return err == nil
	})
	if err != nil {
		return err
	}
	return v.Struct(c)
}
