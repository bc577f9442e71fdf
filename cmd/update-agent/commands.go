package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/common"
	"github.com/unbasical/update-agent/configs"
	"github.com/unbasical/update-agent/examples"
	"github.com/unbasical/update-agent/internal/pkg/utils/funcutils"
	"github.com/unbasical/update-agent/internal/pkg/utils/logutils"
	"github.com/unbasical/update-agent/pkg/client/updater"
	"github.com/unbasical/update-agent/pkg/client/updater/updaterstate"
	"github.com/unbasical/update-agent/pkg/notifier"
)

type cliArgs struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	LogFile    string
	StatusLast int
	Out        io.Writer

	// options are passed to every client, tests use them to replace collaborators
	options []func(*updater.Client)
}

// setup configures logging and loads the configuration.
// The returned function releases the log file.
func (a *cliArgs) setup() (configs.AgentConfig, func(), error) {
	logutils.SetLogLevel(a.LogLevel)
	logutils.SetLogFormat(a.LogFormat)
	cfg, loadErr := configs.Load(a.ConfigPath)
	logPath := a.LogFile
	if logPath == "" && loadErr == nil {
		logPath = cfg.LogFile
	}
	closer, err := logutils.SetLogFile(logPath)
	if err != nil {
		log.WithError(err).Warnf("logging to the console only, failed to open %q", logPath)
		closer = io.NopCloser(nil)
	}
	cleanup := func() {
		funcutils.PanicOrLogOnErr(closer.Close, false, "failed to close log file")
	}
	if loadErr != nil {
		return configs.AgentConfig{}, cleanup, loadErr
	}
	return cfg, cleanup, nil
}

func (a *cliArgs) update(ctx context.Context) int {
	cfg, cleanup, err := a.setup()
	defer cleanup()
	if err != nil {
		// without a readable configuration the user preferences are unknown, fall back to the defaults
		defaults := configs.Default()
		log.WithError(err).WithField("stage", updater.StageValidating.String()).Errorf("failed to load configuration %q", a.ConfigPath)
		if nErr := notifier.New(defaults.Notify).Notify(defaults.AppName, "Configuration validation failed.", notifier.DefaultTimeout); nErr != nil {
			log.WithError(nErr).Warn("failed to deliver notification")
		}
		return 1
	}
	log.Infof("update-agent %s starting", common.Version())
	res := updater.NewClient(cfg, a.options...).RunExclusive(ctx)
	return res.ExitCode()
}

func (a *cliArgs) check(ctx context.Context) int {
	cfg, cleanup, err := a.setup()
	defer cleanup()
	if err != nil {
		log.WithError(err).Errorf("failed to load configuration %q", a.ConfigPath)
		return 1
	}
	client := updater.NewClient(cfg, a.options...)
	res, err := client.Check(ctx)
	if err != nil {
		log.WithError(err).Error("check failed")
		return 1
	}
	_, _ = fmt.Fprintf(a.Out, "installed: %s\navailable: %s\nupdate available: %t\n",
		res.LocalVersion, res.RemoteVersion, res.Stage != updater.StageNoUpdateNeeded)
	if last, ok := client.LastInstall(); ok {
		_, _ = fmt.Fprintf(a.Out, "last update: %s at %s, took %s\n",
			last.RemoteVersion, last.FinishedAt.Format(time.RFC3339), last.Duration().Round(time.Second))
	}
	return 0
}

func (a *cliArgs) status() int {
	cfg, cleanup, err := a.setup()
	defer cleanup()
	if err != nil {
		log.WithError(err).Errorf("failed to load configuration %q", a.ConfigPath)
		return 1
	}
	runs, err := updater.NewClient(cfg, a.options...).History()
	if err != nil {
		log.WithError(err).Error("failed to load the run history")
		return 1
	}
	if runs == nil {
		runs = []updaterstate.RunRecord{}
	}
	if a.StatusLast > 0 && len(runs) > a.StatusLast {
		runs = runs[len(runs)-a.StatusLast:]
	}
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runs); err != nil {
		log.WithError(err).Error("failed to print the run history")
		return 1
	}
	return 0
}

func (a *cliArgs) version() int {
	_, _ = fmt.Fprintln(a.Out, common.Version())
	return 0
}

func (a *cliArgs) exampleConfig() int {
	_, _ = fmt.Fprint(a.Out, examples.AgentExampleConfig())
	return 0
}
