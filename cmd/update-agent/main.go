package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	var (
		app = kingpin.New("update-agent", "Keeps a local installation in sync with the newest published release")

		// commands
		runCmd     = app.Command("run", "Check for a new release and install it").Default()
		checkCmd   = app.Command("check", "Compare the installed and the published version without changing anything")
		statusCmd  = app.Command("status", "Print the recorded runs")
		versionCmd = app.Command("version", "Print the version of the agent")
		exampleCmd = app.Command("example-config", "Print an example configuration")

		configPath = app.Flag("config", "Path to the agent configuration").Short('c').Default("update-agent.yaml").Envar("UPDATE_AGENT_CONFIG").String()
		statusLast = statusCmd.Flag("last", "Only print the last n runs, 0 prints all").Default("0").Int()
		// Logging
		logLevel  = app.Flag("log-level", "Log-Level, must be one of [DEBUG, INFO, WARN, ERROR]").Default("INFO").Envar("LOG_LEVEL").Enum("DEBUG", "INFO", "WARN", "ERROR", "debug", "info", "warn", "error")
		logFormat = app.Flag("log-format", "Log-Format, must be one of [TEXT, JSON]").Default("TEXT").Envar("LOG_FORMAT").Enum("TEXT", "JSON")
		logFile   = app.Flag("log-file", "Rotated log file, overrides log_file of the configuration").Envar("LOG_FILE").String()
	)
	app.HelpFlag.Short('h')

	cmd, err := app.Parse(args)
	if err != nil {
		app.Errorf("%s", err)
		return 1
	}
	a := &cliArgs{
		ConfigPath: *configPath,
		LogLevel:   *logLevel,
		LogFormat:  *logFormat,
		LogFile:    *logFile,
		StatusLast: *statusLast,
		Out:        os.Stdout,
	}
	switch cmd {
	case runCmd.FullCommand():
		return a.update(ctx)
	case checkCmd.FullCommand():
		return a.check(ctx)
	case statusCmd.FullCommand():
		return a.status()
	case versionCmd.FullCommand():
		return a.version()
	case exampleCmd.FullCommand():
		return a.exampleConfig()
	}
	return 1
}
