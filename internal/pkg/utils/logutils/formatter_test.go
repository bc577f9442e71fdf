package logutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLogFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)
	logPath := filepath.Join(t.TempDir(), "logs", "agent.log")
	closer, err := SetLogFile(logPath)
	if err != nil {
		t.Fatalf("SetLogFile() error = %v", err)
	}
	logrus.Info("stage transition written to file")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "stage transition written to file") {
		t.Errorf("log file does not contain message, got %q", string(data))
	}
}

func TestSetLogFileConsole(t *testing.T) {
	for _, p := range []string{"", "console"} {
		closer, err := SetLogFile(p)
		if err != nil {
			t.Fatalf("SetLogFile(%q) error = %v", p, err)
		}
		if err := closer.Close(); err != nil {
			t.Errorf("closing console writer: %v", err)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	tests := []struct {
		name string
		arg  string
		want logrus.Level
	}{
		{name: "debug lower case", arg: "debug", want: logrus.DebugLevel},
		{name: "warn", arg: "WARN", want: logrus.WarnLevel},
		{name: "error", arg: "ERROR", want: logrus.ErrorLevel},
		{name: "info", arg: "info", want: logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.arg)
			if got := logrus.GetLevel(); got != tt.want {
				t.Errorf("SetLogLevel(%q) level = %v, want %v", tt.arg, got, tt.want)
			}
		})
	}
}
