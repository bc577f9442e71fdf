package updaterstate

import (
	"time"
)

// SchemaVersion is stored with every state so future agents can migrate it.
const SchemaVersion = "1"

// MaxHistory is the number of runs kept in the state file.
const MaxHistory = 20

// State is what the agent remembers about past runs.
// It is purely informational, no decision of a run is based on it.
type State struct {
	Version string      `json:"version"`
	Runs    []RunRecord `json:"runs"`
}

// RunRecord describes the outcome of a single run.
type RunRecord struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Stage         string    `json:"stage"`
	LastStage     string    `json:"last_stage,omitempty"`
	LocalVersion  string    `json:"local_version,omitempty"`
	RemoteVersion string    `json:"remote_version,omitempty"`
	Artifact      string    `json:"artifact,omitempty"`
	BackupDigest  string    `json:"backup_digest,omitempty"`
	DeployDigest  string    `json:"deploy_digest,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// New returns an empty state.
func New() State {
	return State{Version: SchemaVersion}
}

// AddRun appends r and forgets the oldest runs beyond MaxHistory.
func (s *State) AddRun(r RunRecord) {
	s.Version = SchemaVersion
	s.Runs = append(s.Runs, r)
	if len(s.Runs) > MaxHistory {
		s.Runs = append([]RunRecord(nil), s.Runs[len(s.Runs)-MaxHistory:]...)
	}
}

// LastRun returns the most recent run.
func (s *State) LastRun() (RunRecord, bool) {
	if len(s.Runs) == 0 {
		return RunRecord{}, false
	}
	return s.Runs[len(s.Runs)-1], true
}

// LastSuccessfulInstall returns the most recent run which ended after installing a package.
func (s *State) LastSuccessfulInstall(completed string) (RunRecord, bool) {
	for i := len(s.Runs) - 1; i >= 0; i-- {
		if s.Runs[i].Stage == completed {
			return s.Runs[i], true
		}
	}
	return RunRecord{}, false
}
