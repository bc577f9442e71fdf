package updater

// Stage is a state of a run.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageCheckingVersion
	StageNoUpdateNeeded
	StageDownloading
	StageBackingUp
	StageInstalling
	StageCompleted
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:            "Idle",
	StageValidating:      "Validating",
	StageCheckingVersion: "CheckingVersion",
	StageNoUpdateNeeded:  "NoUpdateNeeded",
	StageDownloading:     "Downloading",
	StageBackingUp:       "BackingUp",
	StageInstalling:      "Installing",
	StageCompleted:       "Completed",
	StageFailed:          "Failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether a run ends in s.
func (s Stage) Terminal() bool {
	return s == StageNoUpdateNeeded || s == StageCompleted || s == StageFailed
}

// Successful reports whether s ends a run without an error.
func (s Stage) Successful() bool {
	return s == StageNoUpdateNeeded || s == StageCompleted
}
