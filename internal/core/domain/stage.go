package domain

import "time"

// Stage is a step of the download pipeline.
type Stage string

const (
	StageIdle         Stage = "Idle"
	StageParsing      Stage = "Parsing"
	StageLaunching    Stage = "Launching"
	StageCreatingPage Stage = "CreatingPage"
	StageNavigating   Stage = "Navigating"
	StageResolvingURL Stage = "ResolvingURL"
	StageDownloading  Stage = "Downloading"
	StageCleaning     Stage = "Cleaning"
	StageSucceeded    Stage = "Succeeded"
	StageFailed       Stage = "Failed"
)

var stageLabels = map[Stage]string{
	StageParsing:      "Parsing arguments",
	StageLaunching:    "Launching browser",
	StageCreatingPage: "Creating new page",
	StageNavigating:   "Opening Twitter",
	StageResolvingURL: "Finding video URL",
	StageDownloading:  "Downloading video file",
	StageCleaning:     "Cleaning up video file",
}

var stageFailures = map[Stage]string{
	StageLaunching:    "Failed to launch browser",
	StageCreatingPage: "Failed to create new page",
	StageNavigating:   "Failed to open Twitter",
	StageResolvingURL: "Failed to find video URL",
	StageDownloading:  "Failed to download video file",
}

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// Label returns the progress text shown while the stage runs.
func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// FailureMessage returns the short user-facing reason for a failure in s.
func (s Stage) FailureMessage() string {
	if m, ok := stageFailures[s]; ok {
		return m
	}
	return "Failed"
}

// IsTerminal reports whether no further transition can follow s.
func (s Stage) IsTerminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// StageEvent is emitted on every transition of a run.
type StageEvent struct {
	RunID string
	Stage Stage
	Label string
	// Position is the media time written so far; only set while downloading.
	Position time.Duration
	// OutputPath is set on StageSucceeded.
	OutputPath string
	// Message is the short reason on StageFailed.
	Message string
	Err     error
	At      time.Time
}
