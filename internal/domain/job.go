package domain

import "time"

type JobStatus string

const (
	StatusIdle      JobStatus = "idle"
	StatusMounting  JobStatus = "mounting"
	StatusRunning   JobStatus = "running"
	StatusVerifying JobStatus = "verifying"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusStopped   JobStatus = "stopped"
)

// Active reports whether the status belongs to an in-flight job.
// A new job may only be started from a non-active status.
func (s JobStatus) Active() bool {
	switch s {
	case StatusMounting, StatusRunning, StatusVerifying:
		return true
	}
	return false
}

// Job is the single in-flight or most recently completed unit of work.
// It is owned and mutated exclusively by the supervisor.
type Job struct {
	ArtifactName string
	Compressed   bool
	Status       JobStatus
	StartedAt    time.Time
	EndedAt      time.Time
}

// Artifact is a candidate backup file found on the destination.
type Artifact struct {
	Name       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// RunState is the durable record of the last completed job.
type RunState struct {
	LastStart          string `json:"last_start"`
	LastEnd            string `json:"last_end"`
	LastStatus         string `json:"last_status"`
	LastSuccessfulFile string `json:"last_successful_file"`
}

// DefaultRunState is what a fresh or unreadable state file decodes to.
func DefaultRunState() RunState {
	return RunState{
		LastStart:          "n/a",
		LastEnd:            "n/a",
		LastStatus:         "n/a",
		LastSuccessfulFile: "n/a",
	}
}
