package domain

import "io"

// Mounter manages the lifecycle of the destination filesystem share.
type Mounter interface {
	Mount() error
	Unmount() error
	IsMounted() bool
}

// Notifier delivers a one-line human-readable message out of band.
type Notifier interface {
	Notify(message string) error
}

// Process is a supervised child running in its own process group, so
// that termination signals reach an entire pipeline. The process is
// reaped exactly once; Done is closed afterwards and ExitCode is only
// meaningful from then on.
type Process interface {
	// Output streams the combined stdout+stderr of the group.
	Output() io.Reader
	// Wait blocks until the process has been reaped and returns the
	// exit error, if any. Safe to call from multiple goroutines.
	Wait() error
	Done() <-chan struct{}
	ExitCode() int
	// Terminate sends a graceful termination signal to the group.
	Terminate() error
	// Kill sends a forceful kill signal to the group.
	Kill() error
}

// Runner launches external commands as new process groups.
type Runner interface {
	StartGroup(argv []string) (Process, error)
}
