package usecase

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/semmidev/blockward/internal/domain"
)

// Logger is the narrow logging surface the usecases depend on.
type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Sentinel error values.
var (
	ErrJobActive = errors.New("a backup job is still active; only one instance allowed")
	ErrMount     = errors.New("failed to mount destination share")
)

// StateStore persists the run record and the compression toggle.
type StateStore interface {
	LoadRunState() domain.RunState
	SaveRunState(rs domain.RunState) error
	LoadCompression() bool
	SaveCompression(enabled bool) error
}

// DeviceSource is the block device being imaged.
type DeviceSource interface {
	Path() string
	Size() (int64, error)
}

// DestinationStore is the mounted destination directory.
type DestinationStore interface {
	Path(name string) string
	ListArtifacts() ([]domain.Artifact, error)
	Remove(name string) error
}

const (
	// Grace period between the graceful and the forceful phase of a
	// cancellation.
	defaultStopGrace = 30 * time.Second

	timeLayout = "2006-01-02 15:04:05"
)

// Supervisor owns the backup job state machine. Commands arrive on the
// coordination goroutine; the job itself runs on a dedicated worker
// goroutine so that Stop can act on an in-progress copy. The current
// process handle is private state, reachable only through these
// methods.
type Supervisor struct {
	hostname  string
	device    DeviceSource
	dest      DestinationStore
	mounter   domain.Mounter
	runner    domain.Runner
	store     StateStore
	sink      domain.EventSink
	verifier  *Verifier
	retention *Retention
	notifier  domain.Notifier
	verify    bool
	stopGrace time.Duration
	logger    Logger

	mu            sync.Mutex
	job           *domain.Job
	proc          domain.Process
	stopRequested bool
	wg            sync.WaitGroup
}

// SupervisorConfig collects the collaborators a Supervisor composes.
type SupervisorConfig struct {
	Hostname    string
	Device      DeviceSource
	Destination DestinationStore
	Mounter     domain.Mounter
	Runner      domain.Runner
	Store       StateStore
	Sink        domain.EventSink
	Verifier    *Verifier
	Retention   *Retention
	Notifier    domain.Notifier
	Verify      bool
	StopGrace   time.Duration
	Logger      Logger
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Supervisor{
		hostname:  cfg.Hostname,
		device:    cfg.Device,
		dest:      cfg.Destination,
		mounter:   cfg.Mounter,
		runner:    cfg.Runner,
		store:     cfg.Store,
		sink:      cfg.Sink,
		verifier:  cfg.Verifier,
		retention: cfg.Retention,
		notifier:  cfg.Notifier,
		verify:    cfg.Verify,
		stopGrace: cfg.StopGrace,
		logger:    cfg.Logger,
	}
}

// Status reports the current job status, Idle when none is active.
func (s *Supervisor) Status() domain.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return domain.StatusIdle
	}
	return s.job.Status
}

// Active reports whether a job is in flight.
func (s *Supervisor) Active() bool {
	return s.Status().Active()
}

// Wait blocks until the worker goroutine of the current job, if any,
// has fully exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// ArtifactName derives the host-scoped, timestamped artifact filename,
// suffixed for the compression mode.
func ArtifactName(hostname string, compressed bool, t time.Time) string {
	name := fmt.Sprintf("%s%s_%s.img", artifactPrefix, hostname, t.Format("20060102_150405"))
	if compressed {
		name += ".gz"
	}
	return name
}

// Start begins a new backup job. It is rejected, not queued, while a
// job is active; the check is made on supervisor-owned state under the
// mutex, never by racing on process liveness. The compression toggle
// is snapshotted here and frozen for the job's duration.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.job != nil && s.job.Status.Active() {
		s.mu.Unlock()
		s.logger.Warnf("start rejected: %v", ErrJobActive)
		return ErrJobActive
	}

	compressed := s.store.LoadCompression()
	job := &domain.Job{
		ArtifactName: ArtifactName(s.hostname, compressed, time.Now()),
		Compressed:   compressed,
		Status:       domain.StatusMounting,
		StartedAt:    time.Now(),
	}
	s.job = job
	s.proc = nil
	s.stopRequested = false
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Infof("backup started: %s", job.ArtifactName)
	s.sink.Publish(domain.SignalStatus, "Backup started")

	go s.runJob(job)
	return nil
}

// Stop cancels the in-flight job, if any. It is idempotent and safe
// from any state: with no active process it only logs, and the
// destination unmount is always attempted on the way out.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	proc := s.proc
	if proc != nil {
		s.stopRequested = true
	}
	s.mu.Unlock()

	if proc == nil {
		s.logger.Infof("no running backup process found")
	} else {
		s.logger.Infof("stopping backup process...")
		s.terminateProcess(proc)
	}

	if err := s.mounter.Unmount(); err != nil {
		s.logger.Warnf("failed to unmount destination: %v", err)
	}
	s.sink.Publish(domain.SignalOngoing, "False")
}

// terminateProcess is the two-phase cancellation protocol: graceful
// signal to the whole group, bounded wait, then a forceful kill and an
// unconditional wait. Reaping itself happens exactly once, inside the
// process handle.
func (s *Supervisor) terminateProcess(proc domain.Process) {
	if err := proc.Terminate(); err != nil {
		s.logger.Errorf("failed to signal backup process group: %v", err)
	}

	select {
	case <-proc.Done():
		s.logger.Infof("backup process ended with exit code %d", proc.ExitCode())
		return
	case <-time.After(s.stopGrace):
	}

	s.logger.Warnf("backup process is not responding, killing process group...")
	if err := proc.Kill(); err != nil {
		s.logger.Errorf("failed to kill backup process group: %v", err)
	}
	<-proc.Done()
	s.logger.Infof("backup process was forcibly terminated")
}

func (s *Supervisor) setStatus(job *domain.Job, status domain.JobStatus) {
	s.mu.Lock()
	job.Status = status
	s.mu.Unlock()
}

// runJob is the worker: it owns every blocking step of one job and is
// the only goroutine that drives the job through its states.
func (s *Supervisor) runJob(job *domain.Job) {
	defer s.wg.Done()

	s.sink.Publish(domain.SignalOngoing, "True")
	s.sink.Publish(domain.SignalLastStart, job.StartedAt.Format(timeLayout))

	if !s.mounter.IsMounted() {
		if err := s.mounter.Mount(); err != nil {
			s.logger.Errorf("%v: %v", ErrMount, err)
			s.sink.Publish(domain.SignalStatus, "Mount failed")
			s.finalize(job, domain.StatusFailed)
			return
		}
	}
	s.retention.PublishCount()

	artifactPath := s.dest.Path(job.ArtifactName)
	proc, err := s.runner.StartGroup(copyCommand(s.device.Path(), artifactPath, job.Compressed))
	if err != nil {
		s.logger.Errorf("failed to launch copy process: %v", err)
		s.sink.Publish(domain.SignalStatus, "Backup failed")
		s.finalize(job, domain.StatusFailed)
		return
	}

	s.mu.Lock()
	job.Status = domain.StatusRunning
	s.proc = proc
	s.mu.Unlock()

	total, err := s.device.Size()
	if err != nil {
		s.logger.Errorf("could not determine source device size, percent progress unavailable: %v", err)
		total = 0
	}
	tracker := &ProgressTracker{TotalBytes: total, StartedAt: job.StartedAt}

	midRunFault := s.streamProgress(proc, tracker)

	waitErr := proc.Wait()

	s.mu.Lock()
	stopped := s.stopRequested
	s.proc = nil
	s.mu.Unlock()

	switch {
	case midRunFault:
		// The share vanished under the copy; one more unmount attempt,
		// a no-op if the kernel already dropped it.
		if err := s.mounter.Unmount(); err != nil {
			s.logger.Warnf("failed to unmount destination: %v", err)
		}
		s.sink.Publish(domain.SignalStatus, "Backup failed: destination became unavailable")
		s.finalize(job, domain.StatusFailed)
	case stopped:
		s.sink.Publish(domain.SignalStatus, "Backup stopped")
		s.finalize(job, domain.StatusStopped)
	case proc.ExitCode() == 0:
		s.completeSuccessfulCopy(job)
	default:
		s.logger.Errorf("copy process failed with exit code %d: %v", proc.ExitCode(), waitErr)
		s.sink.Publish(domain.SignalStatus, "Backup failed")
		s.finalize(job, domain.StatusFailed)
	}
}

// streamProgress consumes the child's combined output line by line,
// publishing raw and derived telemetry in line order, and watches
// mount liveness. Returns true on a mid-run mount fault, with the
// process group already terminated.
func (s *Supervisor) streamProgress(proc domain.Process, tracker *ProgressTracker) bool {
	scanner := bufio.NewScanner(proc.Output())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanProgressLines)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if !s.mounter.IsMounted() {
			s.logger.Errorf("destination share no longer available, stopping backup")
			s.terminateProcess(proc)
			return true
		}

		s.logger.Infof("%s", line)
		s.sink.Publish(domain.SignalProgressDetailed, line)
		s.publishSample(tracker.Sample(ParseLine(line), time.Now()))
	}

	return false
}

// dd rewrites its progress line in place with carriage returns, so
// both \n and \r are treated as line terminators.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimSpace(data[:i]), nil
	}
	if atEOF {
		return len(data), bytes.TrimSpace(data), nil
	}
	return 0, nil, nil
}

func (s *Supervisor) publishSample(sample ProgressSample) {
	if sample.HasPercent {
		s.sink.Publish(domain.SignalProgress, strconv.FormatFloat(sample.Percent, 'f', -1, 64))
	}
	if sample.HasTransferred {
		s.sink.Publish(domain.SignalDataTransferred, sample.Transferred)
	}
	if sample.HasETA {
		s.sink.Publish(domain.SignalEstimatedRemaining, strconv.FormatInt(sample.ETASeconds, 10))
	}
	if sample.HasSpeed {
		s.sink.Publish(domain.SignalWriteSpeed, strconv.FormatFloat(sample.SpeedMBps, 'f', -1, 64))
	}
	s.sink.Publish(domain.SignalElapsedTime, strconv.FormatInt(sample.ElapsedSeconds, 10))
}

func (s *Supervisor) completeSuccessfulCopy(job *domain.Job) {
	if s.verify && job.Compressed {
		s.logger.Warnf("verification skipped: compressed artifacts cannot be size-matched against the source")
	}

	if s.verify && !job.Compressed {
		s.setStatus(job, domain.StatusVerifying)
		s.sink.Publish(domain.SignalStatus, "Verifying backup")

		source, ok := s.device.(WindowReader)
		if !ok {
			s.logger.Errorf("source device does not support windowed reads, verification unavailable")
			s.finalize(job, domain.StatusFailed)
			return
		}

		if err := s.verifier.Verify(source, s.dest.Path(job.ArtifactName)); err != nil {
			s.logger.Errorf("copy succeeded, content unverifiable: %v", err)
			s.sink.Publish(domain.SignalStatus, "Backup was not successfully completed. Verification failed.")
			s.finalize(job, domain.StatusFailed)
			return
		}

		s.logger.Infof("backup successfully completed and verified")
		s.sink.Publish(domain.SignalStatus, "Backup successfully completed and verified.")
	} else {
		s.logger.Infof("backup successfully completed (not verified)")
		s.sink.Publish(domain.SignalStatus, "Backup successfully completed. (Not verified)")
	}

	s.finalize(job, domain.StatusSucceeded)
}

// finalize is the single end-of-job path. It runs on the worker after
// the process has been reaped, so finalize-time telemetry is only ever
// published with the exit outcome known.
func (s *Supervisor) finalize(job *domain.Job, status domain.JobStatus) {
	s.mu.Lock()
	job.Status = status
	job.EndedAt = time.Now()
	s.mu.Unlock()

	if status == domain.StatusSucceeded {
		if err := s.retention.Cleanup(); err != nil {
			s.logger.Errorf("retention pass failed: %v", err)
		}
	}

	rs := domain.RunState{
		LastStart:          job.StartedAt.Format(timeLayout),
		LastEnd:            job.EndedAt.Format(timeLayout),
		LastStatus:         "Failed",
		LastSuccessfulFile: "n/a",
	}
	if status == domain.StatusSucceeded {
		rs.LastStatus = "Success"
		rs.LastSuccessfulFile = job.ArtifactName
	}
	if err := s.store.SaveRunState(rs); err != nil {
		s.logger.Errorf("failed to persist run state: %v", err)
	}

	s.sink.Publish(domain.SignalLastStatus, rs.LastStatus)
	if status == domain.StatusSucceeded {
		s.sink.PublishRetained(domain.SignalLastSuccessful, job.ArtifactName)
	}
	s.sink.Publish(domain.SignalOngoing, "False")
	s.sink.Publish(domain.SignalLastEnd, rs.LastEnd)
	s.retention.PublishCount()

	if s.notifier != nil {
		msg := fmt.Sprintf("Backup %s on %s: %s", string(status), s.hostname, job.ArtifactName)
		if err := s.notifier.Notify(msg); err != nil {
			s.logger.Warnf("failed to send notification: %v", err)
		}
	}
}

// copyCommand builds the imaging command. The compressed variant is a
// shell pipeline; both run in one process group so cancellation
// signals reach the compressor too.
func copyCommand(devicePath, artifactPath string, compressed bool) []string {
	if compressed {
		pipeline := fmt.Sprintf("dd if=%s bs=1M status=progress | gzip > %s", devicePath, artifactPath)
		return []string{"/bin/sh", "-c", pipeline}
	}
	return []string{"dd", "if=" + devicePath, "of=" + artifactPath, "bs=1M", "status=progress"}
}
