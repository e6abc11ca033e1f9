package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/semmidev/blockward/internal/adapter/device"
	"github.com/semmidev/blockward/internal/adapter/mount"
	"github.com/semmidev/blockward/internal/adapter/mqtt"
	"github.com/semmidev/blockward/internal/adapter/notify"
	"github.com/semmidev/blockward/internal/adapter/runner"
	"github.com/semmidev/blockward/internal/adapter/state"
	"github.com/semmidev/blockward/internal/adapter/storage"
	"github.com/semmidev/blockward/internal/config"
	"github.com/semmidev/blockward/internal/domain"
	"github.com/semmidev/blockward/internal/infrastructure/logger"
	"github.com/semmidev/blockward/internal/infrastructure/scheduler"
	"github.com/semmidev/blockward/internal/usecase"
)

const preflightProbeFile = "blockward_probe.tmp"

// App wires the adapters into the supervisor and owns the daemon
// lifecycle. It is also the command handler for the broker side.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	hostname   string
	mounter    *mount.CIFS
	dev        *device.BlockDevice
	store      *state.Store
	supervisor *usecase.Supervisor
	probe      *usecase.VolumeProbe
	broker     *mqtt.Client
	sched      *scheduler.Scheduler
}

func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to determine hostname: %w", err)
	}

	store, err := state.NewStore(cfg.App.StateDir)
	if err != nil {
		return nil, err
	}

	mounter := mount.NewCIFS(&cfg.Share)
	dest := storage.NewDestination(mounter.MountPoint())
	dev := device.New(cfg.Backup.Device)
	sink := &deferredSink{}

	var notifier domain.Notifier
	if cfg.Notify.Telegram.Enabled {
		notifier, err = notify.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			return nil, err
		}
	}

	verifier := usecase.NewVerifier(
		func(path string) usecase.WindowReader { return device.New(path) },
		cfg.Backup.VerifySegments,
		cfg.Backup.VerifySegmentSize,
		log,
	)
	retention := usecase.NewRetention(dest, dev, sink, log, hostname, cfg.Backup.Retain)

	supervisor := usecase.NewSupervisor(usecase.SupervisorConfig{
		Hostname:    hostname,
		Device:      dev,
		Destination: dest,
		Mounter:     mounter,
		Runner:      runner.NewExec(),
		Store:       store,
		Sink:        sink,
		Verifier:    verifier,
		Retention:   retention,
		Notifier:    notifier,
		Verify:      cfg.Backup.Verify,
		Logger:      log,
	})

	a := &App{
		cfg:        cfg,
		log:        log,
		hostname:   hostname,
		mounter:    mounter,
		dev:        dev,
		store:      store,
		supervisor: supervisor,
		sched:      scheduler.New(),
	}
	a.probe = usecase.NewVolumeProbe(mounter, dest, sink, log, supervisor.Active)
	a.broker = mqtt.NewClient(&cfg.MQTT, hostname, a, log)
	sink.client = a.broker

	return a, nil
}

// Run brings the daemon up and blocks until the context is cancelled.
// A failed destination preflight is the only fatal startup path; broker
// connectivity retries forever instead.
func (a *App) Run(ctx context.Context) error {
	if err := a.preflightShareAccess(); err != nil {
		return fmt.Errorf("destination preflight failed: %w", err)
	}
	a.log.Infof("destination share preflight passed")

	if err := a.broker.Connect(); err != nil {
		return err
	}
	a.publishInitialState()

	interval := fmt.Sprintf("@every %ds", a.cfg.Share.CheckInterval)
	if err := a.sched.AddJob(interval, a.probe.Check); err != nil {
		return fmt.Errorf("failed to schedule share probe: %w", err)
	}
	if a.cfg.Backup.Schedule != "" {
		err := a.sched.AddJob(a.cfg.Backup.Schedule, func(context.Context) error {
			if err := a.supervisor.Start(); err != nil {
				a.log.Warnf("scheduled backup not started: %v", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to schedule backups: %w", err)
		}
		a.log.Infof("scheduled backups enabled: %s", a.cfg.Backup.Schedule)
	}
	a.sched.Start()

	a.log.Infof("blockward is ready on %s, watching %s", a.hostname, a.cfg.Backup.Device)
	<-ctx.Done()
	return nil
}

// Shutdown stops scheduling, cancels any in-flight job and waits for
// the worker to finish before dropping the broker connection.
func (a *App) Shutdown() {
	a.log.Infof("shutting down...")
	a.sched.Stop()
	if a.supervisor.Active() {
		a.supervisor.Stop()
	}
	a.supervisor.Wait()
	a.broker.Disconnect()
	a.log.Close()
}

// preflightShareAccess proves the share is mountable and writable
// before the daemon accepts any command: mount, write a probe file,
// read it back, delete it, unmount.
func (a *App) preflightShareAccess() error {
	if !a.mounter.IsMounted() {
		if err := a.mounter.Mount(); err != nil {
			return err
		}
	}
	defer func() {
		if err := a.mounter.Unmount(); err != nil {
			a.log.Warnf("failed to unmount after preflight: %v", err)
		}
	}()

	probePath := filepath.Join(a.mounter.MountPoint(), preflightProbeFile)
	payload := []byte(time.Now().Format(time.RFC3339))

	if err := os.WriteFile(probePath, payload, 0644); err != nil {
		return fmt.Errorf("share is not writable: %w", err)
	}
	if _, err := os.ReadFile(probePath); err != nil {
		return fmt.Errorf("share is not readable: %w", err)
	}
	if err := os.Remove(probePath); err != nil {
		return fmt.Errorf("could not delete probe file: %w", err)
	}
	return nil
}

// publishInitialState replays the persisted run record and zeroes the
// live gauges so dashboards do not show leftovers from a previous run.
func (a *App) publishInitialState() {
	rs := a.store.LoadRunState()

	a.broker.Publish(domain.SignalStatus, "Ready")
	a.broker.Publish(domain.SignalOngoing, "False")
	a.broker.Publish(domain.SignalLastStart, rs.LastStart)
	a.broker.Publish(domain.SignalLastEnd, rs.LastEnd)
	a.broker.Publish(domain.SignalLastStatus, rs.LastStatus)
	a.broker.PublishRetained(domain.SignalLastSuccessful, rs.LastSuccessfulFile)

	a.broker.Publish(domain.SignalProgress, "0")
	a.broker.Publish(domain.SignalEstimatedRemaining, "0")
	a.broker.Publish(domain.SignalElapsedTime, "0")
	a.broker.Publish(domain.SignalWriteSpeed, "0")
	if size, err := a.dev.Size(); err == nil {
		a.broker.Publish(domain.SignalDataTransferred,
			fmt.Sprintf("%s of %s", usecase.FormatSize(0), usecase.FormatSize(size)))
	}

	a.broker.PublishRetained(domain.SignalCompressionState,
		strconv.FormatBool(a.store.LoadCompression()))
}

// HandleStart runs a backup on demand. Rejection while a job is active
// is already logged by the supervisor.
func (a *App) HandleStart() {
	_ = a.supervisor.Start()
}

func (a *App) HandleStop() {
	a.supervisor.Stop()
}

// HandleCompressionSet persists the toggle and echoes it back retained,
// confirming the switch state to observers.
func (a *App) HandleCompressionSet(enabled bool) {
	if err := a.store.SaveCompression(enabled); err != nil {
		a.log.Errorf("failed to persist compression setting: %v", err)
		return
	}
	a.broker.PublishRetained(domain.SignalCompressionState, strconv.FormatBool(enabled))
	a.log.Infof("compression set to %t", enabled)
}

// deferredSink lets the supervisor be built before the broker client
// exists. Publishes before wiring are dropped, which only ever covers
// construction time.
type deferredSink struct {
	client *mqtt.Client
}

func (s *deferredSink) Publish(sig domain.Signal, payload string) {
	if s.client != nil {
		s.client.Publish(sig, payload)
	}
}

func (s *deferredSink) PublishRetained(sig domain.Signal, payload string) {
	if s.client != nil {
		s.client.PublishRetained(sig, payload)
	}
}
