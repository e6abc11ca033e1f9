package usecase

import (
	"context"

	"github.com/semmidev/blockward/internal/domain"
)

// DestinationProber checks that the destination directory is readable.
type DestinationProber interface {
	Probe() error
}

// VolumeProbe periodically reports destination share reachability. It
// runs off the scheduler, independent of the job worker, and never
// mounts or unmounts while a job is active so it cannot disturb an
// in-flight copy.
type VolumeProbe struct {
	mounter domain.Mounter
	dest    DestinationProber
	sink    domain.EventSink
	logger  Logger
	busy    func() bool
}

func NewVolumeProbe(
	mounter domain.Mounter,
	dest DestinationProber,
	sink domain.EventSink,
	logger Logger,
	busy func() bool,
) *VolumeProbe {
	return &VolumeProbe{
		mounter: mounter,
		dest:    dest,
		sink:    sink,
		logger:  logger,
		busy:    busy,
	}
}

// Check publishes the retained share status: online, offline or error.
func (p *VolumeProbe) Check(ctx context.Context) error {
	p.sink.PublishRetained(domain.SignalShareStatus, p.status())
	return nil
}

func (p *VolumeProbe) status() string {
	mountedHere := false

	if !p.mounter.IsMounted() {
		if p.busy != nil && p.busy() {
			// A job is active yet the share is gone; the worker's own
			// mount watch handles the fault, we just report it.
			return domain.ShareOffline
		}
		if err := p.mounter.Mount(); err != nil {
			p.logger.Errorf("share probe could not mount destination: %v", err)
			return domain.ShareOffline
		}
		mountedHere = true
	}

	err := p.dest.Probe()

	if mountedHere {
		if uerr := p.mounter.Unmount(); uerr != nil {
			p.logger.Warnf("share probe could not unmount destination: %v", uerr)
		}
	}

	if err != nil {
		p.logger.Errorf("share probe failed to access destination: %v", err)
		return domain.ShareError
	}
	return domain.ShareOnline
}
