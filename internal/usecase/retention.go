package usecase

import (
	"sort"
	"strconv"
	"strings"

	"github.com/semmidev/blockward/internal/domain"
)

// Size tolerance band for a destination entry to count as a valid
// backup of the source device. Anything outside is treated as foreign
// or partial and is never deleted by the retention pass.
const (
	sizeToleranceLow  = 0.9
	sizeToleranceHigh = 1.1
)

const artifactPrefix = "blockward_"

// MatchesArtifact reports whether a destination entry follows the
// host-scoped artifact naming convention, compressed or not.
func MatchesArtifact(name, hostname string) bool {
	if !strings.HasPrefix(name, artifactPrefix+hostname+"_") {
		return false
	}
	return strings.HasSuffix(name, ".img") || strings.HasSuffix(name, ".img.gz")
}

// Retention prunes valid backups beyond the retained count, oldest
// first, leaving anything it cannot positively classify untouched.
type Retention struct {
	dest     DestinationStore
	device   SizeSource
	sink     domain.EventSink
	logger   Logger
	hostname string
	retain   int
}

// SizeSource reports the expected source device size.
type SizeSource interface {
	Size() (int64, error)
}

func NewRetention(
	dest DestinationStore,
	device SizeSource,
	sink domain.EventSink,
	logger Logger,
	hostname string,
	retain int,
) *Retention {
	return &Retention{
		dest:     dest,
		device:   device,
		sink:     sink,
		logger:   logger,
		hostname: hostname,
		retain:   retain,
	}
}

// Cleanup classifies destination entries, deletes the oldest valid
// backups until at most retain remain, and republishes the count. A
// failed deletion is logged and the pass continues.
func (r *Retention) Cleanup() error {
	expected, err := r.device.Size()
	if err != nil {
		r.logger.Errorf("could not determine expected device size, skipping cleanup: %v", err)
		return err
	}

	artifacts, err := r.dest.ListArtifacts()
	if err != nil {
		return err
	}

	var valid []domain.Artifact
	for _, a := range artifacts {
		if !MatchesArtifact(a.Name, r.hostname) {
			continue
		}
		size := float64(a.SizeBytes)
		if size < sizeToleranceLow*float64(expected) || size > sizeToleranceHigh*float64(expected) {
			r.logger.Warnf("backup %s has unexpected size %s (expected %s), leaving untouched",
				a.Name, FormatSize(a.SizeBytes), FormatSize(expected))
			continue
		}
		valid = append(valid, a)
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].ModifiedAt.Before(valid[j].ModifiedAt)
	})

	for len(valid) > r.retain {
		oldest := valid[0]
		valid = valid[1:]

		if err := r.dest.Remove(oldest.Name); err != nil {
			r.logger.Errorf("failed to delete old backup %s: %v", oldest.Name, err)
			continue
		}
		r.logger.Infof("old backup %s deleted", oldest.Name)
	}

	r.PublishCount()
	return nil
}

// Count tallies every destination entry matching the naming
// convention, regardless of size classification.
func (r *Retention) Count() (int, error) {
	artifacts, err := r.dest.ListArtifacts()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range artifacts {
		if MatchesArtifact(a.Name, r.hostname) {
			count++
		}
	}
	return count, nil
}

// PublishCount refreshes the backup_count signal.
func (r *Retention) PublishCount() {
	count, err := r.Count()
	if err != nil {
		r.logger.Errorf("failed to count backups: %v", err)
		return
	}
	r.sink.Publish(domain.SignalBackupCount, strconv.Itoa(count))
}
