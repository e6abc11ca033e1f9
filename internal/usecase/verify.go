package usecase

import (
	"errors"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"
)

// VerifyBlockSize is the normalized window length for sampled
// verification. Configured segment sizes are coerced to this value.
const VerifyBlockSize = 1024 * 1024

// Verification failures are distinct from copy failures: the copy
// process exited cleanly, the content just could not be vouched for.
var (
	ErrSizeMismatch    = errors.New("source and artifact sizes do not match")
	ErrSegmentMismatch = errors.New("segment digest mismatch")
)

// WindowReader reads fixed-size byte windows from a device or file.
type WindowReader interface {
	Size() (int64, error)
	ReadWindow(offset int64, buf []byte) error
}

// WindowOpener opens a path for windowed reading.
type WindowOpener func(path string) WindowReader

// Verifier statistically validates a completed copy by hashing a small
// number of evenly spaced windows on both sides instead of re-reading
// the whole device.
type Verifier struct {
	open        WindowOpener
	segments    int
	segmentSize int64
	logger      Logger
}

func NewVerifier(open WindowOpener, segments int, segmentSize int64, logger Logger) *Verifier {
	if segments < 1 {
		segments = 1
	}
	if segmentSize != VerifyBlockSize {
		logger.Warnf("verification segment size %d not supported, using %d", segmentSize, VerifyBlockSize)
		segmentSize = VerifyBlockSize
	}
	return &Verifier{
		open:        open,
		segments:    segments,
		segmentSize: segmentSize,
		logger:      logger,
	}
}

// Verify compares source and artifact. The exact size check comes
// first: any divergence fails immediately, no window is read. Then
// each window is hashed independently on both sides and compared,
// failing fast on the first mismatch.
func (v *Verifier) Verify(source WindowReader, artifactPath string) error {
	sourceSize, err := source.Size()
	if err != nil {
		return fmt.Errorf("failed to determine source size: %w", err)
	}

	artifact := v.open(artifactPath)
	artifactSize, err := artifact.Size()
	if err != nil {
		return fmt.Errorf("failed to determine artifact size: %w", err)
	}

	if sourceSize != artifactSize {
		return fmt.Errorf("%w: source %d bytes, artifact %d bytes",
			ErrSizeMismatch, sourceSize, artifactSize)
	}

	buf := make([]byte, v.segmentSize)
	for _, offset := range SegmentOffsets(sourceSize, v.segmentSize, v.segments) {
		sourceDigest, err := windowDigest(source, offset, buf)
		if err != nil {
			return fmt.Errorf("failed to hash source segment at offset %d: %w", offset, err)
		}
		artifactDigest, err := windowDigest(artifact, offset, buf)
		if err != nil {
			return fmt.Errorf("failed to hash artifact segment at offset %d: %w", offset, err)
		}

		if sourceDigest != artifactDigest {
			return fmt.Errorf("%w at offset %d", ErrSegmentMismatch, offset)
		}
		v.logger.Infof("segment at offset %d verified", offset)
	}

	return nil
}

// SegmentOffsets spaces count offsets evenly across
// [0, sourceSize-segmentSize], including both endpoints.
func SegmentOffsets(sourceSize, segmentSize int64, count int) []int64 {
	if count <= 1 || sourceSize <= segmentSize {
		return []int64{0}
	}

	step := float64(sourceSize-segmentSize) / float64(count-1)
	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = int64(math.Round(float64(i) * step))
	}
	return offsets
}

func windowDigest(r WindowReader, offset int64, buf []byte) (xxh3.Uint128, error) {
	if err := r.ReadWindow(offset, buf); err != nil {
		return xxh3.Uint128{}, err
	}
	return xxh3.Hash128(buf), nil
}
