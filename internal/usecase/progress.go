package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ProgressEvent is what a single line of copy-tool output yields.
// Either field may be absent; malformed lines yield an empty event,
// never an error.
type ProgressEvent struct {
	BytesCopied int64
	HasBytes    bool
	SpeedMBps   float64
	HasSpeed    bool
}

// SpeedBytesPerSec converts the reported rate using 1 MB = 1e6 bytes,
// matching the unit dd prints.
func (e ProgressEvent) SpeedBytesPerSec() float64 {
	return e.SpeedMBps * 1e6
}

// ParseLine extracts progress figures from one line of dd output, e.g.
//
//	1073741824 bytes (1.1 GB, 1.0 GiB) copied, 10 s, 107 MB/s
//
// The copied-byte count is the first whitespace token that parses
// entirely as a non-negative integer. Throughput is the trailing
// comma-separated segment, recognized only with an "MB/s" suffix.
func ParseLine(line string) ProgressEvent {
	var ev ProgressEvent

	for _, tok := range strings.Fields(line) {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err == nil && n >= 0 {
			ev.BytesCopied = n
			ev.HasBytes = true
			break
		}
	}

	segments := strings.Split(line, ",")
	last := strings.TrimSpace(segments[len(segments)-1])
	if strings.HasSuffix(last, "MB/s") {
		raw := strings.TrimSpace(strings.TrimSuffix(last, "MB/s"))
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			ev.SpeedMBps = v
			ev.HasSpeed = true
		}
	}

	return ev
}

// ProgressTracker derives publishable samples from parse events.
// TotalBytes of zero means the source size is unknown: percent, ETA
// and the transfer string are then suppressed, but elapsed time still
// advances with the wall clock.
type ProgressTracker struct {
	TotalBytes int64
	StartedAt  time.Time
}

// ProgressSample is the ephemeral, derived view of one progress line.
type ProgressSample struct {
	BytesCopied    int64
	Percent        float64
	HasPercent     bool
	SpeedMBps      float64
	HasSpeed       bool
	ETASeconds     int64
	HasETA         bool
	ElapsedSeconds int64
	Transferred    string
	HasTransferred bool
}

func (t *ProgressTracker) Sample(ev ProgressEvent, now time.Time) ProgressSample {
	s := ProgressSample{
		ElapsedSeconds: int64(now.Sub(t.StartedAt).Seconds()),
	}

	if ev.HasSpeed {
		s.SpeedMBps = ev.SpeedMBps
		s.HasSpeed = true
	}

	if ev.HasBytes && t.TotalBytes > 0 {
		s.BytesCopied = ev.BytesCopied
		s.Percent = math.Round(float64(ev.BytesCopied)/float64(t.TotalBytes)*100*100) / 100
		s.HasPercent = true
		s.Transferred = fmt.Sprintf("%s of %s", FormatSize(ev.BytesCopied), FormatSize(t.TotalBytes))
		s.HasTransferred = true

		// A zero or unknown speed suppresses the ETA rather than
		// publishing infinity or a stale value.
		if ev.HasSpeed && ev.SpeedMBps > 0 {
			remaining := float64(t.TotalBytes - ev.BytesCopied)
			s.ETASeconds = int64(math.Round(remaining / ev.SpeedBytesPerSec()))
			s.HasETA = true
		}
	}

	return s
}

// FormatSize renders a byte count in decimal gigabytes, one decimal
// place, the way the published transfer strings have always looked.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.1f GB", float64(bytes)/1e9)
}
