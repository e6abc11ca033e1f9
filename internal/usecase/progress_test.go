package usecase

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseLine(t *testing.T) {
	Convey("Given dd progress output", t, func() {
		Convey("When parsing a full progress line", func() {
			ev := ParseLine("1073741824 bytes (1.1 GB, 1.0 GiB) copied, 10 s, 107 MB/s")

			Convey("It should extract bytes and speed", func() {
				So(ev.HasBytes, ShouldBeTrue)
				So(ev.BytesCopied, ShouldEqual, int64(1073741824))
				So(ev.HasSpeed, ShouldBeTrue)
				So(ev.SpeedMBps, ShouldEqual, 107.0)
			})
		})

		Convey("When parsing a line without a rate", func() {
			ev := ParseLine("524288000 bytes (524 MB, 500 MiB) copied")

			Convey("It should extract only bytes", func() {
				So(ev.HasBytes, ShouldBeTrue)
				So(ev.BytesCopied, ShouldEqual, int64(524288000))
				So(ev.HasSpeed, ShouldBeFalse)
			})
		})

		Convey("When parsing the final summary with fractional speed", func() {
			ev := ParseLine("2000000000 bytes (2.0 GB, 1.9 GiB) copied, 18.6537 s, 107.2 MB/s")

			Convey("It should parse the fractional rate", func() {
				So(ev.HasSpeed, ShouldBeTrue)
				So(ev.SpeedMBps, ShouldEqual, 107.2)
			})
		})

		Convey("When parsing a records line", func() {
			ev := ParseLine("1024+0 records in")

			Convey("It should yield nothing", func() {
				So(ev.HasBytes, ShouldBeFalse)
				So(ev.HasSpeed, ShouldBeFalse)
			})
		})

		Convey("When parsing garbage", func() {
			ev := ParseLine("dd: error writing '/mnt/backup/out.img': No space left on device")

			Convey("It should yield nothing instead of failing", func() {
				So(ev.HasBytes, ShouldBeFalse)
				So(ev.HasSpeed, ShouldBeFalse)
			})
		})

		Convey("When the rate unit is not MB/s", func() {
			ev := ParseLine("1048576 bytes (1.0 MB, 1.0 MiB) copied, 1 s, 1.0 GB/s")

			Convey("It should not report a speed", func() {
				So(ev.HasBytes, ShouldBeTrue)
				So(ev.HasSpeed, ShouldBeFalse)
			})
		})
	})
}

func TestProgressTracker(t *testing.T) {
	Convey("Given a tracker over a 2 GB source", t, func() {
		start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		tracker := &ProgressTracker{TotalBytes: 2_000_000_000, StartedAt: start}

		Convey("When sampling halfway at 100 MB/s", func() {
			ev := ProgressEvent{BytesCopied: 1_000_000_000, HasBytes: true, SpeedMBps: 100, HasSpeed: true}
			s := tracker.Sample(ev, start.Add(10*time.Second))

			Convey("It should derive percent, ETA, elapsed and transfer string", func() {
				So(s.HasPercent, ShouldBeTrue)
				So(s.Percent, ShouldEqual, 50.0)
				So(s.HasETA, ShouldBeTrue)
				So(s.ETASeconds, ShouldEqual, int64(10))
				So(s.ElapsedSeconds, ShouldEqual, int64(10))
				So(s.HasTransferred, ShouldBeTrue)
				So(s.Transferred, ShouldEqual, "1.0 GB of 2.0 GB")
			})
		})

		Convey("When the reported speed is zero", func() {
			ev := ProgressEvent{BytesCopied: 500_000_000, HasBytes: true, SpeedMBps: 0, HasSpeed: true}
			s := tracker.Sample(ev, start.Add(5*time.Second))

			Convey("It should suppress the ETA", func() {
				So(s.HasPercent, ShouldBeTrue)
				So(s.HasETA, ShouldBeFalse)
				So(s.ElapsedSeconds, ShouldEqual, int64(5))
			})
		})

		Convey("When percent needs rounding", func() {
			ev := ProgressEvent{BytesCopied: 333_333_333, HasBytes: true}
			s := tracker.Sample(ev, start.Add(time.Second))

			Convey("It should round to two decimals", func() {
				So(s.Percent, ShouldEqual, 16.67)
			})
		})
	})

	Convey("Given a tracker with unknown source size", t, func() {
		start := time.Now()
		tracker := &ProgressTracker{TotalBytes: 0, StartedAt: start.Add(-30 * time.Second)}

		Convey("When sampling a byte count", func() {
			ev := ProgressEvent{BytesCopied: 1_000_000, HasBytes: true, SpeedMBps: 50, HasSpeed: true}
			s := tracker.Sample(ev, start)

			Convey("It should still report speed and elapsed but no percent or ETA", func() {
				So(s.HasPercent, ShouldBeFalse)
				So(s.HasETA, ShouldBeFalse)
				So(s.HasTransferred, ShouldBeFalse)
				So(s.HasSpeed, ShouldBeTrue)
				So(s.ElapsedSeconds, ShouldEqual, int64(30))
			})
		})
	})
}

func TestFormatSize(t *testing.T) {
	Convey("Given byte counts", t, func() {
		Convey("They should render as decimal gigabytes", func() {
			So(FormatSize(0), ShouldEqual, "0.0 GB")
			So(FormatSize(1_000_000_000), ShouldEqual, "1.0 GB")
			So(FormatSize(31_914_983_424), ShouldEqual, "31.9 GB")
		})
	})
}

func TestArtifactName(t *testing.T) {
	Convey("Given a host and a timestamp", t, func() {
		ts := time.Date(2026, 8, 23, 4, 30, 0, 0, time.UTC)

		Convey("When compression is off", func() {
			So(ArtifactName("pi4", false, ts), ShouldEqual, "blockward_pi4_20260823_043000.img")
		})

		Convey("When compression is on", func() {
			So(ArtifactName("pi4", true, ts), ShouldEqual, "blockward_pi4_20260823_043000.img.gz")
		})

		Convey("Names should satisfy the artifact matcher", func() {
			So(MatchesArtifact(ArtifactName("pi4", false, ts), "pi4"), ShouldBeTrue)
			So(MatchesArtifact(ArtifactName("pi4", true, ts), "pi4"), ShouldBeTrue)
			So(MatchesArtifact(ArtifactName("pi4", false, ts), "other"), ShouldBeFalse)
		})
	})
}
