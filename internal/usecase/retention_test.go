package usecase

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/blockward/internal/domain"
)

func TestMatchesArtifact(t *testing.T) {
	Convey("Given destination entry names", t, func() {
		Convey("Host-scoped image names should match", func() {
			So(MatchesArtifact("blockward_pi4_20260101_120000.img", "pi4"), ShouldBeTrue)
			So(MatchesArtifact("blockward_pi4_20260101_120000.img.gz", "pi4"), ShouldBeTrue)
		})

		Convey("Foreign and partial names should not", func() {
			So(MatchesArtifact("blockward_other_20260101_120000.img", "pi4"), ShouldBeFalse)
			So(MatchesArtifact("vacation_photos.zip", "pi4"), ShouldBeFalse)
			So(MatchesArtifact("blockward_pi4_20260101_120000.img.tmp", "pi4"), ShouldBeFalse)
			So(MatchesArtifact("blockward_pi4", "pi4"), ShouldBeFalse)
		})
	})
}

func TestRetention(t *testing.T) {
	Convey("Given a destination with backups of a 1 GB device", t, func() {
		const deviceSize = 1_000_000_000
		day := func(n int) time.Time {
			return time.Date(2026, 8, n, 3, 0, 0, 0, time.UTC)
		}

		dest := newFakeDest()
		sink := &recordSink{}
		dev := &fakeDevice{size: deviceSize}
		r := NewRetention(dest, dev, sink, nopLogger{}, "pi4", 2)

		Convey("When more valid backups exist than the retained count", func() {
			dest.add("blockward_pi4_20260801_030000.img", deviceSize, day(1))
			dest.add("blockward_pi4_20260802_030000.img", deviceSize, day(2))
			dest.add("blockward_pi4_20260803_030000.img", deviceSize, day(3))
			dest.add("blockward_pi4_20260804_030000.img", deviceSize, day(4))

			So(r.Cleanup(), ShouldBeNil)

			Convey("Only the newest should survive", func() {
				So(dest.names(), ShouldResemble, []string{
					"blockward_pi4_20260803_030000.img",
					"blockward_pi4_20260804_030000.img",
				})
			})

			Convey("The count should be republished", func() {
				count, ok := sink.last(domain.SignalBackupCount)
				So(ok, ShouldBeTrue)
				So(count, ShouldEqual, "2")
			})
		})

		Convey("When entries fall outside the size tolerance band", func() {
			dest.add("blockward_pi4_20260801_030000.img", deviceSize/2, day(1))  // truncated copy
			dest.add("blockward_pi4_20260802_030000.img", deviceSize*2, day(2))  // not ours
			dest.add("blockward_pi4_20260803_030000.img", deviceSize, day(3))
			dest.add("blockward_pi4_20260804_030000.img", deviceSize, day(4))
			dest.add("blockward_pi4_20260805_030000.img", deviceSize, day(5))

			So(r.Cleanup(), ShouldBeNil)

			Convey("Out-of-band entries should never be deleted", func() {
				names := dest.names()
				So(names, ShouldContain, "blockward_pi4_20260801_030000.img")
				So(names, ShouldContain, "blockward_pi4_20260802_030000.img")
			})

			Convey("Valid backups should still be pruned to the retained count", func() {
				names := dest.names()
				So(names, ShouldNotContain, "blockward_pi4_20260803_030000.img")
				So(names, ShouldContain, "blockward_pi4_20260804_030000.img")
				So(names, ShouldContain, "blockward_pi4_20260805_030000.img")
			})
		})

		Convey("When sizes sit just inside the tolerance band", func() {
			low := int64(float64(deviceSize)*sizeToleranceLow) + 1
			high := int64(float64(deviceSize)*sizeToleranceHigh) - 1
			dest.add("blockward_pi4_20260801_030000.img", low, day(1))
			dest.add("blockward_pi4_20260802_030000.img", high, day(2))
			dest.add("blockward_pi4_20260803_030000.img", deviceSize, day(3))

			So(r.Cleanup(), ShouldBeNil)

			Convey("They should count as valid and the oldest should go", func() {
				So(dest.names(), ShouldResemble, []string{
					"blockward_pi4_20260802_030000.img",
					"blockward_pi4_20260803_030000.img",
				})
			})
		})

		Convey("When foreign files share the directory", func() {
			dest.add("blockward_pi4_20260801_030000.img", deviceSize, day(1))
			dest.add("blockward_nas_20260802_030000.img", deviceSize, day(2))
			dest.add("notes.txt", 42, day(3))

			So(r.Cleanup(), ShouldBeNil)

			Convey("They should be ignored entirely", func() {
				So(len(dest.names()), ShouldEqual, 3)
			})

			Convey("Count should only tally this host's artifacts", func() {
				count, err := r.Count()
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})
		})
	})
}
