package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		s := New()

		Convey("When adding a job with a six-field cron spec", func() {
			var runs int64
			err := s.AddJob("* * * * * *", func(context.Context) error {
				atomic.AddInt64(&runs, 1)
				return nil
			})

			Convey("It should run repeatedly once started", func() {
				So(err, ShouldBeNil)

				s.Start()
				time.Sleep(2500 * time.Millisecond)
				s.Stop()

				So(atomic.LoadInt64(&runs), ShouldBeGreaterThanOrEqualTo, 2)

				Convey("And not run again after Stop", func() {
					settled := atomic.LoadInt64(&runs)
					time.Sleep(1500 * time.Millisecond)
					So(atomic.LoadInt64(&runs), ShouldEqual, settled)
				})
			})
		})

		Convey("When adding a job with an @every descriptor", func() {
			err := s.AddJob("@every 1s", func(context.Context) error { return nil })

			Convey("It should be accepted", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the spec is invalid", func() {
			err := s.AddJob("every minute or so", func(context.Context) error { return nil })

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
