package runner

import (
	"bufio"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExecRunner(t *testing.T) {
	Convey("Given an exec runner", t, func() {
		r := NewExec()

		Convey("When launching an empty command", func() {
			_, err := r.StartGroup(nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When launching a command that writes to stdout and stderr", func() {
			proc, err := r.StartGroup([]string{"/bin/sh", "-c", "echo out; echo err >&2"})
			So(err, ShouldBeNil)

			Convey("Both streams should arrive on the combined output", func() {
				var lines []string
				scanner := bufio.NewScanner(proc.Output())
				for scanner.Scan() {
					lines = append(lines, scanner.Text())
				}
				So(proc.Wait(), ShouldBeNil)
				So(lines, ShouldContain, "out")
				So(lines, ShouldContain, "err")
				So(proc.ExitCode(), ShouldEqual, 0)
			})
		})

		Convey("When the command exits nonzero", func() {
			proc, err := r.StartGroup([]string{"/bin/sh", "-c", "exit 3"})
			So(err, ShouldBeNil)

			Convey("Wait should fail and the exit code should survive", func() {
				So(proc.Wait(), ShouldNotBeNil)
				So(proc.ExitCode(), ShouldEqual, 3)
			})
		})

		Convey("When the binary does not exist", func() {
			_, err := r.StartGroup([]string{"/nonexistent/binary"})

			Convey("StartGroup should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When terminating a long-running pipeline", func() {
			proc, err := r.StartGroup([]string{"/bin/sh", "-c", "sleep 60 | cat"})
			So(err, ShouldBeNil)

			So(proc.Terminate(), ShouldBeNil)

			Convey("The whole group should die promptly", func() {
				select {
				case <-proc.Done():
					So(proc.ExitCode(), ShouldNotEqual, 0)
				case <-time.After(5 * time.Second):
					proc.Kill()
					<-proc.Done()
					t.Fatal("process group did not exit after SIGTERM")
				}
				So(proc.Wait(), ShouldNotBeNil)
			})
		})

		Convey("When killing an unresponsive group", func() {
			proc, err := r.StartGroup([]string{"/bin/sh", "-c", "trap '' TERM; sleep 60"})
			So(err, ShouldBeNil)

			So(proc.Kill(), ShouldBeNil)

			Convey("It should be reaped", func() {
				select {
				case <-proc.Done():
				case <-time.After(5 * time.Second):
					t.Fatal("process group did not exit after SIGKILL")
				}
				So(proc.Wait(), ShouldNotBeNil)
			})
		})

		Convey("Wait should be safe to call repeatedly", func() {
			proc, err := r.StartGroup([]string{"true"})
			So(err, ShouldBeNil)

			So(proc.Wait(), ShouldBeNil)
			So(proc.Wait(), ShouldBeNil)
		})
	})
}
