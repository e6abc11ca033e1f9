package mount

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/blockward/internal/config"
)

func TestCIFS(t *testing.T) {
	Convey("Given a CIFS mounter", t, func() {
		c := NewCIFS(&config.ShareConfig{
			Remote:     "//nas.local/backups",
			MountPoint: "/mnt/blockward-test-nonexistent",
			Username:   "backup",
			Password:   "secret",
		})

		Convey("MountPoint should echo the configured path", func() {
			So(c.MountPoint(), ShouldEqual, "/mnt/blockward-test-nonexistent")
		})

		Convey("IsMounted should be false for a path absent from /proc/mounts", func() {
			So(c.IsMounted(), ShouldBeFalse)
		})

		Convey("Unmount should be a no-op when not mounted", func() {
			So(c.Unmount(), ShouldBeNil)
		})
	})
}

func TestUnescapeMountPath(t *testing.T) {
	Convey("Given /proc/mounts escaped paths", t, func() {
		Convey("Octal escapes should be decoded", func() {
			So(unescapeMountPath(`/mnt/my\040share`), ShouldEqual, "/mnt/my share")
			So(unescapeMountPath(`/mnt/tab\011here`), ShouldEqual, "/mnt/tab\there")
			So(unescapeMountPath(`/mnt/back\134slash`), ShouldEqual, `/mnt/back\slash`)
		})

		Convey("Plain paths should pass through", func() {
			So(unescapeMountPath("/mnt/backup"), ShouldEqual, "/mnt/backup")
		})
	})
}
