package mount

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/semmidev/blockward/internal/config"
)

// CIFS mounts and unmounts the destination SMB share through mount(8)
// and umount(8). Mount state is read from /proc/mounts so a share that
// disappeared behind our back is reported correctly.
type CIFS struct {
	remote     string
	mountPoint string
	username   string
	password   string
}

func NewCIFS(cfg *config.ShareConfig) *CIFS {
	return &CIFS{
		remote:     cfg.Remote,
		mountPoint: cfg.MountPoint,
		username:   cfg.Username,
		password:   cfg.Password,
	}
}

func (c *CIFS) MountPoint() string {
	return c.mountPoint
}

func (c *CIFS) Mount() error {
	if err := os.MkdirAll(c.mountPoint, 0755); err != nil {
		return fmt.Errorf("failed to create mount point: %w", err)
	}

	opts := fmt.Sprintf("username=%s,password=%s,iocharset=utf8,file_mode=0777,dir_mode=0777",
		c.username, c.password)

	cmd := exec.Command("mount", "-t", "cifs", c.remote, c.mountPoint, "-o", opts)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

func (c *CIFS) Unmount() error {
	if !c.IsMounted() {
		return nil
	}

	cmd := exec.Command("umount", c.mountPoint)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("umount failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

func (c *CIFS) IsMounted() bool {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && unescapeMountPath(fields[1]) == c.mountPoint {
			return true
		}
	}
	return false
}

// /proc/mounts escapes spaces and tabs in paths as octal sequences.
func unescapeMountPath(path string) string {
	r := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return r.Replace(path)
}
