package device

import (
	"fmt"
	"io"
	"os"
)

// BlockDevice reads size and byte windows from a block device node.
// Regular files satisfy the same contract, which is what the verifier
// relies on for the artifact side.
type BlockDevice struct {
	path string
}

func New(path string) *BlockDevice {
	return &BlockDevice{path: path}
}

func (d *BlockDevice) Path() string {
	return d.path
}

// Size seeks to the end of the device node, which reports the device
// capacity for block devices and the file size for regular files.
func (d *BlockDevice) Size() (int64, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to determine size of %s: %w", d.path, err)
	}
	return size, nil
}

// ReadWindow fills buf with the bytes starting at offset. A short read
// is an error: verification windows must be complete.
func (d *BlockDevice) ReadWindow(offset int64, buf []byte) error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	defer f.Close()

	if _, err := f.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("failed to read %d bytes at offset %d from %s: %w",
			len(buf), offset, d.path, err)
	}
	return nil
}
