package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/blockward/internal/domain"
)

// Destination enumerates and removes backup artifacts in the mounted
// destination directory. It deliberately does not create the
// directory: the mount lifecycle belongs to the mounter.
type Destination struct {
	basePath string
}

func NewDestination(basePath string) *Destination {
	return &Destination{basePath: basePath}
}

func (d *Destination) Path(name string) string {
	return filepath.Join(d.basePath, name)
}

// ListArtifacts returns every regular file with its size and mtime.
// Classification (naming convention, size tolerance) is the caller's
// business.
func (d *Destination) ListArtifacts() ([]domain.Artifact, error) {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination directory: %w", err)
	}

	var artifacts []domain.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		artifacts = append(artifacts, domain.Artifact{
			Name:       entry.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	return artifacts, nil
}

func (d *Destination) Remove(name string) error {
	if err := os.Remove(d.Path(name)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Probe checks that the destination directory is readable.
func (d *Destination) Probe() error {
	if _, err := os.ReadDir(d.basePath); err != nil {
		return fmt.Errorf("destination not accessible: %w", err)
	}
	return nil
}
