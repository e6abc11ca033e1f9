package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/blockward/internal/domain"
)

const (
	runStateFile    = "backup_state.json"
	compressionFile = "compression_state.json"
)

// Store keeps the two durable records as flat JSON files. Writes are
// atomic whole-file overwrites (write-then-rename), reads substitute
// safe defaults for missing or corrupt files.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) LoadRunState() domain.RunState {
	rs := domain.DefaultRunState()

	data, err := os.ReadFile(filepath.Join(s.dir, runStateFile))
	if err != nil {
		return rs
	}
	// Unmarshalling over the defaults keeps "n/a" for any missing key.
	if err := json.Unmarshal(data, &rs); err != nil {
		return domain.DefaultRunState()
	}
	return rs
}

func (s *Store) SaveRunState(rs domain.RunState) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}
	return s.writeAtomic(runStateFile, data)
}

type compressionState struct {
	CompressionEnabled bool `json:"compression_enabled"`
}

func (s *Store) LoadCompression() bool {
	data, err := os.ReadFile(filepath.Join(s.dir, compressionFile))
	if err != nil {
		return false
	}
	var cs compressionState
	if err := json.Unmarshal(data, &cs); err != nil {
		return false
	}
	return cs.CompressionEnabled
}

func (s *Store) SaveCompression(enabled bool) error {
	data, err := json.Marshal(compressionState{CompressionEnabled: enabled})
	if err != nil {
		return fmt.Errorf("failed to encode compression state: %w", err)
	}
	return s.writeAtomic(compressionFile, data)
}

func (s *Store) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
