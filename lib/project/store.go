package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type Store interface {
	Load() (*Project, error)
	Save(*Project) error
}

// FileStore keeps a project as an indented JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("project: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("project: create dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads and validates the project, or returns an empty one if the file
// does not exist yet.
func (s *FileStore) Load() (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			name := filepath.Base(s.path)
			return New(name[:len(name)-len(filepath.Ext(name))]), nil
		}
		return nil, fmt.Errorf("project: read: %w", err)
	}

	p := New("")
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("project: decode %s: %w", s.path, err)
	}
	if p.Profiles == nil {
		p.Profiles = map[ProfileID]FixtureProfile{}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("project: %s: %w", s.path, err)
	}
	return p, nil
}

// Save writes a temporary file and renames it over the project.
func (s *FileStore) Save(p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("project: encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("project: write tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("project: rename tmp: %w", err)
	}
	return nil
}
