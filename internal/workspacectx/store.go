package workspacectx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// CurrentWorkspaceKey is the single key the client persists locally.
const CurrentWorkspaceKey = "current_workspace_id"

// LocalStore is the client-side persistent cache. Load returns "" when no id
// has been stored.
type LocalStore interface {
	Load() (string, error)
	Save(workspaceID string) error
	Clear() error
}

// FileStore keeps the cache in a YAML document on disk. Unknown keys in the
// document are preserved.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("workspacectx: file store path is required")
	}
	return &FileStore{path: path}, nil
}

// DefaultStatePath returns the per-user state file location.
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("workspacectx: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "adboard", "state.yaml"), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	return doc[CurrentWorkspaceKey], nil
}

func (s *FileStore) Save(workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[CurrentWorkspaceKey] = workspaceID
	return s.write(doc)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc[CurrentWorkspaceKey]; !ok {
		return nil
	}
	delete(doc, CurrentWorkspaceKey)
	return s.write(doc)
}

func (s *FileStore) read() (map[string]string, error) {
	doc := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspacectx: read state: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workspacectx: parse state %s: %w", s.path, err)
	}
	if doc == nil {
		doc = make(map[string]string)
	}
	return doc, nil
}

func (s *FileStore) write(doc map[string]string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("workspacectx: encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("workspacectx: create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("workspacectx: write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("workspacectx: replace state: %w", err)
	}
	return nil
}

// MemoryStore is an in-process LocalStore.
type MemoryStore struct {
	mu    sync.Mutex
	value string
}

func (s *MemoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *MemoryStore) Save(workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = workspaceID
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	return nil
}
