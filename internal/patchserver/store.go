package patchserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store keeps accepted versions.
type Store interface {
	Put(v Version) error
	Get(id string) (Version, bool, error)
	List() ([]Version, error)
}

// MemoryStore is the default Store; versions live until the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]Version
	order    []string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: map[string]Version{}}
}

// Put implements Store.
func (s *MemoryStore) Put(v Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.versions[v.ID]; !exists {
		s.order = append(s.order, v.ID)
	}
	s.versions[v.ID] = v
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(id string) (Version, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	return v, ok, nil
}

// List implements Store, in arrival order.
func (s *MemoryStore) List() ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Version, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.versions[id])
	}
	return out, nil
}

// FileStore writes one JSON document per version under dir, so versions
// survive a server restart.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("patchserver: store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("patchserver: ensure store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory versions are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put implements Store. The document is written to a temp file and renamed
// into place.
func (s *FileStore) Put(v Version) error {
	path, err := s.path(v.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("patchserver: encode version %s: %w", v.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("patchserver: write version %s: %w", v.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("patchserver: store version %s: %w", v.ID, err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(id string) (Version, bool, error) {
	path, err := s.path(id)
	if err != nil {
		return Version{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := readVersion(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Version{}, false, nil
	}
	if err != nil {
		return Version{}, false, err
	}
	return v, true, nil
}

// List implements Store, oldest first.
func (s *FileStore) List() ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("patchserver: read store dir: %w", err)
	}
	var out []Version
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		v, err := readVersion(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

func (s *FileStore) path(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("patchserver: invalid version id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func readVersion(path string) (Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Version{}, err
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return Version{}, fmt.Errorf("patchserver: decode %s: %w", filepath.Base(path), err)
	}
	return v, nil
}
