package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const ext = ".json"

// Store provides thread-safe JSON file storage. Records live at
// <base>/<collection>/<id>.json; records may own nested documents under
// <base>/<collection>/<id>/<subdir>/<name>.json.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a new local JSON store
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Save persists data as collection/id.json
func (s *Store) Save(collection, id string, data interface{}) error {
	path, err := s.path(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(path, data)
}

// Load reads collection/id.json into data
func (s *Store) Load(collection, id string, data interface{}) error {
	path, err := s.path(collection, id)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON(path, data)
}

// Delete removes collection/id.json
func (s *Store) Delete(collection, id string) error {
	path, err := s.path(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List returns all IDs in a collection
func (s *Store) List(collection string) ([]string, error) {
	if err := checkName(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return listJSON(filepath.Join(s.basePath, collection))
}

// Exists checks if a record exists
func (s *Store) Exists(collection, id string) bool {
	path, err := s.path(collection, id)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(path)
	return err == nil
}

// SaveDir saves a document owned by record id
func (s *Store) SaveDir(collection, id, subdir, filename string, data interface{}) error {
	path, err := s.path(collection, id, subdir, filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(path, data)
}

// LoadDir loads a document owned by record id
func (s *Store) LoadDir(collection, id, subdir, filename string, data interface{}) error {
	path, err := s.path(collection, id, subdir, filename)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON(path, data)
}

// ListDir lists the documents in one subdirectory of record id
func (s *Store) ListDir(collection, id, subdir string) ([]string, error) {
	for _, name := range []string{collection, id, subdir} {
		if err := checkName(name); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return listJSON(filepath.Join(s.basePath, collection, id, subdir))
}

// DeleteDir removes every document owned by record id
func (s *Store) DeleteDir(collection, id string) error {
	for _, name := range []string{collection, id} {
		if err := checkName(name); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.basePath, collection, id)); err != nil {
		return fmt.Errorf("remove directory: %w", err)
	}
	return nil
}

// path joins validated name segments under the base path; the last segment
// is the file name without extension
func (s *Store) path(segments ...string) (string, error) {
	for _, name := range segments {
		if err := checkName(name); err != nil {
			return "", err
		}
	}
	parts := append([]string{s.basePath}, segments...)
	return filepath.Join(parts...) + ext, nil
}

// checkName rejects names that would escape the store directory
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// writeJSON encodes data to a temp file and renames it over path
func writeJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func readJSON(path string, data interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if filepath.Ext(name) == ext {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	return ids, nil
}
