package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONStore persists output collections as indented JSON documents in one
// directory, one file per collection.
type JSONStore struct {
	dir string
}

// NewJSONStore creates the directory if needed and returns a store rooted there.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Path returns the file path used for the named document.
func (s *JSONStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes v to the named document. The file is replaced atomically so a
// failed run never leaves a half-written document behind.
func (s *JSONStore) Save(name string, v any) error {
	return SaveJSON(s.Path(name), v)
}

// Load decodes the named document into v. A missing document yields
// ErrSourceNotFound.
func (s *JSONStore) Load(name string, v any) error {
	return LoadJSON(s.Path(name), v)
}

// SaveJSON writes v as indented JSON to path, creating parent directories.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create dir for %q: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode %q: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("json: create temp for %q: %w", path, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("json: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("json: close %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("json: replace %q: %w", path, err)
	}
	return nil
}

// LoadJSON decodes the document at path into v.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("json: load %q: %w", path, ErrSourceNotFound)
	}
	if err != nil {
		return fmt.Errorf("json: load %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json: decode %q: %w", path, err)
	}
	return nil
}

// SaveJSONLines writes one compact JSON document per line, the format the
// extractor uses for review batches.
func SaveJSONLines[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create dir for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("json: create %q: %w", path, err)
	}
	enc := json.NewEncoder(f)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("json: encode line %d of %q: %w", i+1, path, err)
		}
	}
	return f.Close()
}
