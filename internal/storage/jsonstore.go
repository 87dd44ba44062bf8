// Package storage persists the version registry as a single JSON document.
//
// The whole document is rewritten on every save. A missing or corrupt file
// is treated as an empty registry rather than an error, so a damaged store
// degrades to a fresh one instead of taking the registry down.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/modelver/internal/log"
	"github.com/zjrosen/modelver/internal/version"
)

// Document is the on-disk registry shape: model id -> version string -> record.
type Document map[string]map[string]version.Record

// FileStore reads and writes the registry document at a fixed path.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the JSON document at path.
// Nothing is touched on disk until Load or Save is called.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the registry document.
// A missing or unparseable file yields an empty document and no error;
// the registry rewrites the file on its next save.
func (s *FileStore) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug(log.CatStore, "Registry file absent, starting empty", "path", s.path)
			return Document{}, nil
		}
		log.ErrorErr(log.CatStore, "Failed to read registry file, starting empty", err, "path", s.path)
		return Document{}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.ErrorErr(log.CatStore, "Registry file corrupt, starting empty", err, "path", s.path)
		return Document{}, nil
	}
	if doc == nil {
		doc = Document{}
	}
	log.Debug(log.CatStore, "Loaded registry file", "path", s.path, "models", len(doc))
	return doc, nil
}

// Save writes the registry document atomically (temp file + rename).
// The parent directory is created if absent.
func (s *FileStore) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".registry.json.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	log.Debug(log.CatStore, "Saved registry file", "path", s.path, "models", len(doc))
	return nil
}
