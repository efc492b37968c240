package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore is the byte storage used for raw uploads and cleaned records.
type BlobStore interface {
	Save(path string, data []byte) error
	Download(path string) ([]byte, error)
}

// LocalBlobStore keeps blobs on local disk under a single root directory.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) *LocalBlobStore {
	if root == "" {
		root = "uploads"
	}
	return &LocalBlobStore{root: root}
}

func NewLocalBlobStoreFromEnv() *LocalBlobStore {
	return NewLocalBlobStore(os.Getenv("BLOB_STORE_DIR"))
}

func (s *LocalBlobStore) Save(path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	return nil
}

func (s *LocalBlobStore) Download(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	return data, nil
}

// resolve maps a blob path onto the root dir, rejecting path escapes.
func (s *LocalBlobStore) resolve(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return filepath.Join(s.root, filepath.Clean("/"+path)), nil
}

// RawBlobPath is where an accepted upload lands.
func RawBlobPath(ownerID uint, datasetID, filename string) string {
	return fmt.Sprintf("raw/%d/%s/%s", ownerID, datasetID, filename)
}

// CleanBlobPath is where the normalized record set is persisted.
func CleanBlobPath(ownerID uint, datasetID string) string {
	return fmt.Sprintf("clean/%d/%s/records.json", ownerID, datasetID)
}
