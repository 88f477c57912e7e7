// File: internal/storage/bolt.go
// Description: bbolt-backed implementation of the opaque blob-store
// collaborator. The core only ever reads and writes string blobs under fixed
// keys; everything else (buckets, file handling) stays behind this type.

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fitforge/fitroom-cli/api/schemas"
)

const blobBucket = "blobs"

// BoltStore persists blobs in a single-file bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Ensure BoltStore implements the BlobStore interface.
var _ schemas.BlobStore = (*BoltStore)(nil)

// NewBoltStore opens (creating if needed) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(blobBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns the blob stored under key and whether it was present.
func (s *BoltStore) Get(key string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(blobBucket)).Get([]byte(key))
		if data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return value, found, nil
}

// Put stores the blob under key, replacing any previous value.
func (s *BoltStore) Put(key, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(blobBucket)).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write blob %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
