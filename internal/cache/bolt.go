// FILE: lixenwraith/classconfig/internal/cache/bolt.go
package cache

import (
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketResolved = "resolved"

// BoltStore keeps resolved configuration in one bbolt database file
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketResolved))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache database %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Get reads the config stored under key
func (s *BoltStore) Get(key string) (map[string]any, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketResolved)).Get([]byte(key))
		if v != nil {
			// v is only valid during the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false, err
	}
	return decodeEntry(key, data)
}

// Put writes cfg under key
func (s *BoltStore) Put(key string, cfg map[string]any) error {
	data, err := encodeEntry(key, cfg)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketResolved)).Put([]byte(key), data)
	})
}

// Prune deletes every entry whose key does not start with keep + "/"
// and returns how many were removed
func (s *BoltStore) Prune(keep string) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketResolved))
		var stale [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if !strings.HasPrefix(string(k), keep+"/") {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Len returns the number of stored entries
func (s *BoltStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketResolved)).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
