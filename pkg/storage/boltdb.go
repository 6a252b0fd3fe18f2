package storage

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketComponents  = []byte("components")
	bucketNodes       = []byte("nodes")
	bucketCheckpoints = []byte("checkpoints")
)

// BoltStore implements Store on top of a single bbolt file, one bucket per
// concern, same layout style as the teacher's BoltDB store.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) skitter.db under dataDir and
// ensures all three buckets exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "skitter.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketComponents, bucketNodes, bucketCheckpoints} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) SaveComponent(name string, data []byte) error {
	return s.put(bucketComponents, name, data)
}

func (s *BoltStore) GetComponent(name string) ([]byte, error) {
	return s.get(bucketComponents, name)
}

func (s *BoltStore) ListComponents() (map[string][]byte, error) {
	return s.list(bucketComponents)
}

func (s *BoltStore) DeleteComponent(name string) error {
	return s.delete(bucketComponents, name)
}

func (s *BoltStore) SaveNode(key string, data []byte) error {
	return s.put(bucketNodes, key, data)
}

func (s *BoltStore) GetNode(key string) ([]byte, error) {
	return s.get(bucketNodes, key)
}

func (s *BoltStore) ListNodes() (map[string][]byte, error) {
	return s.list(bucketNodes)
}

func (s *BoltStore) DeleteNode(key string) error {
	return s.delete(bucketNodes, key)
}

func (s *BoltStore) SaveCheckpoint(key string, data []byte) error {
	return s.put(bucketCheckpoints, key, data)
}

func (s *BoltStore) GetCheckpoint(key string) ([]byte, error) {
	return s.get(bucketCheckpoints, key)
}

func (s *BoltStore) DeleteCheckpoint(key string) error {
	return s.delete(bucketCheckpoints, key)
}

func (s *BoltStore) put(bucket []byte, key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("key not found: %s", key)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (s *BoltStore) list(bucket []byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			out[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
