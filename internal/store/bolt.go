package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketName = "assistant_kv"

// BoltStore is a bbolt-backed Store. All keys live in a single bucket so the
// occupancy walk sees every tenant of the file.
type BoltStore struct {
	db       *bolt.DB
	maxBytes int64
}

// OpenBolt opens (or creates) a bbolt-backed store at path. maxBytes, when
// positive, imposes a hard capacity on writes, emulating the quota of a
// shared storage realm; zero disables the quota.
func OpenBolt(path string, maxBytes int64) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, maxBytes: maxBytes}, nil
}

// Get returns the value for key, or (nil, nil) when absent.
func (s *BoltStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return out, nil
}

// Set writes the value for key, enforcing the capacity quota.
func (s *BoltStore) Set(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if s.maxBytes > 0 {
			used := usedBytesIn(b)
			if prev := b.Get([]byte(key)); prev != nil {
				used -= int64(len(key) + len(prev))
			}
			if used+int64(len(key)+len(value)) > s.maxBytes {
				return ErrQuotaExceeded
			}
		}

		return b.Put([]byte(key), value)
	})
}

// Delete removes key.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// UsedBytes walks the bucket and sums len(key)+len(value) over all keys.
func (s *BoltStore) UsedBytes() (int64, error) {
	var used int64
	err := s.db.View(func(tx *bolt.Tx) error {
		used = usedBytesIn(tx.Bucket([]byte(bucketName)))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compute occupancy: %w", err)
	}
	return used, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func usedBytesIn(b *bolt.Bucket) int64 {
	var used int64
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		used += int64(len(k) + len(v))
	}
	return used
}
