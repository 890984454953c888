package store

import "sync"

// MemStore is an in-memory Store with the same quota semantics as BoltStore,
// used in tests and as a fallback when no store file can be opened.
type MemStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	maxBytes int64

	// FailSets, when positive, makes the next N Set calls fail with
	// ErrQuotaExceeded regardless of occupancy.
	FailSets int
}

// NewMem creates a MemStore. maxBytes of zero disables the quota.
func NewMem(maxBytes int64) *MemStore {
	return &MemStore{data: make(map[string][]byte), maxBytes: maxBytes}
}

// Get returns the value for key, or (nil, nil) when absent.
func (s *MemStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set writes the value for key, enforcing the capacity quota.
func (s *MemStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSets > 0 {
		s.FailSets--
		return ErrQuotaExceeded
	}

	if s.maxBytes > 0 {
		used := s.usedLocked()
		if prev, ok := s.data[key]; ok {
			used -= int64(len(key) + len(prev))
		}
		if used+int64(len(key)+len(value)) > s.maxBytes {
			return ErrQuotaExceeded
		}
	}

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// UsedBytes sums len(key)+len(value) over all keys.
func (s *MemStore) UsedBytes() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedLocked(), nil
}

func (s *MemStore) usedLocked() int64 {
	var used int64
	for k, v := range s.data {
		used += int64(len(k) + len(v))
	}
	return used
}
