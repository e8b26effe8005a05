package settings

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store, mostly useful for testing and for
// deployments which accept losing settings on restart.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
	}
}

func memKey(group, key string) string {
	return group + "/" + key
}

func (s *MemStore) Get(ctx context.Context, group, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[memKey(group, key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemStore) Set(ctx context.Context, group, key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(val))
	copy(cp, val)
	s.data[memKey(group, key)] = cp
	return nil
}

func (s *MemStore) Delete(ctx context.Context, group, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, memKey(group, key))
	return nil
}
