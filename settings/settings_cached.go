package settings

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore wraps another Store with a read-through expirable LRU. Intended
// for the gorm backend, which otherwise hits the database once per setting per
// message. Negative results are cached too (as nil), since most groups never
// configure most keys.
type CachedStore struct {
	Inner Store
	Data  *expirable.LRU[string, []byte]
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(inner Store, capacity int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Inner: inner,
		Data:  expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

func (s *CachedStore) Get(ctx context.Context, group, key string) ([]byte, error) {
	ck := group + "/" + key
	if v, ok := s.Data.Get(ck); ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return v, nil
	}
	v, err := s.Inner.Get(ctx, group, key)
	if errors.Is(err, ErrNotFound) {
		s.Data.Add(ck, nil)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Data.Add(ck, v)
	return v, nil
}

func (s *CachedStore) Set(ctx context.Context, group, key string, val []byte) error {
	if err := s.Inner.Set(ctx, group, key, val); err != nil {
		return err
	}
	s.Data.Add(group+"/"+key, val)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, group, key string) error {
	if err := s.Inner.Delete(ctx, group, key); err != nil {
		return err
	}
	s.Data.Remove(group + "/" + key)
	return nil
}
