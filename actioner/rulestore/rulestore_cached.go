package rulestore

import (
	"context"
	"sync"
	"time"

	"github.com/hma-go/actioner/actioner/policy"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const snapshotKey = "snapshot"

// Memoizes the snapshot returned by an underlying store.
//
// With a zero TTL, the first successfully loaded snapshot is kept for the lifetime of the process (or until Purge is called). Failed loads are not cached.
type CachedStore struct {
	Inner Store
	Data  *expirable.LRU[string, *policy.Snapshot]

	// serializes loads against the inner store, so a cold cache is only filled once
	lk sync.Mutex
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Inner: inner,
		Data:  expirable.NewLRU[string, *policy.Snapshot](1, nil, ttl),
	}
}

func (s *CachedStore) Load(ctx context.Context) (*policy.Snapshot, error) {
	if snap, ok := s.Data.Get(snapshotKey); ok {
		return snap, nil
	}

	s.lk.Lock()
	defer s.lk.Unlock()
	// another caller may have filled the cache while we waited
	if snap, ok := s.Data.Get(snapshotKey); ok {
		return snap, nil
	}
	snap, err := s.Inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.Data.Add(snapshotKey, snap)
	return snap, nil
}

// Drops any cached snapshot; the next Load goes to the inner store.
func (s *CachedStore) Purge() {
	s.Data.Purge()
}
