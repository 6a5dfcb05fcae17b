package rulestore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hma-go/actioner/actioner/policy"
)

var ErrNotFound = errors.New("policy configuration not found")

// Source of policy configuration (action rules, actions, reaction settings).
//
// Returned snapshots must be treated as read-only by callers.
type Store interface {
	Load(ctx context.Context) (*policy.Snapshot, error)
}

// Always returns the same snapshot. Used in tests, and for configuration which is fixed at process start.
type StaticStore struct {
	Snapshot *policy.Snapshot
}

var _ Store = (*StaticStore)(nil)

func NewStaticStore(snap *policy.Snapshot) *StaticStore {
	return &StaticStore{Snapshot: snap}
}

func (s *StaticStore) Load(ctx context.Context) (*policy.Snapshot, error) {
	if s.Snapshot == nil {
		return nil, ErrNotFound
	}
	return s.Snapshot, nil
}

// Reads a JSON policy document from local disk on every load. Wrap with CachedStore to avoid re-reading.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Load(ctx context.Context) (*policy.Snapshot, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
	}
	if err != nil {
		return nil, err
	}
	return policy.ParseSnapshotJSON(raw)
}
