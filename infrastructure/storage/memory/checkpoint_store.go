package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
)

// CheckpointStore is an in-memory implementation of checkpoint.Store.
// Values are deep-copied on the way in and out.
type CheckpointStore struct {
	checkpoints map[string]checkpoint.Checkpoint
	mu          sync.RWMutex
}

// NewCheckpointStore creates an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]checkpoint.Checkpoint),
	}
}

// Save replaces the checkpoint for cp.ThreadID.
func (s *CheckpointStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.ThreadID == "" {
		return checkpoint.ErrInvalidThreadID
	}

	cp.State = cp.State.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ThreadID] = cp
	return nil
}

// Load returns the checkpoint for threadID.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Checkpoint{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[threadID]
	if !ok {
		return checkpoint.Checkpoint{}, checkpoint.ErrNotFound
	}
	cp.State = cp.State.Clone()
	return cp, nil
}

// Delete removes the checkpoint for threadID.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkpoints[threadID]; !ok {
		return checkpoint.ErrNotFound
	}
	delete(s.checkpoints, threadID)
	return nil
}

// List returns thread ids in sorted order.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
