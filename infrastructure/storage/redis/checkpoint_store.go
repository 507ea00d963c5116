package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
)

// CheckpointStore keeps one JSON document per thread plus an index set.
type CheckpointStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewCheckpointStore wraps an existing client.
func NewCheckpointStore(client *redis.Client, keyPrefix string) *CheckpointStore {
	return &CheckpointStore{client: client, keyPrefix: keyPrefix}
}

func (s *CheckpointStore) threadKey(threadID string) string {
	return s.keyPrefix + "checkpoint:" + threadID
}

func (s *CheckpointStore) indexKey() string {
	return s.keyPrefix + "checkpoints"
}

// Save replaces the checkpoint for cp.ThreadID.
func (s *CheckpointStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	if cp.ThreadID == "" {
		return checkpoint.ErrInvalidThreadID
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.threadKey(cp.ThreadID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), cp.ThreadID)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the checkpoint for threadID.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (checkpoint.Checkpoint, error) {
	if threadID == "" {
		return checkpoint.Checkpoint{}, checkpoint.ErrInvalidThreadID
	}

	data, err := s.client.Get(ctx, s.threadKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return checkpoint.Checkpoint{}, checkpoint.ErrNotFound
	}
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}

	var cp checkpoint.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Delete removes the checkpoint for threadID.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	n, err := s.client.Del(ctx, s.threadKey(threadID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return checkpoint.ErrNotFound
	}
	return s.client.SRem(ctx, s.indexKey(), threadID).Err()
}

// List returns the indexed thread ids, sorted.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
