package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
)

// CheckpointStore stores checkpoints as JSON values keyed by thread id.
type CheckpointStore struct {
	db     *badger.DB
	prefix string
}

// NewCheckpointStore wraps an open database.
func NewCheckpointStore(db *badger.DB, keyPrefix string) *CheckpointStore {
	return &CheckpointStore{db: db, prefix: keyPrefix + "checkpoint/"}
}

func (s *CheckpointStore) key(threadID string) []byte {
	return []byte(s.prefix + threadID)
}

// Save replaces the checkpoint for cp.ThreadID.
func (s *CheckpointStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.ThreadID == "" {
		return checkpoint.ErrInvalidThreadID
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(cp.ThreadID), data)
	})
}

// Load returns the checkpoint for threadID.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if threadID == "" {
		return checkpoint.Checkpoint{}, checkpoint.ErrInvalidThreadID
	}

	var cp checkpoint.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(threadID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return checkpoint.Checkpoint{}, checkpoint.ErrNotFound
	}
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	return cp, nil
}

// Delete removes the checkpoint for threadID.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.key(threadID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return checkpoint.ErrNotFound
			}
			return err
		}
		return txn.Delete(s.key(threadID))
	})
}

// List returns thread ids in key order.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), s.prefix))
		}
		return nil
	})
	return ids, err
}
