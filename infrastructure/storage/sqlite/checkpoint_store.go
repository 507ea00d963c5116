package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
)

// CheckpointStore is a SQLite-backed implementation of checkpoint.Store.
type CheckpointStore struct {
	db *sql.DB
}

// NewCheckpointStore opens the database described by cfg.
func NewCheckpointStore(cfg Config, opts ...Option) (*CheckpointStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &CheckpointStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewCheckpointStoreFromDB wraps an existing connection and migrates it.
func NewCheckpointStoreFromDB(db *sql.DB) (*CheckpointStore, error) {
	s := &CheckpointStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CheckpointStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			last_stage TEXT NOT NULL,
			next_stage TEXT NOT NULL,
			status TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Save upserts the checkpoint for cp.ThreadID.
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, id, last_stage, next_stage, status, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
			id = excluded.id,
			last_stage = excluded.last_stage,
			next_stage = excluded.next_stage,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		cp.ThreadID, cp.ID, cp.LastStage, cp.NextStage, string(cp.Status), data, cp.UpdatedAt.UnixNano(),
	)
	return err
}

// Load returns the checkpoint for threadID.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if threadID == "" {
		return checkpoint.Checkpoint{}, checkpoint.ErrInvalidThreadID
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM checkpoints WHERE thread_id = ?", threadID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return checkpoint.ErrNotFound
	}
	return nil
}

// List returns thread ids ordered by id.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT thread_id FROM checkpoints ORDER BY thread_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
