package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
)

// CheckpointStore is a PostgreSQL-backed implementation of checkpoint.Store.
type CheckpointStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewCheckpointStore creates a store on pool using schema.
func NewCheckpointStore(pool *pgxpool.Pool, schema string) *CheckpointStore {
	if schema == "" {
		schema = "public"
	}
	return &CheckpointStore{pool: pool, schema: schema}
}

func (s *CheckpointStore) tableName() string {
	return fmt.Sprintf("%s.checkpoints", s.schema)
}

// Migrate creates the checkpoints table if needed.
func (s *CheckpointStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id  TEXT PRIMARY KEY,
			id         TEXT NOT NULL,
			last_stage TEXT NOT NULL,
			next_stage TEXT NOT NULL,
			status     TEXT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.tableName()))
	if err != nil {
		return fmt.Errorf("migrate checkpoints: %w", err)
	}
	return nil
}

// Save upserts the checkpoint for cp.ThreadID.
func (s *CheckpointStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	if cp.ThreadID == "" {
		return checkpoint.ErrInvalidThreadID
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, id, last_stage, next_stage, status, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (thread_id) DO UPDATE SET
			id = EXCLUDED.id,
			last_stage = EXCLUDED.last_stage,
			next_stage = EXCLUDED.next_stage,
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, s.tableName())

	_, err = s.pool.Exec(ctx, query,
		cp.ThreadID, cp.ID, cp.LastStage, cp.NextStage, string(cp.Status), data, cp.UpdatedAt,
	)
	return err
}

// Load returns the checkpoint for threadID.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (checkpoint.Checkpoint, error) {
	if threadID == "" {
		return checkpoint.Checkpoint{}, checkpoint.ErrInvalidThreadID
	}

	var data []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE thread_id = $1", s.tableName()),
		threadID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE thread_id = $1", s.tableName()),
		threadID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return checkpoint.ErrNotFound
	}
	return nil
}

// List returns thread ids ordered by id.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT thread_id FROM %s ORDER BY thread_id", s.tableName()),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
