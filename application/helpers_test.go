package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/infrastructure/backend"
	"github.com/felixgeelhaar/supportflow/infrastructure/resilience"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/memory"
)

func testInput(ticket, query string) state.Input {
	return state.Input{
		CustomerName: "Ada Lovelace",
		Email:        "ada@example.com",
		Query:        query,
		Priority:     "high",
		TicketID:     ticket,
	}
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutorWithOptions(
		resilience.WithRetry(1, time.Millisecond),
		resilience.WithAbilityTimeout(time.Second),
	)
}

type clientOptions struct {
	common []backend.Option
	atlas  []backend.Option
	config backend.AtlasConfig
}

func testClients(o clientOptions) []ability.Client {
	common := append([]backend.Option{backend.WithExecutor(fastExecutor())}, o.common...)
	atlas := append([]backend.Option{backend.WithExecutor(fastExecutor())}, o.atlas...)
	return []ability.Client{
		backend.NewCommon(common...),
		backend.NewAtlas(o.config, atlas...),
	}
}

func newTestEngine(t *testing.T, o clientOptions, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClients(testClients(o)...)}, opts...)
	e, err := NewEngineWithOptions(opts...)
	if err != nil {
		t.Fatalf("NewEngineWithOptions() error = %v", err)
	}
	return e
}

func kbWith(articles ...backend.Article) backend.AtlasConfig {
	return backend.AtlasConfig{KnowledgeBase: backend.StaticKnowledgeBase(articles)}
}

// recordingStore keeps every checkpoint it is asked to save.
type recordingStore struct {
	*memory.CheckpointStore

	mu    sync.Mutex
	saves []checkpoint.Checkpoint
}

func newRecordingStore() *recordingStore {
	return &recordingStore{CheckpointStore: memory.NewCheckpointStore()}
}

func (s *recordingStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	s.mu.Lock()
	s.saves = append(s.saves, cp)
	s.mu.Unlock()
	return s.CheckpointStore.Save(ctx, cp)
}

func (s *recordingStore) Saves() []checkpoint.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]checkpoint.Checkpoint, len(s.saves))
	copy(out, s.saves)
	return out
}
