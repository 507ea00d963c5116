package memory_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/memory"
)

func sampleCheckpoint(thread string) checkpoint.Checkpoint {
	now := time.Now().UTC()
	return checkpoint.Checkpoint{
		ID:        "cp-1",
		ThreadID:  thread,
		LastStage: "RETRIEVE",
		NextStage: "DECIDE",
		Status:    checkpoint.StatusRunning,
		State: state.AgentState{
			Input:        state.Input{TicketID: thread, Query: "refund"},
			CurrentStage: "RETRIEVE",
			Entities:     map[string]any{"amounts": []string{"$5"}},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		UpdatedAt: now,
	}
}

func TestCheckpointStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCheckpointStore()
	cp := sampleCheckpoint("T-1")

	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	cp.State.Entities["amounts"].([]string)[0] = "mutated"

	got, err := s.Load(ctx, "T-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.NextStage != "DECIDE" {
		t.Errorf("NextStage = %s, want DECIDE", got.NextStage)
	}
	if got.State.Entities["amounts"].([]string)[0] != "$5" {
		t.Error("saved checkpoint shares state with caller")
	}

	ids, _ := s.List(ctx)
	if !reflect.DeepEqual(ids, []string{"T-1"}) {
		t.Errorf("List() = %v", ids)
	}
}

func TestCheckpointStoreErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCheckpointStore()

	if err := s.Save(ctx, checkpoint.Checkpoint{}); !errors.Is(err, checkpoint.ErrInvalidThreadID) {
		t.Errorf("Save(empty) error = %v, want ErrInvalidThreadID", err)
	}
	if _, err := s.Load(ctx, "missing"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Save(cancelled, sampleCheckpoint("T-2")); !errors.Is(err, context.Canceled) {
		t.Errorf("Save(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCheckpointStoreOverwriteAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCheckpointStore()
	first := sampleCheckpoint("T-1")
	second := sampleCheckpoint("T-1")
	second.LastStage, second.NextStage = "DECIDE", "UPDATE"

	_ = s.Save(ctx, first)
	_ = s.Save(ctx, second)
	got, _ := s.Load(ctx, "T-1")
	if got.LastStage != "DECIDE" {
		t.Errorf("LastStage = %s, want DECIDE", got.LastStage)
	}

	if err := s.Delete(ctx, "T-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Load(ctx, "T-1"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("Load() after delete error = %v", err)
	}
}
