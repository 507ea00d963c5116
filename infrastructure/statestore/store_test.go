package statestore

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/state"
)

func testInput() state.Input {
	return state.Input{
		CustomerName: "Ada Lovelace",
		Email:        "ada@example.com",
		Query:        "My order has not arrived",
		Priority:     "high",
		TicketID:     "T-100",
	}
}

func newInitialized(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Initialize(testInput()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	snap := s.Snapshot()

	if snap.Input != testInput() {
		t.Errorf("Input = %+v, want %+v", snap.Input, testInput())
	}
	if len(snap.Log) != 1 || snap.Log[0].Type != state.EventStateInitialized {
		t.Fatalf("Log = %+v, want one STATE_INITIALIZED entry", snap.Log)
	}
	if snap.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestInitializeTwice(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	other := testInput()
	other.TicketID = "T-200"

	err := s.Initialize(other)
	if !errors.Is(err, state.ErrAlreadyInitialized) {
		t.Fatalf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
	if got := s.Snapshot().Input.TicketID; got != "T-100" {
		t.Errorf("TicketID = %s, want T-100 unchanged", got)
	}
	if s.LogLen() != 1 {
		t.Errorf("LogLen() = %d, want 1", s.LogLen())
	}
}

func TestMutationBeforeInitialize(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.AddAction("x"); !errors.Is(err, state.ErrNotInitialized) {
		t.Errorf("AddAction() error = %v, want ErrNotInitialized", err)
	}
	if s.LogLen() != 0 {
		t.Errorf("LogLen() = %d, want 0", s.LogLen())
	}
}

func TestAdvanceStage(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	for _, name := range []string{"INTAKE", "UNDERSTAND", "PREPARE"} {
		if err := s.AdvanceStage(name); err != nil {
			t.Fatalf("AdvanceStage(%s) error = %v", name, err)
		}
	}

	snap := s.Snapshot()
	if snap.CurrentStage != "PREPARE" {
		t.Errorf("CurrentStage = %s, want PREPARE", snap.CurrentStage)
	}
	if !reflect.DeepEqual(snap.StageHistory, []string{"INTAKE", "UNDERSTAND"}) {
		t.Errorf("StageHistory = %v", snap.StageHistory)
	}

	first := snap.Log[1]
	if first.Type != state.EventStageUpdated || first.Details["from"] != nil || first.Details["to"] != "INTAKE" {
		t.Errorf("first stage event = %+v", first)
	}
	last := snap.Log[3]
	if last.Details["from"] != "UNDERSTAND" || last.Details["to"] != "PREPARE" || last.Stage != "PREPARE" {
		t.Errorf("last stage event = %+v", last)
	}
}

func TestEveryMutationLogsOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Store) error
		event  state.EventType
	}{
		{"entities", func(s *Store) error { return s.MergeEntities(map[string]any{"a": 1}) }, state.EventEntitiesUpdated},
		{"normalized", func(s *Store) error { return s.MergeNormalizedFields(map[string]any{"b": 2}) }, state.EventFieldsNormalized},
		{"enriched", func(s *Store) error { return s.MergeEnrichedData(map[string]any{"c": 3}) }, state.EventDataEnriched},
		{"kb", func(s *Store) error { return s.AddKBResult(map[string]any{"id": "kb_1"}) }, state.EventKBResultAdded},
		{"solution", func(s *Store) error { return s.AddSolution(map[string]any{"id": "sol_1"}, 80) }, state.EventSolutionAdded},
		{"escalation", func(s *Store) error { return s.SetEscalation(true, "low score") }, state.EventEscalationSet},
		{"clarification", func(s *Store) error { return s.AddClarification("Which order?") }, state.EventClarificationAdded},
		{"human response", func(s *Store) error { return s.AddHumanResponse("order 42") }, state.EventHumanResponseAdded},
		{"response", func(s *Store) error { return s.SetResponse("Dear Ada") }, state.EventResponseGenerated},
		{"action", func(s *Store) error { return s.AddAction("ticket_updated") }, state.EventActionExecuted},
		{"stage", func(s *Store) error { return s.AdvanceStage("INTAKE") }, state.EventStageUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newInitialized(t)
			before := s.LogLen()
			if err := tt.mutate(s); err != nil {
				t.Fatalf("mutation error = %v", err)
			}
			snap := s.Snapshot()
			if len(snap.Log) != before+1 {
				t.Fatalf("LogLen = %d, want %d", len(snap.Log), before+1)
			}
			if got := snap.Log[len(snap.Log)-1].Type; got != tt.event {
				t.Errorf("event = %s, want %s", got, tt.event)
			}
		})
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	for i := 0; i < 2; i++ {
		if err := s.MergeEntities(map[string]any{"a": 1}); err != nil {
			t.Fatal(err)
		}
		if err := s.MergeNormalizedFields(map[string]any{"a": 1}); err != nil {
			t.Fatal(err)
		}
		if err := s.MergeEnrichedData(map[string]any{"a": 1}); err != nil {
			t.Fatal(err)
		}
	}

	snap := s.Snapshot()
	want := map[string]any{"a": 1}
	for name, got := range map[string]map[string]any{
		"entities":   snap.Entities,
		"normalized": snap.NormalizedFields,
		"enriched":   snap.EnrichedData,
	} {
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	_ = s.MergeEntities(map[string]any{"a": 1, "b": 2})
	_ = s.MergeEntities(map[string]any{"b": 3, "c": 4})

	want := map[string]any{"a": 1, "b": 3, "c": 4}
	if got := s.Snapshot().Entities; !reflect.DeepEqual(got, want) {
		t.Errorf("Entities = %v, want %v", got, want)
	}
}

func TestSolutionsParallelToScores(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	_ = s.AddSolution(map[string]any{"id": "sol_1"}, 60)
	_ = s.AddSolution(map[string]any{"id": "sol_2"}, 92)

	snap := s.Snapshot()
	if len(snap.Solutions) != len(snap.Scores) {
		t.Fatalf("len(Solutions) = %d, len(Scores) = %d", len(snap.Solutions), len(snap.Scores))
	}
	if snap.Solutions[1]["id"] != "sol_2" || snap.Scores[1] != 92 {
		t.Errorf("second solution = %v / %v", snap.Solutions[1], snap.Scores[1])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	entities := map[string]any{"products": []string{"widget"}}
	_ = s.MergeEntities(entities)

	entities["products"].([]string)[0] = "caller mutated"
	snap := s.Snapshot()
	snap.Entities["products"].([]string)[0] = "reader mutated"
	snap.Log[0].Details["input_keys"] = nil

	again := s.Snapshot()
	if got := again.Entities["products"].([]string)[0]; got != "widget" {
		t.Errorf("products[0] = %s, want widget", got)
	}
	if again.Log[0].Details["input_keys"] == nil {
		t.Error("log details mutated through snapshot")
	}
}

func TestExportIdempotent(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	_ = s.AdvanceStage("INTAKE")
	_ = s.AddSolution(map[string]any{"id": "sol_1"}, 75)

	before := s.LogLen()
	first := s.Export()
	second := s.Export()
	if !reflect.DeepEqual(first, second) {
		t.Error("Export() differs between calls on unchanged state")
	}
	if s.LogLen() != before {
		t.Errorf("Export() grew the log from %d to %d", before, s.LogLen())
	}
	if first.Decisions.BestSolutionScore != 75 {
		t.Errorf("BestSolutionScore = %v, want 75", first.Decisions.BestSolutionScore)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	_ = s.AdvanceStage("INTAKE")
	snap := s.Snapshot()

	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	_ = restored.AdvanceStage("UNDERSTAND")

	if s.Snapshot().CurrentStage != "INTAKE" {
		t.Error("restored store shares state with the original")
	}
	if got := restored.Snapshot().StagesCompleted(); !reflect.DeepEqual(got, []string{"INTAKE", "UNDERSTAND"}) {
		t.Errorf("StagesCompleted = %v", got)
	}
	if _, err := Restore(state.AgentState{}); !errors.Is(err, state.ErrNotInitialized) {
		t.Errorf("Restore(empty) error = %v, want ErrNotInitialized", err)
	}
}

func TestWithClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	_ = s.Initialize(testInput())

	snap := s.Snapshot()
	if !snap.CreatedAt.Equal(fixed) || !snap.Log[0].Timestamp.Equal(fixed) {
		t.Errorf("timestamps = %v / %v, want %v", snap.CreatedAt, snap.Log[0].Timestamp, fixed)
	}
}

func TestConcurrentMutations(t *testing.T) {
	t.Parallel()

	s := newInitialized(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddAction("action")
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if len(snap.Actions) != 50 {
		t.Errorf("len(Actions) = %d, want 50", len(snap.Actions))
	}
	if len(snap.Log) != 51 {
		t.Errorf("len(Log) = %d, want 51", len(snap.Log))
	}
}
