package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/backend"
	"github.com/felixgeelhaar/supportflow/infrastructure/statemachine"
)

func stageNames() []string {
	out := make([]string, 0, 11)
	for _, s := range workflow.StageOrder() {
		out = append(out, s.String())
	}
	return out
}

func TestNewEngineDefaults(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(EngineConfig{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	info := e.Info()
	if info.Name != workflow.AgentName || info.Version != workflow.AgentVersion {
		t.Errorf("Info() = %s %s, want %s %s", info.Name, info.Version, workflow.AgentName, workflow.AgentVersion)
	}
	if len(info.Stages) != 11 {
		t.Errorf("len(Info().Stages) = %d, want 11", len(info.Stages))
	}
	if len(info.Abilities[workflow.BackendCommon]) == 0 || len(info.Abilities[workflow.BackendAtlas]) == 0 {
		t.Errorf("Info().Abilities = %v, want both backends", info.Abilities)
	}
	if e.Checkpoints() == nil {
		t.Error("Checkpoints() = nil, want the in-memory default")
	}
}

func TestNewEngineRejectsReorderedTable(t *testing.T) {
	t.Parallel()

	stages := workflow.DefaultStages()
	stages[3], stages[4] = stages[4], stages[3]
	table, err := workflow.NewTable(stages)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	_, err = NewEngineWithOptions(WithTable(table))
	if !errors.Is(err, workflow.ErrConfiguration) {
		t.Errorf("NewEngineWithOptions() error = %v, want ErrConfiguration", err)
	}
}

func TestNewEngineRejectsDuplicateBackend(t *testing.T) {
	t.Parallel()

	_, err := NewEngineWithOptions(WithClients(backend.NewCommon(), backend.NewCommon()))
	if !errors.Is(err, workflow.ErrConfiguration) {
		t.Errorf("NewEngineWithOptions() error = %v, want ErrConfiguration", err)
	}
}

func TestProcessRunsEveryStageInOrder(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{})
	res := e.Process(context.Background(), testInput("T-100", "Where is my order? I want to track it"))

	if res.Status != checkpoint.StatusCompleted || res.Err != nil {
		t.Fatalf("Process() = %s, %v, want completed", res.Status, res.Err)
	}
	if !res.Succeeded() {
		t.Error("Succeeded() = false, want true")
	}

	got := make([]string, 0, len(res.Stages))
	for _, sr := range res.Stages {
		got = append(got, sr.Stage.String())
	}
	if !reflect.DeepEqual(got, stageNames()) {
		t.Errorf("stages run = %v, want %v", got, stageNames())
	}
	if !reflect.DeepEqual(res.Payload.Processing.StagesCompleted, stageNames()) {
		t.Errorf("stages_completed = %v, want %v", res.Payload.Processing.StagesCompleted, stageNames())
	}
	if len(res.Transitions) != 11 {
		t.Errorf("len(Transitions) = %d, want 11", len(res.Transitions))
	}
	if res.Summary == nil || res.Summary.StagesCompleted != 11 {
		t.Errorf("Summary = %+v, want 11 stages", res.Summary)
	}
}

func TestProcessScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		query        string
		wantStatus   string
		wantBranch   string
		wantBest     float64
		wantResponse string
	}{
		{
			name:         "charged twice urgent refund escalates",
			query:        "I was charged twice on my card, urgent refund please",
			wantStatus:   state.StatusEscalated,
			wantBranch:   statemachine.BranchEscalate,
			wantBest:     74,
			wantResponse: "specialist team",
		},
		{
			name:         "order tracking resolves",
			query:        "Where is my order? I want to track it",
			wantStatus:   state.StatusResolved,
			wantBranch:   statemachine.BranchContinue,
			wantBest:     94,
			wantResponse: "found a solution",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t, clientOptions{})
			in := testInput(fmt.Sprintf("T-2%02d", i), tt.query)
			res := e.Process(context.Background(), in)
			if res.Status != checkpoint.StatusCompleted {
				t.Fatalf("Status = %s (%s), want completed", res.Status, res.Error)
			}

			p := res.Payload
			if p.Output.FinalStatus != tt.wantStatus {
				t.Errorf("final_status = %s, want %s", p.Output.FinalStatus, tt.wantStatus)
			}
			if res.Branch != tt.wantBranch {
				t.Errorf("Branch = %s, want %s", res.Branch, tt.wantBranch)
			}
			if p.Decisions.BestSolutionScore != tt.wantBest {
				t.Errorf("best_solution_score = %v, want %v", p.Decisions.BestSolutionScore, tt.wantBest)
			}
			if !strings.Contains(p.Output.GeneratedResponse, tt.wantResponse) {
				t.Errorf("generated_response = %q, want it to mention %q", p.Output.GeneratedResponse, tt.wantResponse)
			}
			if len(p.Output.ActionsExecuted) == 0 {
				t.Error("actions_executed is empty")
			}
		})
	}
}

func TestEscalationThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		relevance float64
		wantBest  float64
		escalate  bool
	}{
		{"just below", 0.86, 89, true},
		{"at threshold", 0.875, 90, false},
		{"well above", 0.99, 99, false},
		{"far below", 0.3, 44, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t, clientOptions{
				config: kbWith(backend.Article{ID: "kb_x", Title: "Laptop refund policy", Relevance: tt.relevance}),
			})
			res := e.Process(context.Background(), testInput(fmt.Sprintf("T-3%02d", i), "Refund for my damaged laptop"))
			if res.Status != checkpoint.StatusCompleted {
				t.Fatalf("Status = %s (%s), want completed", res.Status, res.Error)
			}
			d := res.Payload.Decisions
			if d.BestSolutionScore != tt.wantBest {
				t.Errorf("best = %v, want %v", d.BestSolutionScore, tt.wantBest)
			}
			if d.EscalationRequired != tt.escalate {
				t.Errorf("escalation_required = %v, want %v", d.EscalationRequired, tt.escalate)
			}
		})
	}
}

func TestBestScoreIsMaximum(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{
		config: kbWith(
			backend.Article{ID: "kb_1", Title: "Alpha", Relevance: 0.5},
			backend.Article{ID: "kb_2", Title: "Beta", Relevance: 0.9},
			backend.Article{ID: "kb_3", Title: "Gamma", Relevance: 0.7},
		),
	})
	res := e.Process(context.Background(), testInput("T-400", "Something is wrong with my invoice"))

	snapBest := 0.0
	for _, sr := range res.Stages {
		for _, r := range sr.Results {
			for _, sol := range ability.AsRecords(r["solutions"]) {
				if s, _ := ability.AsFloat(sol["score"]); s > snapBest {
					snapBest = s
				}
			}
		}
	}
	if res.Payload.Decisions.BestSolutionScore != 72 || snapBest != 72 {
		t.Errorf("best = %v (max of solutions %v), want 72", res.Payload.Decisions.BestSolutionScore, snapBest)
	}
	if res.Payload.Processing.SolutionsEvaluated != 3 {
		t.Errorf("solutions_evaluated = %d, want 3", res.Payload.Processing.SolutionsEvaluated)
	}
}

func TestProcessingLogAccounting(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{config: backend.AtlasConfig{Answers: backend.StaticAnswers("Order 98765, yesterday")}})
	res := e.Process(context.Background(), testInput("T-500", "Where is my order?"))
	if res.Status != checkpoint.StatusCompleted {
		t.Fatalf("Status = %s (%s), want completed", res.Status, res.Error)
	}

	counts := map[state.EventType]int{}
	for _, ev := range res.Payload.Metadata.ProcessingLog {
		counts[ev.Type]++
	}
	if counts[state.EventStateInitialized] != 1 {
		t.Errorf("STATE_INITIALIZED = %d, want 1", counts[state.EventStateInitialized])
	}
	if counts[state.EventStageUpdated] != 11 {
		t.Errorf("STAGE_UPDATED = %d, want 11", counts[state.EventStageUpdated])
	}

	p := res.Payload
	mutations := counts[state.EventEntitiesUpdated] + counts[state.EventFieldsNormalized] +
		counts[state.EventDataEnriched] + counts[state.EventKBResultAdded] +
		counts[state.EventSolutionAdded] + counts[state.EventEscalationSet] +
		counts[state.EventClarificationAdded] + counts[state.EventHumanResponseAdded] +
		counts[state.EventResponseGenerated] + counts[state.EventActionExecuted]
	if got, want := len(p.Metadata.ProcessingLog), mutations+11+1; got != want {
		t.Errorf("len(processing_log) = %d, want %d", got, want)
	}
	if counts[state.EventKBResultAdded] != p.Processing.KnowledgeBaseResults {
		t.Errorf("KB_RESULT_ADDED = %d, want %d", counts[state.EventKBResultAdded], p.Processing.KnowledgeBaseResults)
	}
	if counts[state.EventActionExecuted] != len(p.Output.ActionsExecuted) {
		t.Errorf("ACTION_EXECUTED = %d, want %d", counts[state.EventActionExecuted], len(p.Output.ActionsExecuted))
	}
	if counts[state.EventHumanResponseAdded] != 1 {
		t.Errorf("HUMAN_RESPONSE_ADDED = %d, want 1", counts[state.EventHumanResponseAdded])
	}
}

func TestKnowledgeBaseFailureContinues(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{
		atlas: []backend.Option{backend.WithHandler(workflow.AbilityKnowledgeBaseSearch,
			func(context.Context, ability.Context) (ability.Result, error) {
				return nil, errors.New("kb offline")
			})},
	})
	res := e.Process(context.Background(), testInput("T-600", "Where is my order?"))

	if res.Status != checkpoint.StatusCompleted {
		t.Fatalf("Status = %s (%s), want completed", res.Status, res.Error)
	}
	var failures []ability.Result
	for _, sr := range res.Stages {
		failures = append(failures, sr.Errors()...)
	}
	if len(failures) != 1 || failures[0].Ability() != workflow.AbilityKnowledgeBaseSearch {
		t.Fatalf("inline failures = %v, want one knowledge_base_search", failures)
	}
	if res.Payload.Processing.KnowledgeBaseResults != 0 {
		t.Errorf("knowledge_base_results = %d, want 0", res.Payload.Processing.KnowledgeBaseResults)
	}
	if !res.Payload.Decisions.EscalationRequired {
		t.Error("no solutions should escalate")
	}
	if res.Branch != statemachine.BranchEscalate {
		t.Errorf("Branch = %s, want escalate", res.Branch)
	}
}

func TestKnowledgeBaseOutageUnderBatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{
		atlas: []backend.Option{backend.WithHandler(workflow.AbilityKnowledgeBaseSearch,
			func(context.Context, ability.Context) (ability.Result, error) {
				return nil, errors.New("kb offline")
			})},
	}, WithMaxConcurrent(8))

	inputs := make([]state.Input, 0, 20)
	for i := range 20 {
		inputs = append(inputs, testInput(fmt.Sprintf("T-KB%02d", i), "Where is my order? I want to track it"))
	}

	for i, res := range e.ProcessBatch(context.Background(), inputs) {
		if res.Status != checkpoint.StatusCompleted {
			t.Errorf("results[%d] = %s (%s), want completed", i, res.Status, res.Error)
			continue
		}
		d := res.Payload.Decisions
		if d.EscalationRequired != (d.BestSolutionScore < workflow.EscalationThreshold) {
			t.Errorf("results[%d] escalation_required = %v with best score %v", i, d.EscalationRequired, d.BestSolutionScore)
		}
		for _, sr := range res.Stages {
			for _, r := range sr.Errors() {
				if r.Ability() != workflow.AbilityKnowledgeBaseSearch {
					t.Errorf("results[%d] unexpected inline failure of %s: %v", i, r.Ability(), r)
				}
			}
		}
	}
}

func TestEscalationDecisionFailureFallsBackToThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		escalate bool
		branch   string
	}{
		{"low score escalates", "I was charged twice on my card, urgent refund please", true, statemachine.BranchEscalate},
		{"high score resolves", "Where is my order? I want to track it", false, statemachine.BranchContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t, clientOptions{
				atlas: []backend.Option{backend.WithHandler(workflow.AbilityEscalationDecision,
					func(context.Context, ability.Context) (ability.Result, error) {
						return nil, errors.New("decision service down")
					})},
			})
			res := e.Process(context.Background(), testInput("T-ED-"+tt.branch, tt.query))

			if res.Status != checkpoint.StatusCompleted {
				t.Fatalf("Status = %s (%s), want completed", res.Status, res.Error)
			}
			d := res.Payload.Decisions
			if d.EscalationRequired != tt.escalate {
				t.Errorf("escalation_required = %v (best %v), want %v", d.EscalationRequired, d.BestSolutionScore, tt.escalate)
			}
			if d.EscalationReason == "" {
				t.Error("escalation_reason should be set by the fallback")
			}
			if res.Branch != tt.branch {
				t.Errorf("Branch = %s, want %s", res.Branch, tt.branch)
			}
		})
	}
}

func TestProcessInvalidInput(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(t, clientOptions{}, WithClock(func() time.Time { return fixed }))
	in := testInput("T-700", "Where is my order?")
	in.Email = ""

	res := e.Process(context.Background(), in)

	if res.Status != checkpoint.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if !errors.Is(res.Err, state.ErrInvalidInput) {
		t.Errorf("Err = %v, want ErrInvalidInput", res.Err)
	}
	if res.Payload != nil || len(res.Stages) != 0 {
		t.Error("no stage should run for invalid input")
	}
	f := res.Failure
	if f == nil {
		t.Fatal("Failure = nil")
	}
	if f.Status != "failed" || f.InputData != in || !f.Timestamp.Equal(fixed) || f.Error == "" {
		t.Errorf("Failure = %+v", f)
	}
}

func TestCheckpointAfterEveryStage(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	e := newTestEngine(t, clientOptions{}, WithCheckpointStore(store))
	res := e.Process(context.Background(), testInput("T-800", "Where is my order?"))
	if res.Status != checkpoint.StatusCompleted {
		t.Fatalf("Status = %s (%s), want completed", res.Status, res.Error)
	}

	saves := store.Saves()
	if len(saves) != 12 {
		t.Fatalf("saves = %d, want 12", len(saves))
	}
	if saves[0].NextStage != workflow.StageIntake.String() || saves[0].LastStage != "" {
		t.Errorf("first checkpoint = %s -> %s, want '' -> INTAKE", saves[0].LastStage, saves[0].NextStage)
	}
	for i, name := range stageNames() {
		cp := saves[i+1]
		if cp.LastStage != name || cp.ThreadID != "T-800" {
			t.Errorf("checkpoint %d = %s/%s, want %s/T-800", i+1, cp.LastStage, cp.ThreadID, name)
		}
	}
	last := saves[len(saves)-1]
	if last.Status != checkpoint.StatusCompleted || last.NextStage != "" {
		t.Errorf("last checkpoint = %s next %q, want completed", last.Status, last.NextStage)
	}

	again := e.Resume(context.Background(), "T-800")
	if !errors.Is(again.Err, checkpoint.ErrAlreadyCompleted) {
		t.Errorf("Resume() error = %v, want ErrAlreadyCompleted", again.Err)
	}
}

func TestTimeoutAndResume(t *testing.T) {
	t.Parallel()

	var slow atomic.Bool
	slow.Store(true)
	stall := func(ctx context.Context, in ability.Context) (ability.Result, error) {
		if slow.Load() {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return ability.Result{"parsed_request": map[string]any{"intent": "order_status"}}, nil
	}

	store := newRecordingStore()
	e := newTestEngine(t,
		clientOptions{common: []backend.Option{backend.WithHandler(workflow.AbilityParseRequestText, stall)}},
		WithCheckpointStore(store),
		WithRequestTimeout(200*time.Millisecond),
	)

	res := e.Process(context.Background(), testInput("T-900", "Where is my order?"))
	if res.Status != checkpoint.StatusTimedOut {
		t.Fatalf("Status = %s (%s), want timed_out", res.Status, res.Error)
	}
	if !errors.Is(res.Err, ErrWorkflowFailure) || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want workflow failure caused by deadline", res.Err)
	}
	if res.Payload == nil {
		t.Fatal("timed out request should carry a partial payload")
	}
	if got := len(res.Payload.Processing.StagesCompleted); got != 2 {
		t.Errorf("partial stages_completed = %d, want 2", got)
	}

	cp, err := store.Load(context.Background(), "T-900")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cp.Status != checkpoint.StatusTimedOut || cp.NextStage != workflow.StageUnderstand.String() {
		t.Errorf("checkpoint = %s next %s, want timed_out next UNDERSTAND", cp.Status, cp.NextStage)
	}
	if cp.State.CurrentStage != workflow.StageIntake.String() {
		t.Errorf("checkpointed stage = %s, want INTAKE", cp.State.CurrentStage)
	}

	slow.Store(false)
	resumed := e.Resume(context.Background(), "T-900")
	if resumed.Status != checkpoint.StatusCompleted {
		t.Fatalf("Resume() = %s (%s), want completed", resumed.Status, resumed.Error)
	}
	if len(resumed.Stages) != 10 || resumed.Stages[0].Stage != workflow.StageUnderstand {
		t.Errorf("resumed stages = %d starting %s, want 10 from UNDERSTAND", len(resumed.Stages), resumed.Stages[0].Stage)
	}
	if !reflect.DeepEqual(resumed.Payload.Processing.StagesCompleted, stageNames()) {
		t.Errorf("stages_completed = %v, want %v", resumed.Payload.Processing.StagesCompleted, stageNames())
	}
	if resumed.Branch == "" {
		t.Error("resumed request should record the DECIDE branch")
	}
}

func TestResumeUnknownThread(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{})
	res := e.Resume(context.Background(), "missing")
	if !errors.Is(res.Err, checkpoint.ErrNotFound) {
		t.Errorf("Resume() error = %v, want ErrNotFound", res.Err)
	}
	if res.Status != checkpoint.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
}

func TestProcessCanceledContext(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Process(ctx, testInput("T-950", "Where is my order?"))
	if res.Status != checkpoint.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
	if len(res.Stages) != 0 {
		t.Errorf("stages run = %d, want 0", len(res.Stages))
	}
}

func TestProcessBatchIndependence(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, clientOptions{}, WithMaxConcurrent(4))
	queries := []string{
		"Where is my order? I want to track it",
		"I was charged twice on my card, urgent refund please",
		"I am locked out of my account",
	}
	inputs := make([]state.Input, 0, 12)
	for i := range 12 {
		in := testInput(fmt.Sprintf("T-B%02d", i), queries[i%len(queries)])
		in.CustomerName = fmt.Sprintf("Customer %d", i)
		inputs = append(inputs, in)
	}

	results := e.ProcessBatch(context.Background(), inputs)

	if len(results) != len(inputs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(inputs))
	}
	for i, res := range results {
		if res.Status != checkpoint.StatusCompleted {
			t.Errorf("results[%d] = %s (%s), want completed", i, res.Status, res.Error)
			continue
		}
		if res.Payload.Input != inputs[i] {
			t.Errorf("results[%d] input = %+v, want %+v", i, res.Payload.Input, inputs[i])
		}
		if !strings.Contains(res.Payload.Output.GeneratedResponse, inputs[i].CustomerName) {
			t.Errorf("results[%d] response %q does not address %s", i, res.Payload.Output.GeneratedResponse, inputs[i].CustomerName)
		}
		if len(res.Payload.Processing.StagesCompleted) != 11 {
			t.Errorf("results[%d] stages = %d, want 11", i, len(res.Payload.Processing.StagesCompleted))
		}
	}
}
