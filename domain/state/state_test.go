package state

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestInputValidate(t *testing.T) {
	t.Parallel()

	valid := Input{CustomerName: "Ada", Email: "ada@example.com", Query: "help", Priority: "high", TicketID: "T-1"}

	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr bool
	}{
		{"valid", func(*Input) {}, false},
		{"missing priority is allowed", func(in *Input) { in.Priority = "" }, false},
		{"missing name", func(in *Input) { in.CustomerName = " " }, true},
		{"missing email", func(in *Input) { in.Email = "" }, true},
		{"missing query", func(in *Input) { in.Query = "" }, true},
		{"missing ticket", func(in *Input) { in.TicketID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPriorityLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		priority  string
		wantLabel string
		wantLevel int
	}{
		{"low", "low", 1},
		{"Medium", "medium", 2},
		{"HIGH", "high", 3},
		{" critical ", "critical", 4},
		{"urgent", "medium", 2},
		{"", "medium", 2},
	}

	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			t.Parallel()

			in := Input{Priority: tt.priority}
			if got := in.NormalizedPriority(); got != tt.wantLabel {
				t.Errorf("NormalizedPriority() = %s, want %s", got, tt.wantLabel)
			}
			if got := in.PriorityLevel(); got != tt.wantLevel {
				t.Errorf("PriorityLevel() = %d, want %d", got, tt.wantLevel)
			}
		})
	}
}

func sampleState() AgentState {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return AgentState{
		Input:        Input{CustomerName: "Ada", Email: "ada@example.com", Query: "refund", Priority: "high", TicketID: "T-1"},
		CurrentStage: "DECIDE",
		StageHistory: []string{"INTAKE", "UNDERSTAND"},
		Entities:     map[string]any{"amounts": []string{"$10"}, "nested": map[string]any{"k": []any{1, "x"}}},
		KBResults:    []map[string]any{{"id": "kb_001"}},
		Solutions:    []map[string]any{{"id": "sol_1"}, {"id": "sol_2"}},
		Scores:       []float64{72, 88},
		Actions:      []string{"ticket_updated"},
		CreatedAt:    now,
		UpdatedAt:    now.Add(time.Second),
		Log:          []Event{{Timestamp: now, Stage: "INTAKE", Type: EventStateInitialized, Details: map[string]any{"input_keys": []string{"query"}}}},
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := sampleState()
	c := orig.Clone()

	c.StageHistory[0] = "CHANGED"
	c.Entities["amounts"].([]string)[0] = "$99"
	c.Entities["nested"].(map[string]any)["k"].([]any)[0] = 2
	c.KBResults[0]["id"] = "other"
	c.Scores[0] = 1
	c.Log[0].Details["input_keys"].([]string)[0] = "changed"

	if orig.StageHistory[0] != "INTAKE" {
		t.Error("StageHistory shared with clone")
	}
	if orig.Entities["amounts"].([]string)[0] != "$10" {
		t.Error("entity slice shared with clone")
	}
	if orig.Entities["nested"].(map[string]any)["k"].([]any)[0] != 1 {
		t.Error("nested entity shared with clone")
	}
	if orig.KBResults[0]["id"] != "kb_001" {
		t.Error("kb result shared with clone")
	}
	if orig.Scores[0] != 72 {
		t.Error("scores shared with clone")
	}
	if orig.Log[0].Details["input_keys"].([]string)[0] != "query" {
		t.Error("log details shared with clone")
	}
}

func TestBestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"none", nil, 0},
		{"single", []float64{55}, 55},
		{"max not first", []float64{60, 95, 70}, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := AgentState{Scores: tt.scores}
			if got := s.BestScore(); got != tt.want {
				t.Errorf("BestScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	s := sampleState()
	p := s.Export()

	wantStages := []string{"INTAKE", "UNDERSTAND", "DECIDE"}
	if !reflect.DeepEqual(p.Processing.StagesCompleted, wantStages) {
		t.Errorf("StagesCompleted = %v, want %v", p.Processing.StagesCompleted, wantStages)
	}
	if p.Processing.KnowledgeBaseResults != 1 {
		t.Errorf("KnowledgeBaseResults = %d, want 1", p.Processing.KnowledgeBaseResults)
	}
	if p.Processing.SolutionsEvaluated != 2 {
		t.Errorf("SolutionsEvaluated = %d, want 2", p.Processing.SolutionsEvaluated)
	}
	if p.Decisions.BestSolutionScore != 88 {
		t.Errorf("BestSolutionScore = %v, want 88", p.Decisions.BestSolutionScore)
	}
	if p.Output.FinalStatus != StatusResolved {
		t.Errorf("FinalStatus = %s, want resolved", p.Output.FinalStatus)
	}
	if !p.Metadata.CompletedAt.Equal(s.UpdatedAt) {
		t.Errorf("CompletedAt = %v, want %v", p.Metadata.CompletedAt, s.UpdatedAt)
	}
	if !reflect.DeepEqual(p, s.Export()) {
		t.Error("Export() is not idempotent")
	}

	p.Processing.EntitiesExtracted["amounts"] = "mutated"
	if _, ok := s.Entities["amounts"].([]string); !ok {
		t.Error("Export() leaked a reference to live entities")
	}

	s.EscalationRequired = true
	if got := s.Export().Output.FinalStatus; got != StatusEscalated {
		t.Errorf("FinalStatus = %s, want escalated", got)
	}
}

func TestExportEmptyState(t *testing.T) {
	t.Parallel()

	p := AgentState{}.Export()
	if p.Processing.EntitiesExtracted == nil || p.Processing.EnrichedData == nil {
		t.Error("empty mappings should export as {} not null")
	}
	if p.Output.ActionsExecuted == nil || p.Metadata.ProcessingLog == nil {
		t.Error("empty lists should export as [] not null")
	}
	if len(p.Processing.StagesCompleted) != 0 {
		t.Errorf("StagesCompleted = %v, want empty", p.Processing.StagesCompleted)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	sum := sampleState().Summarize()
	if sum.TicketID != "T-1" || sum.CurrentStage != "DECIDE" {
		t.Errorf("Summarize() = %+v", sum)
	}
	if sum.StagesCompleted != 3 || sum.SolutionsFound != 2 || sum.ActionsTaken != 1 {
		t.Errorf("Summarize() counts = %+v", sum)
	}
	if sum.ProcessingTime != time.Second {
		t.Errorf("ProcessingTime = %v, want 1s", sum.ProcessingTime)
	}
}
