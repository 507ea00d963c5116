package state

import "time"

// AgentState is the accumulated state of one request. The state store owns
// the live instance; everything else only sees copies produced by Clone.
type AgentState struct {
	Input Input `json:"input"`

	CurrentStage string   `json:"current_stage"`
	StageHistory []string `json:"stage_history"`

	Entities         map[string]any `json:"entities"`
	NormalizedFields map[string]any `json:"normalized_fields"`
	EnrichedData     map[string]any `json:"enriched_data"`

	KBResults []map[string]any `json:"kb_results"`

	// Solutions and Scores are parallel and always appended together.
	Solutions []map[string]any `json:"solutions"`
	Scores    []float64        `json:"scores"`

	EscalationRequired bool   `json:"escalation_required"`
	EscalationReason   string `json:"escalation_reason"`

	Actions                []string `json:"actions"`
	ClarificationQuestions []string `json:"clarification_questions"`
	HumanResponses         []string `json:"human_responses"`
	GeneratedResponse      string   `json:"generated_response"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Log []Event `json:"processing_log"`
}

// Clone returns a deep copy that shares no maps or slices with s.
func (s AgentState) Clone() AgentState {
	out := s
	out.StageHistory = cloneStrings(s.StageHistory)
	out.Entities = CloneMap(s.Entities)
	out.NormalizedFields = CloneMap(s.NormalizedFields)
	out.EnrichedData = CloneMap(s.EnrichedData)
	out.KBResults = cloneRecords(s.KBResults)
	out.Solutions = cloneRecords(s.Solutions)
	if s.Scores != nil {
		out.Scores = append([]float64(nil), s.Scores...)
	}
	out.Actions = cloneStrings(s.Actions)
	out.ClarificationQuestions = cloneStrings(s.ClarificationQuestions)
	out.HumanResponses = cloneStrings(s.HumanResponses)
	if s.Log != nil {
		out.Log = make([]Event, len(s.Log))
		for i, e := range s.Log {
			e.Details = CloneMap(e.Details)
			out.Log[i] = e
		}
	}
	return out
}

// Initialized reports whether input has been recorded.
func (s AgentState) Initialized() bool {
	return !s.CreatedAt.IsZero()
}

// StagesCompleted returns the stage history followed by the current stage.
func (s AgentState) StagesCompleted() []string {
	out := make([]string, 0, len(s.StageHistory)+1)
	out = append(out, s.StageHistory...)
	if s.CurrentStage != "" {
		out = append(out, s.CurrentStage)
	}
	return out
}

// BestScore returns the maximum recorded solution score, or 0 when none exist.
func (s AgentState) BestScore() float64 {
	if len(s.Scores) == 0 {
		return 0
	}
	best := s.Scores[0]
	for _, v := range s.Scores[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// FinalStatus is "escalated" when escalation is required and "resolved" otherwise.
func (s AgentState) FinalStatus() string {
	if s.EscalationRequired {
		return StatusEscalated
	}
	return StatusResolved
}
