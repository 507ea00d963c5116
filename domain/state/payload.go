package state

import "time"

// Final statuses reported in the payload output section.
const (
	StatusEscalated = "escalated"
	StatusResolved  = "resolved"
)

// Payload is the externally consumed summary of a request.
type Payload struct {
	Input      Input             `json:"input"`
	Processing ProcessingSection `json:"processing"`
	Decisions  DecisionsSection  `json:"decisions"`
	Output     OutputSection     `json:"output"`
	Metadata   MetadataSection   `json:"metadata"`
}

// ProcessingSection reports what the stages accumulated.
type ProcessingSection struct {
	StagesCompleted      []string       `json:"stages_completed"`
	EntitiesExtracted    map[string]any `json:"entities_extracted"`
	EnrichedData         map[string]any `json:"enriched_data"`
	KnowledgeBaseResults int            `json:"knowledge_base_results"`
	SolutionsEvaluated   int            `json:"solutions_evaluated"`
}

// DecisionsSection reports the escalation decision.
type DecisionsSection struct {
	EscalationRequired bool    `json:"escalation_required"`
	EscalationReason   string  `json:"escalation_reason"`
	BestSolutionScore  float64 `json:"best_solution_score"`
}

// OutputSection reports what was produced for the customer.
type OutputSection struct {
	GeneratedResponse string   `json:"generated_response"`
	ActionsExecuted   []string `json:"actions_executed"`
	FinalStatus       string   `json:"final_status"`
}

// MetadataSection carries timestamps and the full processing log.
type MetadataSection struct {
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at"`
	ProcessingLog []Event   `json:"processing_log"`
}

// Export projects s into a payload. It does not mutate s; CompletedAt is the
// last update time so repeated exports of unchanged state are identical.
func (s AgentState) Export() Payload {
	c := s.Clone()
	entities := c.Entities
	if entities == nil {
		entities = map[string]any{}
	}
	enriched := c.EnrichedData
	if enriched == nil {
		enriched = map[string]any{}
	}
	actions := c.Actions
	if actions == nil {
		actions = []string{}
	}
	log := c.Log
	if log == nil {
		log = []Event{}
	}
	return Payload{
		Input: c.Input,
		Processing: ProcessingSection{
			StagesCompleted:      c.StagesCompleted(),
			EntitiesExtracted:    entities,
			EnrichedData:         enriched,
			KnowledgeBaseResults: len(c.KBResults),
			SolutionsEvaluated:   len(c.Solutions),
		},
		Decisions: DecisionsSection{
			EscalationRequired: c.EscalationRequired,
			EscalationReason:   c.EscalationReason,
			BestSolutionScore:  c.BestScore(),
		},
		Output: OutputSection{
			GeneratedResponse: c.GeneratedResponse,
			ActionsExecuted:   actions,
			FinalStatus:       c.FinalStatus(),
		},
		Metadata: MetadataSection{
			CreatedAt:     c.CreatedAt,
			CompletedAt:   c.UpdatedAt,
			ProcessingLog: log,
		},
	}
}

// Summary is a compact view of a request's progress.
type Summary struct {
	TicketID           string        `json:"ticket_id"`
	CustomerName       string        `json:"customer_name"`
	CurrentStage       string        `json:"current_stage"`
	StagesCompleted    int           `json:"stages_completed"`
	EscalationRequired bool          `json:"escalation_required"`
	SolutionsFound     int           `json:"solutions_found"`
	ActionsTaken       int           `json:"actions_taken"`
	ProcessingTime     time.Duration `json:"processing_time"`
}

// Summarize builds a Summary of s.
func (s AgentState) Summarize() Summary {
	return Summary{
		TicketID:           s.Input.TicketID,
		CustomerName:       s.Input.CustomerName,
		CurrentStage:       s.CurrentStage,
		StagesCompleted:    len(s.StagesCompleted()),
		EscalationRequired: s.EscalationRequired,
		SolutionsFound:     len(s.Solutions),
		ActionsTaken:       len(s.Actions),
		ProcessingTime:     s.UpdatedAt.Sub(s.CreatedAt),
	}
}
