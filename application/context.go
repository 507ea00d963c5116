package application

import (
	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/state"
)

// BuildContext projects a snapshot into the read-only mapping handed to
// ability handlers. The snapshot is already a deep copy, so handlers cannot
// reach the live state through it.
func BuildContext(s state.AgentState) ability.Context {
	in := s.Input
	return ability.Context{
		"customer_name":           in.CustomerName,
		"email":                   in.Email,
		"query":                   in.Query,
		"priority":                in.NormalizedPriority(),
		"ticket_id":               in.TicketID,
		"priority_level":          in.PriorityLevel(),
		"current_stage":           s.CurrentStage,
		"extracted_entities":      s.Entities,
		"normalized_fields":       s.NormalizedFields,
		"enriched_data":           s.EnrichedData,
		"kb_results":              s.KBResults,
		"solutions":               s.Solutions,
		"best_score":              s.BestScore(),
		"escalation_required":     s.EscalationRequired,
		"escalation_reason":       s.EscalationReason,
		"clarification_questions": s.ClarificationQuestions,
		"human_responses":         s.HumanResponses,
		"generated_response":      s.GeneratedResponse,
		"actions_taken":           s.Actions,
	}
}
