package state

import "time"

// EventType tags an entry of the processing log.
type EventType string

// Event types, one per mutation family.
const (
	EventStateInitialized   EventType = "STATE_INITIALIZED"
	EventStageUpdated       EventType = "STAGE_UPDATED"
	EventEntitiesUpdated    EventType = "ENTITIES_UPDATED"
	EventFieldsNormalized   EventType = "FIELDS_NORMALIZED"
	EventDataEnriched       EventType = "DATA_ENRICHED"
	EventKBResultAdded      EventType = "KB_RESULT_ADDED"
	EventSolutionAdded      EventType = "SOLUTION_ADDED"
	EventEscalationSet      EventType = "ESCALATION_SET"
	EventClarificationAdded EventType = "CLARIFICATION_ADDED"
	EventHumanResponseAdded EventType = "HUMAN_RESPONSE_ADDED"
	EventResponseGenerated  EventType = "RESPONSE_GENERATED"
	EventActionExecuted     EventType = "ACTION_EXECUTED"
)

// Event is one entry of the append-only processing log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Stage     string         `json:"stage"`
	Type      EventType      `json:"event_type"`
	Details   map[string]any `json:"details"`
}
