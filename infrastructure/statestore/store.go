// Package statestore owns the mutable state of a single request. Every
// mutation appends exactly one event to the processing log under the same
// lock, and readers only ever receive deep copies.
package statestore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/state"
)

// Store is the single writer of a request's AgentState.
type Store struct {
	mu    sync.RWMutex
	state state.AgentState
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty, uninitialized store.
func New(opts ...Option) *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore creates a store holding a copy of a previously snapshotted state.
func Restore(snapshot state.AgentState, opts ...Option) (*Store, error) {
	if !snapshot.Initialized() {
		return nil, state.ErrNotInitialized
	}
	s := New(opts...)
	s.state = snapshot.Clone()
	return s, nil
}

// Initialize records the request input. A store can be initialized once;
// further calls return state.ErrAlreadyInitialized and change nothing.
func (s *Store) Initialize(in state.Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Initialized() {
		return fmt.Errorf("%w: ticket %s", state.ErrAlreadyInitialized, s.state.Input.TicketID)
	}
	now := s.now()
	s.state.Input = in
	s.state.CreatedAt = now
	s.state.Entities = map[string]any{}
	s.state.NormalizedFields = map[string]any{}
	s.state.EnrichedData = map[string]any{}
	s.appendLocked(now, state.EventStateInitialized, map[string]any{
		"input_keys": in.Keys(),
	})
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() state.AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Export projects the current state into the final payload.
func (s *Store) Export() state.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Export()
}

// Summary returns a compact view of progress.
func (s *Store) Summary() state.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Summarize()
}

// LogLen returns the number of processing log entries.
func (s *Store) LogLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Log)
}

// AdvanceStage makes name the current stage, moving the previous one into history.
func (s *Store) AdvanceStage(name string) error {
	return s.mutate(state.EventStageUpdated, func(st *state.AgentState) map[string]any {
		from := st.CurrentStage
		if from != "" {
			st.StageHistory = append(st.StageHistory, from)
		}
		st.CurrentStage = name
		details := map[string]any{"from": nil, "to": name}
		if from != "" {
			details["from"] = from
		}
		return details
	})
}

// MergeEntities merges extracted entities, last write wins per key.
func (s *Store) MergeEntities(entities map[string]any) error {
	return s.mutate(state.EventEntitiesUpdated, func(st *state.AgentState) map[string]any {
		st.Entities = merge(st.Entities, entities)
		return map[string]any{"entities": keys(entities)}
	})
}

// MergeNormalizedFields merges normalized fields.
func (s *Store) MergeNormalizedFields(fields map[string]any) error {
	return s.mutate(state.EventFieldsNormalized, func(st *state.AgentState) map[string]any {
		st.NormalizedFields = merge(st.NormalizedFields, fields)
		return map[string]any{"fields": keys(fields)}
	})
}

// MergeEnrichedData merges enrichment data.
func (s *Store) MergeEnrichedData(data map[string]any) error {
	return s.mutate(state.EventDataEnriched, func(st *state.AgentState) map[string]any {
		st.EnrichedData = merge(st.EnrichedData, data)
		return map[string]any{"data_types": keys(data)}
	})
}

// AddKBResult appends one knowledge base result.
func (s *Store) AddKBResult(result map[string]any) error {
	return s.mutate(state.EventKBResultAdded, func(st *state.AgentState) map[string]any {
		st.KBResults = append(st.KBResults, state.CloneMap(result))
		return map[string]any{"result_id": result["id"]}
	})
}

// AddSolution appends a solution together with its score.
func (s *Store) AddSolution(solution map[string]any, score float64) error {
	return s.mutate(state.EventSolutionAdded, func(st *state.AgentState) map[string]any {
		st.Solutions = append(st.Solutions, state.CloneMap(solution))
		st.Scores = append(st.Scores, score)
		return map[string]any{"score": score, "solution_id": solution["id"]}
	})
}

// SetEscalation records the escalation decision.
func (s *Store) SetEscalation(required bool, reason string) error {
	return s.mutate(state.EventEscalationSet, func(st *state.AgentState) map[string]any {
		st.EscalationRequired = required
		st.EscalationReason = reason
		return map[string]any{"required": required, "reason": reason}
	})
}

// AddClarification appends a clarification question.
func (s *Store) AddClarification(question string) error {
	return s.mutate(state.EventClarificationAdded, func(st *state.AgentState) map[string]any {
		st.ClarificationQuestions = append(st.ClarificationQuestions, question)
		return map[string]any{"question": question}
	})
}

// AddHumanResponse appends a customer response.
func (s *Store) AddHumanResponse(response string) error {
	return s.mutate(state.EventHumanResponseAdded, func(st *state.AgentState) map[string]any {
		st.HumanResponses = append(st.HumanResponses, response)
		return map[string]any{"response_length": len(response)}
	})
}

// SetResponse records the generated customer reply.
func (s *Store) SetResponse(response string) error {
	return s.mutate(state.EventResponseGenerated, func(st *state.AgentState) map[string]any {
		st.GeneratedResponse = response
		return map[string]any{"response_length": len(response)}
	})
}

// AddAction appends an executed action description.
func (s *Store) AddAction(action string) error {
	return s.mutate(state.EventActionExecuted, func(st *state.AgentState) map[string]any {
		st.Actions = append(st.Actions, action)
		return map[string]any{"action": action}
	})
}

// mutate applies fn and appends its log entry as one unit.
func (s *Store) mutate(event state.EventType, fn func(*state.AgentState) map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Initialized() {
		return fmt.Errorf("%w: %s", state.ErrNotInitialized, event)
	}
	details := fn(&s.state)
	s.appendLocked(s.now(), event, details)
	return nil
}

func (s *Store) appendLocked(at time.Time, event state.EventType, details map[string]any) {
	s.state.UpdatedAt = at
	s.state.Log = append(s.state.Log, state.Event{
		Timestamp: at,
		Stage:     s.state.CurrentStage,
		Type:      event,
		Details:   details,
	})
}

func merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = state.CloneValue(v)
	}
	return dst
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
