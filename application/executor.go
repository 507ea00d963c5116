package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/logging"
	"github.com/felixgeelhaar/supportflow/infrastructure/observability"
	"github.com/felixgeelhaar/supportflow/infrastructure/statestore"
)

// StageResult holds every ability result produced by one stage, in order.
// Failed abilities appear as inline error results.
type StageResult struct {
	Stage    workflow.StageName `json:"stage"`
	Mode     workflow.Mode      `json:"mode"`
	Results  []ability.Result   `json:"results"`
	Duration time.Duration      `json:"duration"`
}

// Errors returns the inline error results.
func (r StageResult) Errors() []ability.Result {
	var out []ability.Result
	for _, res := range r.Results {
		if res.IsError() {
			out = append(out, res)
		}
	}
	return out
}

// Executor runs a single stage against a request's store.
type Executor struct {
	clients map[workflow.Backend]ability.Client
	tracer  trace.Tracer
	metrics *observability.Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorTracer sets the tracer used for stage and ability spans.
func WithExecutorTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = t
	}
}

// WithExecutorMetrics sets the metric instruments.
func WithExecutorMetrics(m *observability.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor routing each ability to the client of its
// backend.
func NewExecutor(clients []ability.Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		clients: make(map[workflow.Backend]ability.Client, len(clients)),
		tracer:  tracenoop.NewTracerProvider().Tracer(observability.InstrumentationName),
		metrics: observability.NoopMetrics(),
	}
	for _, c := range clients {
		e.clients[c.Backend()] = c
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute advances the store to stage and dispatches its abilities by mode.
// Only structural problems are returned as errors; ability failures are
// recorded inline and the stage continues.
func (e *Executor) Execute(ctx context.Context, stage workflow.Stage, store *statestore.Store) (sr StageResult, err error) {
	start := time.Now()
	sr = StageResult{Stage: stage.Name, Mode: stage.Mode}

	ctx, span := observability.StartSpan(ctx, e.tracer, "stage "+stage.Name.String(),
		observability.AttrStage.String(stage.Name.String()),
		observability.AttrMode.String(string(stage.Mode)),
	)
	defer func() {
		sr.Duration = time.Since(start)
		e.metrics.RecordStage(ctx, stage.Name.String(), string(stage.Mode), sr.Duration)
		observability.EndSpan(span, err)
	}()

	if !stage.Mode.IsValid() {
		return sr, fmt.Errorf("%w: stage %s has mode %q", workflow.ErrUnknownMode, stage.Name, stage.Mode)
	}

	if err := store.AdvanceStage(stage.Name.String()); err != nil {
		return sr, err
	}

	release, err := e.connect(ctx)
	if err != nil {
		return sr, err
	}
	defer release()

	switch stage.Mode {
	case workflow.ModePayloadOnly:
		err = e.payloadOnly(ctx, stage, store, &sr)
	case workflow.ModeDeterministic:
		err = e.deterministic(ctx, stage, store, &sr)
	case workflow.ModeNonDeterministic:
		err = e.nonDeterministic(ctx, stage, store, &sr)
	case workflow.ModeHuman:
		err = e.human(ctx, stage, store, &sr)
	}
	return sr, err
}

// connect opens a session on every client. The returned func releases them
// and always runs, even when the stage fails.
func (e *Executor) connect(ctx context.Context) (func(), error) {
	var opened []ability.Client
	release := func() {
		for _, c := range opened {
			if err := c.Disconnect(context.WithoutCancel(ctx)); err != nil {
				logging.Warn().
					Add(logging.Backend(string(c.Backend()))).
					Add(logging.ErrorField(err)).
					Msg("disconnect failed")
			}
		}
	}
	for _, b := range workflow.Backends() {
		c, ok := e.clients[b]
		if !ok {
			continue
		}
		if err := c.Connect(ctx); err != nil {
			release()
			return nil, fmt.Errorf("connect %s backend: %w", b, err)
		}
		opened = append(opened, c)
	}
	return release, nil
}

// call runs one ability and converts any failure into an inline error result.
func (e *Executor) call(ctx context.Context, stage workflow.Stage, a workflow.Ability, in ability.Context) ability.Result {
	ctx, span := observability.StartSpan(ctx, e.tracer, "ability "+a.Name,
		observability.AttrAbility.String(a.Name),
		observability.AttrBackend.String(string(a.Backend)),
	)

	r, err := e.dispatch(ctx, a, in)
	observability.EndSpan(span, err)
	e.metrics.RecordAbility(ctx, a.Name, string(a.Backend), err != nil)

	if err != nil {
		logging.Warn().
			Add(logging.Stage(stage.Name.String())).
			Add(logging.Ability(a.Name)).
			Add(logging.Backend(string(a.Backend))).
			Add(logging.ErrorField(err)).
			Msg("ability failed")
		return ability.ErrorResult(a, err)
	}
	return r
}

func (e *Executor) dispatch(ctx context.Context, a workflow.Ability, in ability.Context) (ability.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := e.clients[a.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingClient, a.Backend)
	}
	return c.Execute(ctx, a, in)
}

func (e *Executor) payloadOnly(ctx context.Context, stage workflow.Stage, store *statestore.Store, sr *StageResult) error {
	for _, a := range stage.Abilities {
		snap := store.Snapshot()
		r := e.call(ctx, stage, a, BuildContext(snap))
		if !r.IsError() {
			switch a.Name {
			case workflow.AbilityAcceptPayload:
				r["input"] = snap.Input.Map()
			case workflow.AbilityOutputPayload:
				r["final_payload"] = store.Export()
			}
		}
		sr.Results = append(sr.Results, r)
	}
	return nil
}

func (e *Executor) deterministic(ctx context.Context, stage workflow.Stage, store *statestore.Store, sr *StageResult) error {
	for _, a := range stage.Abilities {
		r := e.call(ctx, stage, a, BuildContext(store.Snapshot()))
		sr.Results = append(sr.Results, r)
		if r.IsError() {
			continue
		}
		if err := applyUpdate(store, a.Name, r); err != nil {
			return err
		}
	}
	return nil
}

// applyUpdate is the closed mapping from ability to state mutation. Results
// of abilities not listed here drive no mutation.
func applyUpdate(store *statestore.Store, name string, r ability.Result) error {
	switch name {
	case workflow.AbilityExtractEntities:
		if m := ability.AsMap(r["extracted_entities"]); m != nil {
			return store.MergeEntities(m)
		}
	case workflow.AbilityNormalizeFields:
		if m := ability.AsMap(r["normalized_fields"]); m != nil {
			return store.MergeNormalizedFields(m)
		}
	case workflow.AbilityEnrichRecords:
		if m := ability.AsMap(r["enriched_data"]); m != nil {
			return store.MergeEnrichedData(m)
		}
	case workflow.AbilityKnowledgeBaseSearch:
		for _, kb := range ability.AsRecords(r["kb_results"]) {
			if err := store.AddKBResult(kb); err != nil {
				return err
			}
		}
	case workflow.AbilityExtractAnswer:
		if answer, _ := r["extracted_answer"].(string); answer != "" {
			return store.AddHumanResponse(answer)
		}
	case workflow.AbilityResponseGeneration:
		if resp, ok := r["generated_response"].(string); ok {
			return store.SetResponse(resp)
		}
	case workflow.AbilityUpdateTicket, workflow.AbilityCloseTicket,
		workflow.AbilityExecuteAPICalls, workflow.AbilityTriggerNotifications:
		for _, action := range ability.AsStrings(r["actions"]) {
			if err := store.AddAction(action); err != nil {
				return err
			}
		}
	}
	return nil
}

// nonDeterministic runs the DECIDE choreography: evaluate, decide, record.
// Each step sees the mutations of the previous one.
func (e *Executor) nonDeterministic(ctx context.Context, stage workflow.Stage, store *statestore.Store, sr *StageResult) error {
	if a, ok := stage.Ability(workflow.AbilitySolutionEvaluation); ok {
		r := e.call(ctx, stage, a, BuildContext(store.Snapshot()))
		sr.Results = append(sr.Results, r)
		if !r.IsError() {
			for _, sol := range ability.AsRecords(r["solutions"]) {
				score, _ := ability.AsFloat(sol["score"])
				if err := store.AddSolution(sol, score); err != nil {
					return err
				}
			}
		}
	}

	if a, ok := stage.Ability(workflow.AbilityEscalationDecision); ok {
		r := e.call(ctx, stage, a, BuildContext(store.Snapshot()))
		sr.Results = append(sr.Results, r)
		escalate, reason := fallbackEscalation(store.Snapshot().BestScore())
		if d := ability.AsMap(r["escalation_decision"]); !r.IsError() && d != nil {
			escalate, _ = d["escalate"].(bool)
			reason, _ = d["reason"].(string)
		}
		if err := store.SetEscalation(escalate, reason); err != nil {
			return err
		}
	}

	if a, ok := stage.Ability(workflow.AbilityUpdatePayload); ok {
		sr.Results = append(sr.Results, e.call(ctx, stage, a, BuildContext(store.Snapshot())))
	}
	return nil
}

// fallbackEscalation applies the threshold rule locally when the decision
// ability produced no usable answer.
func fallbackEscalation(best float64) (bool, string) {
	if best < workflow.EscalationThreshold {
		return true, fmt.Sprintf("Escalation decision unavailable; best solution score (%g) below threshold (%g)", best, workflow.EscalationThreshold)
	}
	return false, "Escalation decision unavailable; sufficient solution found"
}

func (e *Executor) human(ctx context.Context, stage workflow.Stage, store *statestore.Store, sr *StageResult) error {
	for _, a := range stage.Abilities {
		r := e.call(ctx, stage, a, BuildContext(store.Snapshot()))
		sr.Results = append(sr.Results, r)
		if r.IsError() {
			continue
		}
		for _, q := range ability.AsStrings(r["clarification_questions"]) {
			if err := store.AddClarification(q); err != nil {
				return err
			}
		}
	}
	return nil
}
