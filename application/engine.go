// Package application runs support requests through the staged workflow.
package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/backend"
	"github.com/felixgeelhaar/supportflow/infrastructure/logging"
	"github.com/felixgeelhaar/supportflow/infrastructure/observability"
	"github.com/felixgeelhaar/supportflow/infrastructure/statemachine"
	"github.com/felixgeelhaar/supportflow/infrastructure/statestore"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/memory"
)

// Engine is the main orchestration service for support requests.
type Engine struct {
	table          *workflow.Table
	clients        []ability.Client
	executor       *Executor
	checkpoints    checkpoint.Store
	requestTimeout time.Duration
	maxConcurrent  int
	clock          func() time.Time
	tracer         trace.Tracer
	metrics        *observability.Metrics
	name           string
	version        string
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	Table          *workflow.Table
	Clients        []ability.Client
	Checkpoints    checkpoint.Store
	RequestTimeout time.Duration
	MaxConcurrent  int
	Clock          func() time.Time
	Tracer         trace.Tracer
	Metrics        *observability.Metrics
	Name           string
	Version        string
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	e := &Engine{
		table:          config.Table,
		clients:        config.Clients,
		checkpoints:    config.Checkpoints,
		requestTimeout: config.RequestTimeout,
		maxConcurrent:  config.MaxConcurrent,
		clock:          config.Clock,
		tracer:         config.Tracer,
		metrics:        config.Metrics,
		name:           config.Name,
		version:        config.Version,
	}

	// Set defaults
	if e.table == nil {
		e.table = workflow.DefaultTable()
	}
	if !slices.Equal(e.table.Names(), workflow.StageOrder()) {
		return nil, fmt.Errorf("%w: stage table must declare %v in order", workflow.ErrConfiguration, workflow.StageOrder())
	}
	if len(e.clients) == 0 {
		e.clients = []ability.Client{
			backend.NewCommon(),
			backend.NewAtlas(backend.AtlasConfig{}),
		}
	}
	seen := make(map[workflow.Backend]bool, len(e.clients))
	for _, c := range e.clients {
		if seen[c.Backend()] {
			return nil, fmt.Errorf("%w: two clients for %s backend", workflow.ErrConfiguration, c.Backend())
		}
		seen[c.Backend()] = true
	}
	if e.checkpoints == nil {
		e.checkpoints = memory.NewCheckpointStore()
	}
	if e.maxConcurrent <= 0 {
		e.maxConcurrent = 8
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.tracer == nil {
		e.tracer = tracenoop.NewTracerProvider().Tracer(observability.InstrumentationName)
	}
	if e.metrics == nil {
		e.metrics = observability.NoopMetrics()
	}
	if e.name == "" {
		e.name = workflow.AgentName
	}
	if e.version == "" {
		e.version = workflow.AgentVersion
	}

	e.executor = NewExecutor(e.clients, WithExecutorTracer(e.tracer), WithExecutorMetrics(e.metrics))
	return e, nil
}

// NewEngineWithOptions creates an engine from functional options.
func NewEngineWithOptions(opts ...Option) (*Engine, error) {
	var config EngineConfig
	for _, opt := range opts {
		opt(&config)
	}
	return NewEngine(config)
}

// Info describes the workflow this engine runs.
func (e *Engine) Info() workflow.Info {
	return e.table.Describe(e.name, e.version)
}

// Checkpoints returns the checkpoint store.
func (e *Engine) Checkpoints() checkpoint.Store {
	return e.checkpoints
}

// run carries the per-request collaborators through the stage loop.
type run struct {
	store    *statestore.Store
	flow     *statemachine.Flow
	lastGood state.AgentState
	result   Result
}

// Process runs a request from INTAKE to COMPLETE. Failures are reported on
// the returned Result, never as a panic or a separate error.
func (e *Engine) Process(ctx context.Context, in state.Input) Result {
	if err := in.Validate(); err != nil {
		return e.failure(ctx, in, err)
	}

	store := statestore.New(statestore.WithClock(e.clock))
	if err := store.Initialize(in); err != nil {
		return e.failure(ctx, in, err)
	}

	flow, err := statemachine.NewFlow(in.TicketID)
	if err != nil {
		return e.failure(ctx, in, err)
	}
	flow.Start()
	defer flow.Stop()

	r := &run{
		store:    store,
		flow:     flow,
		lastGood: store.Snapshot(),
		result:   Result{ThreadID: in.TicketID, Status: checkpoint.StatusRunning},
	}
	first := e.table.First()
	if err := e.save(ctx, r, "", first, checkpoint.StatusRunning, ""); err != nil {
		return e.failure(ctx, in, err)
	}

	logging.Info().
		Add(logging.ThreadID(in.TicketID)).
		Add(logging.Str("priority", in.NormalizedPriority())).
		Msg("processing request")

	return e.execute(ctx, r, first)
}

// Resume continues a checkpointed request with the stage after the last one
// that finished.
func (e *Engine) Resume(ctx context.Context, threadID string) Result {
	result := Result{ThreadID: threadID, Status: checkpoint.StatusFailed}
	fail := func(err error) Result {
		result.Err = err
		result.Error = err.Error()
		return result
	}

	cp, err := e.checkpoints.Load(ctx, threadID)
	if err != nil {
		return fail(fmt.Errorf("load checkpoint: %w", err))
	}
	if cp.Status.IsTerminal() || cp.NextStage == "" {
		return fail(fmt.Errorf("%w: %s", checkpoint.ErrAlreadyCompleted, threadID))
	}
	next := workflow.StageName(cp.NextStage)
	if _, err := e.table.Stage(next); err != nil {
		return fail(err)
	}

	store, err := statestore.Restore(cp.State, statestore.WithClock(e.clock))
	if err != nil {
		return fail(fmt.Errorf("restore state: %w", err))
	}
	flow, err := statemachine.NewFlow(threadID)
	if err != nil {
		return fail(err)
	}
	flow.Start()
	defer flow.Stop()
	if err := flow.ResumeAt(next, cp.State.EscalationRequired); err != nil {
		return fail(err)
	}

	logging.Info().
		Add(logging.ThreadID(threadID)).
		Add(logging.Stage(next.String())).
		Add(logging.Status(string(cp.Status))).
		Msg("resuming request")

	r := &run{
		store:    store,
		flow:     flow,
		lastGood: store.Snapshot(),
		result:   Result{ThreadID: threadID, Status: checkpoint.StatusRunning, Branch: cp.Branch},
	}
	return e.execute(ctx, r, next)
}

// execute runs stages from the given one until COMPLETE finishes or the
// request fails.
func (e *Engine) execute(ctx context.Context, r *run, from workflow.StageName) Result {
	start := time.Now()
	if e.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, e.tracer, "process",
		observability.AttrThreadID.String(r.result.ThreadID),
	)

	stage := from
	for {
		if err := ctx.Err(); err != nil {
			e.abort(ctx, r, stage, err)
			break
		}

		if err := e.step(ctx, r, stage); err != nil {
			e.abort(ctx, r, stage, err)
			break
		}

		next, ok, err := e.table.Next(stage)
		if err != nil {
			e.abort(ctx, r, stage, err)
			break
		}
		if !ok {
			r.result.Status = checkpoint.StatusCompleted
			break
		}
		stage = next
	}

	snap := r.store.Snapshot()
	payload := snap.Export()
	summary := snap.Summarize()
	r.result.Payload = &payload
	r.result.Summary = &summary
	r.result.Transitions = r.flow.Transitions()

	span.SetAttributes(
		observability.AttrStatus.String(string(r.result.Status)),
		observability.AttrBranch.String(r.result.Branch),
	)
	observability.EndSpan(span, r.result.Err)
	e.metrics.RecordRequest(ctx, string(r.result.Status), r.result.Branch)

	logging.Info().
		Add(logging.ThreadID(r.result.ThreadID)).
		Add(logging.Status(string(r.result.Status))).
		Add(logging.Branch(r.result.Branch)).
		Add(logging.Count("stages", len(r.result.Stages))).
		Add(logging.Duration(time.Since(start))).
		Msg("request finished")

	return r.result
}

// step runs one stage, moves the state machine past it and checkpoints.
func (e *Engine) step(ctx context.Context, r *run, stage workflow.StageName) error {
	def, err := e.table.Stage(stage)
	if err != nil {
		return err
	}

	logging.Debug().
		Add(logging.ThreadID(r.result.ThreadID)).
		Add(logging.Stage(stage.String())).
		Add(logging.Mode(string(def.Mode))).
		Msg("stage started")

	sr, err := e.executor.Execute(ctx, def, r.store)
	r.result.Stages = append(r.result.Stages, sr)
	if err != nil {
		return err
	}
	// A deadline that expired mid-stage leaves the stage partial.
	if err := ctx.Err(); err != nil {
		return err
	}

	logging.Info().
		Add(logging.ThreadID(r.result.ThreadID)).
		Add(logging.Stage(stage.String())).
		Add(logging.Count("errors", len(sr.Errors()))).
		Add(logging.Duration(sr.Duration)).
		Msg("stage completed")

	next, ok, err := e.table.Next(stage)
	if err != nil {
		return err
	}
	switch {
	case stage == workflow.StageDecide:
		r.flow.SetEscalation(r.store.Snapshot().EscalationRequired)
		branch, err := r.flow.Branch()
		if err != nil {
			return err
		}
		r.result.Branch = branch
	case ok:
		err = r.flow.Advance(next)
	default:
		err = r.flow.Finish()
	}
	if err != nil {
		return err
	}

	status := checkpoint.StatusRunning
	if !ok {
		next, status = "", checkpoint.StatusCompleted
	}
	if err := e.save(ctx, r, stage, next, status, ""); err != nil {
		return err
	}
	r.lastGood = r.store.Snapshot()
	return nil
}

// abort stops the request at stage. The checkpoint keeps the state as of the
// last finished stage so a resume reruns stage from scratch.
func (e *Engine) abort(ctx context.Context, r *run, stage workflow.StageName, cause error) {
	status := checkpoint.StatusFailed
	if errors.Is(cause, context.DeadlineExceeded) {
		status = checkpoint.StatusTimedOut
	}

	r.result.Status = status
	r.result.Err = fmt.Errorf("%w: stage %s: %w", ErrWorkflowFailure, stage, cause)
	r.result.Error = r.result.Err.Error()

	if err := r.flow.Fail(cause.Error()); err != nil {
		logging.Debug().
			Add(logging.ThreadID(r.result.ThreadID)).
			Add(logging.ErrorField(err)).
			Msg("state machine already left the stage")
	}

	saveCtx := context.WithoutCancel(ctx)
	cp := checkpoint.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  r.result.ThreadID,
		LastStage: r.lastGood.CurrentStage,
		NextStage: stage.String(),
		Branch:    r.result.Branch,
		Status:    status,
		Error:     cause.Error(),
		State:     r.lastGood,
		UpdatedAt: e.clock().UTC(),
	}
	if err := e.checkpoints.Save(saveCtx, cp); err != nil {
		logging.Error().
			Add(logging.ThreadID(r.result.ThreadID)).
			Add(logging.ErrorField(err)).
			Msg("checkpoint save failed")
	}

	logging.Error().
		Add(logging.ThreadID(r.result.ThreadID)).
		Add(logging.Stage(stage.String())).
		Add(logging.Status(string(status))).
		Add(logging.ErrorField(cause)).
		Msg("request aborted")
}

func (e *Engine) save(ctx context.Context, r *run, last, next workflow.StageName, status checkpoint.Status, errMsg string) error {
	cp := checkpoint.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  r.result.ThreadID,
		LastStage: last.String(),
		NextStage: next.String(),
		Branch:    r.result.Branch,
		Status:    status,
		Error:     errMsg,
		State:     r.store.Snapshot(),
		UpdatedAt: e.clock().UTC(),
	}
	if err := e.checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// failure builds the result of a request that could not start.
func (e *Engine) failure(ctx context.Context, in state.Input, err error) Result {
	e.metrics.RecordRequest(ctx, string(checkpoint.StatusFailed), "")
	logging.Error().
		Add(logging.ThreadID(in.TicketID)).
		Add(logging.ErrorField(err)).
		Msg("request rejected")

	return Result{
		ThreadID: in.TicketID,
		Status:   checkpoint.StatusFailed,
		Failure: &FailurePayload{
			Error:     err.Error(),
			Status:    string(checkpoint.StatusFailed),
			Timestamp: e.clock().UTC(),
			InputData: in,
		},
		Error: err.Error(),
		Err:   err,
	}
}
