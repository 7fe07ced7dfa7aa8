package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/session"
	"github.com/hupe1980/agentrun/tool"
	"github.com/hupe1980/agentrun/tracing"
)

// DefaultMaxTurns caps the turn loop when no explicit limit is configured.
const DefaultMaxTurns = 50

// SessionInputCallback merges persisted history with the caller's new input
// into the working transcript. The default simply appends input to history.
type SessionInputCallback func(history, input []core.Message) []core.Message

// ApprovalHandler decides whether an approval-gated tool call may execute.
type ApprovalHandler func(ctx context.Context, req ApprovalRequest) (bool, error)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Logger receives structured run diagnostics. Defaults to no-op.
	Logger logging.Logger
	// Tracer emits run/agent/generation/tool/handoff spans. Defaults to a
	// no-op tracer, so tracing is never load-bearing.
	Tracer *tracing.Tracer
	// Session persists the transcript across runs. Nil disables persistence.
	Session session.Store
	// SessionID keys the session store. Defaults to the run id when a
	// Session is configured without one.
	SessionID string
	// MaxTurns caps the turn loop (default 50). Exceeding it aborts the run
	// with a MaxTurnsError.
	MaxTurns int
	// ContextValue is an opaque caller value threaded into dynamic
	// instructions, finish predicates and tool executions.
	ContextValue any
	// SessionInputCallback customizes history+input merging.
	SessionInputCallback SessionInputCallback
	// ApprovalHandler is consulted before approval-gated tools execute.
	ApprovalHandler ApprovalHandler
	// ApprovalTimeout bounds how long an approval decision may take.
	// Zero means no deadline.
	ApprovalTimeout time.Duration
	// DisableRouterOptimization turns off the forced tool-choice and
	// one-step cap applied to agents whose tools are all delegate tools.
	DisableRouterOptimization bool
	// StreamBufferSize sets channel buffering for streamed deltas/events.
	StreamBufferSize int
}

// Runner drives the turn-by-turn execution of one root agent: history merge,
// guardrails, model calls, tool execution, handoff resolution, finish
// evaluation and result assembly. Public methods are safe for concurrent
// use; runs share no mutable state beyond the per-agent tool-set cache,
// which is itself immutable after construction per entry.
type Runner struct {
	agent *agent.Agent

	logger                    logging.Logger
	tracer                    *tracing.Tracer
	store                     session.Store
	sessionID                 string
	maxTurns                  int
	contextValue              any
	sessionInputCallback      SessionInputCallback
	approvalHandler           ApprovalHandler
	approvalTimeout           time.Duration
	disableRouterOptimization bool
	streamBufferSize          int

	mu       sync.RWMutex
	toolSets map[string]*toolSet
}

// New constructs a Runner for the given root agent with optional overrides.
func New(a *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger:           logging.NoOpLogger{},
		Tracer:           tracing.NoopTracer(),
		MaxTurns:         DefaultMaxTurns,
		StreamBufferSize: 64,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.NoopTracer()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.StreamBufferSize <= 0 {
		opts.StreamBufferSize = 64
	}

	return &Runner{
		agent:                     a,
		logger:                    opts.Logger,
		tracer:                    opts.Tracer,
		store:                     opts.Session,
		sessionID:                 opts.SessionID,
		maxTurns:                  opts.MaxTurns,
		contextValue:              opts.ContextValue,
		sessionInputCallback:      opts.SessionInputCallback,
		approvalHandler:           opts.ApprovalHandler,
		approvalTimeout:           opts.ApprovalTimeout,
		disableRouterOptimization: opts.DisableRouterOptimization,
		streamBufferSize:          opts.StreamBufferSize,
		toolSets:                  make(map[string]*toolSet),
	}
}

// Run executes the agent on the given input until it finishes, a guardrail
// or tool fails, or the turn ceiling is hit. On failure the returned result
// still carries the partial state for inspection or resumption.
func (r *Runner) Run(ctx context.Context, input []core.Message) (*RunResult, error) {
	return r.run(ctx, input, nil)
}

// toolSetFor returns the cached tool set for the agent, building it on first
// use. The wrapping shape is pure per agent so entries never invalidate.
func (r *Runner) toolSetFor(a *agent.Agent) *toolSet {
	r.mu.RLock()
	ts, ok := r.toolSets[a.Name()]
	r.mu.RUnlock()
	if ok {
		return ts
	}

	ts = newToolSet(a)
	r.mu.Lock()
	r.toolSets[a.Name()] = ts
	r.mu.Unlock()
	return ts
}

func (r *Runner) run(ctx context.Context, input []core.Message, sink *streamSink) (*RunResult, error) {
	runID := core.NewID()
	sessionID := r.sessionID
	if sessionID == "" {
		sessionID = runID
	}

	state := &RunState{
		RunID:     runID,
		SessionID: sessionID,
		Agent:     r.agent.Name(),
		MaxTurns:  r.maxTurns,
		Input:     input,
	}

	// Merge persisted history with the new input.
	var history []core.Message
	if r.store != nil {
		var err error
		history, err = r.store.History(ctx, sessionID)
		if err != nil {
			return resultFromState(state, "", nil), fmt.Errorf("load session history: %w", err)
		}
	}
	if r.sessionInputCallback != nil {
		state.Messages = r.sessionInputCallback(history, input)
	} else {
		state.Messages = append(append([]core.Message{}, history...), input...)
	}

	runCtx := core.NewRunContext(ctx, runID, sessionID, input, r.contextValue, r.logger)
	runCtx.Agent = r.agent.Name()
	state.Usage = core.Usage{}
	runCtx.Usage = &state.Usage

	ctx, runSpan := r.tracer.StartSpan(ctx, "run "+r.agent.Name(), tracing.KindRun)
	runSpan.SetAttribute("run_id", runID)

	var agentSpan *tracing.Span
	var runErr error
	defer func() {
		// Spans close exactly once on every exit path; End is idempotent
		// so explicit closes elsewhere stay safe.
		if agentSpan != nil {
			agentSpan.RecordError(runErr)
			endAgentSpan(agentSpan, state.metrics(state.Agent))
		}
		runSpan.RecordError(runErr)
		runSpan.SetAttribute("turns", state.Turn)
		runSpan.SetAttribute("total_tokens", state.Usage.TotalTokens)
		runSpan.End()
	}()

	// Input guardrails validate the latest user message before any model
	// call; a failure means zero generations for this run.
	if err := guardrail.RunInput(ctx, r.agent.Guardrails(), lastUserText(state.Messages)); err != nil {
		runErr = err
		return resultFromState(state, "", nil), err
	}

	current := r.agent
	agentCtx := ctx
	agentCtx, agentSpan = r.tracer.StartSpan(ctx, "agent "+current.Name(), tracing.KindAgent)

	var finalText string

	for {
		state.Turn++
		if state.Turn > r.maxTurns {
			runErr = &MaxTurnsError{Limit: r.maxTurns}
			return resultFromState(state, "", nil), runErr
		}
		runCtx.Turn = state.Turn
		state.metrics(current.Name()).Turns++

		text, msg, calls, finish, err := r.turn(agentCtx, runCtx, current, state, sink)
		if err != nil {
			runErr = err
			return resultFromState(state, "", nil), err
		}

		if sink != nil && sink.cancelled() {
			// Cooperative cancellation resolves with the partial text
			// produced so far, distinguishing it from provider failure.
			state.FinishReason = "cancelled"
			return resultFromState(state, sink.partialText(), nil), nil
		}

		state.appendMessages(msg)

		results, handoff, err := r.executeTools(agentCtx, runCtx, current, state, calls, sink)
		if err != nil {
			runErr = err
			return resultFromState(state, "", nil), err
		}

		if handoff != nil {
			target := current.ResolveHandoff(handoff.AgentName)
			if target == nil {
				// Unresolvable targets are a warning: the turn degrades
				// to a normal step instead of aborting the run.
				r.logger.Warn("handoff target not in current agent's list",
					"run_id", runID,
					"from_agent", current.Name(),
					"to_agent", handoff.AgentName,
				)
			} else {
				r.handoffSwitch(agentCtx, runCtx, state, current, target, handoff, sink)
				state.metrics(current.Name()).Handoffs++

				// The outgoing agent's span never straddles the boundary.
				endAgentSpan(agentSpan, state.metrics(current.Name()))
				current = target
				runCtx.Agent = current.Name()
				state.Agent = current.Name()
				agentCtx, agentSpan = r.tracer.StartSpan(ctx, "agent "+current.Name(), tracing.KindAgent)

				// A handoff switch is not a step; loop for the new agent.
				continue
			}
		}

		step := core.Step{
			Turn:         state.Turn,
			Agent:        current.Name(),
			Text:         text,
			Calls:        calls,
			Results:      results,
			FinishReason: finish,
		}
		state.Steps = append(state.Steps, step)
		m := state.metrics(current.Name())
		m.Steps++
		m.ToolCalls += len(calls)

		if cb := current.OnStepFinish(); cb != nil {
			cb(&step)
		}
		if sink != nil {
			sink.step(&step)
		}

		if r.finished(runCtx, current, state, &step) {
			finalText = text
			state.FinishReason = finish
			break
		}
	}

	// Finish: output guardrails, schema parse, session persist.
	if err := guardrail.RunOutput(ctx, current.Guardrails(), finalText); err != nil {
		runErr = err
		return resultFromState(state, finalText, nil), err
	}

	var output any
	if schema := current.OutputSchema(); schema != nil {
		parsed, err := validateOutput(current.Name(), schema, finalText)
		if err != nil {
			runErr = err
			return resultFromState(state, finalText, nil), err
		}
		output = parsed
	}

	if r.store != nil {
		toPersist := append(append([]core.Message{}, input...), state.Generated...)
		if err := r.store.Append(ctx, sessionID, toPersist...); err != nil {
			runErr = fmt.Errorf("persist session: %w", err)
			return resultFromState(state, finalText, output), runErr
		}
	}

	r.logger.Info("run completed",
		"run_id", runID,
		"agent", current.Name(),
		"turns", state.Turn,
		"total_tokens", state.Usage.TotalTokens,
	)

	return resultFromState(state, finalText, output), nil
}

// turn performs one model call for the current agent and returns the
// assistant text, the full assistant message, extracted tool calls and the
// provider finish reason.
func (r *Runner) turn(
	ctx context.Context,
	runCtx *core.RunContext,
	current *agent.Agent,
	state *RunState,
	sink *streamSink,
) (string, core.Message, []core.FunctionCall, string, error) {
	instructions, err := current.Instructions(runCtx)
	if err != nil {
		return "", core.Message{}, nil, "", fmt.Errorf("resolve instructions of agent %q: %w", current.Name(), err)
	}

	bound := r.toolSetFor(current).bind(runCtx)
	router := current.IsRouter() && !r.disableRouterOptimization

	req := model.Request{
		Instructions: instructions,
		Messages:     state.Messages,
		Tools:        bound.definitions(),
		Settings:     current.Settings(),
		ForceToolUse: router,
		Stream:       sink != nil,
	}

	genCtx, genSpan := r.tracer.StartSpan(ctx, "generation", tracing.KindGeneration)
	genSpan.SetAttribute("agent", current.Name())
	genSpan.SetAttribute("turn", state.Turn)
	defer genSpan.End()

	resp, err := r.generate(genCtx, current.Model(), req, sink)
	if err != nil {
		genSpan.RecordError(err)
		return "", core.Message{}, nil, "", fmt.Errorf("model call failed: %w", err)
	}

	if resp.Usage != nil {
		runCtx.Usage.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		state.metrics(current.Name()).Usage.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	} else {
		runCtx.Usage.AddTokens(0, 0)
		state.metrics(current.Name()).Usage.AddTokens(0, 0)
	}

	text := resp.Message.Text()
	calls := resp.Message.FunctionCalls()
	genSpan.SetAttribute("finish_reason", resp.FinishReason)
	genSpan.SetAttribute("tool_calls", len(calls))

	return text, resp.Message, calls, resp.FinishReason, nil
}

// generate drains the model's channel pair, forwarding partial deltas to the
// stream sink and returning the terminal response.
func (r *Runner) generate(ctx context.Context, m model.Model, req model.Request, sink *streamSink) (model.Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var final model.Response
	var gotFinal bool
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if sink != nil {
					sink.delta(resp.Delta)
				}
				continue
			}
			final = resp
			gotFinal = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return model.Response{}, err
			}
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		}
	}
	if !gotFinal {
		return model.Response{}, fmt.Errorf("model %q returned no terminal response", m.Info().Name)
	}
	return final, nil
}

// executeTools runs every model-issued call, pairing results to calls by id.
// The first handoff marker found stops being an ordinary result and is
// returned for resolution. Tool failures are fatal at this layer.
func (r *Runner) executeTools(
	ctx context.Context,
	runCtx *core.RunContext,
	current *agent.Agent,
	state *RunState,
	calls []core.FunctionCall,
	sink *streamSink,
) ([]core.FunctionResponse, *tool.Handoff, error) {
	if len(calls) == 0 {
		return nil, nil, nil
	}

	bound := r.toolSetFor(current).bind(runCtx)

	var handoff *tool.Handoff
	results := make([]core.FunctionResponse, 0, len(calls))
	for _, fc := range calls {
		_, toolSpan := r.tracer.StartSpan(ctx, "tool "+fc.Name, tracing.KindTool)
		toolSpan.SetAttribute("call_id", fc.ID)

		result, err := bound.call(r, fc)
		if err != nil {
			toolSpan.RecordError(err)
			toolSpan.End()
			return nil, nil, err
		}

		if h, ok := tool.AsHandoff(result); ok {
			if handoff == nil {
				handoff = h
			}
			// The recorded result keeps the serializable wire shape so
			// transcripts crossing a session boundary stay recognizable.
			result = h.Wire()
		}

		fr := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
		results = append(results, fr)
		toolSpan.End()

		msg := core.NewToolResultMessage(fc.ID, fc.Name, result, nil)
		state.appendMessages(msg)
		if sink != nil {
			sink.toolResult(&fr)
		}
	}
	return results, handoff, nil
}

// handoffSwitch records the control transfer: span, chain entry and the
// synthetic assistant message stating the handoff.
func (r *Runner) handoffSwitch(
	ctx context.Context,
	runCtx *core.RunContext,
	state *RunState,
	from, to *agent.Agent,
	h *tool.Handoff,
	sink *streamSink,
) {
	_, span := r.tracer.StartSpan(ctx, "handoff to "+to.Name(), tracing.KindHandoff)
	span.SetAttribute("from_agent", from.Name())
	span.SetAttribute("to_agent", to.Name())
	if h.Reason != "" {
		span.SetAttribute("reason", h.Reason)
	}
	span.End()

	state.recordHandoff(to.Name())

	note := fmt.Sprintf("Transferring to agent %q.", to.Name())
	if h.Reason != "" {
		note = fmt.Sprintf("Transferring to agent %q: %s", to.Name(), h.Reason)
	}
	state.appendMessages(core.NewAssistantMessage(note))

	r.logger.Info("handoff",
		"run_id", runCtx.RunID,
		"from_agent", from.Name(),
		"to_agent", to.Name(),
		"reason", h.Reason,
	)

	if sink != nil {
		sink.handoff(from.Name(), to.Name(), h.Reason)
	}
}

// finished evaluates the finish condition for a recorded step. A custom
// predicate wins; the default requires a natural stop signal and no further
// tool calls. Router turns and per-agent step caps end the agent's
// participation regardless.
func (r *Runner) finished(runCtx *core.RunContext, current *agent.Agent, state *RunState, step *core.Step) bool {
	if current.IsRouter() && !r.disableRouterOptimization {
		// A pure router gets one step; it is never expected to answer
		// directly, so an unresolved delegation ends the run.
		return true
	}
	if limit := current.MaxSteps(); limit > 0 && state.metrics(current.Name()).Steps >= limit {
		return true
	}
	if pred := current.FinishWhen(); pred != nil {
		return pred(runCtx, step)
	}
	return len(step.Calls) == 0 && naturalStop(step.FinishReason)
}

func naturalStop(finishReason string) bool {
	switch finishReason {
	case "", "stop", "end_turn":
		return true
	default:
		return false
	}
}

// validateOutput parses the final text as JSON and validates it against the
// agent's declared schema.
func validateOutput(agentName string, schema map[string]any, text string) (any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, &OutputSchemaError{Agent: agentName, Issues: []string{fmt.Sprintf("final answer is not valid JSON: %v", err)}}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(parsed),
	)
	if err != nil {
		return nil, &OutputSchemaError{Agent: agentName, Issues: []string{err.Error()}}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return nil, &OutputSchemaError{Agent: agentName, Issues: issues}
	}
	return parsed, nil
}

// endAgentSpan stamps an agent span with its accumulated metric bucket
// before closing it, mirroring what the run span records at exit.
func endAgentSpan(span *tracing.Span, m *AgentMetrics) {
	span.SetAttribute("turns", m.Turns)
	span.SetAttribute("steps", m.Steps)
	span.SetAttribute("tool_calls", m.ToolCalls)
	span.SetAttribute("handoffs", m.Handoffs)
	span.SetAttribute("total_tokens", m.Usage.TotalTokens)
	span.End()
}

func lastUserText(messages []core.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text()
		}
	}
	return ""
}
