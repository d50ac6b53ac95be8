// Package runner drives evaluation runs: the per-run step loop, the
// per-model worker, and the suite orchestrator that fans workers out across
// models.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/wordbench/pkg/config"
	"github.com/odvcencio/wordbench/pkg/env"
	"github.com/odvcencio/wordbench/pkg/events"
	"github.com/odvcencio/wordbench/pkg/logging"
	"github.com/odvcencio/wordbench/pkg/model"
	"github.com/odvcencio/wordbench/pkg/puzzle"
	"github.com/odvcencio/wordbench/pkg/trace"
)

// AgentClient issues one chat completion per step. The production
// implementation is model.Client; tests inject fakes.
type AgentClient interface {
	Complete(ctx context.Context, req model.ChatRequest) (*model.Completion, error)
}

// RunSpec identifies one run: one model's attempt at one puzzle repeat.
type RunSpec struct {
	Suite     string
	Model     string
	Puzzle    puzzle.Puzzle
	Repeat    int
	StartedAt time.Time // suite start, used for trace directory addressing
	TraceRoot string
}

// StepLoop executes single runs. It is stateless across runs and shared by
// all of a suite's workers.
type StepLoop struct {
	cfg    *config.Config
	client AgentClient
	logger *logging.Logger
	sink   events.Sink
	// newEnv is swappable for tests; defaults to environmentFor.
	newEnv func(p puzzle.Puzzle, cfg *config.Config) (env.Environment, error)
}

// NewStepLoop constructs a step loop. sink may be nil when no observers are
// attached.
func NewStepLoop(cfg *config.Config, client AgentClient, logger *logging.Logger, sink events.Sink) *StepLoop {
	if sink == nil {
		sink = events.NewHub()
	}
	return &StepLoop{cfg: cfg, client: client, logger: logger, sink: sink, newEnv: environmentFor}
}

// environmentFor builds the environment for a puzzle under the suite rules.
func environmentFor(p puzzle.Puzzle, cfg *config.Config) (env.Environment, error) {
	switch p.Type {
	case puzzle.TypeConnections:
		return env.NewConnectionsEnv(p.Connections, time.Now().UnixNano()), nil
	case puzzle.TypeCrossword:
		return env.NewCrosswordEnv(p.Crossword, env.CrosswordRules{
			AllowChecks:  cfg.Crossword.AllowChecks,
			AllowReveals: cfg.Crossword.AllowReveals,
		}), nil
	default:
		return nil, fmt.Errorf("puzzle %s: unknown type %q", p.ID, p.Type)
	}
}

// Execute runs one (model, puzzle, repeat) to completion and always returns
// a summary with a terminal status. Faults are contained: a panic or
// persistence failure marks this run, never the suite.
func (l *StepLoop) Execute(ctx context.Context, spec RunSpec) (summary trace.RunSummary) {
	runID := ulid.Make().String()
	started := time.Now()

	summary = trace.RunSummary{
		Suite:     spec.Suite,
		Model:     spec.Model,
		PuzzleID:  spec.Puzzle.ID,
		RunID:     runID,
		Repeat:    spec.Repeat,
		StartedAt: started,
	}

	var writer *trace.Writer

	defer func() {
		if r := recover(); r != nil {
			summary.Status = trace.RunError
			l.logError(spec, runID, "run_panic", fmt.Sprintf("recovered panic: %v", r))
			l.emit(events.Event{Type: events.TypeError, Model: spec.Model, PuzzleID: spec.Puzzle.ID, RunID: runID, Error: fmt.Sprintf("panic: %v", r)})
		}
		summary.FinishedAt = time.Now()
		if writer != nil {
			if err := writer.Finalize(summary); err != nil {
				l.logError(spec, runID, "trace_finalize_failed", err.Error())
			}
		}
		recordRunCompleted(string(summary.Status))
		l.emit(events.Event{
			Type:     events.TypeRunComplete,
			Model:    spec.Model,
			PuzzleID: spec.Puzzle.ID,
			RunID:    runID,
			Status:   string(summary.Status),
			Tokens:   summary.Usage.TotalTokens,
			Cost:     costOrZero(summary.Cost),
		})
	}()

	environment, err := l.newEnv(spec.Puzzle, l.cfg)
	if err != nil {
		summary.Status = trace.RunError
		l.logError(spec, runID, "env_create_failed", err.Error())
		return summary
	}
	environment.Reset()

	dir := trace.RunDir(spec.TraceRoot, spec.Suite, spec.StartedAt, spec.Model, spec.Puzzle.ID, runID)
	writer, err = trace.NewWriter(dir, l.cfg.Trace.Compression, l.cfg.Trace.CompressionThreshold)
	if err != nil {
		// Keep running; the summary is still returned to the orchestrator.
		writer = nil
		l.logError(spec, runID, "trace_open_failed", err.Error())
	}

	recordRunStarted()
	l.emit(events.Event{Type: events.TypeRunStart, Model: spec.Model, PuzzleID: spec.Puzzle.ID, RunID: runID})

	preamble := preambleFor(spec.Puzzle.Type, env.CrosswordRules{
		AllowChecks:  l.cfg.Crossword.AllowChecks,
		AllowReveals: l.cfg.Crossword.AllowReveals,
	})

	runDeadline := started.Add(l.cfg.RunTimeout())

	for step := 0; step < l.cfg.MaxSteps; step++ {
		// The wall-clock budget is only enforced between steps: one slow
		// call can overshoot it by up to a step's worth of time.
		if time.Now().After(runDeadline) {
			summary.Status = trace.RunTimeout
			break
		}
		if ctx.Err() != nil {
			summary.Status = trace.RunError
			l.logError(spec, runID, "run_cancelled", ctx.Err().Error())
			break
		}

		l.emit(events.Event{Type: events.TypeStepStart, Model: spec.Model, PuzzleID: spec.Puzzle.ID, RunID: runID, Step: step})

		obs := environment.Observation()
		req := buildRequest(l.cfg, spec.Model, preamble, obs)
		record := trace.StepRecord{Step: step, Observation: obs, Request: req}

		stepCtx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout())
		completion, callErr := l.client.Complete(stepCtx, req)
		cancel()

		var feedback *env.Feedback
		switch {
		case callErr != nil:
			// Transport errors (after the client's own retries) are step
			// errors: the step is recorded with no response and the run
			// moves on.
			record.Error = callErr.Error()
			l.logError(spec, runID, "agent_call_failed", callErr.Error())

		default:
			record.RawResponse = completion.Content
			record.Usage = completion.Usage
			record.Cost = completion.Cost
			record.LatencyMs = completion.Latency.Milliseconds()

			summary.Usage.Add(completion.Usage)
			summary.TotalLatencyMs += completion.Latency.Milliseconds()
			addCost(&summary.Cost, completion.Cost)
			recordStep(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

			action, parseErr := ParseAction(completion.Content, spec.Puzzle.Type)
			if parseErr != nil {
				// A parse failure counts against the invalid-action budget
				// without touching the environment.
				summary.InvalidActions++
				recordInvalidAction()
				record.Error = parseErr.Error()
			} else {
				record.Action = action
				fb, stepErr := environment.Step(*action)
				if stepErr != nil {
					record.Error = stepErr.Error()
				} else {
					record.Feedback = &fb
					feedback = &fb
					if fb.Outcome == env.OutcomeInvalid {
						summary.InvalidActions++
						recordInvalidAction()
					}
				}
			}
		}

		summary.Steps = step + 1
		if writer != nil {
			if err := writer.AppendStep(record); err != nil {
				l.logError(spec, runID, "trace_append_failed", err.Error())
			}
		}

		stepEvent := events.Event{
			Type:      events.TypeStepComplete,
			Model:     spec.Model,
			PuzzleID:  spec.Puzzle.ID,
			RunID:     runID,
			Step:      step,
			Tokens:    record.Usage.TotalTokens,
			Cost:      costOrZero(record.Cost),
			LatencyMs: record.LatencyMs,
			Error:     record.Error,
		}
		if record.Feedback != nil {
			stepEvent.Status = string(record.Feedback.Outcome)
		}
		l.emit(stepEvent)

		if summary.InvalidActions >= l.cfg.MaxInvalidActions {
			// The budget trips the run even though the environment itself
			// is not terminal.
			summary.Status = trace.RunFail
			break
		}
		if feedback != nil && feedback.Done {
			summary.Status = trace.RunStatus(feedback.Status)
			break
		}
	}

	if summary.Status == "" {
		if time.Now().After(runDeadline) {
			summary.Status = trace.RunTimeout
		} else {
			// Step cap exhausted without a terminal feedback.
			summary.Status = trace.RunFail
		}
	}
	summary.Metrics = environment.Metrics()
	return summary
}

func (l *StepLoop) emit(event events.Event) {
	if l.sink != nil {
		l.sink.Publish(event)
	}
}

func (l *StepLoop) logError(spec RunSpec, runID, eventType, message string) {
	if l.logger == nil {
		return
	}
	_ = l.logger.Log(logging.Event{
		Level:     logging.LevelError,
		Category:  logging.CategoryRunner,
		EventType: eventType,
		Model:     spec.Model,
		RunID:     runID,
		Message:   message,
		Details:   map[string]any{"puzzle": spec.Puzzle.ID, "repeat": spec.Repeat},
	})
}

func addCost(total **float64, delta *float64) {
	if delta == nil {
		return
	}
	if *total == nil {
		v := *delta
		*total = &v
		return
	}
	**total += *delta
}

func costOrZero(c *float64) float64 {
	if c == nil {
		return 0
	}
	return *c
}
