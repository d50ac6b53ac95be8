package runner

import (
	"context"

	"github.com/odvcencio/wordbench/pkg/events"
)

// Worker owns one model id and executes its assigned runs strictly
// sequentially: each run's step loop completes before the next begins, so
// event ordering within a model is the run order.
type Worker struct {
	model string
	specs []RunSpec
	loop  *StepLoop
	sink  events.Sink
}

// NewWorker constructs a worker for one model over its run specs.
func NewWorker(model string, specs []RunSpec, loop *StepLoop, sink events.Sink) *Worker {
	return &Worker{model: model, specs: specs, loop: loop, sink: sink}
}

// Model returns the model id this worker owns.
func (w *Worker) Model() string { return w.model }

// Run executes every assigned run and returns their summaries. Individual
// run failures are contained in their summaries; Run itself only stops early
// on context cancellation.
func (w *Worker) Run(ctx context.Context) []RunResult {
	results := make([]RunResult, 0, len(w.specs))
	for _, spec := range w.specs {
		if ctx.Err() != nil {
			break
		}
		summary := w.loop.Execute(ctx, spec)
		results = append(results, RunResult{Spec: spec, Summary: summary})
	}
	if w.sink != nil {
		w.sink.Publish(events.Event{Type: events.TypeWorkerIdle, Model: w.model})
	}
	return results
}
