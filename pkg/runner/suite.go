package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/wordbench/pkg/config"
	"github.com/odvcencio/wordbench/pkg/events"
	"github.com/odvcencio/wordbench/pkg/logging"
	"github.com/odvcencio/wordbench/pkg/puzzle"
	"github.com/odvcencio/wordbench/pkg/trace"
)

// RunResult pairs a run spec with its summary.
type RunResult struct {
	Spec    RunSpec
	Summary trace.RunSummary
}

// Suite orchestrates one evaluation: one worker per configured model, all
// workers concurrent, each worker sequential inside. The suite has no
// influence on run control flow beyond cancellation; observers follow the
// event stream.
type Suite struct {
	id     string
	cfg    *config.Config
	client AgentClient
	logger *logging.Logger
	sink   events.Sink
}

// NewSuite constructs a suite orchestrator. sink receives the combined event
// stream from all workers; it must tolerate concurrent publication.
func NewSuite(cfg *config.Config, client AgentClient, logger *logging.Logger, sink events.Sink) *Suite {
	return &Suite{
		id:     uuid.NewString(),
		cfg:    cfg,
		client: client,
		logger: logger,
		sink:   sink,
	}
}

// ID returns the suite session id.
func (s *Suite) ID() string { return s.id }

// Run executes all (model x puzzle x repeat) runs and returns every summary.
// Workers never fail the suite; the error return covers setup problems only.
func (s *Suite) Run(ctx context.Context, puzzles []puzzle.Puzzle) ([]RunResult, error) {
	if len(puzzles) == 0 {
		return nil, fmt.Errorf("no puzzles to run")
	}
	for i := range puzzles {
		if err := puzzles[i].Validate(); err != nil {
			return nil, err
		}
	}

	startedAt := time.Now()
	loop := NewStepLoop(s.cfg, s.client, s.logger, s.sink)

	if s.logger != nil {
		_ = s.logger.Info(logging.CategorySuite, "suite_start", "starting suite", map[string]any{
			"suite":   s.cfg.Suite,
			"models":  len(s.cfg.Models),
			"puzzles": len(puzzles),
			"repeats": s.cfg.Repeats,
		})
	}

	var (
		mu      sync.Mutex
		results []RunResult
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, modelID := range s.cfg.Models {
		worker := NewWorker(modelID, s.specsFor(modelID, puzzles, startedAt), loop, s.sink)
		g.Go(func() error {
			workerResults := worker.Run(gctx)
			mu.Lock()
			results = append(results, workerResults...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	if s.logger != nil {
		_ = s.logger.Info(logging.CategorySuite, "suite_complete", "suite finished", map[string]any{
			"runs": len(results),
		})
	}
	return results, ctx.Err()
}

// specsFor enumerates one model's runs: every puzzle, repeated.
func (s *Suite) specsFor(modelID string, puzzles []puzzle.Puzzle, startedAt time.Time) []RunSpec {
	specs := make([]RunSpec, 0, len(puzzles)*s.cfg.Repeats)
	for _, p := range puzzles {
		for repeat := 0; repeat < s.cfg.Repeats; repeat++ {
			specs = append(specs, RunSpec{
				Suite:     s.cfg.Suite,
				Model:     modelID,
				Puzzle:    p,
				Repeat:    repeat,
				StartedAt: startedAt,
				TraceRoot: s.cfg.Trace.Dir,
			})
		}
	}
	return specs
}
