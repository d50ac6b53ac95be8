package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/wordbench/pkg/config"
	"github.com/odvcencio/wordbench/pkg/env"
	"github.com/odvcencio/wordbench/pkg/model"
	"github.com/odvcencio/wordbench/pkg/puzzle"
	"github.com/odvcencio/wordbench/pkg/trace"
)

// scriptClient replays canned responses in order; safe for concurrent use.
type scriptClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
	err       error
	delay     time.Duration
}

func (c *scriptClient) Complete(ctx context.Context, req model.ChatRequest) (*model.Completion, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}

	content := `{"action":"give_up"}`
	if idx < len(c.responses) {
		content = c.responses[idx]
	}
	cost := 0.001
	return &model.Completion{
		Content: content,
		Usage:   model.Usage{PromptTokens: 90, CompletionTokens: 10, TotalTokens: 100},
		Cost:    &cost,
		Latency: 5 * time.Millisecond,
	}, nil
}

func (c *scriptClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Suite = "test"
	cfg.Models = []string{"test/model"}
	cfg.Trace.Dir = t.TempDir()
	cfg.Trace.Compression = config.CompressionNever
	return cfg
}

func connectionsPuzzle() puzzle.Puzzle {
	return puzzle.Puzzle{
		ID:   "conn-001",
		Type: puzzle.TypeConnections,
		Connections: &puzzle.Connections{
			Groups: []puzzle.Group{
				{Category: "WET WEATHER", Level: 0, Words: []string{"HAIL", "RAIN", "SLEET", "SNOW"}},
				{Category: "NBA TEAMS", Level: 1, Words: []string{"BUCKS", "HEAT", "JAZZ", "NETS"}},
				{Category: "KEYBOARD KEYS", Level: 2, Words: []string{"OPTION", "RETURN", "SHIFT", "TAB"}},
				{Category: "PALINDROMES", Level: 3, Words: []string{"KAYAK", "LEVEL", "MOM", "RACECAR"}},
			},
		},
	}
}

func specFor(cfg *config.Config, p puzzle.Puzzle) RunSpec {
	return RunSpec{
		Suite:     cfg.Suite,
		Model:     "test/model",
		Puzzle:    p,
		StartedAt: time.Now(),
		TraceRoot: cfg.Trace.Dir,
	}
}

func submitJSON(words ...string) string {
	out := `{"action":"submit_group","words":[`
	for i, w := range words {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", w)
	}
	return out + `]}`
}

func TestExecuteSolvesConnections(t *testing.T) {
	cfg := testConfig(t)
	client := &scriptClient{responses: []string{
		submitJSON("HAIL", "RAIN", "SLEET", "SNOW"),
		submitJSON("BUCKS", "HEAT", "JAZZ", "NETS"),
		submitJSON("OPTION", "RETURN", "SHIFT", "TAB"),
		submitJSON("KAYAK", "LEVEL", "MOM", "RACECAR"),
	}}

	loop := NewStepLoop(cfg, client, nil, nil)
	spec := specFor(cfg, connectionsPuzzle())
	summary := loop.Execute(context.Background(), spec)

	assert.Equal(t, trace.RunSuccess, summary.Status)
	assert.Equal(t, 4, summary.Steps)
	assert.Equal(t, 0, summary.InvalidActions)
	assert.Equal(t, 400, summary.Usage.TotalTokens)
	require.NotNil(t, summary.Cost)
	assert.InDelta(t, 0.004, *summary.Cost, 1e-9)
	assert.Equal(t, 4.0, summary.Metrics["groups_found"])
	assert.NotEmpty(t, summary.RunID)

	// The trace round-trips: summary on disk matches the returned one.
	dir := trace.RunDir(spec.TraceRoot, spec.Suite, spec.StartedAt, spec.Model, spec.Puzzle.ID, summary.RunID)
	steps, stored, err := trace.ReadRun(dir)
	require.NoError(t, err)
	assert.Equal(t, summary.Status, stored.Status)
	assert.Equal(t, summary.Usage, stored.Usage)
	require.Len(t, steps, 4)
	assert.Equal(t, env.OutcomeCorrect, steps[3].Feedback.Outcome)
	assert.True(t, steps[3].Feedback.Done)
}

func TestExecuteGiveUp(t *testing.T) {
	cfg := testConfig(t)
	client := &scriptClient{responses: []string{`{"action":"give_up"}`}}

	loop := NewStepLoop(cfg, client, nil, nil)
	summary := loop.Execute(context.Background(), specFor(cfg, connectionsPuzzle()))

	assert.Equal(t, trace.RunGaveUp, summary.Status)
	assert.Equal(t, 1, summary.Steps)
}

func TestExecuteInvalidActionBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxInvalidActions = 3
	// Unparseable responses burn the invalid-action budget without touching
	// the environment.
	client := &scriptClient{responses: []string{"junk", "junk", "junk", "junk"}}

	loop := NewStepLoop(cfg, client, nil, nil)
	summary := loop.Execute(context.Background(), specFor(cfg, connectionsPuzzle()))

	assert.Equal(t, trace.RunFail, summary.Status)
	assert.Equal(t, 3, summary.InvalidActions)
	assert.Equal(t, 3, summary.Steps)
}

func TestExecuteEnvInvalidCountsAgainstBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxInvalidActions = 2
	// Parses fine but violates the game rules (word not on the board).
	client := &scriptClient{responses: []string{
		submitJSON("HAIL", "RAIN", "SLEET", "TORNADO"),
		submitJSON("HAIL", "RAIN", "SLEET", "TORNADO"),
	}}

	loop := NewStepLoop(cfg, client, nil, nil)
	summary := loop.Execute(context.Background(), specFor(cfg, connectionsPuzzle()))

	assert.Equal(t, trace.RunFail, summary.Status)
	assert.Equal(t, 2, summary.InvalidActions)
	assert.Equal(t, 0.0, summary.Metrics["mistakes_made"], "invalid submissions are not mistakes")
}

func TestExecuteStepCapExhausted(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxSteps = 2
	cfg.MaxInvalidActions = 100
	// Legal but unproductive: alternate wrong guesses never finish in 2 steps.
	client := &scriptClient{responses: []string{
		submitJSON("HAIL", "RAIN", "SLEET", "BUCKS"),
		submitJSON("HAIL", "RAIN", "SLEET", "HEAT"),
	}}

	loop := NewStepLoop(cfg, client, nil, nil)
	summary := loop.Execute(context.Background(), specFor(cfg, connectionsPuzzle()))

	assert.Equal(t, trace.RunFail, summary.Status)
	assert.Equal(t, 2, summary.Steps)
}

func TestExecuteTransportErrorsKeepRunAlive(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxSteps = 2
	client := &scriptClient{err: fmt.Errorf("gateway unreachable")}

	loop := NewStepLoop(cfg, client, nil, nil)
	spec := specFor(cfg, connectionsPuzzle())
	summary := loop.Execute(context.Background(), spec)

	// Call errors consume steps but are not invalid actions.
	assert.Equal(t, trace.RunFail, summary.Status)
	assert.Equal(t, 2, summary.Steps)
	assert.Equal(t, 0, summary.InvalidActions)
	assert.Equal(t, 2, client.callCount())

	dir := trace.RunDir(spec.TraceRoot, spec.Suite, spec.StartedAt, spec.Model, spec.Puzzle.ID, summary.RunID)
	steps, err := trace.ReadSteps(dir)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Contains(t, steps[0].Error, "gateway unreachable")
}

func TestExecuteRunTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunTimeoutMs = 1
	client := &scriptClient{delay: 20 * time.Millisecond, responses: []string{
		submitJSON("HAIL", "RAIN", "SLEET", "BUCKS"),
	}}

	loop := NewStepLoop(cfg, client, nil, nil)
	summary := loop.Execute(context.Background(), specFor(cfg, connectionsPuzzle()))

	assert.Equal(t, trace.RunTimeout, summary.Status)
	assert.LessOrEqual(t, summary.Steps, 1, "timeout is only checked between steps")
}

func TestExecuteCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewStepLoop(cfg, &scriptClient{}, nil, nil)
	summary := loop.Execute(ctx, specFor(cfg, connectionsPuzzle()))

	assert.Equal(t, trace.RunError, summary.Status)
	assert.Equal(t, 0, summary.Steps)
}

func TestExecuteUnknownPuzzleType(t *testing.T) {
	cfg := testConfig(t)
	loop := NewStepLoop(cfg, &scriptClient{}, nil, nil)

	summary := loop.Execute(context.Background(), specFor(cfg, puzzle.Puzzle{ID: "x", Type: "sudoku"}))
	assert.Equal(t, trace.RunError, summary.Status)
}

// panicEnv blows up on the first step to exercise run isolation.
type panicEnv struct{}

func (panicEnv) Reset()                             {}
func (panicEnv) Step(env.Action) (env.Feedback, error) { panic("corrupted state") }
func (panicEnv) Observation() env.Observation       { return env.Observation{PuzzleType: puzzle.TypeConnections} }
func (panicEnv) Status() env.Status                 { return env.StatusInProgress }
func (panicEnv) Metrics() map[string]float64        { return nil }

func TestExecuteRecoversPanic(t *testing.T) {
	cfg := testConfig(t)
	client := &scriptClient{responses: []string{`{"action":"give_up"}`}}

	loop := NewStepLoop(cfg, client, nil, nil)
	loop.newEnv = func(puzzle.Puzzle, *config.Config) (env.Environment, error) {
		return panicEnv{}, nil
	}

	summary := loop.Execute(context.Background(), specFor(cfg, connectionsPuzzle()))
	assert.Equal(t, trace.RunError, summary.Status)
}
