// Package trace persists run artifacts: an append-only JSONL step log and an
// atomically written summary per run. Step logs are gzip-compressed per the
// configured policy; summaries are written via temp-file-then-rename so a
// crash never leaves a partial summary visible.
package trace

import (
	"time"

	"github.com/odvcencio/wordbench/pkg/env"
	"github.com/odvcencio/wordbench/pkg/model"
)

// StepRecord is one immutable log entry per step. Appended once, never
// mutated.
type StepRecord struct {
	Step        int               `json:"step"`
	Observation env.Observation   `json:"observation"`
	Request     model.ChatRequest `json:"request"`
	RawResponse string            `json:"raw_response,omitempty"`
	Action      *env.Action       `json:"action,omitempty"`
	Feedback    *env.Feedback     `json:"feedback,omitempty"`
	Usage       model.Usage       `json:"usage"`
	Cost        *float64          `json:"cost,omitempty"`
	LatencyMs   int64             `json:"latency_ms"`
	Error       string            `json:"error,omitempty"`
}

// RunSummary is the aggregate outcome of one run, written once at run end.
type RunSummary struct {
	Suite    string `json:"suite"`
	Model    string `json:"model"`
	PuzzleID string `json:"puzzle_id"`
	RunID    string `json:"run_id"`
	Repeat   int    `json:"repeat"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status RunStatus `json:"status"`
	// Steps counts attempted steps, including ones whose agent call errored
	// or whose response failed to parse; it is not a count of accepted
	// actions.
	Steps          int `json:"steps"`
	InvalidActions int `json:"invalid_actions"`
	Usage          model.Usage `json:"usage"`
	Cost           *float64    `json:"cost,omitempty"`
	TotalLatencyMs int64       `json:"total_latency_ms"`

	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// RunStatus is the fixed terminal status set for a run. Environment terminal
// statuses pass through; the loop adds timeout and error.
type RunStatus string

const (
	RunSuccess            RunStatus = RunStatus(env.StatusSuccess)
	RunSuccessClean       RunStatus = RunStatus(env.StatusSuccessClean)
	RunSuccessWithReveals RunStatus = RunStatus(env.StatusSuccessWithReveals)
	RunFail               RunStatus = RunStatus(env.StatusFail)
	RunGaveUp             RunStatus = RunStatus(env.StatusGaveUp)
	RunTimeout            RunStatus = "timeout"
	RunError              RunStatus = "error"
)

// Succeeded reports whether the run solved its puzzle.
func (s RunStatus) Succeeded() bool {
	switch s {
	case RunSuccess, RunSuccessClean, RunSuccessWithReveals:
		return true
	}
	return false
}
