// Package env implements the two puzzle state machines the harness drives.
// Each environment owns the mutable play state of a single run, accepts one
// action per step, and answers with feedback plus the new observable state.
// Transitions are pure functions over value-typed state so game logic stays
// unit-testable without hidden fields.
package env

import (
	"errors"

	"github.com/odvcencio/wordbench/pkg/puzzle"
)

var (
	// ErrNotReset is returned by Step before Reset has been called.
	ErrNotReset = errors.New("environment not reset")

	// ErrTerminal is returned by Step once the run has reached a terminal status.
	ErrTerminal = errors.New("environment is terminal")
)

// Status is the lifecycle state of a run inside an environment.
type Status string

const (
	StatusInProgress         Status = "in_progress"
	StatusSuccess            Status = "success"
	StatusSuccessClean       Status = "success_clean"
	StatusSuccessWithReveals Status = "success_with_reveals"
	StatusFail               Status = "fail"
	StatusGaveUp             Status = "gave_up"
)

// Terminal reports whether s is an absorbing status.
func (s Status) Terminal() bool {
	return s != StatusInProgress && s != ""
}

// Outcome classifies the result of applying one action.
type Outcome string

const (
	// OutcomeCorrect is a scoring move that advanced the puzzle (found group).
	OutcomeCorrect Outcome = "correct"
	// OutcomeIncorrect is a scoring move that cost a mistake.
	OutcomeIncorrect Outcome = "incorrect"
	// OutcomeOK is an accepted non-scoring move (grid edit, check, terminal action).
	OutcomeOK Outcome = "ok"
	// OutcomeInvalid is a rejected action; the environment state is unchanged.
	OutcomeInvalid Outcome = "invalid_action"
)

// ActionKind tags the action union.
type ActionKind string

const (
	ActionSubmitGroup  ActionKind = "submit_group"
	ActionGiveUp       ActionKind = "give_up"
	ActionFillEntry    ActionKind = "fill_entry"
	ActionClearEntry   ActionKind = "clear_entry"
	ActionCheckEntry   ActionKind = "check_entry"
	ActionSubmitPuzzle ActionKind = "submit_puzzle"
)

// Action is one agent-proposed move. Kind selects which payload fields apply;
// the JSON shape is kept in lock-step with the structured-output schema the
// agent is asked to produce.
type Action struct {
	Kind ActionKind `json:"action"`

	// submit_group
	Words []string `json:"words,omitempty"`

	// fill_entry / clear_entry / check_entry
	Direction string `json:"direction,omitempty"` // "across" or "down"
	Number    int    `json:"number,omitempty"`
	Answer    string `json:"answer,omitempty"` // fill_entry only
}

// Feedback is the environment's synchronous response to one action.
type Feedback struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Done    bool    `json:"done"`
	Status  Status  `json:"status"`

	// Grouping game detail.
	OneAway    bool          `json:"one_away,omitempty"`
	FoundGroup *puzzle.Group `json:"found_group,omitempty"`

	// Grid game detail.
	WrongCells []int `json:"wrong_cells,omitempty"`
	NewlyWrong []int `json:"newly_wrong,omitempty"`
}

// DiscoveredGroup is a solved group as exposed in observations.
type DiscoveredGroup struct {
	Category string   `json:"category"`
	Level    int      `json:"level"`
	Words    []string `json:"words"`
}

// SubmissionRecord is one past grouping-game submission: the words as
// submitted and how the environment judged them. Shown to the agent so it
// can avoid repeating guesses.
type SubmissionRecord struct {
	Words   []string `json:"words"`
	Outcome Outcome  `json:"outcome"`
	OneAway bool     `json:"one_away,omitempty"`
}

// ConnectionsObservation is the grouping-game view shown to the agent.
// It never contains undiscovered solution data.
type ConnectionsObservation struct {
	Remaining    []string           `json:"remaining"`
	Discovered   []DiscoveredGroup  `json:"discovered"`
	MistakesLeft int                `json:"mistakes_left"`
	History      []SubmissionRecord `json:"history"`
}

// ClueObservation is one clue with its current fill state.
type ClueObservation struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Length int    `json:"length"`
	Filled string `json:"filled"` // current letters, "_" for empty cells
}

// CrosswordObservation is the grid-game view shown to the agent.
type CrosswordObservation struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Grid        []string          `json:"grid"` // "#" block, "." empty, letter otherwise
	Across      []ClueObservation `json:"across"`
	Down        []ClueObservation `json:"down"`
	KnownWrong  []int             `json:"known_wrong,omitempty"`
	ChecksUsed  int               `json:"checks_used"`
	AllowChecks bool              `json:"allow_checks"`
}

// Observation is the task-tagged union of environment views.
type Observation struct {
	PuzzleType  puzzle.Type             `json:"puzzle_type"`
	Step        int                     `json:"step"`
	Connections *ConnectionsObservation `json:"connections,omitempty"`
	Crossword   *CrosswordObservation   `json:"crossword,omitempty"`
}

// Environment is a deterministic state machine over one puzzle instance.
// Implementations are not safe for concurrent use; each run owns its own.
type Environment interface {
	// Reset initializes play state. Must be called before the first Step.
	Reset()

	// Step applies one action. It fails with ErrNotReset or ErrTerminal when
	// the environment cannot accept actions; rule violations inside a live run
	// are reported as OutcomeInvalid feedback instead, leaving state unchanged.
	Step(action Action) (Feedback, error)

	// Observation returns the agent-visible view of the current state.
	Observation() Observation

	// Status returns the current terminal or in-progress status.
	Status() Status

	// Metrics returns task-specific result metrics for the run summary.
	Metrics() map[string]float64
}
