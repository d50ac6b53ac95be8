package env

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/wordbench/pkg/puzzle"
)

// CrosswordRules are the config-dependent rule flags for the grid game.
type CrosswordRules struct {
	// AllowChecks enables the check_entry action.
	AllowChecks bool
	// AllowReveals is carried for parity with the rule set but no action
	// currently populates the revealed-cell set.
	AllowReveals bool
}

// crosswordState is the full mutable state of one grid-game run.
type crosswordState struct {
	cells      []string // "" empty, single uppercase letter otherwise; blocks stay ""
	knownWrong map[int]bool
	revealed   map[int]bool
	checks     int
	status     Status
}

// CrosswordEnv drives one crossword puzzle.
type CrosswordEnv struct {
	puzzle *puzzle.Crossword
	rules  CrosswordRules
	clues  map[string]*puzzle.Clue
	state  crosswordState
	steps  int
	ready  bool
}

// NewCrosswordEnv creates an environment for p under the given rules.
func NewCrosswordEnv(p *puzzle.Crossword, rules CrosswordRules) *CrosswordEnv {
	clues := make(map[string]*puzzle.Clue, len(p.Across)+len(p.Down))
	for i := range p.Across {
		clues[clueKey("across", p.Across[i].Number)] = &p.Across[i]
	}
	for i := range p.Down {
		clues[clueKey("down", p.Down[i].Number)] = &p.Down[i]
	}
	return &CrosswordEnv{puzzle: p, rules: rules, clues: clues}
}

// Reset builds the empty grid: blocks copied from the puzzle, everything else empty.
func (e *CrosswordEnv) Reset() {
	e.state = crosswordState{
		cells:      make([]string, e.puzzle.Width*e.puzzle.Height),
		knownWrong: make(map[int]bool),
		revealed:   make(map[int]bool),
		status:     StatusInProgress,
	}
	e.steps = 0
	e.ready = true
}

func (e *CrosswordEnv) Status() Status {
	if !e.ready {
		return ""
	}
	return e.state.status
}

func (e *CrosswordEnv) Step(action Action) (Feedback, error) {
	if !e.ready {
		return Feedback{}, ErrNotReset
	}
	if e.state.status.Terminal() {
		return Feedback{}, ErrTerminal
	}
	next, fb := transitionCrossword(e.puzzle, e.rules, e.clues, e.state, action)
	e.state = next
	e.steps++
	return fb, nil
}

// transitionCrossword is the pure grid-game transition function.
func transitionCrossword(p *puzzle.Crossword, rules CrosswordRules, clues map[string]*puzzle.Clue, s crosswordState, action Action) (crosswordState, Feedback) {
	switch action.Kind {
	case ActionFillEntry:
		return fillEntry(clues, s, action)
	case ActionClearEntry:
		return clearEntry(clues, s, action)
	case ActionCheckEntry:
		return checkEntry(p, rules, clues, s, action)
	case ActionSubmitPuzzle:
		return submitPuzzle(p, s)
	case ActionGiveUp:
		s.status = StatusGaveUp
		return s, Feedback{Outcome: OutcomeOK, Message: "gave up", Done: true, Status: StatusGaveUp}
	default:
		return s, invalidFeedback(s.status, fmt.Sprintf("action %q is not valid for this puzzle", action.Kind))
	}
}

func fillEntry(clues map[string]*puzzle.Clue, s crosswordState, action Action) (crosswordState, Feedback) {
	clue, fb, ok := lookupClue(clues, s, action)
	if !ok {
		return s, fb
	}
	answer := strings.ToUpper(strings.TrimSpace(action.Answer))
	if len(answer) != clue.Length {
		return s, invalidFeedback(s.status, fmt.Sprintf("%s %d needs %d letters, got %d", action.Direction, action.Number, clue.Length, len(answer)))
	}
	for i := 0; i < len(answer); i++ {
		if answer[i] < 'A' || answer[i] > 'Z' {
			return s, invalidFeedback(s.status, fmt.Sprintf("answer contains non-letter character %q", answer[i]))
		}
	}

	s.cells = append([]string(nil), s.cells...)
	s.knownWrong = copyCellSet(s.knownWrong)
	for i, cell := range clue.Cells {
		s.cells[cell] = string(answer[i])
		// An edit invalidates any prior check result on the cell.
		delete(s.knownWrong, cell)
	}
	return s, Feedback{
		Outcome: OutcomeOK,
		Message: fmt.Sprintf("filled %s %d", action.Direction, action.Number),
		Status:  StatusInProgress,
	}
}

func clearEntry(clues map[string]*puzzle.Clue, s crosswordState, action Action) (crosswordState, Feedback) {
	clue, fb, ok := lookupClue(clues, s, action)
	if !ok {
		return s, fb
	}
	s.cells = append([]string(nil), s.cells...)
	s.knownWrong = copyCellSet(s.knownWrong)
	for _, cell := range clue.Cells {
		if s.revealed[cell] {
			continue // revealed cells are immutable
		}
		s.cells[cell] = ""
		delete(s.knownWrong, cell)
	}
	return s, Feedback{
		Outcome: OutcomeOK,
		Message: fmt.Sprintf("cleared %s %d", action.Direction, action.Number),
		Status:  StatusInProgress,
	}
}

func checkEntry(p *puzzle.Crossword, rules CrosswordRules, clues map[string]*puzzle.Clue, s crosswordState, action Action) (crosswordState, Feedback) {
	if !rules.AllowChecks {
		return s, invalidFeedback(s.status, "checking is disabled for this run")
	}
	clue, fb, ok := lookupClue(clues, s, action)
	if !ok {
		return s, fb
	}
	for _, cell := range clue.Cells {
		if s.cells[cell] == "" {
			return s, invalidFeedback(s.status, fmt.Sprintf("%s %d is not fully filled", action.Direction, action.Number))
		}
	}

	var wrong, newlyWrong []int
	s.knownWrong = copyCellSet(s.knownWrong)
	for _, cell := range clue.Cells {
		if s.cells[cell] == p.Solution[cell] {
			continue
		}
		wrong = append(wrong, cell)
		if !s.knownWrong[cell] {
			newlyWrong = append(newlyWrong, cell)
			s.knownWrong[cell] = true
		}
	}
	s.checks++

	msg := fmt.Sprintf("%s %d: all letters correct", action.Direction, action.Number)
	if len(wrong) > 0 {
		msg = fmt.Sprintf("%s %d: %d incorrect letter(s)", action.Direction, action.Number, len(wrong))
	}
	return s, Feedback{
		Outcome:    OutcomeOK,
		Message:    msg,
		Status:     StatusInProgress,
		WrongCells: wrong,
		NewlyWrong: newlyWrong,
	}
}

func submitPuzzle(p *puzzle.Crossword, s crosswordState) (crosswordState, Feedback) {
	var wrong []int
	for i := range s.cells {
		if p.Blocks[i] {
			continue
		}
		if s.cells[i] != p.Solution[i] {
			wrong = append(wrong, i)
		}
	}
	if len(wrong) > 0 {
		s.status = StatusFail
		return s, Feedback{
			Outcome:    OutcomeIncorrect,
			Message:    fmt.Sprintf("submission has %d incorrect cell(s)", len(wrong)),
			Done:       true,
			Status:     StatusFail,
			WrongCells: wrong,
		}
	}

	status := StatusSuccessClean
	if len(s.revealed) > 0 {
		status = StatusSuccessWithReveals
	}
	s.status = status
	return s, Feedback{
		Outcome: OutcomeCorrect,
		Message: "puzzle solved",
		Done:    true,
		Status:  status,
	}
}

func (e *CrosswordEnv) Observation() Observation {
	grid := make([]string, len(e.state.cells))
	for i, cell := range e.state.cells {
		switch {
		case e.puzzle.Blocks[i]:
			grid[i] = "#"
		case cell == "":
			grid[i] = "."
		default:
			grid[i] = cell
		}
	}
	obs := CrosswordObservation{
		Width:       e.puzzle.Width,
		Height:      e.puzzle.Height,
		Grid:        grid,
		Across:      e.observeClues(e.puzzle.Across),
		Down:        e.observeClues(e.puzzle.Down),
		KnownWrong:  sortedCells(e.state.knownWrong),
		ChecksUsed:  e.state.checks,
		AllowChecks: e.rules.AllowChecks,
	}
	return Observation{
		PuzzleType: puzzle.TypeCrossword,
		Step:       e.steps,
		Crossword:  &obs,
	}
}

func (e *CrosswordEnv) observeClues(clues []puzzle.Clue) []ClueObservation {
	out := make([]ClueObservation, len(clues))
	for i, clue := range clues {
		var b strings.Builder
		for _, cell := range clue.Cells {
			if e.state.cells[cell] == "" {
				b.WriteByte('_')
			} else {
				b.WriteString(e.state.cells[cell])
			}
		}
		out[i] = ClueObservation{
			Number: clue.Number,
			Text:   clue.Text,
			Length: clue.Length,
			Filled: b.String(),
		}
	}
	return out
}

// Metrics reports checks performed, accuracy over filled cells, and the
// revealed-cell count.
func (e *CrosswordEnv) Metrics() map[string]float64 {
	filled, correct := 0, 0
	for i, cell := range e.state.cells {
		if e.puzzle.Blocks[i] || cell == "" {
			continue
		}
		filled++
		if cell == e.puzzle.Solution[i] {
			correct++
		}
	}
	accuracy := 0.0
	if filled > 0 {
		accuracy = float64(correct) / float64(filled)
	}
	return map[string]float64{
		"checks_performed": float64(e.state.checks),
		"filled_accuracy":  accuracy,
		"revealed_cells":   float64(len(e.state.revealed)),
	}
}

func lookupClue(clues map[string]*puzzle.Clue, s crosswordState, action Action) (*puzzle.Clue, Feedback, bool) {
	dir := strings.ToLower(strings.TrimSpace(action.Direction))
	if dir != "across" && dir != "down" {
		return nil, invalidFeedback(s.status, fmt.Sprintf("direction must be across or down, got %q", action.Direction)), false
	}
	clue, ok := clues[clueKey(dir, action.Number)]
	if !ok {
		return nil, invalidFeedback(s.status, fmt.Sprintf("no %s clue numbered %d", dir, action.Number)), false
	}
	return clue, Feedback{}, true
}

func clueKey(direction string, number int) string {
	return fmt.Sprintf("%s:%d", direction, number)
}

func copyCellSet(set map[int]bool) map[int]bool {
	out := make(map[int]bool, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}

func sortedCells(set map[int]bool) []int {
	if len(set) == 0 {
		return nil
	}
	cells := make([]int, 0, len(set))
	for c := range set {
		cells = append(cells, c)
	}
	sort.Ints(cells)
	return cells
}
