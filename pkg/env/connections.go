package env

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/odvcencio/wordbench/pkg/puzzle"
)

const connectionsMistakeBudget = 4

// connectionsState is the full mutable state of one grouping-game run.
// Transitions produce a new value; the environment wrapper swaps it in.
type connectionsState struct {
	remaining    []string // presentation order, original casing
	discovered   []puzzle.Group
	history      []SubmissionRecord
	mistakesLeft int
	status       Status
}

// ConnectionsEnv drives one Connections puzzle.
type ConnectionsEnv struct {
	puzzle *puzzle.Connections
	rng    *rand.Rand
	state  connectionsState
	steps  int
	ready  bool
}

// NewConnectionsEnv creates an environment for p. The seed only affects the
// presentation shuffle, never correctness.
func NewConnectionsEnv(p *puzzle.Connections, seed int64) *ConnectionsEnv {
	return &ConnectionsEnv{
		puzzle: p,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Reset shuffles the 16 words for presentation and restores the mistake budget.
func (e *ConnectionsEnv) Reset() {
	words := e.puzzle.Words()
	e.rng.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
	e.state = connectionsState{
		remaining:    words,
		mistakesLeft: connectionsMistakeBudget,
		status:       StatusInProgress,
	}
	e.steps = 0
	e.ready = true
}

func (e *ConnectionsEnv) Status() Status {
	if !e.ready {
		return ""
	}
	return e.state.status
}

func (e *ConnectionsEnv) Step(action Action) (Feedback, error) {
	if !e.ready {
		return Feedback{}, ErrNotReset
	}
	if e.state.status.Terminal() {
		return Feedback{}, ErrTerminal
	}
	next, fb := transitionConnections(e.puzzle, e.state, action)
	e.state = next
	e.steps++
	return fb, nil
}

// transitionConnections is the pure grouping-game transition function.
func transitionConnections(p *puzzle.Connections, s connectionsState, action Action) (connectionsState, Feedback) {
	switch action.Kind {
	case ActionGiveUp:
		s.status = StatusGaveUp
		return s, Feedback{
			Outcome: OutcomeOK,
			Message: "gave up with " + groupCountMessage(len(s.discovered)),
			Done:    true,
			Status:  StatusGaveUp,
		}

	case ActionSubmitGroup:
		return submitGroup(p, s, action.Words)

	default:
		return s, invalidFeedback(s.status, fmt.Sprintf("action %q is not valid for this puzzle", action.Kind))
	}
}

func submitGroup(p *puzzle.Connections, s connectionsState, words []string) (connectionsState, Feedback) {
	if len(words) != 4 {
		return rejectSubmission(s, words, fmt.Sprintf("submit exactly 4 words, got %d", len(words)))
	}

	submitted := make([]string, len(words))
	seen := make(map[string]bool, len(words))
	for i, w := range words {
		norm := normalizeWord(w)
		if seen[norm] {
			return rejectSubmission(s, words, fmt.Sprintf("duplicate word %q in submission", w))
		}
		seen[norm] = true
		submitted[i] = norm
	}

	remaining := make(map[string]bool, len(s.remaining))
	for _, w := range s.remaining {
		remaining[normalizeWord(w)] = true
	}
	for i, norm := range submitted {
		if !remaining[norm] {
			return rejectSubmission(s, words, fmt.Sprintf("%q is not among the remaining words", words[i]))
		}
	}

	discovered := make(map[string]bool, len(s.discovered))
	for _, g := range s.discovered {
		discovered[g.Category] = true
	}

	// Exact 4-of-4 match against any group wins the group. The one-away hint
	// only considers undiscovered groups so it never leaks a solved category.
	oneAway := false
	for gi := range p.Groups {
		g := &p.Groups[gi]
		if discovered[g.Category] {
			continue
		}
		overlap := 0
		for _, gw := range g.Words {
			if seen[normalizeWord(gw)] {
				overlap++
			}
		}
		switch overlap {
		case 4:
			return acceptGroup(s, g, words)
		case 3:
			oneAway = true
		}
	}

	s.history = appendSubmission(s.history, words, OutcomeIncorrect, oneAway)
	s.mistakesLeft--
	fb := Feedback{
		Outcome: OutcomeIncorrect,
		OneAway: oneAway,
		Status:  StatusInProgress,
	}
	if oneAway {
		fb.Message = "incorrect, but one away from a group"
	} else {
		fb.Message = "incorrect"
	}
	if s.mistakesLeft <= 0 {
		s.status = StatusFail
		fb.Done = true
		fb.Status = StatusFail
		fb.Message += "; out of mistakes"
	}
	return s, fb
}

func acceptGroup(s connectionsState, g *puzzle.Group, words []string) (connectionsState, Feedback) {
	s.history = appendSubmission(s.history, words, OutcomeCorrect, false)
	member := make(map[string]bool, len(g.Words))
	for _, w := range g.Words {
		member[normalizeWord(w)] = true
	}
	kept := make([]string, 0, len(s.remaining)-4)
	for _, w := range s.remaining {
		if !member[normalizeWord(w)] {
			kept = append(kept, w)
		}
	}
	s.remaining = kept
	s.discovered = append(s.discovered, *g)

	fb := Feedback{
		Outcome:    OutcomeCorrect,
		Message:    fmt.Sprintf("correct: %s", g.Category),
		Status:     StatusInProgress,
		FoundGroup: g,
	}
	if len(s.discovered) == 4 {
		s.status = StatusSuccess
		fb.Done = true
		fb.Status = StatusSuccess
		fb.Message = fmt.Sprintf("correct: %s; all groups found", g.Category)
	}
	return s, fb
}

func (e *ConnectionsEnv) Observation() Observation {
	obs := ConnectionsObservation{
		Remaining:    append([]string(nil), e.state.remaining...),
		MistakesLeft: e.state.mistakesLeft,
		History:      append([]SubmissionRecord(nil), e.state.history...),
	}
	for _, g := range e.state.discovered {
		obs.Discovered = append(obs.Discovered, DiscoveredGroup{
			Category: g.Category,
			Level:    g.Level,
			Words:    append([]string(nil), g.Words...),
		})
	}
	return Observation{
		PuzzleType:  puzzle.TypeConnections,
		Step:        e.steps,
		Connections: &obs,
	}
}

func (e *ConnectionsEnv) Metrics() map[string]float64 {
	return map[string]float64{
		"mistakes_made": float64(connectionsMistakeBudget - e.state.mistakesLeft),
		"groups_found":  float64(len(e.state.discovered)),
	}
}

// rejectSubmission records the attempt in the history, then rejects it with
// the game state otherwise untouched.
func rejectSubmission(s connectionsState, words []string, msg string) (connectionsState, Feedback) {
	s.history = appendSubmission(s.history, words, OutcomeInvalid, false)
	return s, invalidFeedback(s.status, msg)
}

// appendSubmission copies on append so transitions never alias a prior
// state's history slice.
func appendSubmission(history []SubmissionRecord, words []string, outcome Outcome, oneAway bool) []SubmissionRecord {
	out := make([]SubmissionRecord, len(history), len(history)+1)
	copy(out, history)
	return append(out, SubmissionRecord{
		Words:   append([]string(nil), words...),
		Outcome: outcome,
		OneAway: oneAway,
	})
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

func invalidFeedback(status Status, msg string) Feedback {
	return Feedback{Outcome: OutcomeInvalid, Message: msg, Status: status}
}

func groupCountMessage(n int) string {
	if n == 1 {
		return "1 group found"
	}
	return fmt.Sprintf("%d groups found", n)
}
